// Package agentgateway defines the universal session and event model shared
// by every backend adapter, driver, and the HTTP surface: AgentKind, Session,
// UniversalEvent, UniversalMessage, and the question/permission protocol.
//
// A Session is the unit of state: it owns an append-only log of
// UniversalEvent, a broadcast hub for live subscribers, and the pending
// question/permission sets. Session.Record is the sole mutator of the event
// log; everything else in this package describes what can be recorded.
//
// The primary types defined in this package are:
//
//   - [AgentKind] — a closed enumeration of backend families
//   - [Session] — per-conversation state: log, hub, pending sets
//   - [UniversalEvent] — one normalized, sequence-numbered event
//   - [UniversalMessage] — a parsed or unparsed assistant/user message
package agentgateway
