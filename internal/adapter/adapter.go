// Package adapter defines the shared contract the subprocess, sidecar, and
// RPC drivers use to translate one backend-native event into zero or more
// universal events. Concrete adapters live in the claude, codex, opencode,
// sidecar, and rpc subpackages.
package adapter

import "github.com/teradata-labs/agentgateway"

// Result is the product of translating one backend event.
type Result struct {
	// Events is zero or more universal events to record, in order.
	Events []agentgateway.EventData
	// NativeSessionID is a hint the driver should remember once learned; it
	// is empty when the event carries no new information about the
	// backend's own session id.
	NativeSessionID string
}

// LineAdapter translates one trimmed, non-empty line of JSON from a
// subprocess backend's stdout or stderr. It never errors: a malformed or
// unrecognized payload is represented as a Message{Unparsed} event rather
// than an error return.
type LineAdapter interface {
	ParseLine(line []byte) Result
}

// SSEAdapter translates one decoded sidecar SSE payload.
type SSEAdapter interface {
	ParseEvent(payload map[string]any) Result
}

// unparsed builds the standard fallback event for input an adapter could
// not translate.
func unparsed(raw string, err error) Result {
	msg := &agentgateway.UniversalMessage{Unparsed: &agentgateway.UnparsedMessage{Raw: raw}}
	if err != nil {
		msg.Unparsed.Err = err.Error()
	}
	return Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: msg}}}
}

// Unparsed is the exported form of unparsed, usable by driver-level callers
// that receive input before it reaches a specific adapter (e.g. a read
// error on the subprocess's stdout pipe).
func Unparsed(raw string, err error) Result {
	return unparsed(raw, err)
}
