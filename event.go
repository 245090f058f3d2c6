package agentgateway

// EventKind discriminates the tagged variant carried by UniversalEvent.Data.
type EventKind string

const (
	EventMessage         EventKind = "message"
	EventStarted         EventKind = "started"
	EventError           EventKind = "error"
	EventQuestionAsked   EventKind = "question_asked"
	EventPermissionAsked EventKind = "permission_asked"
	EventUnknown         EventKind = "unknown"

	// Incremental-item variants produced only by the RPC adapter.
	EventItemStarted   EventKind = "item_started"
	EventItemDelta     EventKind = "item_delta"
	EventItemCompleted EventKind = "item_completed"
)

// StartedMeta accompanies an EventStarted event: session creation and
// handshake bookkeeping.
type StartedMeta struct {
	Reason string            `json:"reason"`
	Detail map[string]string `json:"detail,omitempty"`
	// Process carries the spawned subprocess's identity for
	// subprocess-backed sessions; nil for sidecar/RPC-backed sessions that
	// have no per-turn OS process of their own.
	Process *ProcessMeta `json:"process,omitempty"`
}

// ProcessMeta identifies the OS process backing one subprocess-driven turn.
type ProcessMeta struct {
	PID    int    `json:"pid"`
	Binary string `json:"binary"`
}

// CrashInfo accompanies an EventError event produced by a backend failure.
type CrashInfo struct {
	Message    string `json:"message"`
	Code       int    `json:"code,omitempty"`
	StderrTail string `json:"stderrTail,omitempty"`
}

// ItemKind discriminates a UniversalItem produced by the RPC adapter.
type ItemKind string

const (
	ItemKindMessage    ItemKind = "message"
	ItemKindToolCall   ItemKind = "tool-call"
	ItemKindToolResult ItemKind = "tool-result"
	ItemKindStatus     ItemKind = "status"
)

// ItemStatus is the lifecycle state of a UniversalItem.
type ItemStatus string

const (
	StatusInProgress ItemStatus = "in-progress"
	StatusCompleted  ItemStatus = "completed"
	StatusFailed     ItemStatus = "failed"
)

// UniversalItem is the incremental unit the RPC adapter streams: a message,
// tool call, tool result, or a terminal status marker.
type UniversalItem struct {
	ID     string     `json:"id"`
	Kind   ItemKind   `json:"kind"`
	Status ItemStatus `json:"status"`
	Role   Role       `json:"role,omitempty"`
	Name   string     `json:"name,omitempty"`
	Parts  []Part     `json:"parts,omitempty"`
	// Label names a terminal status item, e.g. "turn.completed",
	// "session.idle", or "pi.<raw>" for an unrecognized marker.
	Label string `json:"label,omitempty"`
	// Usage carries token accounting when the terminal event (message_end,
	// turn_end) reports it.
	Usage *Usage `json:"usage,omitempty"`
}

// EventData is the tagged variant carried by every UniversalEvent. Exactly
// one field matching Kind is populated.
type EventData struct {
	Kind EventKind `json:"kind"`

	Message    *UniversalMessage  `json:"message,omitempty"`
	Started    *StartedMeta       `json:"started,omitempty"`
	Error      *CrashInfo         `json:"error,omitempty"`
	Question   *QuestionRequest   `json:"question,omitempty"`
	Permission *PermissionRequest `json:"permission,omitempty"`
	Unknown    string             `json:"unknown,omitempty"`

	// Item and Delta are populated for the ItemStarted/ItemDelta/ItemCompleted
	// variants produced by the RPC adapter.
	Item  *UniversalItem `json:"item,omitempty"`
	Delta string         `json:"delta,omitempty"`
}

// UniversalEvent is one normalized, sequence-numbered record in a session's
// log. It is immutable once returned from Session.Record.
type UniversalEvent struct {
	ID              int64     `json:"id"`
	Timestamp       string    `json:"timestamp"`
	SessionID       string    `json:"sessionId"`
	Agent           AgentKind `json:"agent"`
	NativeSessionID string    `json:"nativeSessionId,omitempty"`
	Data            EventData `json:"data"`
}
