package agentgateway

// QuestionOption is one selectable answer option offered to the client.
type QuestionOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// QuestionRequest is a pending AskUserQuestion-style prompt surfaced by an
// adapter. Its SessionID is overwritten by Session.Record to match the
// owning session.
type QuestionRequest struct {
	ID         string           `json:"id"`
	SessionID  string           `json:"sessionId"`
	Question   string           `json:"question"`
	Options    []QuestionOption `json:"options,omitempty"`
	ToolCallID string           `json:"toolCallId,omitempty"`
}

// PermissionRequest is a pending tool-permission prompt surfaced by an
// adapter. Its SessionID is overwritten by Session.Record to match the
// owning session.
type PermissionRequest struct {
	ID         string   `json:"id"`
	SessionID  string   `json:"sessionId"`
	Permission string   `json:"permission"`
	Patterns   []string `json:"patterns,omitempty"`
	Always     []string `json:"always,omitempty"`
	ToolCallID string   `json:"toolCallId,omitempty"`
}

// PermissionReply is the client's disposition for a PermissionRequest.
type PermissionReply string

const (
	PermissionReplyOnce   PermissionReply = "once"
	PermissionReplyAlways PermissionReply = "always"
	PermissionReplyReject PermissionReply = "reject"
)
