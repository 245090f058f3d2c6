package runtime

import "github.com/teradata-labs/agentgateway"

// CreateSessionRequest is the decoded body of POST /v1/sessions/{session_id}.
type CreateSessionRequest struct {
	Agent          agentgateway.AgentKind `json:"agent"`
	AgentMode      string                 `json:"agentMode,omitempty"`
	PermissionMode string                 `json:"permissionMode,omitempty"`
	Model          string                 `json:"model,omitempty"`
	Variant        string                 `json:"variant,omitempty"`
	AgentVersion   string                 `json:"agentVersion,omitempty"`
}

// CreateSessionResponse is returned from Runtime.Create.
type CreateSessionResponse struct {
	Healthy         bool   `json:"healthy"`
	NativeSessionID string `json:"nativeSessionId,omitempty"`
}

// EventsResult is returned from Runtime.Events.
type EventsResult struct {
	Events  []agentgateway.UniversalEvent `json:"events"`
	HasMore bool                          `json:"has_more"`
}
