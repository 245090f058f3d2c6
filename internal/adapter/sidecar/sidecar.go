// Package sidecar adapts a sidecar HTTP server's SSE event bus to the
// universal event model, dispatching on each payload's "type" field.
package sidecar

import (
	"github.com/google/uuid"

	"github.com/teradata-labs/agentgateway"
	adaptpkg "github.com/teradata-labs/agentgateway/internal/adapter"
	"github.com/teradata-labs/agentgateway/internal/jsonutil"
)

// Adapter translates one decoded sidecar SSE payload. It is stateless: all
// information it needs (the native session id, the part being updated)
// arrives in the payload itself.
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

var _ adaptpkg.SSEAdapter = (*Adapter)(nil)

// ExtractNativeSessionID extracts the id the driver demultiplexes on.
// Exported so the sidecar driver can filter a payload before handing it to
// ParseEvent.
func ExtractNativeSessionID(payload map[string]any) string {
	if id := jsonutil.GetString(payload, "sessionId"); id != "" {
		return id
	}
	if id := jsonutil.GetString(payload, "sessionID"); id != "" {
		return id
	}
	return jsonutil.GetString(payload, "session_id")
}

func (a *Adapter) ParseEvent(payload map[string]any) adaptpkg.Result {
	typeStr := jsonutil.GetString(payload, "type")
	native := ExtractNativeSessionID(payload)

	switch typeStr {
	case "session.created":
		return adaptpkg.Result{
			Events:          []agentgateway.EventData{{Kind: agentgateway.EventStarted, Started: &agentgateway.StartedMeta{Reason: "session.created"}}},
			NativeSessionID: native,
		}
	case "session.error":
		message := jsonutil.GetString(payload, "message")
		if message == "" {
			message = jsonutil.GetString(payload, "error")
		}
		return adaptpkg.Result{
			Events:          []agentgateway.EventData{{Kind: agentgateway.EventError, Error: &agentgateway.CrashInfo{Message: message}}},
			NativeSessionID: native,
		}
	case "message.updated", "message.part.updated":
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: parsePart(payload)}}, NativeSessionID: native}
	case "question.asked":
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventQuestionAsked, Question: parseQuestion(payload)}}, NativeSessionID: native}
	case "permission.asked":
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventPermissionAsked, Permission: parsePermission(payload)}}, NativeSessionID: native}
	default:
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventUnknown, Unknown: typeStr}}, NativeSessionID: native}
	}
}

func parsePart(payload map[string]any) *agentgateway.UniversalMessage {
	part := jsonutil.GetMap(payload, "part")
	if part == nil {
		part = payload
	}
	var p agentgateway.Part
	switch jsonutil.GetString(part, "type") {
	case "file":
		p = agentgateway.Part{Kind: agentgateway.PartFile, Attachment: &agentgateway.Attachment{
			Source: agentgateway.AttachmentPath, Path: jsonutil.GetString(part, "path"), MimeType: jsonutil.GetString(part, "mime"),
		}}
	case "tool":
		p = agentgateway.Part{
			Kind: agentgateway.PartToolCall,
			ID:   jsonutil.GetString(part, "id"),
			Name: jsonutil.GetString(part, "name"),
		}
	default:
		p = agentgateway.Part{Kind: agentgateway.PartText, Text: jsonutil.GetString(part, "text")}
	}
	role := agentgateway.RoleAssistant
	if jsonutil.GetString(payload, "role") == "user" {
		role = agentgateway.RoleUser
	}
	return &agentgateway.UniversalMessage{Parsed: &agentgateway.ParsedMessage{Role: role, Parts: []agentgateway.Part{p}}}
}

func parseQuestion(payload map[string]any) *agentgateway.QuestionRequest {
	id := jsonutil.GetString(payload, "requestID")
	if id == "" {
		// Synthesize an id when the sidecar's own payload doesn't supply
		// one, so the pending-question set still has something to key on.
		id = uuid.NewString()
	}
	q := &agentgateway.QuestionRequest{
		ID:       id,
		Question: jsonutil.GetString(payload, "question"),
	}
	if opts, ok := payload["options"].([]any); ok {
		for _, o := range opts {
			if s, ok := o.(string); ok {
				q.Options = append(q.Options, agentgateway.QuestionOption{ID: s, Label: s})
			}
		}
	}
	return q
}

func parsePermission(payload map[string]any) *agentgateway.PermissionRequest {
	id := jsonutil.GetString(payload, "requestID")
	if id == "" {
		id = uuid.NewString()
	}
	p := &agentgateway.PermissionRequest{
		ID:         id,
		Permission: jsonutil.GetString(payload, "permission"),
	}
	if patterns, ok := payload["patterns"].([]any); ok {
		for _, v := range patterns {
			if s, ok := v.(string); ok {
				p.Patterns = append(p.Patterns, s)
			}
		}
	}
	return p
}
