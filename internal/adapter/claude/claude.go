// Package claude adapts the Claude Code CLI's stream-json stdout protocol
// to the universal event model, and builds its argv.
package claude

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/teradata-labs/agentgateway"
	adaptpkg "github.com/teradata-labs/agentgateway/internal/adapter"
	"github.com/teradata-labs/agentgateway/internal/jsonutil"
)

var _ adaptpkg.LineAdapter = (*Adapter)(nil)

const DefaultBinary = "claude"

// askUserQuestionTool is the one tool name this adapter treats specially,
// turning its input into a QuestionAsked event.
const askUserQuestionTool = "AskUserQuestion"

var validResumeID = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// PermissionMode mirrors the CLI's --permission-mode values.
type PermissionMode string

const (
	PermissionDefault     PermissionMode = "default"
	PermissionAcceptEdits PermissionMode = "acceptEdits"
	PermissionBypassAll   PermissionMode = "bypassAll"
	PermissionPlan        PermissionMode = "plan"
)

func mapPermission(p string) string {
	switch PermissionMode(p) {
	case PermissionBypassAll:
		return "bypassPermissions"
	case PermissionAcceptEdits, PermissionPlan:
		return p
	default:
		return ""
	}
}

// ValidateResumeID reports whether id is safe to place in argv.
func ValidateResumeID(id string) bool {
	return validResumeID.MatchString(id)
}

// SpawnArgs builds argv for one turn. model, permissionMode, and resumeID
// are session-level; prompt is the trailing positional argument.
func SpawnArgs(model, permissionMode, resumeID, prompt string) (string, []string) {
	args := []string{"-p", "--verbose", "--output-format", "stream-json"}
	if model != "" {
		args = append(args, "--model", model)
	}
	if flag := mapPermission(permissionMode); flag != "" {
		args = append(args, "--permission-mode", flag)
	}
	if resumeID != "" && ValidateResumeID(resumeID) {
		args = append(args, "--resume", resumeID)
	}
	if !jsonutil.ContainsNull(prompt) {
		args = append(args, prompt)
	}
	return DefaultBinary, args
}

// Adapter translates Claude's stream-json lines. It carries the
// stop-reason-carry-forward state the streaming protocol requires: in
// streaming mode, stop_reason is only observed on an intermediate
// message_delta event, not on the terminal "result" event, so it must be
// captured and reattached.
type Adapter struct {
	pendingStopReason string
}

func New() *Adapter { return &Adapter{} }

// ParseLine implements adapter.LineAdapter.
func (a *Adapter) ParseLine(line []byte) adaptpkg.Result {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return adaptpkg.Result{}
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return adaptpkg.Unparsed(trimmed, err)
	}

	typeStr := jsonutil.GetString(raw, "type")
	switch typeStr {
	case "system":
		return a.parseSystem(raw)
	case "assistant":
		return a.parseAssistant(raw)
	case "tool":
		return a.parseTool(raw)
	case "result":
		return a.parseResult(raw)
	case "error":
		return a.parseError(raw)
	case "stream_event":
		return a.parseStreamEvent(raw)
	default:
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventUnknown, Unknown: trimmed}}}
	}
}

func (a *Adapter) parseSystem(raw map[string]any) adaptpkg.Result {
	if jsonutil.GetString(raw, "subtype") == "init" {
		return adaptpkg.Result{
			Events:          []agentgateway.EventData{{Kind: agentgateway.EventStarted, Started: &agentgateway.StartedMeta{Reason: "init"}}},
			NativeSessionID: jsonutil.GetString(raw, "session_id"),
		}
	}
	msg := agentgateway.TextMessage(agentgateway.RoleSystem, jsonutil.GetString(raw, "message"))
	return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: &msg}}}
}

func (a *Adapter) parseAssistant(raw map[string]any) adaptpkg.Result {
	message, _ := raw["message"].(map[string]any)
	var parts []agentgateway.Part
	var question *agentgateway.QuestionRequest

	if message != nil {
		if contentArr, ok := message["content"].([]any); ok {
			for _, c := range contentArr {
				cm, ok := c.(map[string]any)
				if !ok {
					continue
				}
				switch jsonutil.GetString(cm, "type") {
				case "thinking":
					if t, ok := cm["thinking"].(string); ok && t != "" {
						parts = append(parts, agentgateway.Part{Kind: agentgateway.PartReasoning, Text: t})
					}
				case "tool_use":
					name := jsonutil.GetString(cm, "name")
					var input json.RawMessage
					if v, ok := cm["input"]; ok {
						input, _ = json.Marshal(v)
					}
					if name == askUserQuestionTool {
						question = questionFromInput(jsonutil.GetString(cm, "id"), input)
						continue
					}
					parts = append(parts, agentgateway.Part{Kind: agentgateway.PartToolCall, ID: jsonutil.GetString(cm, "id"), Name: name, Input: input})
				default:
					if t, ok := cm["text"].(string); ok {
						parts = append(parts, agentgateway.Part{Kind: agentgateway.PartText, Text: t})
					}
				}
			}
		}
	}

	if question != nil {
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventQuestionAsked, Question: question}}}
	}
	if len(parts) == 0 {
		return adaptpkg.Result{}
	}
	msg := agentgateway.UniversalMessage{Parsed: &agentgateway.ParsedMessage{Role: agentgateway.RoleAssistant, Parts: parts}}
	return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: &msg}}}
}

// questionFromInput maps an AskUserQuestion tool_use input payload
// (`{"question": "...", "options": ["A","B"]}`) into a QuestionRequest.
// Claude's tool_use id is normally present and reused as the question id,
// but when it's missing a fresh id is synthesized so the pending-question
// set still has something to key on.
func questionFromInput(toolCallID string, input json.RawMessage) *agentgateway.QuestionRequest {
	var payload struct {
		Question string   `json:"question"`
		Options  []string `json:"options"`
	}
	_ = json.Unmarshal(input, &payload)
	id := toolCallID
	if id == "" {
		id = uuid.NewString()
	}
	q := &agentgateway.QuestionRequest{ID: id, Question: payload.Question, ToolCallID: toolCallID}
	for _, opt := range payload.Options {
		q.Options = append(q.Options, agentgateway.QuestionOption{ID: opt, Label: opt})
	}
	return q
}

func (a *Adapter) parseTool(raw map[string]any) adaptpkg.Result {
	var output json.RawMessage
	if v, ok := raw["output"]; ok {
		output, _ = json.Marshal(v)
	}
	part := agentgateway.Part{
		Kind:   agentgateway.PartToolResult,
		ID:     jsonutil.GetString(raw, "id"),
		Name:   jsonutil.GetString(raw, "name"),
		Output: output,
	}
	msg := agentgateway.UniversalMessage{Parsed: &agentgateway.ParsedMessage{Role: agentgateway.RoleAssistant, Parts: []agentgateway.Part{part}}}
	return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: &msg}}}
}

func (a *Adapter) parseResult(raw map[string]any) adaptpkg.Result {
	text := jsonutil.GetString(raw, "result")
	if text == "" {
		text = jsonutil.GetString(raw, "text")
	}
	msg := agentgateway.TextMessage(agentgateway.RoleAssistant, text)
	if a.pendingStopReason != "" {
		msg.Parsed.Metadata = map[string]string{"stopReason": a.pendingStopReason}
		a.pendingStopReason = ""
	}
	msg.Parsed.Usage = extractUsage(raw)
	return adaptpkg.Result{
		Events:          []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: &msg}},
		NativeSessionID: jsonutil.GetString(raw, "session_id"),
	}
}

// extractUsage reads the "usage" object the terminal result event carries.
// Returns nil when the payload has no usage object, so ParsedMessage.Usage
// stays unset rather than a zero-valued struct.
func extractUsage(raw map[string]any) *agentgateway.Usage {
	usage := jsonutil.GetMap(raw, "usage")
	if usage == nil {
		return nil
	}
	return &agentgateway.Usage{
		InputTokens:      jsonutil.GetInt(usage, "input_tokens"),
		OutputTokens:     jsonutil.GetInt(usage, "output_tokens"),
		CacheReadTokens:  jsonutil.GetInt(usage, "cache_read_input_tokens"),
		CacheWriteTokens: jsonutil.GetInt(usage, "cache_creation_input_tokens"),
	}
}

func (a *Adapter) parseError(raw map[string]any) adaptpkg.Result {
	code := jsonutil.GetString(raw, "code")
	message := jsonutil.GetString(raw, "message")
	if message == "" {
		message = jsonutil.GetString(raw, "error")
	}
	if code != "" {
		message = code + ": " + message
	}
	return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventError, Error: &agentgateway.CrashInfo{Message: message}}}}
}

func (a *Adapter) parseStreamEvent(raw map[string]any) adaptpkg.Result {
	event, ok := raw["event"].(map[string]any)
	if !ok {
		return adaptpkg.Result{}
	}
	switch jsonutil.GetString(event, "type") {
	case "content_block_delta":
		delta, _ := event["delta"].(map[string]any)
		if delta == nil {
			return adaptpkg.Result{}
		}
		switch jsonutil.GetString(delta, "type") {
		case "text_delta":
			msg := agentgateway.TextMessage(agentgateway.RoleAssistant, jsonutil.GetString(delta, "text"))
			return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: &msg}}}
		case "thinking_delta":
			part := agentgateway.Part{Kind: agentgateway.PartReasoning, Text: jsonutil.GetString(delta, "thinking")}
			msg := agentgateway.UniversalMessage{Parsed: &agentgateway.ParsedMessage{Role: agentgateway.RoleAssistant, Parts: []agentgateway.Part{part}}}
			return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: &msg}}}
		}
		return adaptpkg.Result{}
	case "message_delta":
		if delta, ok := event["delta"].(map[string]any); ok {
			if sr := jsonutil.GetString(delta, "stop_reason"); sr != "" {
				a.pendingStopReason = sr
			}
		}
		return adaptpkg.Result{}
	default:
		return adaptpkg.Result{}
	}
}
