// Package opencode adapts the OpenCode CLI's nd-JSON event stream to the
// universal event model, and builds its argv.
package opencode

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/teradata-labs/agentgateway"
	adaptpkg "github.com/teradata-labs/agentgateway/internal/adapter"
	"github.com/teradata-labs/agentgateway/internal/jsonutil"
)

const DefaultBinary = "opencode"

var validSessionID = regexp.MustCompile(`^ses_[a-zA-Z0-9]{20,40}$`)

// SpawnArgs builds argv for one turn. OpenCode has no streaming input: each
// turn is its own subprocess, resumed via --session once the native id is
// known.
func SpawnArgs(model, resumeID, prompt string) (string, []string) {
	args := []string{"run", "--format", "json"}
	if model != "" {
		args = append(args, "--model", model)
	}
	if resumeID != "" && validSessionID.MatchString(resumeID) {
		args = append(args, "--session", resumeID)
	}
	if prompt != "" && !jsonutil.ContainsNull(prompt) {
		args = append(args, prompt)
	}
	return DefaultBinary, args
}

// Adapter translates OpenCode's nd-JSON events: step_start, text, tool_use,
// step_finish, reasoning, error.
type Adapter struct {
	sessionID atomic.Pointer[string]
}

func New() *Adapter { return &Adapter{} }

var _ adaptpkg.LineAdapter = (*Adapter)(nil)

func (a *Adapter) SessionID() string {
	if p := a.sessionID.Load(); p != nil {
		return *p
	}
	return ""
}

func (a *Adapter) ParseLine(line []byte) adaptpkg.Result {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return adaptpkg.Result{}
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return adaptpkg.Unparsed(trimmed, err)
	}

	switch jsonutil.GetString(raw, "type") {
	case "step_start":
		return a.parseStepStart(raw)
	case "text":
		part := jsonutil.GetMap(raw, "part")
		msg := agentgateway.TextMessage(agentgateway.RoleAssistant, jsonutil.GetString(part, "text"))
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: &msg}}}
	case "reasoning":
		p := agentgateway.Part{Kind: agentgateway.PartReasoning, Text: jsonutil.GetString(jsonutil.GetMap(raw, "part"), "text")}
		msg := agentgateway.UniversalMessage{Parsed: &agentgateway.ParsedMessage{Role: agentgateway.RoleAssistant, Parts: []agentgateway.Part{p}}}
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: &msg}}}
	case "tool_use":
		// tool_use arrives post-completion with both input and output under
		// part.state.
		part := jsonutil.GetMap(raw, "part")
		state := jsonutil.GetMap(part, "state")
		p := agentgateway.Part{
			Kind:   agentgateway.PartToolResult,
			Name:   jsonutil.GetString(part, "tool"),
			Input:  marshalField(state, "input"),
			Output: marshalField(state, "output"),
		}
		msg := agentgateway.UniversalMessage{Parsed: &agentgateway.ParsedMessage{Role: agentgateway.RoleAssistant, Parts: []agentgateway.Part{p}}}
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: &msg}}}
	case "step_finish":
		msg := agentgateway.TextMessage(agentgateway.RoleAssistant, "")
		msg.Parsed.Usage = parseTokens(raw)
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: &msg}}}
	case "error":
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventError, Error: &agentgateway.CrashInfo{Message: errorMessage(raw)}}}}
	default:
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventUnknown, Unknown: trimmed}}}
	}
}

// errorMessage formats an "error" event's nested error object
// ({name, data:{message}}, with error.message as a fallback).
func errorMessage(raw map[string]any) string {
	errObj := jsonutil.GetMap(raw, "error")
	if errObj == nil {
		return "unknown error"
	}
	code := jsonutil.GetString(errObj, "name")
	message := jsonutil.GetString(jsonutil.GetMap(errObj, "data"), "message")
	if message == "" {
		message = jsonutil.GetString(errObj, "message")
	}
	switch {
	case code != "" && message != "":
		return code + ": " + message
	case code != "":
		return code
	case message != "":
		return message
	default:
		return "unknown error"
	}
}

// parseTokens extracts token usage from a step_finish event's part.tokens.
// Returns nil when the counts are absent or both zero.
func parseTokens(raw map[string]any) *agentgateway.Usage {
	tokens := jsonutil.GetMap(jsonutil.GetMap(raw, "part"), "tokens")
	if tokens == nil {
		return nil
	}
	input := jsonutil.GetInt(tokens, "input")
	output := jsonutil.GetInt(tokens, "output")
	if input == 0 && output == 0 {
		return nil
	}
	return &agentgateway.Usage{InputTokens: input, OutputTokens: output}
}

// marshalField marshals m[key] to json.RawMessage if present, else nil.
func marshalField(m map[string]any, key string) json.RawMessage {
	if m == nil {
		return nil
	}
	v, ok := m[key]
	if !ok {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func (a *Adapter) parseStepStart(raw map[string]any) adaptpkg.Result {
	sid := jsonutil.GetString(raw, "sessionID")
	native := ""
	if sid != "" && validSessionID.MatchString(sid) {
		if a.sessionID.CompareAndSwap(nil, &sid) {
			native = sid
		}
	}
	return adaptpkg.Result{
		Events:          []agentgateway.EventData{{Kind: agentgateway.EventStarted, Started: &agentgateway.StartedMeta{Reason: "step_start"}}},
		NativeSessionID: native,
	}
}
