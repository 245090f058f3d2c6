// Package codex adapts the Codex CLI's "exec --json" item-stream protocol
// to the universal event model, and builds its argv.
package codex

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/teradata-labs/agentgateway"
	adaptpkg "github.com/teradata-labs/agentgateway/internal/adapter"
	"github.com/teradata-labs/agentgateway/internal/jsonutil"
)

const DefaultBinary = "codex"

var validUUID = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Sandbox controls Codex's --sandbox policy.
type Sandbox string

const (
	SandboxReadOnly       Sandbox = "read-only"
	SandboxWorkspaceWrite Sandbox = "workspace-write"
	SandboxFullAccess     Sandbox = "danger-full-access"
)

func sandboxForPermissionMode(mode string) Sandbox {
	if mode == "bypassAll" {
		return SandboxFullAccess
	}
	return SandboxWorkspaceWrite
}

// SpawnArgs builds argv for "codex exec --json -- <prompt>", or
// "codex exec resume --json -- <thread-id> <prompt>" when resumeID is set.
func SpawnArgs(model, permissionMode, resumeID, prompt string) (string, []string) {
	var args []string
	if resumeID != "" {
		args = []string{"exec", "resume", "--json"}
		args = appendCommon(args, model)
		args = append(args, "--", resumeID)
	} else {
		args = []string{"exec", "--json"}
		args = appendCommon(args, model)
		args = append(args, "--sandbox", string(sandboxForPermissionMode(permissionMode)))
		args = append(args, "--")
	}
	if prompt != "" && !jsonutil.ContainsNull(prompt) {
		args = append(args, prompt)
	}
	return DefaultBinary, args
}

func appendCommon(args []string, model string) []string {
	if model != "" && !strings.HasPrefix(model, "-") {
		args = append(args, "-m", model)
	}
	return args
}

// Adapter translates Codex's item-stream JSONL. threadID is captured
// write-once from the first thread.started event and reported as the native
// session id.
type Adapter struct {
	threadID atomic.Pointer[string]
}

func New() *Adapter { return &Adapter{} }

var _ adaptpkg.LineAdapter = (*Adapter)(nil)

// ThreadID returns the captured native session id, or "" if not yet known.
func (a *Adapter) ThreadID() string {
	if p := a.threadID.Load(); p != nil {
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
	case "thread.started":
		return a.parseThreadStarted(raw)
	case "turn.started", "item.started":
		return adaptpkg.Result{}
	case "item.completed":
		return a.parseItemCompleted(raw)
	case "turn.completed":
		msg := agentgateway.TextMessage(agentgateway.RoleAssistant, "")
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: &msg}}}
	case "turn.failed":
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventError, Error: &agentgateway.CrashInfo{Message: errorMessage(jsonutil.GetMap(raw, "error"))}}}}
	case "error":
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventError, Error: &agentgateway.CrashInfo{Message: errorMessage(raw)}}}}
	default:
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventUnknown, Unknown: trimmed}}}
	}
}

func (a *Adapter) parseThreadStarted(raw map[string]any) adaptpkg.Result {
	tid := jsonutil.GetString(raw, "thread_id")
	nativeID := ""
	if tid != "" && validUUID.MatchString(tid) {
		if a.threadID.CompareAndSwap(nil, &tid) {
			nativeID = tid
		}
	}
	return adaptpkg.Result{
		Events:          []agentgateway.EventData{{Kind: agentgateway.EventStarted, Started: &agentgateway.StartedMeta{Reason: "thread.started"}}},
		NativeSessionID: nativeID,
	}
}

func (a *Adapter) parseItemCompleted(raw map[string]any) adaptpkg.Result {
	item := jsonutil.GetMap(raw, "item")
	if item == nil {
		return adaptpkg.Result{}
	}
	switch jsonutil.GetString(item, "type") {
	case "agent_message":
		msg := agentgateway.TextMessage(agentgateway.RoleAssistant, jsonutil.GetString(item, "text"))
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: &msg}}}
	case "error":
		message := jsonutil.GetString(item, "message")
		if message == "" {
			message = jsonutil.GetString(item, "text")
		}
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventError, Error: &agentgateway.CrashInfo{Message: message}}}}
	case "reasoning":
		text := jsonutil.GetString(item, "text")
		if text == "" {
			text = jsonutil.GetString(item, "summary")
		}
		part := agentgateway.Part{Kind: agentgateway.PartReasoning, Text: text}
		msg := agentgateway.UniversalMessage{Parsed: &agentgateway.ParsedMessage{Role: agentgateway.RoleAssistant, Parts: []agentgateway.Part{part}}}
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: &msg}}}
	default:
		data, _ := json.Marshal(item)
		part := agentgateway.Part{Kind: agentgateway.PartToolResult, Name: jsonutil.GetString(item, "type"), Output: data}
		msg := agentgateway.UniversalMessage{Parsed: &agentgateway.ParsedMessage{Role: agentgateway.RoleAssistant, Parts: []agentgateway.Part{part}}}
		return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: &msg}}}
	}
}

func errorMessage(obj map[string]any) string {
	if obj == nil {
		return "unknown error"
	}
	if m := jsonutil.GetString(obj, "message"); m != "" {
		return m
	}
	return "unknown error"
}
