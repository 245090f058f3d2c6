// Package rpc implements the stateful delta-tracking adapter for a
// JSON-RPC-driven agent exposing message_start/update/end and
// tool_execution_start/update/end primitives. It accumulates text,
// reasoning, and tool partial-result buffers per message/tool-call id and
// emits incremental ItemStarted/ItemDelta/ItemCompleted events.
package rpc

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/teradata-labs/agentgateway"
	adaptpkg "github.com/teradata-labs/agentgateway/internal/adapter"
	"github.com/teradata-labs/agentgateway/internal/jsonutil"
)

type messageState struct {
	text      strings.Builder
	reasoning strings.Builder
	started   bool
	completed bool
}

type toolCallState struct {
	lastPartial   string
	resultStarted bool
	completed     bool
}

// Adapter owns per-session accumulators; it is not a pure function. One
// Adapter per session.
type Adapter struct {
	mu        sync.Mutex
	messages  map[string]*messageState
	toolCalls map[string]*toolCallState
}

func New() *Adapter {
	return &Adapter{
		messages:  make(map[string]*messageState),
		toolCalls: make(map[string]*toolCallState),
	}
}

// HandleEvent translates one decoded RPC notification. Unlike LineAdapter,
// it returns an error for an unrecognized top-level type; the driver
// decides whether to wrap that as an Unparsed event.
func (a *Adapter) HandleEvent(raw map[string]any) (adaptpkg.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch jsonutil.GetString(raw, "type") {
	case "message_start":
		return a.messageStart(raw), nil
	case "message_update":
		return a.messageUpdate(raw), nil
	case "message_end":
		return a.messageEnd(raw), nil
	case "tool_execution_start":
		return a.toolStart(raw), nil
	case "tool_execution_update":
		return a.toolUpdate(raw), nil
	case "tool_execution_end":
		return a.toolEnd(raw), nil
	case "turn_end":
		return statusResult("turn.completed", extractUsage(raw)), nil
	case "agent_end":
		return statusResult("session.idle", nil), nil
	case "agent_start", "turn_start",
		"auto_compaction", "auto_compaction_start", "auto_compaction_end",
		"auto_retry", "auto_retry_start", "auto_retry_end",
		"hook_error":
		return statusResult("pi."+jsonutil.GetString(raw, "type"), nil), nil
	default:
		return adaptpkg.Result{}, fmt.Errorf("rpc adapter: unknown event type %q", jsonutil.GetString(raw, "type"))
	}
}

func statusResult(label string, usage *agentgateway.Usage) adaptpkg.Result {
	return adaptpkg.Result{Events: []agentgateway.EventData{{
		Kind: agentgateway.EventItemCompleted,
		Item: &agentgateway.UniversalItem{Kind: agentgateway.ItemKindStatus, Status: agentgateway.StatusCompleted, Label: label, Usage: usage},
	}}}
}

// extractUsage reads the "usage" object a message_end/turn_end notification
// carries. Returns nil when the payload has no usage object.
func extractUsage(raw map[string]any) *agentgateway.Usage {
	usage := jsonutil.GetMap(raw, "usage")
	if usage == nil {
		return nil
	}
	return &agentgateway.Usage{
		InputTokens:      jsonutil.GetInt(usage, "inputTokens"),
		OutputTokens:     jsonutil.GetInt(usage, "outputTokens"),
		CacheReadTokens:  jsonutil.GetInt(usage, "cacheReadTokens"),
		CacheWriteTokens: jsonutil.GetInt(usage, "cacheWriteTokens"),
		ThinkingTokens:   jsonutil.GetInt(usage, "thinkingTokens"),
	}
}

func (a *Adapter) messageStart(raw map[string]any) adaptpkg.Result {
	role := jsonutil.GetString(raw, "role")
	if role == "user" {
		return adaptpkg.Result{}
	}
	id := jsonutil.GetString(raw, "messageId")
	if st := a.messages[id]; st != nil && st.completed {
		return adaptpkg.Result{}
	}
	a.messages[id] = &messageState{started: true}
	return adaptpkg.Result{Events: []agentgateway.EventData{{
		Kind: agentgateway.EventItemStarted,
		Item: &agentgateway.UniversalItem{ID: id, Kind: agentgateway.ItemKindMessage, Status: agentgateway.StatusInProgress, Role: agentgateway.Role(role)},
	}}}
}

// messageUpdate dispatches on the assistant sub-event nested under the
// notification's assistantMessageEvent (or assistant_message_event) field;
// the discriminator is that nested object's own "type". A notification with
// no nested sub-event carries nothing to translate.
func (a *Adapter) messageUpdate(raw map[string]any) adaptpkg.Result {
	event := jsonutil.GetMap(raw, "assistantMessageEvent")
	if event == nil {
		event = jsonutil.GetMap(raw, "assistant_message_event")
	}
	if event == nil {
		return adaptpkg.Result{}
	}

	id := jsonutil.GetString(raw, "messageId")
	if id == "" {
		id = jsonutil.GetString(event, "messageId")
	}
	st := a.messages[id]
	if st == nil {
		st = &messageState{}
		a.messages[id] = st
	}
	if st.completed {
		return adaptpkg.Result{}
	}

	var events []agentgateway.EventData

	switch jsonutil.GetString(event, "type") {
	case "text_start", "text_delta", "text_end":
		delta, ok := extractDeltaText(event)
		if !ok {
			return adaptpkg.Result{}
		}
		if !st.started {
			st.started = true
			events = append(events, agentgateway.EventData{Kind: agentgateway.EventItemStarted, Item: &agentgateway.UniversalItem{ID: id, Kind: agentgateway.ItemKindMessage, Status: agentgateway.StatusInProgress, Role: agentgateway.RoleAssistant}})
		}
		st.text.WriteString(delta)
		events = append(events, agentgateway.EventData{Kind: agentgateway.EventItemDelta, Item: &agentgateway.UniversalItem{ID: id, Kind: agentgateway.ItemKindMessage}, Delta: delta})
	case "thinking_start", "thinking_delta", "thinking_end":
		delta, ok := extractDeltaText(event)
		if !ok {
			return adaptpkg.Result{}
		}
		if !st.started {
			st.started = true
			events = append(events, agentgateway.EventData{Kind: agentgateway.EventItemStarted, Item: &agentgateway.UniversalItem{ID: id, Kind: agentgateway.ItemKindMessage, Status: agentgateway.StatusInProgress, Role: agentgateway.RoleAssistant}})
		}
		st.reasoning.WriteString(delta)
		events = append(events, agentgateway.EventData{Kind: agentgateway.EventItemDelta, Item: &agentgateway.UniversalItem{ID: id, Kind: agentgateway.ItemKindMessage}, Delta: delta})
	case "done":
		if st.completed {
			return adaptpkg.Result{}
		}
		st.completed = true
		events = append(events, agentgateway.EventData{Kind: agentgateway.EventItemCompleted, Item: a.finalMessageItem(id, st, agentgateway.StatusCompleted, "")})
	case "error":
		if st.completed {
			return adaptpkg.Result{}
		}
		st.completed = true
		errText := jsonutil.GetString(event, "error")
		if errText == "" {
			errText = jsonutil.GetString(raw, "error")
		}
		events = append(events, agentgateway.EventData{Kind: agentgateway.EventItemCompleted, Item: a.finalMessageItem(id, st, agentgateway.StatusFailed, errText)})
	default:
		return adaptpkg.Result{}
	}
	return adaptpkg.Result{Events: events}
}

// extractDeltaText pulls the incremental text out of an assistant
// sub-event. Backends key it as delta, text, or a partial/content object
// wrapping a text field; a sub-event carrying none of these yields no
// events.
func extractDeltaText(event map[string]any) (string, bool) {
	for _, key := range []string{"delta", "text"} {
		if v, ok := event[key]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	for _, key := range []string{"partial", "content"} {
		switch v := event[key].(type) {
		case string:
			return v, true
		case map[string]any:
			if s, ok := v["text"].(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func (a *Adapter) messageEnd(raw map[string]any) adaptpkg.Result {
	id := jsonutil.GetString(raw, "messageId")
	role := jsonutil.GetString(raw, "role")
	if role == "user" {
		return adaptpkg.Result{}
	}
	st := a.messages[id]
	if st == nil {
		st = &messageState{}
		a.messages[id] = st
	}
	if st.completed {
		return adaptpkg.Result{}
	}
	st.completed = true

	status := agentgateway.StatusCompleted
	errText := ""
	switch jsonutil.GetString(raw, "stopReason") {
	case "error", "abort", "aborted":
		status = agentgateway.StatusFailed
		errText = jsonutil.GetString(raw, "error")
	}

	content := jsonutil.GetString(raw, "content")
	var item *agentgateway.UniversalItem
	if content != "" {
		item = &agentgateway.UniversalItem{ID: id, Kind: agentgateway.ItemKindMessage, Status: status, Role: agentgateway.RoleAssistant,
			Parts: []agentgateway.Part{{Kind: agentgateway.PartText, Text: content}}}
		if st.reasoning.Len() > 0 {
			item.Parts = append(item.Parts, agentgateway.Part{Kind: agentgateway.PartReasoning, Text: st.reasoning.String()})
		}
	} else {
		item = a.finalMessageItem(id, st, status, errText)
	}
	item.Usage = extractUsage(raw)
	return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventItemCompleted, Item: item}}}
}

// finalMessageItem assembles the completed/failed item from accumulated
// text and reasoning when the terminal event carries no content of its own.
// Reasoning is attached as a distinct PartReasoning part so it is never
// confused with the text part.
func (a *Adapter) finalMessageItem(id string, st *messageState, status agentgateway.ItemStatus, errText string) *agentgateway.UniversalItem {
	var parts []agentgateway.Part
	if errText != "" {
		parts = append(parts, agentgateway.Part{Kind: agentgateway.PartText, Text: errText})
	} else if st.text.Len() > 0 {
		parts = append(parts, agentgateway.Part{Kind: agentgateway.PartText, Text: st.text.String()})
	}
	if st.reasoning.Len() > 0 && !hasReasoningPart(parts) {
		parts = append(parts, agentgateway.Part{Kind: agentgateway.PartReasoning, Text: st.reasoning.String()})
	}
	return &agentgateway.UniversalItem{ID: id, Kind: agentgateway.ItemKindMessage, Status: status, Role: agentgateway.RoleAssistant, Parts: parts}
}

func hasReasoningPart(parts []agentgateway.Part) bool {
	for _, p := range parts {
		if p.Kind == agentgateway.PartReasoning {
			return true
		}
	}
	return false
}

func (a *Adapter) toolStart(raw map[string]any) adaptpkg.Result {
	id := jsonutil.GetString(raw, "toolCallId")
	a.toolCalls[id] = &toolCallState{}
	args := ""
	if v, ok := raw["arguments"]; ok {
		if b, err := json.Marshal(v); err == nil {
			args = string(b)
		}
	}
	return adaptpkg.Result{Events: []agentgateway.EventData{{
		Kind: agentgateway.EventItemStarted,
		Item: &agentgateway.UniversalItem{ID: id, Kind: agentgateway.ItemKindToolCall, Status: agentgateway.StatusInProgress, Name: jsonutil.GetString(raw, "name"),
			Parts: []agentgateway.Part{{Kind: agentgateway.PartText, Text: args}}},
	}}}
}

func (a *Adapter) toolUpdate(raw map[string]any) adaptpkg.Result {
	id := jsonutil.GetString(raw, "toolCallId")
	partial, ok := raw["partialResult"].(string)
	if !ok {
		return adaptpkg.Result{}
	}
	st := a.toolCalls[id]
	if st == nil {
		st = &toolCallState{}
		a.toolCalls[id] = st
	}
	delta := deltaFromPartial(st.lastPartial, partial)
	st.lastPartial = partial
	if delta == "" {
		return adaptpkg.Result{}
	}

	var events []agentgateway.EventData
	if !st.resultStarted {
		st.resultStarted = true
		events = append(events, agentgateway.EventData{Kind: agentgateway.EventItemStarted, Item: &agentgateway.UniversalItem{ID: id, Kind: agentgateway.ItemKindToolResult, Status: agentgateway.StatusInProgress}})
	}
	events = append(events, agentgateway.EventData{Kind: agentgateway.EventItemDelta, Item: &agentgateway.UniversalItem{ID: id, Kind: agentgateway.ItemKindToolResult}, Delta: delta})
	return adaptpkg.Result{Events: events}
}

func (a *Adapter) toolEnd(raw map[string]any) adaptpkg.Result {
	id := jsonutil.GetString(raw, "toolCallId")
	st := a.toolCalls[id]
	if st != nil && st.completed {
		return adaptpkg.Result{}
	}
	if st == nil {
		st = &toolCallState{}
		a.toolCalls[id] = st
	}
	st.completed = true
	status := agentgateway.StatusCompleted
	isErr, _ := raw["isError"].(bool)
	if isErr {
		status = agentgateway.StatusFailed
	}
	// Clear the partial-result buffer now that the call is done, but keep
	// the entry (with completed=true) so a later duplicate
	// tool_execution_end for the same id is recognized and suppressed.
	st.lastPartial = ""
	return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventItemCompleted, Item: &agentgateway.UniversalItem{ID: id, Kind: agentgateway.ItemKindToolResult, Status: status}}}}
}

// deltaFromPartial computes "next minus longest-common-prefix": if prev is
// a prefix of next, the delta is the suffix; otherwise the delta is next in
// full (replacement semantics). For any prefix-growing sequence of
// partials, concatenating emitted deltas reconstructs the latest partial.
func deltaFromPartial(prev, next string) string {
	if next == "" {
		return ""
	}
	if prev == "" {
		return next
	}
	if strings.HasPrefix(next, prev) {
		return next[len(prev):]
	}
	return next
}
