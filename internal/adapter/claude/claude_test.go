package claude

import (
	"testing"

	"github.com/teradata-labs/agentgateway"
)

func TestParseLineAssistantText(t *testing.T) {
	a := New()
	line := []byte(`{"type":"assistant","message":{"content":[{"type":"text","text":"hi there"}]}}`)
	res := a.ParseLine(line)
	if len(res.Events) != 1 || res.Events[0].Kind != agentgateway.EventMessage {
		t.Fatalf("got %+v, want one Message event", res)
	}
	parts := res.Events[0].Message.Parsed.Parts
	if len(parts) != 1 || parts[0].Text != "hi there" {
		t.Fatalf("got parts %+v", parts)
	}
}

func TestParseLineToolUse(t *testing.T) {
	a := New()
	line := []byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"t1","name":"Read","input":{"path":"x"}}]}}`)
	res := a.ParseLine(line)
	part := res.Events[0].Message.Parsed.Parts[0]
	if part.Kind != agentgateway.PartToolCall || part.Name != "Read" || part.ID != "t1" {
		t.Fatalf("got %+v", part)
	}
}

func TestParseLineAskUserQuestion(t *testing.T) {
	a := New()
	line := []byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"q1","name":"AskUserQuestion","input":{"question":"continue?","options":["yes","no"]}}]}}`)
	res := a.ParseLine(line)
	if len(res.Events) != 1 || res.Events[0].Kind != agentgateway.EventQuestionAsked {
		t.Fatalf("got %+v, want QuestionAsked", res)
	}
	q := res.Events[0].Question
	if q.Question != "continue?" || len(q.Options) != 2 {
		t.Fatalf("got %+v", q)
	}
}

func TestParseLineMalformedJSON(t *testing.T) {
	a := New()
	res := a.ParseLine([]byte(`{not json`))
	if len(res.Events) != 1 || res.Events[0].Kind != agentgateway.EventMessage || res.Events[0].Message.Unparsed == nil {
		t.Fatalf("got %+v, want Unparsed message", res)
	}
}

func TestParseLineInit(t *testing.T) {
	a := New()
	res := a.ParseLine([]byte(`{"type":"system","subtype":"init","session_id":"abc123"}`))
	if res.NativeSessionID != "abc123" {
		t.Fatalf("got native session id %q, want abc123", res.NativeSessionID)
	}
	if res.Events[0].Kind != agentgateway.EventStarted {
		t.Fatalf("got %+v, want Started", res.Events[0])
	}
}

func TestParseLineResultCapturesSessionID(t *testing.T) {
	a := New()
	res := a.ParseLine([]byte(`{"type":"result","result":"done","session_id":"abc123"}`))
	if res.NativeSessionID != "abc123" {
		t.Fatalf("got native session id %q, want abc123", res.NativeSessionID)
	}
}

func TestParseLineThinkingMapsToPartReasoning(t *testing.T) {
	a := New()
	res := a.ParseLine([]byte(`{"type":"assistant","message":{"content":[{"type":"thinking","thinking":"pondering"}]}}`))
	parts := res.Events[0].Message.Parsed.Parts
	if len(parts) != 1 || parts[0].Kind != agentgateway.PartReasoning || parts[0].Text != "pondering" {
		t.Fatalf("got %+v, want one PartReasoning part", parts)
	}
}

func TestSpawnArgsOrdersPromptLast(t *testing.T) {
	bin, args := SpawnArgs("claude-sonnet", "bypassAll", "", "hello")
	if bin != DefaultBinary {
		t.Fatalf("got binary %q", bin)
	}
	if args[len(args)-1] != "hello" {
		t.Fatalf("got args %v, want prompt last", args)
	}
}

func TestParseLineAskUserQuestionSynthesizesIDWhenMissing(t *testing.T) {
	a := New()
	line := []byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"AskUserQuestion","input":{"question":"continue?"}}]}}`)
	res := a.ParseLine(line)
	q := res.Events[0].Question
	if q.ID == "" {
		t.Fatal("expected a synthesized id, got empty string")
	}
}

// TestParseResultReattachesCarriedStopReason: stop_reason observed on an
// intermediate message_delta event must be reattached onto the terminal
// result message, not silently discarded.
func TestParseResultReattachesCarriedStopReason(t *testing.T) {
	a := New()
	a.ParseLine([]byte(`{"type":"stream_event","event":{"type":"message_delta","delta":{"stop_reason":"max_tokens"}}}`))
	res := a.ParseLine([]byte(`{"type":"result","result":"done"}`))
	msg := res.Events[0].Message.Parsed
	if msg.Metadata["stopReason"] != "max_tokens" {
		t.Fatalf("got metadata %+v, want stopReason=max_tokens", msg.Metadata)
	}

	// A subsequent result with no intervening message_delta carries no
	// stale stop reason.
	res2 := a.ParseLine([]byte(`{"type":"result","result":"done again"}`))
	if res2.Events[0].Message.Parsed.Metadata["stopReason"] != "" {
		t.Fatalf("stop reason leaked across turns: %+v", res2.Events[0].Message.Parsed.Metadata)
	}
}

func TestParseResultExtractsUsage(t *testing.T) {
	a := New()
	line := []byte(`{"type":"result","result":"done","usage":{"input_tokens":10,"output_tokens":20,"cache_read_input_tokens":5,"cache_creation_input_tokens":2}}`)
	res := a.ParseLine(line)
	usage := res.Events[0].Message.Parsed.Usage
	if usage == nil || usage.InputTokens != 10 || usage.OutputTokens != 20 || usage.CacheReadTokens != 5 || usage.CacheWriteTokens != 2 {
		t.Fatalf("got usage %+v", usage)
	}
}

func TestSpawnArgsRejectsUnsafeResumeID(t *testing.T) {
	_, args := SpawnArgs("", "", "not safe!", "hi")
	for i, a := range args {
		if a == "--resume" {
			t.Fatalf("expected --resume omitted for unsafe id, got at %d: %v", i, args)
		}
	}
}
