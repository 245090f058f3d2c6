package codex

import (
	"testing"

	"github.com/teradata-labs/agentgateway"
)

func TestParseLineThreadStartedCapturesID(t *testing.T) {
	a := New()
	res := a.ParseLine([]byte(`{"type":"thread.started","thread_id":"1b4e28ba-2fa1-11d2-883f-0016d3cca427"}`))
	if res.NativeSessionID != "1b4e28ba-2fa1-11d2-883f-0016d3cca427" {
		t.Fatalf("got native session id %q", res.NativeSessionID)
	}
	if a.ThreadID() != res.NativeSessionID {
		t.Fatalf("ThreadID() = %q, want %q", a.ThreadID(), res.NativeSessionID)
	}
	// Second thread.started for a different id must not overwrite (write-once).
	res2 := a.ParseLine([]byte(`{"type":"thread.started","thread_id":"2b4e28ba-2fa1-11d2-883f-0016d3cca427"}`))
	if res2.NativeSessionID != "" {
		t.Fatalf("expected no native session id on second thread.started, got %q", res2.NativeSessionID)
	}
	if a.ThreadID() != "1b4e28ba-2fa1-11d2-883f-0016d3cca427" {
		t.Fatalf("thread id mutated: %q", a.ThreadID())
	}
}

func TestParseLineNoOpEvents(t *testing.T) {
	a := New()
	for _, line := range []string{`{"type":"turn.started"}`, `{"type":"item.started"}`} {
		res := a.ParseLine([]byte(line))
		if len(res.Events) != 0 {
			t.Fatalf("line %q: got %+v, want no events", line, res)
		}
	}
}

func TestParseLineAgentMessage(t *testing.T) {
	a := New()
	res := a.ParseLine([]byte(`{"type":"item.completed","item":{"type":"agent_message","text":"done"}}`))
	if len(res.Events) != 1 || res.Events[0].Kind != agentgateway.EventMessage {
		t.Fatalf("got %+v", res)
	}
}

func TestParseLineReasoningItemMapsToPartReasoning(t *testing.T) {
	a := New()
	res := a.ParseLine([]byte(`{"type":"item.completed","item":{"type":"reasoning","text":"thinking it through"}}`))
	parts := res.Events[0].Message.Parsed.Parts
	if len(parts) != 1 || parts[0].Kind != agentgateway.PartReasoning || parts[0].Text != "thinking it through" {
		t.Fatalf("got %+v, want one PartReasoning part", parts)
	}
}

func TestParseLineUnrecognizedItemFallsBackToToolResult(t *testing.T) {
	a := New()
	res := a.ParseLine([]byte(`{"type":"item.completed","item":{"type":"command_execution","command":"ls"}}`))
	parts := res.Events[0].Message.Parsed.Parts
	if len(parts) != 1 || parts[0].Kind != agentgateway.PartToolResult {
		t.Fatalf("got %+v, want PartToolResult for an unmapped item type", parts)
	}
}

func TestSpawnArgsUsesResumeSubcommand(t *testing.T) {
	_, args := SpawnArgs("", "default", "tid-1", "hi")
	if args[0] != "exec" || args[1] != "resume" {
		t.Fatalf("got %v, want exec resume first", args)
	}
}
