package opencode

import (
	"testing"

	"github.com/teradata-labs/agentgateway"
)

func TestParseStepStartCapturesSessionID(t *testing.T) {
	a := New()
	res := a.ParseLine([]byte(`{"type":"step_start","sessionID":"ses_abcdefghijklmnopqrst"}`))
	if res.NativeSessionID != "ses_abcdefghijklmnopqrst" {
		t.Fatalf("got native session id %q", res.NativeSessionID)
	}
	if a.SessionID() != res.NativeSessionID {
		t.Fatalf("SessionID() mismatch")
	}
}

func TestParseTextEvent(t *testing.T) {
	a := New()
	res := a.ParseLine([]byte(`{"type":"text","part":{"type":"text","text":"hello"}}`))
	if len(res.Events) != 1 || res.Events[0].Kind != agentgateway.EventMessage {
		t.Fatalf("got %+v", res)
	}
	if got := res.Events[0].Message.Parsed.Parts[0].Text; got != "hello" {
		t.Fatalf("got text %q, want hello", got)
	}
}

func TestParseReasoningEvent(t *testing.T) {
	a := New()
	res := a.ParseLine([]byte(`{"type":"reasoning","part":{"type":"reasoning","text":"thinking"}}`))
	parts := res.Events[0].Message.Parsed.Parts
	if len(parts) != 1 || parts[0].Kind != agentgateway.PartReasoning || parts[0].Text != "thinking" {
		t.Fatalf("got %+v, want one PartReasoning part", parts)
	}
}

func TestParseToolUseReadsPartState(t *testing.T) {
	a := New()
	line := `{"type":"tool_use","part":{"tool":"bash","state":{"input":{"command":"ls"},"output":"ok"}}}`
	res := a.ParseLine([]byte(line))
	p := res.Events[0].Message.Parsed.Parts[0]
	if p.Kind != agentgateway.PartToolResult || p.Name != "bash" {
		t.Fatalf("got %+v", p)
	}
	if string(p.Input) != `{"command":"ls"}` || string(p.Output) != `"ok"` {
		t.Fatalf("got input %s, output %s", p.Input, p.Output)
	}
}

func TestParseStepFinishExtractsUsage(t *testing.T) {
	a := New()
	res := a.ParseLine([]byte(`{"type":"step_finish","part":{"tokens":{"input":11,"output":7}}}`))
	usage := res.Events[0].Message.Parsed.Usage
	if usage == nil || usage.InputTokens != 11 || usage.OutputTokens != 7 {
		t.Fatalf("got usage %+v", usage)
	}

	// No tokens object means no Usage, not a zero-valued one.
	res = a.ParseLine([]byte(`{"type":"step_finish"}`))
	if res.Events[0].Message.Parsed.Usage != nil {
		t.Fatalf("got usage %+v, want nil", res.Events[0].Message.Parsed.Usage)
	}
}

func TestParseErrorFormatsNestedErrorObject(t *testing.T) {
	a := New()
	res := a.ParseLine([]byte(`{"type":"error","error":{"name":"ProviderAuthError","data":{"message":"bad key"}}}`))
	if res.Events[0].Kind != agentgateway.EventError {
		t.Fatalf("got %+v", res)
	}
	if got := res.Events[0].Error.Message; got != "ProviderAuthError: bad key" {
		t.Fatalf("got message %q", got)
	}
}

func TestSpawnArgsResumeRequiresValidID(t *testing.T) {
	_, args := SpawnArgs("", "bad-id", "hi")
	for _, a := range args {
		if a == "--session" {
			t.Fatalf("expected --session omitted for invalid id, got %v", args)
		}
	}
	_, args = SpawnArgs("", "ses_abcdefghijklmnopqrst", "hi")
	found := false
	for _, a := range args {
		if a == "--session" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected --session present for valid id, got %v", args)
	}
}
