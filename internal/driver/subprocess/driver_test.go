//go:build !windows

package subprocess

import (
	"context"
	"testing"
	"time"

	"github.com/teradata-labs/agentgateway"
	adaptpkg "github.com/teradata-labs/agentgateway/internal/adapter"
)

// stubBackend is a function-field stub for the Backend interface.
type stubBackend struct {
	spawnFn      func(model, permissionMode, resumeID, prompt string) (string, []string)
	newAdapterFn func() adaptpkg.LineAdapter
}

func (b *stubBackend) SpawnArgs(model, permissionMode, resumeID, prompt string) (string, []string) {
	return b.spawnFn(model, permissionMode, resumeID, prompt)
}
func (b *stubBackend) NewAdapter() adaptpkg.LineAdapter { return b.newAdapterFn() }

// textLineAdapter turns every line into a plain assistant text message.
type textLineAdapter struct{}

func (textLineAdapter) ParseLine(line []byte) adaptpkg.Result {
	msg := agentgateway.TextMessage(agentgateway.RoleAssistant, string(line))
	return adaptpkg.Result{Events: []agentgateway.EventData{{Kind: agentgateway.EventMessage, Message: &msg}}}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSendRecordsLinesOnCleanExit(t *testing.T) {
	backend := &stubBackend{
		spawnFn: func(model, permissionMode, resumeID, prompt string) (string, []string) {
			return "echo", []string{"hello"}
		},
		newAdapterFn: func() adaptpkg.LineAdapter { return textLineAdapter{} },
	}
	d := New(map[agentgateway.AgentKind]Backend{agentgateway.KindClaude: backend}, nil)
	sess := agentgateway.NewSession("s1", agentgateway.KindClaude, "build", "default")

	if err := d.Send(testCtx(t), sess, "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	events, _ := sess.EventsSince(0, 0)
	if len(events) != 2 {
		t.Fatalf("got events %+v, want [Started, Message]", events)
	}
	started := events[0].Data
	if started.Kind != agentgateway.EventStarted || started.Started.Process == nil || started.Started.Process.PID == 0 || started.Started.Process.Binary == "" {
		t.Fatalf("got %+v, want a Started event carrying ProcessMeta", started)
	}
	if events[1].Data.Message.Parsed.Parts[0].Text != "hello" {
		t.Fatalf("got events %+v", events)
	}
	if ended, _, _ := sess.Ended(); ended {
		t.Fatal("clean exit must not end the session")
	}
}

func TestSendRecordsErrorAndEndsOnNonZeroExit(t *testing.T) {
	backend := &stubBackend{
		spawnFn: func(model, permissionMode, resumeID, prompt string) (string, []string) {
			return "bash", []string{"-c", "echo boom; exit 3"}
		},
		newAdapterFn: func() adaptpkg.LineAdapter { return textLineAdapter{} },
	}
	d := New(map[agentgateway.AgentKind]Backend{agentgateway.KindClaude: backend}, nil)
	sess := agentgateway.NewSession("s2", agentgateway.KindClaude, "build", "default")

	if err := d.Send(testCtx(t), sess, "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	events, _ := sess.EventsSince(0, 0)
	var sawError bool
	for _, ev := range events {
		if ev.Data.Kind == agentgateway.EventError {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected an Error event, got %+v", events)
	}
	ended, code, _ := sess.Ended()
	if !ended || code != 3 {
		t.Fatalf("expected ended with code 3, got ended=%v code=%d", ended, code)
	}
}

func TestSendUnknownAgentKind(t *testing.T) {
	d := New(map[agentgateway.AgentKind]Backend{}, nil)
	sess := agentgateway.NewSession("s3", agentgateway.KindClaude, "build", "default")
	if err := d.Send(testCtx(t), sess, "hi"); err == nil {
		t.Fatal("expected error for agent kind with no registered backend")
	}
}

func TestMergeEnvDoesNotOverwriteExisting(t *testing.T) {
	base := []string{"PATH=/usr/bin", "FOO=keep"}
	extra := []string{"FOO=overwritten", "BAR=added"}
	got := mergeEnv(base, extra)

	seen := map[string]string{}
	for _, kv := range got {
		seen[envKey(kv)] = kv
	}
	if seen["FOO"] != "FOO=keep" {
		t.Fatalf("expected FOO to keep its original value, got %q", seen["FOO"])
	}
	if seen["BAR"] != "BAR=added" {
		t.Fatalf("expected BAR to be appended, got %q", seen["BAR"])
	}
}
