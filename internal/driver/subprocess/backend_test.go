package subprocess

import (
	"testing"

	"github.com/teradata-labs/agentgateway"
	"github.com/teradata-labs/agentgateway/internal/adapter/claude"
)

func TestBackendsUsesDefaultBinaryWithNoOverride(t *testing.T) {
	backends := Backends(nil)
	binary, _ := backends[agentgateway.KindClaude].SpawnArgs("", "default", "", "hi")
	if binary != claude.DefaultBinary {
		t.Fatalf("got binary %q, want default %q", binary, claude.DefaultBinary)
	}
}

func TestBackendsAppliesConfiguredOverride(t *testing.T) {
	backends := Backends(map[agentgateway.AgentKind]string{
		agentgateway.KindClaude: "/opt/custom/claude",
	})
	binary, _ := backends[agentgateway.KindClaude].SpawnArgs("", "default", "", "hi")
	if binary != "/opt/custom/claude" {
		t.Fatalf("got binary %q, want override", binary)
	}

	codexBinary, _ := backends[agentgateway.KindCodex].SpawnArgs("", "default", "", "hi")
	if codexBinary != "codex" {
		t.Fatalf("got codex binary %q, want unchanged default", codexBinary)
	}
}
