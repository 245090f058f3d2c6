package agentgateway

import (
	"errors"
	"testing"
)

func TestNormalizeModesDefaults(t *testing.T) {
	agentMode, permMode, err := NormalizeModes(KindClaude, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agentMode != DefaultAgentMode || permMode != DefaultPermissionMode {
		t.Fatalf("got (%q, %q), want defaults", agentMode, permMode)
	}
}

func TestNormalizeModesPlanForcesPlanPermission(t *testing.T) {
	agentMode, permMode, err := NormalizeModes(KindClaude, "plan", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agentMode != "plan" || permMode != "plan" {
		t.Fatalf("got (%q, %q), want (plan, plan)", agentMode, permMode)
	}

	if _, _, err := NormalizeModes(KindClaude, "plan", "default"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("got err=%v, want ErrInvalidRequest", err)
	}

	if _, _, err := NormalizeModes(KindClaude, "plan", "plan"); err != nil {
		t.Fatalf("unexpected error for explicit plan/plan: %v", err)
	}
}

func TestNormalizeModesUnsupportedAgent(t *testing.T) {
	if _, _, err := NormalizeModes(AgentKind("bogus"), "", ""); !errors.Is(err, ErrUnsupportedAgent) {
		t.Fatalf("got err=%v, want ErrUnsupportedAgent", err)
	}
}

func TestNormalizeModesUnsupportedCombination(t *testing.T) {
	if _, _, err := NormalizeModes(KindCodex, "plan", ""); !errors.Is(err, ErrModeNotSupported) {
		t.Fatalf("got err=%v, want ErrModeNotSupported", err)
	}
}
