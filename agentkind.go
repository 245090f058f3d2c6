package agentgateway

import "fmt"

// DriverCategory names the transport shape a backend uses.
type DriverCategory string

const (
	DriverSubprocess DriverCategory = "subprocess"
	DriverSidecar    DriverCategory = "sidecar"
	DriverRPC        DriverCategory = "rpc"
)

// AgentKind identifies a backend family. It is closed: the only valid values
// are the ones registered in Kinds.
type AgentKind string

const (
	KindClaude   AgentKind = "claude"
	KindCodex    AgentKind = "codex"
	KindOpenCode AgentKind = "opencode"
	KindSidecar  AgentKind = "sidecar"
	KindRPC      AgentKind = "rpc"
)

// ModeInfo describes one selectable agent-mode or permission-mode, as
// surfaced by GET /v1/agents/{agent}/modes.
type ModeInfo struct {
	ID          string
	Name        string
	Description string
}

// KindSpec is the closed matrix of (agent-mode, permission-mode) a kind
// accepts, plus its driver category.
type KindSpec struct {
	Kind            AgentKind
	Driver          DriverCategory
	AgentModes      []ModeInfo
	PermissionModes []ModeInfo
	// PlanCapable kinds force permission-mode "plan" whenever agent-mode is
	// "plan"; any other permission-mode supplied by the caller is rejected.
	PlanCapable bool
}

func (k KindSpec) hasAgentMode(id string) bool {
	for _, m := range k.AgentModes {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (k KindSpec) hasPermissionMode(id string) bool {
	for _, m := range k.PermissionModes {
		if m.ID == id {
			return true
		}
	}
	return false
}

const (
	DefaultAgentMode      = "build"
	DefaultPermissionMode = "default"
)

var buildMode = ModeInfo{ID: "build", Name: "Build", Description: "Normal turn-taking conversation mode."}
var planMode = ModeInfo{ID: "plan", Name: "Plan", Description: "Read-only planning mode; no edits are applied."}

var defaultPermModes = []ModeInfo{
	{ID: "default", Name: "Default", Description: "Ask before risky tool use."},
	{ID: "acceptEdits", Name: "Accept Edits", Description: "Auto-approve file edits."},
	{ID: "bypassAll", Name: "Bypass All", Description: "Auto-approve every tool call."},
	{ID: "plan", Name: "Plan", Description: "Deny all tool execution; planning only."},
}

// Kinds is the registry of every supported AgentKind. It is populated once
// at init time and treated as read-only thereafter.
var Kinds = map[AgentKind]KindSpec{
	KindClaude: {
		Kind:            KindClaude,
		Driver:          DriverSubprocess,
		AgentModes:      []ModeInfo{buildMode, planMode},
		PermissionModes: defaultPermModes,
		PlanCapable:     true,
	},
	KindCodex: {
		Kind:   KindCodex,
		Driver: DriverSubprocess,
		AgentModes: []ModeInfo{
			buildMode,
			{ID: "readOnly", Name: "Read Only", Description: "Sandboxed read-only execution."},
		},
		PermissionModes: []ModeInfo{
			{ID: "default", Name: "Default", Description: "Workspace-write sandbox."},
			{ID: "bypassAll", Name: "Bypass All", Description: "Full-access sandbox."},
		},
	},
	KindOpenCode: {
		Kind:            KindOpenCode,
		Driver:          DriverSubprocess,
		AgentModes:      []ModeInfo{buildMode},
		PermissionModes: defaultPermModes[:3],
	},
	KindSidecar: {
		Kind:            KindSidecar,
		Driver:          DriverSidecar,
		AgentModes:      []ModeInfo{buildMode, planMode},
		PermissionModes: defaultPermModes,
		PlanCapable:     true,
	},
	KindRPC: {
		Kind:            KindRPC,
		Driver:          DriverRPC,
		AgentModes:      []ModeInfo{buildMode},
		PermissionModes: defaultPermModes[:3],
	},
}

// LookupKind returns the registered spec for kind, or an error satisfying
// errors.Is(err, ErrUnsupportedAgent).
func LookupKind(kind AgentKind) (KindSpec, error) {
	spec, ok := Kinds[kind]
	if !ok {
		return KindSpec{}, fmt.Errorf("%w: %q", ErrUnsupportedAgent, kind)
	}
	return spec, nil
}

// NormalizeModes validates and defaults (agentMode, permissionMode) against
// kind's matrix, applying the plan-mode cross-constraint.
func NormalizeModes(kind AgentKind, agentMode, permissionMode string) (string, string, error) {
	spec, err := LookupKind(kind)
	if err != nil {
		return "", "", err
	}
	if agentMode == "" {
		agentMode = DefaultAgentMode
	}
	if !spec.hasAgentMode(agentMode) {
		return "", "", fmt.Errorf("%w: agent mode %q not supported by %q", ErrModeNotSupported, agentMode, kind)
	}
	if spec.PlanCapable && agentMode == "plan" {
		if permissionMode != "" && permissionMode != "plan" {
			return "", "", fmt.Errorf("%w: plan mode requires permission mode \"plan\"", ErrInvalidRequest)
		}
		permissionMode = "plan"
	} else if permissionMode == "" {
		permissionMode = DefaultPermissionMode
	}
	if !spec.hasPermissionMode(permissionMode) {
		return "", "", fmt.Errorf("%w: permission mode %q not supported by %q", ErrModeNotSupported, permissionMode, kind)
	}
	return agentMode, permissionMode, nil
}
