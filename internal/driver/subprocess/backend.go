// Package subprocess drives the three CLI agent kinds (claude, codex,
// opencode) as short-lived subprocesses spawned once per turn. Each backend
// emits one JSON event per line on stdout, takes the prompt as the trailing
// argv element, and exits when the turn ends.
package subprocess

import (
	"github.com/teradata-labs/agentgateway"
	adaptpkg "github.com/teradata-labs/agentgateway/internal/adapter"
	"github.com/teradata-labs/agentgateway/internal/adapter/claude"
	"github.com/teradata-labs/agentgateway/internal/adapter/codex"
	"github.com/teradata-labs/agentgateway/internal/adapter/opencode"
)

// Backend builds one turn's argv and a fresh line adapter for it. It takes
// plain scalars so it has no dependency on the session type.
type Backend interface {
	SpawnArgs(model, permissionMode, resumeID, prompt string) (string, []string)
	NewAdapter() adaptpkg.LineAdapter
}

type claudeBackend struct{ binary string }

func (b claudeBackend) SpawnArgs(model, permissionMode, resumeID, prompt string) (string, []string) {
	_, args := claude.SpawnArgs(model, permissionMode, resumeID, prompt)
	return binaryOrDefault(b.binary, claude.DefaultBinary), args
}
func (claudeBackend) NewAdapter() adaptpkg.LineAdapter { return claude.New() }

type codexBackend struct{ binary string }

func (b codexBackend) SpawnArgs(model, permissionMode, resumeID, prompt string) (string, []string) {
	_, args := codex.SpawnArgs(model, permissionMode, resumeID, prompt)
	return binaryOrDefault(b.binary, codex.DefaultBinary), args
}
func (codexBackend) NewAdapter() adaptpkg.LineAdapter { return codex.New() }

type opencodeBackend struct{ binary string }

// SpawnArgs drops permissionMode: OpenCode's argv has no permission-mode
// flag.
func (b opencodeBackend) SpawnArgs(model, _, resumeID, prompt string) (string, []string) {
	_, args := opencode.SpawnArgs(model, resumeID, prompt)
	return binaryOrDefault(b.binary, opencode.DefaultBinary), args
}
func (opencodeBackend) NewAdapter() adaptpkg.LineAdapter { return opencode.New() }

func binaryOrDefault(override, def string) string {
	if override != "" {
		return override
	}
	return def
}

// Backends returns the default Backend for each subprocess-category
// AgentKind, applying binaries' configured override (internal/config's
// Agents map) in place of each adapter's DefaultBinary when present.
func Backends(binaries map[agentgateway.AgentKind]string) map[agentgateway.AgentKind]Backend {
	return map[agentgateway.AgentKind]Backend{
		agentgateway.KindClaude:   claudeBackend{binary: binaries[agentgateway.KindClaude]},
		agentgateway.KindCodex:    codexBackend{binary: binaries[agentgateway.KindCodex]},
		agentgateway.KindOpenCode: opencodeBackend{binary: binaries[agentgateway.KindOpenCode]},
	}
}
