// installer.go specifies, at the interface level only, the external
// collaborator that resolves whether an agent binary is installed and
// performs installation.
package httpapi

import (
	"fmt"

	"github.com/teradata-labs/agentgateway"
)

// AgentStatus is one entry of GET /v1/agents' {agents:[...]} body.
type AgentStatus struct {
	ID        agentgateway.AgentKind `json:"id"`
	Installed bool                   `json:"installed"`
	Version   string                 `json:"version,omitempty"`
	Path      string                 `json:"path,omitempty"`
}

// Installer resolves installation status and performs installation for an
// AgentKind. The gateway never implements binary download itself; a real
// deployment supplies a concrete Installer (e.g. one that shells out to a
// package manager or downloads a release archive).
type Installer interface {
	Status(kind agentgateway.AgentKind) AgentStatus
	Install(kind agentgateway.AgentKind, reinstall bool) error
}

// PathLookupInstaller is the minimal Installer the gateway ships with: it
// reports a kind installed iff its configured binary name resolves via
// PATH, and treats Install as unsupported.
type PathLookupInstaller struct {
	Binaries map[agentgateway.AgentKind]string
	lookPath func(string) (string, error)
}

// NewPathLookupInstaller builds a PathLookupInstaller that resolves binaries
// with lookPath (cmd/agentgatewayd passes os/exec.LookPath).
func NewPathLookupInstaller(binaries map[agentgateway.AgentKind]string, lookPath func(string) (string, error)) *PathLookupInstaller {
	return &PathLookupInstaller{Binaries: binaries, lookPath: lookPath}
}

func (p *PathLookupInstaller) Status(kind agentgateway.AgentKind) AgentStatus {
	binary := p.Binaries[kind]
	status := AgentStatus{ID: kind}
	if binary == "" || p.lookPath == nil {
		return status
	}
	path, err := p.lookPath(binary)
	if err != nil {
		return status
	}
	status.Installed = true
	status.Path = path
	return status
}

func (p *PathLookupInstaller) Install(kind agentgateway.AgentKind, reinstall bool) error {
	return fmt.Errorf("%w: no installer configured for %q", agentgateway.ErrInstallFailed, kind)
}
