package subprocess

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/teradata-labs/agentgateway"
	adaptpkg "github.com/teradata-labs/agentgateway/internal/adapter"
)

// DefaultGracePeriod is how long a cancelled turn waits between SIGTERM and
// SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// Driver spawns one subprocess per turn for every subprocess-category
// AgentKind.
type Driver struct {
	backends    map[agentgateway.AgentKind]Backend
	credEnv     []string
	gracePeriod time.Duration
}

// New builds a Driver. credEnv holds "KEY=VALUE" pairs exported to every
// subprocess without overwriting a value already present in the inherited
// environment.
func New(backends map[agentgateway.AgentKind]Backend, credEnv []string) *Driver {
	return &Driver{backends: backends, credEnv: credEnv, gracePeriod: DefaultGracePeriod}
}

// Send resolves the backend's executable, builds argv for this turn, spawns
// it with piped stdout/stderr, and streams parsed lines into sess via
// Record until the process exits.
func (d *Driver) Send(ctx context.Context, sess *agentgateway.Session, message string) error {
	backend, ok := d.backends[sess.Agent]
	if !ok {
		return fmt.Errorf("%w: %q has no subprocess backend", agentgateway.ErrUnsupportedAgent, sess.Agent)
	}

	binary, args := backend.SpawnArgs(sess.Model, sess.PermissionMode, sess.NativeSessionID(), message)
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", agentgateway.ErrAgentNotInstalled, binary, err)
	}

	cmd := exec.Command(resolved, args...)
	cmd.Env = mergeEnv(os.Environ(), d.credEnv)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("subprocess: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("subprocess: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("subprocess: start: %w", err)
	}
	sess.Record(agentgateway.EventData{
		Kind: agentgateway.EventStarted,
		Started: &agentgateway.StartedMeta{
			Reason:  "process.spawned",
			Process: &agentgateway.ProcessMeta{PID: cmd.Process.Pid, Binary: resolved},
		},
	}, "")

	adapter := backend.NewAdapter()
	lines := make(chan string)
	done := make(chan struct{}, 2)

	go pumpLines(stdout, lines, done)
	go pumpLines(stderr, lines, done)
	go func() {
		<-done
		<-done
		close(lines)
	}()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for line := range lines {
			consume(sess, adapter, line)
		}
	}()

	waitErr := waitWithGrace(ctx, cmd, d.gracePeriod)
	<-drained

	return finalizeExit(sess, waitErr)
}

// scannerBufferSize must fit a single stream-json line carrying a big tool
// result.
const scannerBufferSize = 1 << 20

// pumpLines scans one pipe line-by-line, sending each non-empty line to
// out, and signals done on EOF/error regardless of outcome. Both stdout and
// stderr funnel into the same channel for the single consumer.
func pumpLines(r io.ReadCloser, out chan<- string, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), scannerBufferSize)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		out <- line
	}
}

// waitWithGrace waits for cmd to exit, honoring ctx cancellation with a
// SIGTERM-then-grace-then-SIGKILL escalation.
func waitWithGrace(ctx context.Context, cmd *exec.Cmd, grace time.Duration) error {
	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case err := <-waitErr:
		return err
	case <-ctx.Done():
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case err := <-waitErr:
			return err
		case <-time.After(grace):
			_ = cmd.Process.Kill()
			return <-waitErr
		}
	}
}

func finalizeExit(sess *agentgateway.Session, waitErr error) error {
	if waitErr == nil {
		return nil
	}
	var exitErr *exec.ExitError
	code := -1
	if errors.As(waitErr, &exitErr) {
		code = exitErr.ExitCode()
	}
	if code == 0 {
		return nil
	}
	sess.Record(agentgateway.EventData{
		Kind:  agentgateway.EventError,
		Error: &agentgateway.CrashInfo{Message: waitErr.Error(), Code: code},
	}, "")
	sess.End(code, waitErr.Error())
	return nil
}

func consume(sess *agentgateway.Session, adapter adaptpkg.LineAdapter, line string) {
	res := adapter.ParseLine([]byte(line))
	for _, ev := range res.Events {
		sess.Record(ev, res.NativeSessionID)
	}
}

// mergeEnv appends each "K=V" in extra to base whose key is not already
// present in base. An inherited value is never clobbered.
func mergeEnv(base, extra []string) []string {
	present := make(map[string]struct{}, len(base))
	for _, kv := range base {
		present[envKey(kv)] = struct{}{}
	}
	out := append([]string{}, base...)
	for _, kv := range extra {
		if _, ok := present[envKey(kv)]; ok {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func envKey(kv string) string {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i]
		}
	}
	return kv
}
