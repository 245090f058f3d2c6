// Package sidecar drives the process-wide sidecar HTTP server: a single
// long-running executable shared by every sidecar-backed session,
// allocating one native session per Session and demultiplexing its shared
// SSE bus by native session id.
package sidecar

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/teradata-labs/agentgateway"
	"github.com/teradata-labs/agentgateway/internal/adapter/sidecar"
)

// DefaultPortRangeStart/End bound the fixed range the manager probes for a
// free port when New is not given an explicit range.
const (
	DefaultPortRangeStart = 41000
	DefaultPortRangeEnd   = 41099
)

// LaunchRetries bounds the retry loop around the inherently racy free-port
// probe.
const LaunchRetries = 3

// Manager is the process-wide sidecar singleton plus per-session wiring.
type Manager struct {
	binary         string
	client         *http.Client
	streamClient   *http.Client
	adapter        *sidecar.Adapter
	portRangeStart int
	portRangeEnd   int

	mu      sync.Mutex
	baseURL string
	cmd     *exec.Cmd
}

// New builds a Manager that launches binary on the lowest free port in
// [portRangeStart, portRangeEnd]. A zero range falls back to
// DefaultPortRangeStart/End (internal/config.SidecarConfig's own defaults).
func New(binary string, portRangeStart, portRangeEnd int) *Manager {
	if portRangeStart == 0 && portRangeEnd == 0 {
		portRangeStart, portRangeEnd = DefaultPortRangeStart, DefaultPortRangeEnd
	}
	return &Manager{
		binary: binary,
		client: &http.Client{Timeout: 30 * time.Second},
		// streamClient carries no Timeout: the SSE subscribe request stays
		// open for the session's lifetime, and http.Client.Timeout bounds
		// the whole request including reading the body, which would sever
		// a long-lived stream.
		streamClient:   &http.Client{},
		adapter:        sidecar.New(),
		portRangeStart: portRangeStart,
		portRangeEnd:   portRangeEnd,
	}
}

// ensureStarted lazily launches the sidecar, memoizing its base URL under
// the mutex: at most one sidecar process per gateway process.
func (m *Manager) ensureStarted() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.baseURL != "" {
		return m.baseURL, nil
	}

	var lastErr error
	for attempt := 0; attempt < LaunchRetries; attempt++ {
		port, err := freePort(m.portRangeStart, m.portRangeEnd)
		if err != nil {
			lastErr = err
			continue
		}
		cmd := exec.Command(m.binary, "--port", fmt.Sprintf("%d", port))
		if err := cmd.Start(); err != nil {
			lastErr = fmt.Errorf("%w: %s: %w", agentgateway.ErrAgentNotInstalled, m.binary, err)
			continue
		}
		m.cmd = cmd
		m.baseURL = fmt.Sprintf("http://127.0.0.1:%d", port)
		return m.baseURL, nil
	}
	return "", fmt.Errorf("%w: sidecar failed to start after %d attempts: %w", agentgateway.ErrStream, LaunchRetries, lastErr)
}

// freePort binds a throwaway listener to the lowest free port in the
// configured range, releases it, and returns that port. Racy by
// construction; the caller retries on bind failure.
func freePort(start, end int) (int, error) {
	for port := start; port <= end; port++ {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			continue
		}
		_ = l.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

// CreateSession allocates a native session inside the sidecar and starts
// its SSE consumer task. At most one consumer runs per session.
func (m *Manager) CreateSession(ctx context.Context, sess *agentgateway.Session) error {
	base, err := m.ensureStarted()
	if err != nil {
		return err
	}

	resp, err := m.post(ctx, base+"/session", nil)
	if err != nil {
		return fmt.Errorf("%w: create native session: %w", agentgateway.ErrStream, err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: decode native session response: %w", agentgateway.ErrStream, err)
	}
	native := sidecar.ExtractNativeSessionID(body)
	if native == "" {
		native = firstNonEmpty(stringField(body, "id"))
	}

	sess.Record(agentgateway.EventData{
		Kind:    agentgateway.EventStarted,
		Started: &agentgateway.StartedMeta{Reason: "session.created"},
	}, native)

	if !sess.SidecarAttached {
		sess.SidecarAttached = true
		go m.consume(base, sess)
	}
	return nil
}

func stringField(body map[string]any, key string) string {
	if s, ok := body[key].(string); ok {
		return s
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Send posts a prompt to the sidecar's per-session prompt endpoint.
func (m *Manager) Send(ctx context.Context, sess *agentgateway.Session, message string) error {
	base, err := m.ensureStarted()
	if err != nil {
		return err
	}
	native := sess.NativeSessionID()
	body := map[string]any{
		"agent": string(sess.Agent),
		"parts": []map[string]any{{"type": "text", "text": message}},
	}
	if sess.Model != "" {
		body["model"] = sess.Model
	}
	if sess.Variant != "" {
		body["variant"] = sess.Variant
	}
	resp, err := m.post(ctx, base+"/session/"+native+"/prompt", body)
	if err != nil {
		return fmt.Errorf("%w: prompt: %w", agentgateway.ErrStream, err)
	}
	defer resp.Body.Close()
	return nil
}

// ReplyQuestion, RejectQuestion, and ReplyPermission post to the sidecar's
// typed reply endpoints with the original event's requestID.
func (m *Manager) ReplyQuestion(ctx context.Context, requestID string, answers [][]string) error {
	base, err := m.ensureStarted()
	if err != nil {
		return err
	}
	resp, err := m.post(ctx, base+"/question/reply", map[string]any{"requestID": requestID, "answers": answers})
	if err != nil {
		return fmt.Errorf("%w: question reply: %w", agentgateway.ErrStream, err)
	}
	defer resp.Body.Close()
	return nil
}

func (m *Manager) RejectQuestion(ctx context.Context, requestID string) error {
	base, err := m.ensureStarted()
	if err != nil {
		return err
	}
	resp, err := m.post(ctx, base+"/question/reject", map[string]any{"requestID": requestID})
	if err != nil {
		return fmt.Errorf("%w: question reject: %w", agentgateway.ErrStream, err)
	}
	defer resp.Body.Close()
	return nil
}

func (m *Manager) ReplyPermission(ctx context.Context, requestID string, reply agentgateway.PermissionReply) error {
	base, err := m.ensureStarted()
	if err != nil {
		return err
	}
	resp, err := m.post(ctx, base+"/permission/reply", map[string]any{"requestID": requestID, "reply": string(reply)})
	if err != nil {
		return fmt.Errorf("%w: permission reply: %w", agentgateway.ErrStream, err)
	}
	defer resp.Body.Close()
	return nil
}

func (m *Manager) post(ctx context.Context, url string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return m.client.Do(req)
}

// consume is the sole SSE consumer task for sess: it subscribes to the
// sidecar's shared event endpoint, parses the data:/blank-line frame format
// (\r stripped), and drops any event not addressed to sess's native session
// id before handing it to the sidecar adapter.
func (m *Manager) consume(base string, sess *agentgateway.Session) {
	req, err := http.NewRequest(http.MethodGet, base+"/event/subscribe", nil)
	if err != nil {
		m.fail(sess, err)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := m.streamClient.Do(req)
	if err != nil {
		m.fail(sess, err)
		return
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	var data strings.Builder
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			if data.Len() > 0 {
				m.handleFrame(sess, data.String())
				data.Reset()
			}
			continue
		}
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			data.WriteString(strings.TrimSpace(after))
		}
	}
	if err := scanner.Err(); err != nil {
		m.fail(sess, err)
		return
	}
	m.fail(sess, fmt.Errorf("sidecar event stream closed"))
}

func (m *Manager) handleFrame(sess *agentgateway.Session, raw string) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return
	}
	if sidecar.ExtractNativeSessionID(payload) != sess.NativeSessionID() {
		return
	}
	res := m.adapter.ParseEvent(payload)
	for _, ev := range res.Events {
		sess.Record(ev, res.NativeSessionID)
	}
}

func (m *Manager) fail(sess *agentgateway.Session, err error) {
	sess.Record(agentgateway.EventData{
		Kind:  agentgateway.EventError,
		Error: &agentgateway.CrashInfo{Message: err.Error()},
	}, "")
	sess.End(-1, err.Error())
}
