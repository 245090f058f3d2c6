// driver.go orchestrates Conn around the gateway's session model: handlers
// are registered before ReadLoop starts, inbound notifications are routed
// (on the ReadLoop goroutine) to the owning session's adapter, and Call
// carries question/permission replies.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/teradata-labs/agentgateway"
	rpcadapter "github.com/teradata-labs/agentgateway/internal/adapter/rpc"
)

// Scope selects how many JSON-RPC subprocess connections the driver
// maintains. Both modes are supported; the choice is a config flag
// (rpc.scope) rather than hard-wired.
type Scope string

const (
	// ScopePerProcess shares one subprocess and one Conn across every
	// RPC-kind session; inbound events are routed to their owning session
	// by the sessionId field each payload carries.
	ScopePerProcess Scope = "per-process"
	// ScopePerSession spawns a dedicated subprocess and Conn per session.
	ScopePerSession Scope = "per-session"
)

const (
	methodCreateSession  = "session/create"
	methodPrompt         = "session/prompt"
	methodEvent          = "session/event"
	methodQuestionReply  = "question/reply"
	methodQuestionReject = "question/reject"
	methodPermReply      = "permission/reply"
)

// Driver drives the JSON-RPC agent backend.
type Driver struct {
	scope  Scope
	binary string
	args   []string

	mu       sync.Mutex
	shared   *connHandle
	perSess  map[string]*connHandle
	bindings map[string]*binding // native session id -> binding
}

type connHandle struct {
	conn *Conn
	cmd  *exec.Cmd
}

type binding struct {
	sess    *agentgateway.Session
	adapter *rpcadapter.Adapter
}

// New constructs a Driver. binary/args launch the JSON-RPC subprocess;
// scope controls connection sharing.
func New(scope Scope, binary string, args []string) *Driver {
	if scope == "" {
		scope = ScopePerProcess
	}
	return &Driver{
		scope:    scope,
		binary:   binary,
		args:     args,
		perSess:  make(map[string]*connHandle),
		bindings: make(map[string]*binding),
	}
}

// CreateSession spawns (or reuses) a JSON-RPC connection for sess, asks the
// agent to create a native session, and registers the routing entry events
// for that native id will be delivered to.
func (d *Driver) CreateSession(ctx context.Context, sess *agentgateway.Session) error {
	handle, err := d.connFor(sess)
	if err != nil {
		return err
	}

	var result struct {
		SessionID string `json:"sessionId"`
	}
	params := map[string]any{
		"agent": string(sess.Agent),
		"model": sess.Model,
	}
	if sess.Variant != "" {
		params["variant"] = sess.Variant
	}
	if err := handle.conn.Call(ctx, methodCreateSession, params, &result); err != nil {
		return fmt.Errorf("%w: create session: %w", agentgateway.ErrStream, err)
	}
	native := result.SessionID
	if native == "" {
		native = sess.ID
	}

	d.mu.Lock()
	d.bindings[native] = &binding{sess: sess, adapter: rpcadapter.New()}
	d.mu.Unlock()

	sess.Record(agentgateway.EventData{
		Kind:    agentgateway.EventStarted,
		Started: &agentgateway.StartedMeta{Reason: "session.created"},
	}, native)
	return nil
}

// Send issues a prompt over the session's JSON-RPC connection.
func (d *Driver) Send(ctx context.Context, sess *agentgateway.Session, message string) error {
	handle, err := d.connFor(sess)
	if err != nil {
		return err
	}
	params := map[string]any{
		"sessionId": sess.NativeSessionID(),
		"message":   message,
	}
	if err := handle.conn.Notify(methodPrompt, params); err != nil {
		return fmt.Errorf("%w: prompt: %w", agentgateway.ErrStream, err)
	}
	return nil
}

func (d *Driver) ReplyQuestion(ctx context.Context, sess *agentgateway.Session, requestID string, answers [][]string) error {
	handle, err := d.connFor(sess)
	if err != nil {
		return err
	}
	var ignored any
	params := map[string]any{"requestID": requestID, "answers": answers}
	if err := handle.conn.Call(ctx, methodQuestionReply, params, &ignored); err != nil {
		return fmt.Errorf("%w: question reply: %w", agentgateway.ErrStream, err)
	}
	return nil
}

func (d *Driver) RejectQuestion(ctx context.Context, sess *agentgateway.Session, requestID string) error {
	handle, err := d.connFor(sess)
	if err != nil {
		return err
	}
	var ignored any
	if err := handle.conn.Call(ctx, methodQuestionReject, map[string]any{"requestID": requestID}, &ignored); err != nil {
		return fmt.Errorf("%w: question reject: %w", agentgateway.ErrStream, err)
	}
	return nil
}

func (d *Driver) ReplyPermission(ctx context.Context, sess *agentgateway.Session, requestID string, reply agentgateway.PermissionReply) error {
	handle, err := d.connFor(sess)
	if err != nil {
		return err
	}
	var ignored any
	params := map[string]any{"requestID": requestID, "reply": string(reply)}
	if err := handle.conn.Call(ctx, methodPermReply, params, &ignored); err != nil {
		return fmt.Errorf("%w: permission reply: %w", agentgateway.ErrStream, err)
	}
	return nil
}

// connFor returns the Conn that owns sess, spawning the subprocess (and, in
// per-process scope, starting its single shared ReadLoop) on first use.
func (d *Driver) connFor(sess *agentgateway.Session) (*connHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.scope == ScopePerSession {
		if h, ok := d.perSess[sess.ID]; ok {
			return h, nil
		}
		h, err := d.spawn()
		if err != nil {
			return nil, err
		}
		d.perSess[sess.ID] = h
		return h, nil
	}

	if d.shared != nil {
		return d.shared, nil
	}
	h, err := d.spawn()
	if err != nil {
		return nil, err
	}
	d.shared = h
	return h, nil
}

// spawn starts the JSON-RPC subprocess, wires its notification handler, and
// starts ReadLoop. Handlers must be registered before ReadLoop runs; the
// read loop gets its own goroutine so Call/Notify never block on it.
func (d *Driver) spawn() (*connHandle, error) {
	resolved, err := exec.LookPath(d.binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", agentgateway.ErrAgentNotInstalled, d.binary, err)
	}
	cmd := exec.Command(resolved, d.args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", agentgateway.ErrAgentNotInstalled, d.binary, err)
	}

	conn := newConn(stdout, stdin, connConfig{
		onParseError: d.recordParseError,
	})
	conn.OnNotification(methodEvent, func(raw json.RawMessage) {
		d.routeEvent(raw)
	})
	go conn.ReadLoop()

	return &connHandle{conn: conn, cmd: cmd}, nil
}

// routeEvent demultiplexes one inbound session/event notification by the
// sessionId field its payload carries. Events with no owning session are
// discarded.
func (d *Driver) routeEvent(raw []byte) {
	payload, err := decodePayload(raw)
	if err != nil {
		return
	}
	native, _ := payload["sessionId"].(string)
	if native == "" {
		native, _ = payload["session_id"].(string)
	}

	d.mu.Lock()
	b := d.bindings[native]
	d.mu.Unlock()
	if b == nil {
		return
	}

	res, err := b.adapter.HandleEvent(payload)
	if err != nil {
		b.sess.Record(agentgateway.EventData{
			Kind: agentgateway.EventMessage,
			Message: &agentgateway.UniversalMessage{
				Unparsed: &agentgateway.UnparsedMessage{Raw: string(raw), Err: err.Error()},
			},
		}, native)
		return
	}
	for _, ev := range res.Events {
		b.sess.Record(ev, native)
	}
}

// recordParseError handles a line the JSON-RPC codec could not parse. It
// best-effort decodes the line to find the sessionId an otherwise-valid
// payload would have carried, and records the failure on that session as an
// Unparsed message; a line with no recoverable owning session is discarded,
// matching routeEvent's own policy.
func (d *Driver) recordParseError(line []byte, parseErr error) {
	payload, err := decodePayload(line)
	if err != nil {
		return
	}
	native, _ := payload["sessionId"].(string)
	if native == "" {
		native, _ = payload["session_id"].(string)
	}

	d.mu.Lock()
	b := d.bindings[native]
	d.mu.Unlock()
	if b == nil {
		return
	}
	b.sess.Record(agentgateway.EventData{
		Kind: agentgateway.EventMessage,
		Message: &agentgateway.UniversalMessage{
			Unparsed: &agentgateway.UnparsedMessage{Raw: string(line), Err: parseErr.Error()},
		},
	}, native)
}

func decodePayload(raw []byte) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Close terminates every subprocess the driver owns.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	closeHandle := func(h *connHandle) {
		if h == nil || h.cmd == nil || h.cmd.Process == nil {
			return
		}
		if err := h.cmd.Process.Kill(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	closeHandle(d.shared)
	for _, h := range d.perSess {
		closeHandle(h)
	}
	return firstErr
}

var _ io.Closer = (*Driver)(nil)
