// Package runtime implements the central session runtime: the process-wide
// session table, mode normalization, and the operations
// (Create/Send/Events/Subscribe/Reply*/End) that arbitrate between the HTTP
// surface and the driver chosen by each session's AgentKind. A single
// coarse mutex guards the session map; per-session ordering is enforced by
// each Session's own lock.
package runtime

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/teradata-labs/agentgateway"
)

// Runtime owns the session table and dispatches to drivers by AgentKind's
// driver category.
type Runtime struct {
	drivers Drivers
	log     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*agentgateway.Session
}

// New constructs a Runtime. A nil logger is replaced with a no-op one.
func New(drivers Drivers, log *zap.Logger) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runtime{
		drivers:  drivers,
		log:      log,
		sessions: make(map[string]*agentgateway.Session),
	}
}

// Create rejects an existing id, normalizes modes, allocates a native
// session eagerly for sidecar/rpc kinds, and records the synthetic
// "session.created" Started event.
func (rt *Runtime) Create(ctx context.Context, sessionID string, req CreateSessionRequest) (CreateSessionResponse, error) {
	agentMode, permissionMode, err := agentgateway.NormalizeModes(req.Agent, req.AgentMode, req.PermissionMode)
	if err != nil {
		return CreateSessionResponse{}, err
	}
	spec, err := agentgateway.LookupKind(req.Agent)
	if err != nil {
		return CreateSessionResponse{}, err
	}

	rt.mu.Lock()
	if _, exists := rt.sessions[sessionID]; exists {
		rt.mu.Unlock()
		return CreateSessionResponse{}, fmt.Errorf("%w: %q", agentgateway.ErrSessionAlreadyExists, sessionID)
	}
	sess := agentgateway.NewSession(sessionID, req.Agent, agentMode, permissionMode)
	sess.Model = req.Model
	sess.Variant = req.Variant
	rt.sessions[sessionID] = sess
	rt.mu.Unlock()

	switch spec.Driver {
	case agentgateway.DriverSidecar:
		if rt.drivers.Sidecar == nil {
			return CreateSessionResponse{}, fmt.Errorf("%w: no sidecar driver configured", agentgateway.ErrUnsupportedAgent)
		}
		if err := rt.drivers.Sidecar.CreateSession(ctx, sess); err != nil {
			return CreateSessionResponse{}, err
		}
	case agentgateway.DriverRPC:
		if rt.drivers.RPC == nil {
			return CreateSessionResponse{}, fmt.Errorf("%w: no rpc driver configured", agentgateway.ErrUnsupportedAgent)
		}
		if err := rt.drivers.RPC.CreateSession(ctx, sess); err != nil {
			return CreateSessionResponse{}, err
		}
	default:
		// Subprocess-category sessions have no native id or setup until
		// their first turn completes.
		sess.Record(agentgateway.EventData{
			Kind:    agentgateway.EventStarted,
			Started: &agentgateway.StartedMeta{Reason: "session.created"},
		}, "")
	}

	rt.log.Info("session created",
		zap.String("sessionId", sessionID),
		zap.String("agent", string(req.Agent)),
		zap.String("agentMode", agentMode),
		zap.String("permissionMode", permissionMode),
	)

	return CreateSessionResponse{Healthy: true, NativeSessionID: sess.NativeSessionID()}, nil
}

// Send rejects ended sessions and dispatches the message to the session's
// driver. Subprocess sends are spawned on their own goroutine with a
// context detached from the caller's: a turn outlives the HTTP request that
// triggered it, and ingest must not be cancelled by client disconnection.
func (rt *Runtime) Send(ctx context.Context, sessionID, message string) error {
	sess, err := rt.lookup(sessionID)
	if err != nil {
		return err
	}
	if err := rt.rejectIfEnded(sess); err != nil {
		return err
	}

	spec, err := agentgateway.LookupKind(sess.Agent)
	if err != nil {
		return err
	}

	switch spec.Driver {
	case agentgateway.DriverSubprocess:
		if rt.drivers.Subprocess == nil {
			return fmt.Errorf("%w: no subprocess driver configured", agentgateway.ErrUnsupportedAgent)
		}
		go func() {
			if err := rt.drivers.Subprocess.Send(context.Background(), sess, message); err != nil {
				rt.log.Warn("subprocess send failed", zap.String("sessionId", sessionID), zap.Error(err))
			}
		}()
		return nil
	case agentgateway.DriverSidecar:
		if rt.drivers.Sidecar == nil {
			return fmt.Errorf("%w: no sidecar driver configured", agentgateway.ErrUnsupportedAgent)
		}
		return rt.drivers.Sidecar.Send(ctx, sess, message)
	case agentgateway.DriverRPC:
		if rt.drivers.RPC == nil {
			return fmt.Errorf("%w: no rpc driver configured", agentgateway.ErrUnsupportedAgent)
		}
		return rt.drivers.RPC.Send(ctx, sess, message)
	default:
		return fmt.Errorf("%w: %q", agentgateway.ErrUnsupportedAgent, sess.Agent)
	}
}

// Events returns the session's recorded events with id > offset.
func (rt *Runtime) Events(sessionID string, offset int64, limit int) (EventsResult, error) {
	sess, err := rt.lookup(sessionID)
	if err != nil {
		return EventsResult{}, err
	}
	events, hasMore := sess.EventsSince(offset, limit)
	return EventsResult{Events: events, HasMore: hasMore}, nil
}

// Subscribe atomically snapshots the tail with id > offset and returns a
// live receiver for everything recorded after the snapshot.
func (rt *Runtime) Subscribe(sessionID string, offset int64) ([]agentgateway.UniversalEvent, *agentgateway.Subscriber, error) {
	sess, err := rt.lookup(sessionID)
	if err != nil {
		return nil, nil, err
	}
	snapshot, sub := sess.Subscribe(offset)
	return snapshot, sub, nil
}

// ReplyQuestion removes questionID from the pending set exactly once and
// dispatches the answers to the owning driver.
func (rt *Runtime) ReplyQuestion(ctx context.Context, sessionID, questionID string, answers [][]string) error {
	sess, err := rt.lookup(sessionID)
	if err != nil {
		return err
	}
	if err := rt.rejectIfEnded(sess); err != nil {
		return err
	}
	if !sess.RemoveQuestion(questionID) {
		return fmt.Errorf("%w: unknown question id %q", agentgateway.ErrInvalidRequest, questionID)
	}
	return rt.dispatchQuestionReply(ctx, sess, questionID, answers)
}

// RejectQuestion removes questionID from the pending set exactly once and
// dispatches the rejection to the owning driver.
func (rt *Runtime) RejectQuestion(ctx context.Context, sessionID, questionID string) error {
	sess, err := rt.lookup(sessionID)
	if err != nil {
		return err
	}
	if err := rt.rejectIfEnded(sess); err != nil {
		return err
	}
	if !sess.RemoveQuestion(questionID) {
		return fmt.Errorf("%w: unknown question id %q", agentgateway.ErrInvalidRequest, questionID)
	}
	return rt.dispatchQuestionReject(ctx, sess, questionID)
}

// ReplyPermission removes permissionID from the pending set exactly once
// and dispatches the disposition to the owning driver.
func (rt *Runtime) ReplyPermission(ctx context.Context, sessionID, permissionID string, reply agentgateway.PermissionReply) error {
	sess, err := rt.lookup(sessionID)
	if err != nil {
		return err
	}
	if err := rt.rejectIfEnded(sess); err != nil {
		return err
	}
	if !sess.RemovePermission(permissionID) {
		return fmt.Errorf("%w: unknown permission id %q", agentgateway.ErrInvalidRequest, permissionID)
	}
	return rt.dispatchPermissionReply(ctx, sess, permissionID, reply)
}

// End marks the session ended. Idempotent, matching Session.End.
func (rt *Runtime) End(sessionID string, exitCode int, message string) error {
	sess, err := rt.lookup(sessionID)
	if err != nil {
		return err
	}
	sess.End(exitCode, message)
	return nil
}

func (rt *Runtime) dispatchQuestionReply(ctx context.Context, sess *agentgateway.Session, requestID string, answers [][]string) error {
	spec, err := agentgateway.LookupKind(sess.Agent)
	if err != nil {
		return err
	}
	switch spec.Driver {
	case agentgateway.DriverSidecar:
		if rt.drivers.Sidecar == nil {
			return nil
		}
		return rt.drivers.Sidecar.ReplyQuestion(ctx, requestID, answers)
	case agentgateway.DriverRPC:
		if rt.drivers.RPC == nil {
			return nil
		}
		return rt.drivers.RPC.ReplyQuestion(ctx, sess, requestID, answers)
	default:
		return nil
	}
}

func (rt *Runtime) dispatchQuestionReject(ctx context.Context, sess *agentgateway.Session, requestID string) error {
	spec, err := agentgateway.LookupKind(sess.Agent)
	if err != nil {
		return err
	}
	switch spec.Driver {
	case agentgateway.DriverSidecar:
		if rt.drivers.Sidecar == nil {
			return nil
		}
		return rt.drivers.Sidecar.RejectQuestion(ctx, requestID)
	case agentgateway.DriverRPC:
		if rt.drivers.RPC == nil {
			return nil
		}
		return rt.drivers.RPC.RejectQuestion(ctx, sess, requestID)
	default:
		return nil
	}
}

func (rt *Runtime) dispatchPermissionReply(ctx context.Context, sess *agentgateway.Session, requestID string, reply agentgateway.PermissionReply) error {
	spec, err := agentgateway.LookupKind(sess.Agent)
	if err != nil {
		return err
	}
	switch spec.Driver {
	case agentgateway.DriverSidecar:
		if rt.drivers.Sidecar == nil {
			return nil
		}
		return rt.drivers.Sidecar.ReplyPermission(ctx, requestID, reply)
	case agentgateway.DriverRPC:
		if rt.drivers.RPC == nil {
			return nil
		}
		return rt.drivers.RPC.ReplyPermission(ctx, sess, requestID, reply)
	default:
		return nil
	}
}

func (rt *Runtime) lookup(sessionID string) (*agentgateway.Session, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	sess, ok := rt.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", agentgateway.ErrSessionNotFound, sessionID)
	}
	return sess, nil
}

func (rt *Runtime) rejectIfEnded(sess *agentgateway.Session) error {
	if ended, code, msg := sess.Ended(); ended {
		return &agentgateway.EndedError{ExitCode: code, Message: msg}
	}
	return nil
}

// Agents lists every registered AgentKind for GET /v1/agents.
// Installed/version/path are left to the HTTP layer's binary-resolution
// collaborator.
func (rt *Runtime) Agents() []agentgateway.AgentKind {
	kinds := make([]agentgateway.AgentKind, 0, len(agentgateway.Kinds))
	for k := range agentgateway.Kinds {
		kinds = append(kinds, k)
	}
	return kinds
}

// Modes returns the agent-mode and permission-mode tables for kind.
func (rt *Runtime) Modes(kind agentgateway.AgentKind) (agentModes, permissionModes []agentgateway.ModeInfo, err error) {
	spec, err := agentgateway.LookupKind(kind)
	if err != nil {
		return nil, nil, err
	}
	return spec.AgentModes, spec.PermissionModes, nil
}
