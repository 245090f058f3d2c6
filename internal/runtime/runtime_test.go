package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/agentgateway"
)

// stubSidecar and stubSubprocess are function-field stubs in the same style
// as internal/driver/subprocess/driver_test.go's stubBackend.
type stubSidecar struct {
	createFn func(ctx context.Context, sess *agentgateway.Session) error
	sendFn   func(ctx context.Context, sess *agentgateway.Session, message string) error
}

func (s *stubSidecar) CreateSession(ctx context.Context, sess *agentgateway.Session) error {
	if s.createFn != nil {
		return s.createFn(ctx, sess)
	}
	return nil
}
func (s *stubSidecar) Send(ctx context.Context, sess *agentgateway.Session, message string) error {
	if s.sendFn != nil {
		return s.sendFn(ctx, sess, message)
	}
	return nil
}
func (s *stubSidecar) ReplyQuestion(ctx context.Context, requestID string, answers [][]string) error {
	return nil
}
func (s *stubSidecar) RejectQuestion(ctx context.Context, requestID string) error { return nil }
func (s *stubSidecar) ReplyPermission(ctx context.Context, requestID string, reply agentgateway.PermissionReply) error {
	return nil
}

type stubSubprocess struct {
	sendFn func(ctx context.Context, sess *agentgateway.Session, message string) error
	done   chan struct{}
}

func (s *stubSubprocess) Send(ctx context.Context, sess *agentgateway.Session, message string) error {
	defer close(s.done)
	if s.sendFn != nil {
		return s.sendFn(ctx, sess, message)
	}
	return nil
}

func TestCreateRejectsDuplicateSessionID(t *testing.T) {
	rt := New(Drivers{}, nil)
	_, err := rt.Create(context.Background(), "s1", CreateSessionRequest{Agent: agentgateway.KindClaude})
	require.NoError(t, err)

	_, err = rt.Create(context.Background(), "s1", CreateSessionRequest{Agent: agentgateway.KindClaude})
	assert.ErrorIs(t, err, agentgateway.ErrSessionAlreadyExists)
}

func TestCreateSubprocessRecordsSyntheticStarted(t *testing.T) {
	rt := New(Drivers{}, nil)
	resp, err := rt.Create(context.Background(), "s1", CreateSessionRequest{Agent: agentgateway.KindClaude})
	require.NoError(t, err)
	assert.True(t, resp.Healthy)

	events, _ := rt.Events("s1", 0, 0)
	require.Len(t, events.Events, 1)
	assert.Equal(t, agentgateway.EventStarted, events.Events[0].Data.Kind)
}

func TestCreateSidecarDelegatesToDriver(t *testing.T) {
	called := false
	sc := &stubSidecar{createFn: func(ctx context.Context, sess *agentgateway.Session) error {
		called = true
		return nil
	}}
	rt := New(Drivers{Sidecar: sc}, nil)
	_, err := rt.Create(context.Background(), "s1", CreateSessionRequest{Agent: agentgateway.KindSidecar})
	require.NoError(t, err)
	assert.True(t, called, "sidecar CreateSession was not called")
}

func TestSendUnknownSessionReturnsNotFound(t *testing.T) {
	rt := New(Drivers{}, nil)
	err := rt.Send(context.Background(), "missing", "hi")
	assert.ErrorIs(t, err, agentgateway.ErrSessionNotFound)
}

func TestSendAfterEndReturnsEndedError(t *testing.T) {
	rt := New(Drivers{}, nil)
	_, err := rt.Create(context.Background(), "s1", CreateSessionRequest{Agent: agentgateway.KindClaude})
	require.NoError(t, err)
	require.NoError(t, rt.End("s1", 1, "boom"))

	err = rt.Send(context.Background(), "s1", "hi")
	var ended *agentgateway.EndedError
	assert.ErrorAs(t, err, &ended)
}

func TestSendSubprocessIsDetachedFromCallerContext(t *testing.T) {
	done := make(chan struct{})
	var gotMessage string
	var gotCtxErr error
	sp := &stubSubprocess{
		done: done,
		sendFn: func(ctx context.Context, sess *agentgateway.Session, message string) error {
			gotMessage = message
			gotCtxErr = ctx.Err()
			return nil
		},
	}
	rt := New(Drivers{Subprocess: sp}, nil)
	_, err := rt.Create(context.Background(), "s1", CreateSessionRequest{Agent: agentgateway.KindClaude})
	require.NoError(t, err)

	callerCtx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, rt.Send(callerCtx, "s1", "hello"))
	<-done
	assert.Equal(t, "hello", gotMessage)
	assert.NoError(t, gotCtxErr, "driver context must not inherit the caller's cancellation")
}

func TestReplyQuestionAcceptsOnceThenRejectsDoubleReply(t *testing.T) {
	rt := New(Drivers{}, nil)
	_, err := rt.Create(context.Background(), "s1", CreateSessionRequest{Agent: agentgateway.KindClaude})
	require.NoError(t, err)

	sess, err := rt.lookup("s1")
	require.NoError(t, err)
	sess.Record(agentgateway.EventData{
		Kind:     agentgateway.EventQuestionAsked,
		Question: &agentgateway.QuestionRequest{ID: "q1", Question: "continue?"},
	}, "")

	require.NoError(t, rt.ReplyQuestion(context.Background(), "s1", "q1", [][]string{{"A"}}))
	err = rt.ReplyQuestion(context.Background(), "s1", "q1", [][]string{{"A"}})
	assert.ErrorIs(t, err, agentgateway.ErrInvalidRequest)
}

func TestReplyQuestionRejectsUnknownID(t *testing.T) {
	rt := New(Drivers{}, nil)
	_, err := rt.Create(context.Background(), "s1", CreateSessionRequest{Agent: agentgateway.KindClaude})
	require.NoError(t, err)

	err = rt.ReplyQuestion(context.Background(), "s1", "q-missing", [][]string{{"yes"}})
	assert.ErrorIs(t, err, agentgateway.ErrInvalidRequest)
}

func TestModesReturnsCatalogForKind(t *testing.T) {
	rt := New(Drivers{}, nil)
	agentModes, permModes, err := rt.Modes(agentgateway.KindClaude)
	require.NoError(t, err)
	assert.NotEmpty(t, agentModes)
	assert.NotEmpty(t, permModes)
}

func TestAgentsListsEveryRegisteredKind(t *testing.T) {
	rt := New(Drivers{}, nil)
	kinds := rt.Agents()
	assert.Len(t, kinds, len(agentgateway.Kinds))
}
