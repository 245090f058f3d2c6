package runtime

import (
	"context"

	"github.com/teradata-labs/agentgateway"
)

// subprocessDriver is the capability Runtime needs from internal/driver/subprocess.
// Subprocess-category sessions need no CreateSession step (no native session
// is allocated until the backend's result line reports one) and no
// Reply*/Permission dispatch: each turn is a fresh process, so a question or
// permission reply for such a session is removed from the pending set and
// is not delivered to any backend process.
type subprocessDriver interface {
	Send(ctx context.Context, sess *agentgateway.Session, message string) error
}

// sidecarDriver is the capability Runtime needs from internal/driver/sidecar.
type sidecarDriver interface {
	CreateSession(ctx context.Context, sess *agentgateway.Session) error
	Send(ctx context.Context, sess *agentgateway.Session, message string) error
	ReplyQuestion(ctx context.Context, requestID string, answers [][]string) error
	RejectQuestion(ctx context.Context, requestID string) error
	ReplyPermission(ctx context.Context, requestID string, reply agentgateway.PermissionReply) error
}

// rpcDriver is the capability Runtime needs from internal/driver/rpc.
type rpcDriver interface {
	CreateSession(ctx context.Context, sess *agentgateway.Session) error
	Send(ctx context.Context, sess *agentgateway.Session, message string) error
	ReplyQuestion(ctx context.Context, sess *agentgateway.Session, requestID string, answers [][]string) error
	RejectQuestion(ctx context.Context, sess *agentgateway.Session, requestID string) error
	ReplyPermission(ctx context.Context, sess *agentgateway.Session, requestID string, reply agentgateway.PermissionReply) error
}

// Drivers bundles one driver instance per category, dispatched by
// AgentKind.Driver. Any field may be nil if the deployment has no sessions
// of that category configured.
type Drivers struct {
	Subprocess subprocessDriver
	Sidecar    sidecarDriver
	RPC        rpcDriver
}
