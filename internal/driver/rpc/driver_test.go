package rpc

import (
	"errors"
	"testing"

	"github.com/teradata-labs/agentgateway"
	rpcadapter "github.com/teradata-labs/agentgateway/internal/adapter/rpc"
)

// TestRecordParseErrorRoutesToOwningSession exercises the onParseError path
// for a line that is valid JSON but failed JSON-RPC decoding (here, a
// non-numeric id): the failure is recorded on the owning session as an
// Unparsed message rather than dropped.
func TestRecordParseErrorRoutesToOwningSession(t *testing.T) {
	sess := agentgateway.NewSession("s1", agentgateway.KindClaude, "build", "default")
	d := New(ScopePerProcess, "unused", nil)
	d.bindings["native1"] = &binding{sess: sess, adapter: rpcadapter.New()}

	d.recordParseError([]byte(`{"id":"not-a-number","sessionId":"native1"}`), errors.New("json: cannot unmarshal string into Go struct field"))

	events, _ := sess.EventsSince(0, 0)
	if len(events) != 1 || events[0].Data.Kind != agentgateway.EventMessage || events[0].Data.Message.Unparsed == nil {
		t.Fatalf("got %+v, want one Unparsed message event", events)
	}
}

// TestRecordParseErrorDiscardsUnknownSession covers a line whose sessionId
// has no registered binding: discarded, no panic.
func TestRecordParseErrorDiscardsUnknownSession(t *testing.T) {
	d := New(ScopePerProcess, "unused", nil)
	d.recordParseError([]byte(`{"sessionId":"missing"}`), errors.New("boom"))
}

// TestRecordParseErrorDiscardsUnparseableLine covers a line too malformed
// even to recover a sessionId from.
func TestRecordParseErrorDiscardsUnparseableLine(t *testing.T) {
	d := New(ScopePerProcess, "unused", nil)
	d.recordParseError([]byte(`not json at all`), errors.New("boom"))
}
