package agentgateway

import (
	"sync"
	"time"
)

// Session is the per-conversation state container: the event log, the
// broadcast hub serving live subscribers, and the pending question/
// permission sets. All mutable state is guarded by the session's own mutex;
// the session map itself is guarded separately by internal/runtime.Runtime.
// Ordering within a session is a single total order: event ids are assigned
// in the order callers reach the lock.
type Session struct {
	ID             string
	Agent          AgentKind
	AgentMode      string
	PermissionMode string
	Model          string
	Variant        string

	mu                 sync.Mutex
	nativeSessionID    string
	ended              bool
	exitCode           int
	exitMessage        string
	nextID             int64
	events             []UniversalEvent
	pendingQuestions   map[string]struct{}
	pendingPermissions map[string]struct{}
	hub                *hub

	// SidecarAttached is a per-driver auxiliary flag: true once the sidecar
	// driver has started this session's SSE consumer task.
	SidecarAttached bool
}

// NewSession constructs an empty session ready to Record its first event.
func NewSession(id string, agent AgentKind, agentMode, permissionMode string) *Session {
	return &Session{
		ID:                 id,
		Agent:              agent,
		AgentMode:          agentMode,
		PermissionMode:     permissionMode,
		pendingQuestions:   make(map[string]struct{}),
		pendingPermissions: make(map[string]struct{}),
		hub:                newHub(),
	}
}

// NativeSessionID returns the backend-assigned id, if learned yet.
func (s *Session) NativeSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nativeSessionID
}

// Ended reports whether the session has observed a terminal backend
// failure. Once true it never reverts.
func (s *Session) Ended() (bool, int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended, s.exitCode, s.exitMessage
}

// Record is the sole mutator of a session's event log. It assigns a
// contiguous id, stamps the time, fills session/agent, performs
// the question/permission session-id overwrite, updates the pending sets,
// appends to the log, and publishes to the broadcast hub. It never fails:
// translation failures are themselves expressed via data (Message{Unparsed}
// or Error), not by Record returning an error.
func (s *Session) Record(data EventData, nativeSessionID string) UniversalEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if nativeSessionID != "" {
		s.nativeSessionID = nativeSessionID
	}

	switch data.Kind {
	case EventQuestionAsked:
		if data.Question != nil {
			data.Question.SessionID = s.ID
			s.pendingQuestions[data.Question.ID] = struct{}{}
		}
	case EventPermissionAsked:
		if data.Permission != nil {
			data.Permission.SessionID = s.ID
			s.pendingPermissions[data.Permission.ID] = struct{}{}
		}
	}

	s.nextID++
	ev := UniversalEvent{
		ID:              s.nextID,
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
		SessionID:       s.ID,
		Agent:           s.Agent,
		NativeSessionID: s.nativeSessionID,
		Data:            data,
	}
	s.events = append(s.events, ev)
	s.hub.publish(ev)
	return ev
}

// EventsSince returns every event with id > offset, truncated to limit if
// limit > 0. hasMore is true iff truncation removed events.
func (s *Session) EventsSince(offset int64, limit int) (events []UniversalEvent, hasMore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.events)
	for i, ev := range s.events {
		if ev.ID > offset {
			start = i
			break
		}
	}
	tail := s.events[start:]
	if limit > 0 && len(tail) > limit {
		out := make([]UniversalEvent, limit)
		copy(out, tail[:limit])
		return out, true
	}
	out := make([]UniversalEvent, len(tail))
	copy(out, tail)
	return out, false
}

// Subscribe atomically snapshots the tail with id > offset and returns a
// live Subscriber. Because the snapshot and the hub registration happen
// under the same lock as Record, no event can be missing from or duplicated
// across the {snapshot | live} concatenation.
func (s *Session) Subscribe(offset int64) (snapshot []UniversalEvent, sub *Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.events)
	for i, ev := range s.events {
		if ev.ID > offset {
			start = i
			break
		}
	}
	snapshot = make([]UniversalEvent, len(s.events)-start)
	copy(snapshot, s.events[start:])
	return snapshot, s.hub.subscribe()
}

// RemoveQuestion removes id from the pending question set exactly once,
// reporting whether it was present.
func (s *Session) RemoveQuestion(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pendingQuestions[id]; !ok {
		return false
	}
	delete(s.pendingQuestions, id)
	return true
}

// RemovePermission removes id from the pending permission set exactly once,
// reporting whether it was present.
func (s *Session) RemovePermission(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pendingPermissions[id]; !ok {
		return false
	}
	delete(s.pendingPermissions, id)
	return true
}

// End marks the session ended. Idempotent: only the first call's code and
// message are kept, and any pending questions/permissions are cleared since
// an ended session accepts no further replies.
func (s *Session) End(exitCode int, message string) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.exitCode = exitCode
	s.exitMessage = message
	s.pendingQuestions = make(map[string]struct{})
	s.pendingPermissions = make(map[string]struct{})
	s.mu.Unlock()

	s.hub.closeAll()
}
