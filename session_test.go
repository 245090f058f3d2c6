package agentgateway

import (
	"sync"
	"testing"
)

func TestRecordAssignsContiguousIDs(t *testing.T) {
	s := NewSession("s1", KindClaude, "build", "default")
	for i := 0; i < 5; i++ {
		ev := s.Record(EventData{Kind: EventMessage, Message: &UniversalMessage{}}, "")
		if ev.ID != int64(i+1) {
			t.Fatalf("event %d: got id %d, want %d", i, ev.ID, i+1)
		}
		if ev.SessionID != "s1" {
			t.Fatalf("event %d: got session id %q, want s1", i, ev.SessionID)
		}
	}
}

func TestRecordOverwritesQuestionSessionID(t *testing.T) {
	s := NewSession("s1", KindClaude, "build", "default")
	q := &QuestionRequest{ID: "q1", SessionID: "wrong"}
	ev := s.Record(EventData{Kind: EventQuestionAsked, Question: q}, "")
	if ev.Data.Question.SessionID != "s1" {
		t.Fatalf("question session id = %q, want s1", ev.Data.Question.SessionID)
	}
	if !s.RemoveQuestion("q1") {
		t.Fatal("expected q1 to be pending after QuestionAsked")
	}
	if s.RemoveQuestion("q1") {
		t.Fatal("expected second RemoveQuestion to report absent")
	}
}

func TestEndIsSticky(t *testing.T) {
	s := NewSession("s1", KindClaude, "build", "default")
	s.End(1, "boom")
	s.End(0, "ignored")
	ended, code, msg := s.Ended()
	if !ended || code != 1 || msg != "boom" {
		t.Fatalf("got (%v, %d, %q), want (true, 1, boom)", ended, code, msg)
	}
}

func TestEventsSinceTruncation(t *testing.T) {
	s := NewSession("s1", KindClaude, "build", "default")
	for i := 0; i < 10; i++ {
		s.Record(EventData{Kind: EventMessage, Message: &UniversalMessage{}}, "")
	}
	events, hasMore := s.EventsSince(0, 3)
	if len(events) != 3 || !hasMore {
		t.Fatalf("got %d events, hasMore=%v, want 3 events, hasMore=true", len(events), hasMore)
	}
	events, hasMore = s.EventsSince(8, 10)
	if len(events) != 2 || hasMore {
		t.Fatalf("got %d events, hasMore=%v, want 2 events, hasMore=false", len(events), hasMore)
	}
}

// TestSubscribeNoGapsNoDuplicates: events recorded concurrently with
// Subscribe must appear exactly once across the concatenation of the
// initial snapshot and the live tail.
func TestSubscribeNoGapsNoDuplicates(t *testing.T) {
	s := NewSession("s1", KindClaude, "build", "default")
	for i := 0; i < 3; i++ {
		s.Record(EventData{Kind: EventMessage, Message: &UniversalMessage{}}, "")
	}

	snapshot, sub := s.Subscribe(0)
	defer sub.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			s.Record(EventData{Kind: EventMessage, Message: &UniversalMessage{}}, "")
		}
	}()
	wg.Wait()

	seen := map[int64]bool{}
	for _, ev := range snapshot {
		if seen[ev.ID] {
			t.Fatalf("duplicate id %d in snapshot", ev.ID)
		}
		seen[ev.ID] = true
	}
	for len(seen) < 6 {
		ev := <-sub.C
		if seen[ev.ID] {
			t.Fatalf("duplicate id %d in live tail", ev.ID)
		}
		seen[ev.ID] = true
	}
	for id := int64(1); id <= 6; id++ {
		if !seen[id] {
			t.Fatalf("missing id %d", id)
		}
	}
}
