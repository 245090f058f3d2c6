package agentgateway

import "sync"

// hubCapacity bounds each subscriber's buffered channel. A slow subscriber
// that falls behind this many events loses the oldest buffered event rather
// than blocking the publisher; the full log stays available via polling.
const hubCapacity = 256

// Subscriber is a live tail handle returned by Session.Subscribe. The
// caller drains C until it closes (session end) or gives up (disconnect).
type Subscriber struct {
	C <-chan UniversalEvent

	ch     chan UniversalEvent
	hub    *hub
	lagged int // count of events dropped due to a full buffer
}

// Close detaches the subscriber from its hub. Safe to call more than once.
func (s *Subscriber) Close() {
	s.hub.unsubscribe(s)
}

// Lagged reports how many events this subscriber has dropped because it
// fell behind. The full log remains available via polling regardless.
func (s *Subscriber) Lagged() int {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.lagged
}

// hub is a bounded-capacity pub/sub fan-out keyed by subscriber.
type hub struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[*Subscriber]struct{})}
}

// subscribe registers a new subscriber. Callers must hold the owning
// Session's lock across taking the log snapshot and calling subscribe, so
// that no event can be appended between the two.
func (h *hub) subscribe() *Subscriber {
	ch := make(chan UniversalEvent, hubCapacity)
	s := &Subscriber{ch: ch, C: ch, hub: h}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

func (h *hub) unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

// publish fans ev out to every live subscriber. A subscriber whose buffer
// is full has its oldest event dropped to make room; the event itself is
// never dropped silently for a subscriber with room.
func (h *hub) publish(ev UniversalEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- ev:
		default:
			select {
			case <-s.ch:
				s.lagged++
			default:
			}
			select {
			case s.ch <- ev:
			default:
				s.lagged++
			}
		}
	}
}

// closeAll closes every subscriber's channel. Called once a session ends,
// so range-over-Subscriber.C loops observe termination.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.ch)
	}
	h.subs = nil
}
