// sse.go frames universal events as Server-Sent Events:
// "data: <json>\n\n" per event, flushed immediately.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/teradata-labs/agentgateway"
)

// sseWriter wraps http.ResponseWriter for one-event-at-a-time SSE framing.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

// writeEvent renders ev as "data: <json>\n\n". A JSON encoding failure
// degrades to an empty object rather than dropping the frame.
func (s *sseWriter) writeEvent(ev agentgateway.UniversalEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		payload = []byte("{}")
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil {
		s.flusher.Flush()
	}
	return nil
}
