package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/teradata-labs/agentgateway"
	"github.com/teradata-labs/agentgateway/internal/runtime"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeProblemDetails(w, "invalid-request", http.StatusBadRequest, "malformed JSON body: "+err.Error(), nil)
		return false
	}
	return true
}

// GET /v1/agents
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	kinds := s.rt.Agents()
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	agents := make([]AgentStatus, 0, len(kinds))
	for _, k := range kinds {
		if s.installer != nil {
			agents = append(agents, s.installer.Status(k))
		} else {
			agents = append(agents, AgentStatus{ID: k})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

type installRequest struct {
	Reinstall bool `json:"reinstall,omitempty"`
}

// POST /v1/agents/{agent}/install
func (s *Server) handleInstallAgent(w http.ResponseWriter, r *http.Request) {
	kind := agentgateway.AgentKind(chi.URLParam(r, "agent"))
	var req installRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if s.installer == nil {
		writeProblemDetails(w, "install-failed", http.StatusInternalServerError, "no installer configured", nil)
		return
	}
	if err := s.installer.Install(kind, req.Reinstall); err != nil {
		writeProblem(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/agents/{agent}/modes
func (s *Server) handleAgentModes(w http.ResponseWriter, r *http.Request) {
	kind := agentgateway.AgentKind(chi.URLParam(r, "agent"))
	agentModes, permissionModes, err := s.rt.Modes(kind)
	if err != nil {
		writeProblem(w, err)
		return
	}
	modes := make([]agentgateway.ModeInfo, 0, len(agentModes)+len(permissionModes))
	modes = append(modes, agentModes...)
	modes = append(modes, permissionModes...)
	writeJSON(w, http.StatusOK, map[string]any{"modes": modes})
}

// POST /v1/sessions/{session_id}
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	var req runtime.CreateSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.rt.Create(r.Context(), sessionID, req)
	if err != nil {
		writeProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// POST /v1/sessions/{session_id}/messages
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	var req sendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.rt.Send(r.Context(), sessionID, req.Message); err != nil {
		writeProblem(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/sessions/{session_id}/events?offset&limit
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	offset, err := parseIntQuery(r, "offset", 0)
	if err != nil {
		writeProblemDetails(w, "invalid-request", http.StatusBadRequest, err.Error(), nil)
		return
	}
	limit, err := parseIntQuery(r, "limit", 0)
	if err != nil {
		writeProblemDetails(w, "invalid-request", http.StatusBadRequest, err.Error(), nil)
		return
	}
	result, err := s.rt.Events(sessionID, offset, int(limit))
	if err != nil {
		writeProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseIntQuery(r *http.Request, key string, def int64) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s query parameter: %q", key, v)
	}
	return n, nil
}

// GET /v1/sessions/{session_id}/events/sse?offset
func (s *Server) handleEventsSSE(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	offset, err := parseIntQuery(r, "offset", 0)
	if err != nil {
		writeProblemDetails(w, "invalid-request", http.StatusBadRequest, err.Error(), nil)
		return
	}

	snapshot, sub, err := s.rt.Subscribe(sessionID, offset)
	if err != nil {
		writeProblem(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sse, err := newSSEWriter(w)
	if err != nil {
		writeProblemDetails(w, "stream-error", http.StatusBadGateway, err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusOK)

	for _, ev := range snapshot {
		if err := sse.writeEvent(ev); err != nil {
			return
		}
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := sse.writeEvent(ev); err != nil {
				return
			}
		}
	}
}

type questionReplyRequest struct {
	Answers [][]string `json:"answers"`
}

// POST /v1/sessions/{session_id}/questions/{question_id}/reply
func (s *Server) handleQuestionReply(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	questionID := chi.URLParam(r, "question_id")
	var req questionReplyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.rt.ReplyQuestion(r.Context(), sessionID, questionID, req.Answers); err != nil {
		writeProblem(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/sessions/{session_id}/questions/{question_id}/reject
func (s *Server) handleQuestionReject(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	questionID := chi.URLParam(r, "question_id")
	if err := s.rt.RejectQuestion(r.Context(), sessionID, questionID); err != nil {
		writeProblem(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type permissionReplyRequest struct {
	Reply agentgateway.PermissionReply `json:"reply"`
}

// POST /v1/sessions/{session_id}/permissions/{permission_id}/reply
func (s *Server) handlePermissionReply(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	permissionID := chi.URLParam(r, "permission_id")
	var req permissionReplyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	switch req.Reply {
	case agentgateway.PermissionReplyOnce, agentgateway.PermissionReplyAlways, agentgateway.PermissionReplyReject:
	default:
		writeProblemDetails(w, "invalid-request", http.StatusBadRequest, fmt.Sprintf("invalid reply %q", req.Reply), nil)
		return
	}
	if err := s.rt.ReplyPermission(r.Context(), sessionID, permissionID, req.Reply); err != nil {
		writeProblem(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
