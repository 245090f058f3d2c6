// Package httpapi is the gateway's thin HTTP shell: route parsing, the
// bearer-token gate, request validation, JSON encoding, and SSE framing.
// Every handler is a thin adapter onto one internal/runtime operation; this
// package never holds session state itself.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/agentgateway/internal/runtime"
)

// Server is the HTTP surface: a chi router plus its runtime handle.
type Server struct {
	router    *chi.Mux
	rt        *runtime.Runtime
	installer Installer
	log       *zap.Logger
}

// New builds the chi router and registers every route.
func New(rt *runtime.Runtime, installer Installer, token string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{router: chi.NewRouter(), rt: rt, installer: installer, log: log}

	s.router.Use(requestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(zapRequestLogger(log))

	s.router.Get("/v1/healthz", s.handleHealthz)

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(requireToken(token))

		r.Get("/agents", s.handleListAgents)
		r.Post("/agents/{agent}/install", s.handleInstallAgent)
		r.Get("/agents/{agent}/modes", s.handleAgentModes)

		r.Route("/sessions/{session_id}", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Post("/messages", s.handleSendMessage)
			r.Get("/events", s.handleGetEvents)
			r.Get("/events/sse", s.handleEventsSSE)
			r.Post("/questions/{question_id}/reply", s.handleQuestionReply)
			r.Post("/questions/{question_id}/reject", s.handleQuestionReject)
			r.Post("/permissions/{permission_id}/reply", s.handlePermissionReply)
		})
	})

	return s
}

// Router exposes the chi router for ListenAndServe or httptest wiring.
func (s *Server) Router() http.Handler { return s.router }

// requestIDHeader is the header the gateway echoes back so a caller can
// correlate its request with the events it produces across subsequent
// polls.
const requestIDHeader = "X-Request-Id"

// requestID stamps every inbound request with a uuid-based correlation id,
// replacing chi's own counter-based middleware.RequestID so the id space
// matches the rest of the gateway's uuid usage.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// zapRequestLogger logs one structured line per completed request.
func zapRequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("requestId", w.Header().Get(requestIDHeader)),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
