// problem.go renders every gateway error as an RFC 7807-shaped
// problem-details JSON body. Errors originating in the
// runtime/driver/adapter layers are plain sentinel-wrapped Go errors
// (agentgateway.Err*); this file is the only place they are mapped to an
// HTTP status and a problem "kind" string.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/teradata-labs/agentgateway"
)

// Problem is the RFC 7807-style error body every non-2xx response uses.
type Problem struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// kindFor maps a sentinel or *agentgateway.EndedError to its problem
// "kind" (the Type field) and HTTP status.
func kindFor(err error) (kind string, status int, extensions map[string]any) {
	var ended *agentgateway.EndedError
	switch {
	case errors.As(err, &ended):
		return "agent-process-exited", http.StatusInternalServerError, map[string]any{
			"exitCode":   ended.ExitCode,
			"stderrTail": ended.Message,
		}
	case errors.Is(err, agentgateway.ErrUnsupportedAgent):
		return "unsupported-agent", http.StatusBadRequest, nil
	case errors.Is(err, agentgateway.ErrInvalidRequest):
		return "invalid-request", http.StatusBadRequest, nil
	case errors.Is(err, agentgateway.ErrSessionNotFound):
		return "session-not-found", http.StatusNotFound, nil
	case errors.Is(err, agentgateway.ErrSessionAlreadyExists):
		return "session-already-exists", http.StatusConflict, nil
	case errors.Is(err, agentgateway.ErrModeNotSupported):
		return "mode-not-supported", http.StatusBadRequest, nil
	case errors.Is(err, agentgateway.ErrAgentNotInstalled):
		return "agent-not-installed", http.StatusFailedDependency, nil
	case errors.Is(err, agentgateway.ErrInstallFailed):
		return "install-failed", http.StatusInternalServerError, nil
	case errors.Is(err, agentgateway.ErrStream):
		return "stream-error", http.StatusBadGateway, nil
	case errors.Is(err, agentgateway.ErrTokenInvalid):
		return "token-invalid", http.StatusUnauthorized, nil
	default:
		return "internal-error", http.StatusInternalServerError, nil
	}
}

// writeProblem maps err to its problem kind and writes the JSON body.
func writeProblem(w http.ResponseWriter, err error) {
	kind, status, extensions := kindFor(err)
	writeProblemDetails(w, kind, status, err.Error(), extensions)
}

func writeProblemDetails(w http.ResponseWriter, kind string, status int, detail string, extensions map[string]any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:       kind,
		Title:      http.StatusText(status),
		Status:     status,
		Detail:     detail,
		Extensions: extensions,
	})
}
