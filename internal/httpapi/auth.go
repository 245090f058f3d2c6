// auth.go implements the gateway's one auth gate: an optional static
// bearer token accepted via any of three header forms, shaped as chi-style
// middleware (func(http.Handler) http.Handler).
package httpapi

import (
	"net/http"
	"strings"
)

const sidecarTokenHeader = "x-sandbox-token"

// requireToken returns middleware that rejects requests lacking a
// matching token, unless token is empty (auth disabled). Accepts
// "Authorization: Bearer T", "Authorization: Token T", or
// "x-sandbox-token: T".
func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			if extractToken(r) == token {
				next.ServeHTTP(w, r)
				return
			}
			writeProblemDetails(w, "token-invalid", http.StatusUnauthorized, "missing or invalid token", nil)
		})
	}
}

func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if v, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return v
		}
		if v, ok := strings.CutPrefix(auth, "Token "); ok {
			return v
		}
	}
	return r.Header.Get(sidecarTokenHeader)
}
