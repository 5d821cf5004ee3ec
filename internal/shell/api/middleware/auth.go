// Package middleware provides HTTP middleware for the planner API.
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// HeaderAPIToken carries the shared token. "Authorization: Bearer" is
// accepted as well.
const HeaderAPIToken = "X-API-Token"

// =============================================================================
// Auth Configuration
// =============================================================================

// AuthConfig holds configuration for the token middleware.
type AuthConfig struct {
	// Token is the shared secret callers must present.
	// If empty, every request is allowed.
	Token string

	Logger *slog.Logger
}

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware rejects requests that do not present the configured token.
type AuthMiddleware struct {
	config AuthConfig
}

// NewAuthMiddleware creates a new auth middleware with the given config.
func NewAuthMiddleware(cfg AuthConfig) *AuthMiddleware {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AuthMiddleware{config: cfg}
}

// Handler returns the middleware handler function.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	if m.config.Token == "" {
		return next
	}
	want := []byte(m.config.Token)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := tokenFromRequest(r)
		if got == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing API token", "unauthorized")
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			m.config.Logger.Warn("invalid API token",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			writeJSONError(w, http.StatusForbidden, "invalid API token", "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenFromRequest(r *http.Request) string {
	if tok := r.Header.Get(HeaderAPIToken); tok != "" {
		return tok
	}
	authz := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(authz, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// =============================================================================
// JSON Error Response
// =============================================================================

// writeJSONError writes the same error shape the API handlers use.
func writeJSONError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}
