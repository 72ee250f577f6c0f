// Package auth guards the HTTP API with a shared API key.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/micro-nova/slidered/internal/models"
)

const (
	apiKeyHeader     = "X-API-Key"
	apiKeyQueryParam = "api-key"
)

// Service checks requests against the configured key.
type Service struct {
	key string
}

// NewService returns a Service. An empty key puts it in open mode.
func NewService(key string) *Service {
	return &Service{key: key}
}

// IsOpenMode returns true if no key is configured.
// In open mode, all requests are allowed without authentication.
func (s *Service) IsOpenMode() bool { return s.key == "" }

// VerifyKey reports whether key matches the configured key.
// Uses constant-time comparison to prevent timing attacks.
func (s *Service) VerifyKey(key string) bool {
	if key == "" || s.key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.key)) == 1
}

// Middleware returns an http.Handler middleware that enforces authentication.
// The key is taken from the X-API-Key header, a Bearer token, or the api-key
// query parameter (browsers cannot set headers on websocket upgrades).
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.IsOpenMode() {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if key == "" {
			key = r.URL.Query().Get(apiKeyQueryParam)
		}
		if s.VerifyKey(key) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(models.ErrUnauthorized.Status)
		_ = json.NewEncoder(w).Encode(models.ErrUnauthorized)
	})
}
