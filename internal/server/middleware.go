// internal/server/middleware.go
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/markb/reminderd/internal/auth"
)

type contextKey string

// RoleContextKey is the context key for the validated API key role.
const RoleContextKey contextKey = "role"

// apiKeyMiddleware validates the API key and stores its role in the
// request context. The key is read from the apikey header, a bearer
// Authorization header, or the apikey query parameter.
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("apikey")
		if key == "" {
			if h := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(h), "bearer ") {
				key = h[len("Bearer "):]
			}
		}
		if key == "" {
			key = r.URL.Query().Get("apikey")
		}
		if key == "" {
			s.writeError(w, http.StatusUnauthorized, "no_api_key", "API key required")
			return
		}

		role, err := s.authService.ValidateAPIKey(key)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
			return
		}

		ctx := context.WithValue(r.Context(), RoleContextKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireServiceRole blocks requests whose key is not a service key.
func (s *Server) requireServiceRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRoleFromContext(r) != string(auth.APIKeyService) {
			s.writeError(w, http.StatusForbidden, "forbidden", "Service API key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetRoleFromContext returns the validated API key role, if any.
func GetRoleFromContext(r *http.Request) string {
	role, _ := r.Context().Value(RoleContextKey).(string)
	return role
}
