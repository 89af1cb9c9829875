package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/parley-chat/parley/internal/auth"
)

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// requireAuth verifies the Bearer token and stores the asserted identity in
// the request context. The WebSocket handshake does not use this path; it
// carries its own token field.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			fail(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		id, err := s.auth.VerifyToken(strings.TrimSpace(header[len("Bearer "):]))
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				fail(w, http.StatusUnauthorized, "Token expired")
				return
			}
			fail(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next(w, r.WithContext(ctx))
	}
}

func identityFrom(r *http.Request) (auth.Identity, bool) {
	id, ok := r.Context().Value(identityKey).(auth.Identity)
	return id, ok
}
