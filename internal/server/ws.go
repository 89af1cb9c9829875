package server

import (
	"log"
	"net/http"
	"strings"

	"github.com/parley-chat/parley/internal/hub"
)

// handshakeToken pulls the session token from the upgrade request. Browser
// WebSocket APIs cannot set headers, so the query parameter is the primary
// transport; a Bearer header works for non-browser clients.
func handshakeToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

// handleWebSocket authenticates the handshake and, only on success, upgrades
// the connection and registers it with the hub. A bad token rejects the
// handshake outright; the connection never opens with partial access.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := handshakeToken(r)
	if token == "" {
		fail(w, http.StatusUnauthorized, "Missing token")
		return
	}
	id, err := s.auth.VerifyToken(token)
	if err != nil {
		fail(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		log.Printf("server: websocket upgrade failed for user %d: %v", id.UserID, err)
		return
	}

	client := hub.NewClient(s.hub, conn, id.UserID, id.Name, r.RemoteAddr, hub.Settings{
		MaxMessageSize:    s.cfg.MaxMessageSize,
		RateLimitBurst:    s.cfg.RateLimit.Burst,
		RateLimitInterval: s.cfg.RateLimit.RefillInterval,
	})
	s.hub.Register(client)
}
