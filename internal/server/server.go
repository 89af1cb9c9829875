package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/hub"
	"github.com/parley-chat/parley/internal/objstore"
	"github.com/parley-chat/parley/internal/store"
)

// Server owns the handler dependencies explicitly; there is no package-level
// state, so tests can run several servers side by side.
type Server struct {
	cfg      Config
	store    *store.Store
	auth     *auth.Service
	hub      *hub.Hub
	objects  objstore.Store
	metrics  *Metrics
	origins  originPolicy
	upgrader websocket.Upgrader
}

// New wires a Server. The hub must already be created with this server's
// store as its join authorizer (see NewHub).
func New(cfg Config, st *store.Store, au *auth.Service, h *hub.Hub, objects objstore.Store, metrics *Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		auth:    au,
		hub:     h,
		objects: objects,
		metrics: metrics,
		origins: newOriginPolicy(cfg.AllowedOrigins),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.check,
	}
	return s
}

// NewHub builds the realtime hub for this deployment: group-room joins are
// authorized against current membership in the store.
func NewHub(st *store.Store, metrics *Metrics) *hub.Hub {
	authorizer := hub.AuthorizerFunc(func(ctx context.Context, userID, groupID int64) (bool, error) {
		return st.IsMember(ctx, groupID, userID)
	})
	var observer hub.Observer
	if metrics != nil {
		observer = metrics
	}
	return hub.New(authorizer, observer)
}

// HTTPServer wraps the routes in an http.Server with production timeouts.
// WebSocket upgrades bypass the write timeout via the hub's own deadlines.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:        s.cfg.Port,
		Handler:     s.Routes(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
}

// Start runs the hub loop and the HTTP listener; it blocks until the
// listener stops.
func (s *Server) Start(httpServer *http.Server) error {
	go s.hub.Run()
	log.Printf("server: listening on %s", httpServer.Addr)
	return httpServer.ListenAndServe()
}

// Shutdown stops the HTTP listener first so no new work arrives, then
// drains the hub.
func (s *Server) Shutdown(httpServer *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return s.hub.Shutdown(timeout)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "ok")
}
