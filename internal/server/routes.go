package server

import "net/http"

// Routes builds the full route table. Membership-mutating and
// message-posting endpoints all require a Bearer token; signup and login do
// not.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("POST /user/signup", s.handleSignup)
	mux.HandleFunc("POST /user/login", s.handleLogin)
	mux.HandleFunc("GET /user/search", s.requireAuth(s.handleSearchUsers))

	mux.HandleFunc("POST /group", s.requireAuth(s.handleCreateGroup))
	mux.HandleFunc("GET /groups", s.requireAuth(s.handleListGroups))
	mux.HandleFunc("POST /group/{id}/add", s.requireAuth(s.handleAddMember))
	mux.HandleFunc("POST /group/{id}/makeAdmin", s.requireAuth(s.handleMakeAdmin))
	mux.HandleFunc("POST /group/{id}/remove", s.requireAuth(s.handleRemoveMember))
	mux.HandleFunc("POST /group/{id}/message", s.requireAuth(s.handlePostMessage))
	mux.HandleFunc("POST /group/{id}/upload", s.requireAuth(s.handleUpload))
	mux.HandleFunc("GET /group/{id}/messages", s.requireAuth(s.handleListMessages))

	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return mux
}
