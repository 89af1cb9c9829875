package server

import (
	"errors"
	"net/http"

	"github.com/parley-chat/parley/internal/store"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Number   string `json:"number"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Number == "" || req.Password == "" {
		fail(w, http.StatusBadRequest, "All fields are required")
		return
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		internalError(w, "hashing password", err)
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Name, req.Email, req.Number, hash)
	if err != nil {
		storeError(w, err, "creating user", "User not found", "User already exists")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Successfully signed up",
		"user":    user,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		fail(w, http.StatusBadRequest, "All fields are required")
		return
	}

	user, err := s.store.UserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "User not found")
			return
		}
		internalError(w, "looking up user", err)
		return
	}
	if !s.auth.VerifyPassword(req.Password, user.PasswordHash) {
		fail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.auth.IssueToken(user.ID, user.Name)
	if err != nil {
		internalError(w, "issuing token", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"userId":  user.ID,
	})
}

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		fail(w, http.StatusBadRequest, "Search query is required")
		return
	}

	users, err := s.store.SearchUsers(r.Context(), query)
	if err != nil {
		internalError(w, "searching users", err)
		return
	}
	if users == nil {
		users = []store.User{}
	}
	writeJSON(w, http.StatusOK, users)
}
