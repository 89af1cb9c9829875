package server

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/parley-chat/parley/internal/hub"
	"github.com/parley-chat/parley/internal/store"
)

// requireGroupMember is the message-path counterpart of requireGroupAdmin:
// load the group (404), then require current membership (403). Removed
// members lose read access immediately.
func (s *Server) requireGroupMember(w http.ResponseWriter, r *http.Request) (*store.Group, int64, bool) {
	id, _ := identityFrom(r)

	groupID, ok := groupIDFrom(r)
	if !ok {
		fail(w, http.StatusNotFound, "Group not found")
		return nil, id.UserID, false
	}
	group, err := s.store.GroupByID(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Group not found")
			return nil, id.UserID, false
		}
		internalError(w, "loading group", err)
		return nil, id.UserID, false
	}

	isMember, err := s.store.IsMember(r.Context(), group.ID, id.UserID)
	if err != nil {
		internalError(w, "checking membership", err)
		return nil, id.UserID, false
	}
	if !isMember {
		fail(w, http.StatusForbidden, "Not a member of this group")
		return nil, id.UserID, false
	}
	return group, id.UserID, true
}

// persistAndBroadcast appends the message, pushes it to the group room, and
// returns it. The broadcast payload and the HTTP response body are the same
// value, so clients see one shape for both.
func (s *Server) persistAndBroadcast(w http.ResponseWriter, r *http.Request, group *store.Group, userID int64, body, fileURL string) {
	message, err := s.store.CreateMessage(r.Context(), group.ID, userID, body, fileURL)
	if err != nil {
		internalError(w, "persisting message", err)
		return
	}
	s.metrics.MessagesPersisted.Inc()

	s.hub.Broadcast(hub.GroupRoom(group.ID), "new-group-message", message)
	writeJSON(w, http.StatusCreated, message)
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	group, userID, ok := s.requireGroupMember(w, r)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Message == "" {
		fail(w, http.StatusBadRequest, "Message is required")
		return
	}

	s.persistAndBroadcast(w, r, group, userID, req.Message, "")
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	group, _, ok := s.requireGroupMember(w, r)
	if !ok {
		return
	}

	messages, err := s.store.MessagesForGroup(r.Context(), group.ID)
	if err != nil {
		internalError(w, "listing messages", err)
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	group, userID, ok := s.requireGroupMember(w, r)
	if !ok {
		return
	}

	// MaxBytesReader enforces the cap; ParseMultipartForm alone only bounds
	// in-memory buffering and would spill oversized bodies to disk.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(w, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
			return
		}
		fail(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}
	caption := r.FormValue("caption")

	file, header, err := r.FormFile("file")
	if err != nil {
		if caption == "" {
			fail(w, http.StatusBadRequest, "A file or caption is required")
			return
		}
		// Caption-only upload degrades to a plain text message.
		s.persistAndBroadcast(w, r, group, userID, caption, "")
		return
	}
	defer file.Close()

	key := uuid.NewString() + filepath.Ext(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fileURL, err := s.objects.Put(r.Context(), key, contentType, file, header.Size)
	if err != nil {
		internalError(w, "storing upload", err)
		return
	}

	s.persistAndBroadcast(w, r, group, userID, caption, fileURL)
}
