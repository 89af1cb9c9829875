package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/hub"
	"github.com/parley-chat/parley/internal/store"
)

func groupIDFrom(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r)

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		fail(w, http.StatusBadRequest, "Group name is required")
		return
	}

	group, err := s.store.CreateGroup(r.Context(), req.Name, id.UserID)
	if err != nil {
		internalError(w, "creating group", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Group created",
		"group":   group,
	})
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r)

	groups, err := s.store.GroupsForUser(r.Context(), id.UserID)
	if err != nil {
		internalError(w, "listing groups", err)
		return
	}
	if groups == nil {
		groups = []store.GroupWithRole{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// requireGroupAdmin runs the shared front half of every membership-mutating
// handler: load the group (404), then check the requester's admin bit (403).
func (s *Server) requireGroupAdmin(w http.ResponseWriter, r *http.Request, forbidden string) (*store.Group, auth.Identity, bool) {
	id, _ := identityFrom(r)

	groupID, ok := groupIDFrom(r)
	if !ok {
		fail(w, http.StatusNotFound, "Group not found")
		return nil, id, false
	}
	group, err := s.store.GroupByID(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, "Group not found")
			return nil, id, false
		}
		internalError(w, "loading group", err)
		return nil, id, false
	}

	isAdmin, err := s.store.IsAdmin(r.Context(), group.ID, id.UserID)
	if err != nil {
		internalError(w, "checking admin", err)
		return nil, id, false
	}
	if !isAdmin {
		fail(w, http.StatusForbidden, forbidden)
		return nil, id, false
	}
	return group, id, true
}

type memberRequest struct {
	UserID int64 `json:"userId"`
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	group, _, ok := s.requireGroupAdmin(w, r, "Only admins can add members")
	if !ok {
		return
	}

	var req memberRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 {
		fail(w, http.StatusBadRequest, "userId is required")
		return
	}

	if _, err := s.store.UserByID(r.Context(), req.UserID); err != nil {
		storeError(w, err, "loading user", "User not found", "")
		return
	}

	if _, err := s.store.AddMember(r.Context(), group.ID, req.UserID); err != nil {
		storeError(w, err, "adding member", "User not found", "User already in group")
		return
	}

	s.hub.Broadcast(hub.UserRoom(req.UserID), "added-to-group", map[string]any{
		"groupId": group.ID,
		"message": "You have been added to the group.",
	})
	s.hub.Broadcast(hub.GroupRoom(group.ID), "group-members-updated", map[string]any{
		"groupId": group.ID,
		"action":  "add",
		"userId":  req.UserID,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "User added to group"})
}

func (s *Server) handleMakeAdmin(w http.ResponseWriter, r *http.Request) {
	group, _, ok := s.requireGroupAdmin(w, r, "Only admins can make others admins")
	if !ok {
		return
	}

	var req memberRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 {
		fail(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := s.store.SetAdmin(r.Context(), group.ID, req.UserID, true); err != nil {
		storeError(w, err, "making admin", "User is not a member of this group", "")
		return
	}

	s.hub.Broadcast(hub.UserRoom(req.UserID), "updated-group-admin", map[string]any{
		"groupId": group.ID,
		"isAdmin": true,
		"message": "You have been made an admin in the group.",
	})
	s.hub.Broadcast(hub.GroupRoom(group.ID), "group-members-updated", map[string]any{
		"groupId": group.ID,
		"action":  "makeAdmin",
		"userId":  req.UserID,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "User made admin"})
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	group, _, ok := s.requireGroupAdmin(w, r, "Only admins can remove members")
	if !ok {
		return
	}

	var req memberRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 {
		fail(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := s.store.RemoveMember(r.Context(), group.ID, req.UserID); err != nil {
		storeError(w, err, "removing member", "User is not a member of this group", "")
		return
	}

	// Revoke live access too: the removed user's connections stop receiving
	// the group's broadcasts immediately.
	s.hub.DropUserFromRoom(hub.GroupRoom(group.ID), req.UserID)

	s.hub.Broadcast(hub.UserRoom(req.UserID), "removed-from-group", map[string]any{
		"groupId": group.ID,
		"message": "You have been removed from the group.",
	})
	s.hub.Broadcast(hub.GroupRoom(group.ID), "group-members-updated", map[string]any{
		"groupId": group.ID,
		"action":  "remove",
		"userId":  req.UserID,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "User removed from group"})
}
