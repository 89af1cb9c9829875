package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Group is a chat group row.
type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedBy int64     `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Membership records a user's participation and admin status in a group.
type Membership struct {
	ID      int64 `json:"id"`
	UserID  int64 `json:"userId"`
	GroupID int64 `json:"groupId"`
	IsAdmin bool  `json:"isAdmin"`
}

// GroupWithRole is the projection returned when listing a user's groups.
type GroupWithRole struct {
	Group
	IsAdmin bool `json:"isAdmin"`
}

// CreateGroup inserts the group and the creator's admin membership in one
// transaction, so a group can never exist without an admin.
func (s *Store) CreateGroup(ctx context.Context, name string, creatorID int64) (*Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	ts := now.Format(timeLayout)

	var id int64
	err = tx.QueryRowContext(ctx, s.rebind(
		`INSERT INTO chat_groups (name, created_by, created_at) VALUES (?, ?, ?) RETURNING id`),
		name, creatorID, ts,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO group_members (user_id, group_id, is_admin, created_at) VALUES (?, ?, ?, ?)`),
		creatorID, id, true, ts,
	); err != nil {
		return nil, fmt.Errorf("create group admin membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return &Group{ID: id, Name: name, CreatedBy: creatorID, CreatedAt: now}, nil
}

// GroupByID fetches a group or ErrNotFound.
func (s *Store) GroupByID(ctx context.Context, id int64) (*Group, error) {
	var (
		g         Group
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, name, created_by, created_at FROM chat_groups WHERE id = ?`), id,
	).Scan(&g.ID, &g.Name, &g.CreatedBy, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("group by id: %w", err)
	}
	g.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &g, nil
}

// IsAdmin reports whether the user holds an admin membership in the group.
func (s *Store) IsAdmin(ctx context.Context, groupID, userID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(*) FROM group_members WHERE group_id = ? AND user_id = ? AND is_admin = ?`),
		groupID, userID, true,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("is admin: %w", err)
	}
	return n > 0, nil
}

// IsMember reports whether the user belongs to the group.
func (s *Store) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(*) FROM group_members WHERE group_id = ? AND user_id = ?`),
		groupID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return n > 0, nil
}

// AddMember inserts a non-admin membership. A duplicate (user, group) pair
// yields ErrConflict, including when the insert loses a race: the unique
// constraint is the safety net.
func (s *Store) AddMember(ctx context.Context, groupID, userID int64) (*Membership, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO group_members (user_id, group_id, is_admin, created_at)
		 VALUES (?, ?, ?, ?) RETURNING id`),
		userID, groupID, false, time.Now().UTC().Format(timeLayout),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("add member: %w", err)
	}
	return &Membership{ID: id, UserID: userID, GroupID: groupID, IsAdmin: false}, nil
}

// SetAdmin flips the admin flag on an existing membership; ErrNotFound when
// the user is not a member.
func (s *Store) SetAdmin(ctx context.Context, groupID, userID int64, isAdmin bool) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE group_members SET is_admin = ? WHERE group_id = ? AND user_id = ?`),
		isAdmin, groupID, userID)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveMember destroys a membership; ErrNotFound when none exists.
func (s *Store) RemoveMember(ctx context.Context, groupID, userID int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`),
		groupID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GroupsForUser lists every group the user belongs to together with their
// admin flag in that group.
func (s *Store) GroupsForUser(ctx context.Context, userID int64) ([]GroupWithRole, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT g.id, g.name, g.created_by, g.created_at, m.is_admin
		 FROM chat_groups g JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = ? ORDER BY g.id`), userID)
	if err != nil {
		return nil, fmt.Errorf("groups for user: %w", err)
	}
	defer rows.Close()

	var groups []GroupWithRole
	for rows.Next() {
		var (
			gr        GroupWithRole
			createdAt string
		)
		if err := rows.Scan(&gr.ID, &gr.Name, &gr.CreatedBy, &createdAt, &gr.IsAdmin); err != nil {
			return nil, fmt.Errorf("groups for user: %w", err)
		}
		gr.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		groups = append(groups, gr)
	}
	return groups, rows.Err()
}

// AdminCount returns the number of admin memberships in a group.
func (s *Store) AdminCount(ctx context.Context, groupID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(*) FROM group_members WHERE group_id = ? AND is_admin = ?`),
		groupID, true,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("admin count: %w", err)
	}
	return n, nil
}
