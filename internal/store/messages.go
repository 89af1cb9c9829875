package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Message is a persisted group message joined with its author's display
// name. The same shape is served over REST and broadcast to the group room.
type Message struct {
	ID        int64     `json:"id"`
	Body      string    `json:"message"`
	FileURL   string    `json:"fileUrl,omitempty"`
	GroupID   int64     `json:"groupId"`
	UserID    int64     `json:"userId"`
	UserName  string    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateMessage appends a message to the group's log and re-reads it joined
// with the author name so callers get the exact payload to serve and
// broadcast.
func (s *Store) CreateMessage(ctx context.Context, groupID, userID int64, body, fileURL string) (*Message, error) {
	var fileVal any
	if fileURL != "" {
		fileVal = fileURL
	}

	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO messages (body, file_url, group_id, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		body, fileVal, groupID, userID, time.Now().UTC().Format(timeLayout),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return s.MessageByID(ctx, id)
}

// MessageByID fetches a single message joined with its author name.
func (s *Store) MessageByID(ctx context.Context, id int64) (*Message, error) {
	m, err := scanMessage(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT m.id, m.body, m.file_url, m.group_id, m.user_id, u.name, m.created_at
		 FROM messages m JOIN users u ON u.id = m.user_id
		 WHERE m.id = ?`), id))
	if err != nil {
		return nil, err
	}
	return m, nil
}

// MessagesForGroup returns the group's full message log in insertion order.
func (s *Store) MessagesForGroup(ctx context.Context, groupID int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT m.id, m.body, m.file_url, m.group_id, m.user_id, u.name, m.created_at
		 FROM messages m JOIN users u ON u.id = m.user_id
		 WHERE m.group_id = ? ORDER BY m.id`), groupID)
	if err != nil {
		return nil, fmt.Errorf("messages for group: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

func scanMessage(row rowScanner) (*Message, error) {
	var (
		m         Message
		fileURL   sql.NullString
		createdAt string
	)
	if err := row.Scan(&m.ID, &m.Body, &fileURL, &m.GroupID, &m.UserID, &m.UserName, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	m.FileURL = fileURL.String
	m.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &m, nil
}
