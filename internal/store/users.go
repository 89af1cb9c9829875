package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const timeLayout = time.RFC3339Nano

// User is an account row. The password hash never serializes.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"number"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CreateUser inserts a new account. Duplicate email or phone number yields
// ErrConflict.
func (s *Store) CreateUser(ctx context.Context, name, email, phone, passwordHash string) (*User, error) {
	now := time.Now().UTC()
	var emailVal any
	if email != "" {
		emailVal = email
	}

	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO users (name, email, phone, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		name, emailVal, phone, passwordHash, now.Format(timeLayout),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &User{ID: id, Name: name, Email: email, Phone: phone, PasswordHash: passwordHash, CreatedAt: now}, nil
}

// UserByEmail looks an account up by its contact email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, name, email, phone, password_hash, created_at FROM users WHERE email = ?`), email))
}

// UserByID looks an account up by primary key.
func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, name, email, phone, password_hash, created_at FROM users WHERE id = ?`), id))
}

// SearchUsers returns accounts whose name, email, or phone number contains
// the query, case-insensitively.
func (s *Store) SearchUsers(ctx context.Context, query string) ([]User, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, name, email, phone, password_hash, created_at FROM users
		 WHERE lower(name) LIKE ? OR lower(coalesce(email, '')) LIKE ? OR lower(phone) LIKE ?
		 ORDER BY id`),
		pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserRow(row rowScanner) (*User, error) {
	var (
		u         User
		email     sql.NullString
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Name, &email, &u.Phone, &u.PasswordHash, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Email = email.String
	u.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &u, nil
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	return scanUserRow(row)
}
