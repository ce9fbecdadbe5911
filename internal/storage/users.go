package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	// LocalUserID is the single user every month belongs to.
	LocalUserID   int64 = 1
	LocalUserName       = "Local User"
)

// sqliteTimeLayout is the format of CURRENT_TIMESTAMP.
const sqliteTimeLayout = "2006-01-02 15:04:05"

type User struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}

// GetUser returns the user with the given id, or nil if it does not exist.
func (d *DB) GetUser(ctx context.Context, id int64) (*User, error) {
	var (
		u         User
		email     sql.NullString
		createdAt string
	)
	err := d.sql.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	u.Email = email.String
	u.CreatedAt = parseTimestamp(createdAt)
	return &u, nil
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(sqliteTimeLayout, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
