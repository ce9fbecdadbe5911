package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// DB is the storage context shared by the repositories. It is created once
// at startup and closed on shutdown.
type DB struct {
	sql  *sql.DB
	path string
}

// Open prepares the database at path: it creates the parent directory,
// opens the file with WAL journaling and foreign keys enabled, applies the
// schema and makes sure the local user exists. Opening an already
// initialized database is a no-op apart from the connection itself.
func Open(ctx context.Context, path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := buildDSN(path)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store := &DB{sql: db, path: path}

	if err := store.ensureDefaultUser(ctx); err != nil {
		db.Close()
		return nil, err
	}

	slog.InfoContext(ctx, "SQLite database ready", "path", path)
	return store, nil
}

// buildDSN sets the pragmas on every pooled connection.
func buildDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func (d *DB) ensureDefaultUser(ctx context.Context) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, name) VALUES (?, ?)`,
		LocalUserID, LocalUserName)
	if err != nil {
		return fmt.Errorf("ensure default user: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

func (d *DB) Close() error {
	if d.sql != nil {
		return d.sql.Close()
	}
	return nil
}
