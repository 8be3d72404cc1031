// Package sqlite implements the credential store on a SQLite database. It
// behaves exactly like the file backend: passwords are stored opaque and
// compared byte-exact.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/avolkov/linechat-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username   TEXT PRIMARY KEY,
	password   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store is the SQLite-backed credential store.
type Store struct {
	db *sql.DB
}

// New opens (and if needed bootstraps) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Validate reports whether a record with exactly this username and password exists.
func (s *Store) Validate(ctx context.Context, username, password string) (bool, error) {
	query := `SELECT 1 FROM users WHERE username = ? AND password = ?`

	var one int
	err := s.db.QueryRowContext(ctx, query, username, password).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user: %w", err)
	}
	return true, nil
}

// Register inserts a new record; the primary key keeps usernames unique.
func (s *Store) Register(ctx context.Context, username, password string) error {
	if err := store.CheckUsername(username); err != nil {
		return err
	}

	query := `INSERT INTO users (username, password) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, username, password); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return store.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}
