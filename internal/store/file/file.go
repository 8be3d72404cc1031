// Package file implements the credential store as a flat text file, one
// "username:password" record per line, append-only.
package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/avolkov/linechat-server/internal/store"
)

// Store is the file-backed credential store. Every Validate re-reads the
// file, so records added out of band (or by another process) are picked up;
// a single mutation lock keeps the append safe against concurrent readers.
type Store struct {
	mu   sync.Mutex
	path string
}

// New opens the store at path, creating an empty users file if needed.
func New(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open users file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close users file: %w", err)
	}
	return &Store{path: path}, nil
}

// Validate reports whether a record with exactly this username and password exists.
func (s *Store) Validate(_ context.Context, username, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scan(func(name, pass string) bool {
		return name == username && pass == password
	})
}

// Register appends a new record unless the username is already present.
func (s *Store) Register(_ context.Context, username, password string) error {
	if err := store.CheckUsername(username); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.scan(func(name, _ string) bool {
		return name == username
	})
	if err != nil {
		return err
	}
	if exists {
		return store.ErrUserExists
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open users file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s:%s\n", username, password); err != nil {
		f.Close()
		return fmt.Errorf("append user: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("flush users file: %w", err)
	}
	return nil
}

// Close is a no-op; the file is only held open during individual calls.
func (s *Store) Close() error { return nil }

// scan walks the users file and reports whether match holds for any record.
// Lines that do not split into name:password are skipped.
func (s *Store) scan(match func(name, pass string) bool) (bool, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return false, fmt.Errorf("open users file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name, pass, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		if match(name, pass) {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("read users file: %w", err)
	}
	return false, nil
}
