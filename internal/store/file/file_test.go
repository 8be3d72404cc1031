package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/avolkov/linechat-server/internal/store"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "users.txt")
	s, err := New(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s, path
}

func TestRegisterThenValidate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Register(ctx, "alice", "secret"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	ok, err := s.Validate(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected credentials to validate")
	}

	ok, err = s.Validate(ctx, "alice", "wrong")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if ok {
		t.Fatalf("wrong password validated")
	}
}

func TestValidateUnknownUser(t *testing.T) {
	s, _ := newTestStore(t)

	ok, err := s.Validate(context.Background(), "nobody", "pw")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if ok {
		t.Fatalf("unknown user validated")
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	if err := s.Register(ctx, "alice", "secret"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// Same username must fail even with a different password.
	err := s.Register(ctx, "alice", "other")
	if !errors.Is(err, store.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read users file: %v", err)
	}
	if string(data) != "alice:secret\n" {
		t.Fatalf("duplicate signup touched the stored record: %q", data)
	}
}

func TestRegisterRejectsUnsafeUsernames(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "a:b", "a b", "tab\tname"} {
		if err := s.Register(ctx, name, "pw"); !errors.Is(err, store.ErrInvalidUsername) {
			t.Fatalf("Register(%q): expected ErrInvalidUsername, got %v", name, err)
		}
	}
}

func TestValidatePicksUpExternalAppends(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open users file: %v", err)
	}
	if _, err := f.WriteString("bob:hunter2\n"); err != nil {
		t.Fatalf("append record: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close users file: %v", err)
	}

	ok, err := s.Validate(ctx, "bob", "hunter2")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !ok {
		t.Fatalf("externally appended record not seen")
	}
}

func TestScanSkipsMalformedLines(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	if err := os.WriteFile(path, []byte("garbage line\nalice:secret\n"), 0o600); err != nil {
		t.Fatalf("seed users file: %v", err)
	}

	ok, err := s.Validate(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !ok {
		t.Fatalf("record after malformed line not found")
	}
}
