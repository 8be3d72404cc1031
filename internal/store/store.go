package store

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUserExists is returned by Register when the username is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned by Register when the username would
	// break the line framing of the protocol or the users file.
	ErrInvalidUsername = errors.New("invalid username")
)

// Store persists username/password credentials. Passwords are opaque values
// compared byte-exact. Implementations must be safe for concurrent use by
// many sessions; Register is the only mutation.
type Store interface {
	// Validate reports whether a record with exactly this username and
	// password exists. It has no side effects.
	Validate(ctx context.Context, username, password string) (bool, error)

	// Register appends a new credential record. It returns ErrUserExists
	// when the username is already present, leaving the stored record
	// untouched.
	Register(ctx context.Context, username, password string) error

	// Close releases underlying resources.
	Close() error
}

// CheckUsername rejects names that cannot survive the wire or storage
// framing: empty names, names with whitespace (the roster is
// space-separated) and names containing ':' (the users-file separator).
func CheckUsername(username string) error {
	if username == "" {
		return ErrInvalidUsername
	}
	if strings.ContainsAny(username, ": \t") {
		return ErrInvalidUsername
	}
	return nil
}
