package session

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidID         = errors.New("session: invalid session id")
	ErrInvalidExpiry     = errors.New("session: invalid expiry value")
	ErrNoConnection      = errors.New("session: no connection configured")
	ErrInvalidIdentifier = errors.New("session: invalid table or column name")
	ErrUnknownDialect    = errors.New("session: unknown sql dialect")
)

// StoreError wraps a failure reported by the backing database.
type StoreError struct {
	Op  string
	ID  string
	Err error
}

func (e *StoreError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("session: %s %q: %v", e.Op, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// CorruptSessionError is returned by Load when a stored payload cannot be decoded.
type CorruptSessionError struct {
	ID  string
	Err error
}

func (e *CorruptSessionError) Error() string {
	return fmt.Sprintf("session: corrupt payload for %q: %v", e.ID, e.Err)
}

func (e *CorruptSessionError) Unwrap() error { return e.Err }
