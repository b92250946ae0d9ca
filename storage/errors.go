package storage

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownBackend = errors.New("unknown storage backend")
	ErrClosed         = errors.New("storage is closed")
	ErrMissingDSN     = errors.New("storage dsn is required")
)

// Error reports a failure to read or write the backing store.
type Error struct {
	Backend Backend
	Op      string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s storage: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(b Backend, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Backend: b, Op: op, Err: err}
}
