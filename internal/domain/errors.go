package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable means local persistence could not be initialized.
	// The agent keeps working remote-only.
	ErrStoreUnavailable = errors.New("local store unavailable")
	ErrCacheRead        = errors.New("cache read failed")
	ErrCacheWrite       = errors.New("cache write failed")
	// ErrTransport means the remote service could not be reached.
	ErrTransport            = errors.New("remote unreachable")
	ErrApplication          = errors.New("remote rejected request")
	ErrQueueCeilingExceeded = errors.New("queue item exceeded retry ceiling")
	ErrNotFound             = errors.New("not found")
	ErrDrainInProgress      = errors.New("drain already in progress")
)

// ApplicationError is a request the server received and rejected.
type ApplicationError struct {
	Procedure  string
	Code       string
	Message    string
	HTTPStatus int
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Procedure, e.Message, e.Code)
}

func (e *ApplicationError) Is(target error) bool {
	return target == ErrApplication
}

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	return err != nil && !errors.Is(err, ErrApplication) && !errors.Is(err, ErrNotFound)
}
