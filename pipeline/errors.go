package pipeline

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest is returned when a request fails validation.
var ErrInvalidRequest = errors.New("invalid request")

// ConflictError reports that the registry changed under a parse pass twice
// in a row. The registry is unchanged; the caller may retry.
type ConflictError struct {
	UserID  string
	GraphID string
	Err     error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("registry conflict for user %s graph %s: %v", e.UserID, e.GraphID, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// Retryable always reports true: a conflict never leaves partial state.
func (e *ConflictError) Retryable() bool {
	return true
}
