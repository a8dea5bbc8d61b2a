package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by detail lookups with zero matching rows. It is
// an empty/absent state for callers, not a transport failure.
var ErrNotFound = errors.New("tender not found")

// ErrInvalidCursor marks a cursor that no longer parses against the active
// sort. It is fatal to the one request that carried it; callers restart
// pagination from the first page.
var ErrInvalidCursor = errors.New("invalid cursor")

// QueryFailedError wraps a transport or backend error raised during a page
// fetch or detail lookup. The underlying message is surfaced to the user
// and the operation is user-retriable; no retries happen at this layer.
type QueryFailedError struct {
	Op  string
	Err error
}

func (e *QueryFailedError) Error() string {
	return fmt.Sprintf("query failed: %s: %v", e.Op, e.Err)
}

func (e *QueryFailedError) Unwrap() error { return e.Err }

func queryFailed(op string, err error) error {
	return &QueryFailedError{Op: op, Err: err}
}
