package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrStaleState indicates a conditional write lost because the record no
	// longer holds the expected state.
	ErrStaleState = errors.New("record state changed")
)
