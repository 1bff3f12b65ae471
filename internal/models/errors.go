package models

import (
	"errors"
	"fmt"
)

var (
	// ErrSelfRequest indicates a user attempted to send a swap request to themselves.
	ErrSelfRequest = errors.New("cannot send a swap request to yourself")
	// ErrNotAuthorized indicates the actor does not own the resource for the attempted operation.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrInvalidTransition indicates the request is not in a state that permits the operation.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound indicates the referenced request or profile does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrUpstreamUnavailable indicates a store or network failure; callers may retry.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ValidationError describes an invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Upstream wraps a store failure so it matches ErrUpstreamUnavailable while
// keeping the cause in the chain.
func Upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, err)
}
