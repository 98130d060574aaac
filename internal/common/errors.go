// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Read paths return these rather than inventing empty values.
	ErrNotFound = errors.New("not found")

	// ErrConflict covers duplicate predictions and optimistic-concurrency
	// failures that survived a retry.
	ErrConflict = errors.New("conflict")

	// ErrUpstreamUnavailable indicates the inference collaborator failed or
	// timed out. Callers must offer manual entry, never a guessed category.
	ErrUpstreamUnavailable = errors.New("categorization unavailable")
)

// ValidationError reports malformed input: wrong vector dimensionality,
// out-of-range thresholds, empty bulk ID sets.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a validation error for a named field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
