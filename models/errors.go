package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy. Services wrap these with
// context via fmt.Errorf("...: %w", err); callers branch with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidState        = errors.New("operation not allowed in current state")
	ErrSelfAcceptance      = errors.New("cannot accept your own bet")
	ErrMatchNotCompleted   = errors.New("match is not completed")
	ErrWinnerUndetermined  = errors.New("no winner determinable from match outcome")
	ErrMatchUnresolved     = errors.New("match could not be resolved from any provider")
	ErrProviderUnavailable = errors.New("all match data providers failed")
)

// ValidationError indicates malformed caller input, such as a non-positive
// stake. It is surfaced directly to the caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a field
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
