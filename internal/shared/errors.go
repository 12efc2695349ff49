package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks caller input that failed validation. Nothing is written.
	ErrValidation = errors.New("validation failed")
	// ErrPeriodLocked indicates the governing financial period is locked or inactive.
	ErrPeriodLocked = errors.New("financial period locked")
	// ErrPeriodNotFound indicates no financial period covers the requested date.
	ErrPeriodNotFound = errors.New("financial period not found")
	// ErrUnauthorized indicates the actor lacks the privilege for the action.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict indicates a concurrent modification of the same record.
	ErrConflict = errors.New("concurrent modification")
	// ErrPostingInvariant signals a broken engine invariant (unbalanced voucher,
	// inconsistent supersession). It is a defect, never bad input.
	ErrPostingInvariant = errors.New("posting invariant violated")
)

// Validationf wraps ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Invariantf wraps ErrPostingInvariant with a formatted reason.
func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPostingInvariant, fmt.Sprintf(format, args...))
}
