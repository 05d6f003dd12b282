package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input rejected before any I/O.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrNotFound marks a referenced document that does not exist.
	ErrNotFound = errors.New("accounting: not found")
	// ErrInactiveAccount marks a posting against a deactivated account.
	ErrInactiveAccount = errors.New("accounting: account inactive")
	// ErrTransient marks storage conflicts or outages the caller may retry.
	ErrTransient = errors.New("accounting: transient failure")
	// ErrPartialCompletion marks a committed document whose journal posting is still pending.
	ErrPartialCompletion = errors.New("accounting: partially completed")

	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrNoLines indicates an empty line list.
	ErrNoLines = errors.New("accounting: journal requires at least one line")
	// ErrIdempotencyMismatch indicates a key reused with a different payload.
	ErrIdempotencyMismatch = errors.New("accounting: idempotency key reused with different payload")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = errors.New("accounting: account mapping not found")
)

// ValidationError describes rejected input.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

// Validation builds a ValidationError for field.
func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Validationf wraps a sentinel cause into a ValidationError.
func Validationf(cause error, field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...), Err: cause}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "accounting: invalid input: " + e.Reason
	}
	return fmt.Sprintf("accounting: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError names the missing document.
type NotFoundError struct {
	Kind string
	ID   string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("accounting: %s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *NotFoundError) Unwrap() error { return e.Err }

// InactiveAccountError names the deactivated account.
type InactiveAccountError struct {
	AccountID string
}

func (e *InactiveAccountError) Error() string {
	return fmt.Sprintf("accounting: account %q is inactive", e.AccountID)
}

func (e *InactiveAccountError) Is(target error) bool { return target == ErrInactiveAccount }

// TransientError wraps a storage failure that exhausted local retries.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("accounting: %s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

func (e *TransientError) Unwrap() error { return e.Err }

// PartialCompletionError reports a committed document whose journal entry is pending.
type PartialCompletionError struct {
	Kind string
	ID   string
	Err  error
}

func (e *PartialCompletionError) Error() string {
	return fmt.Sprintf("accounting: %s %q created, journal posting pending: %v", e.Kind, e.ID, e.Err)
}

func (e *PartialCompletionError) Is(target error) bool { return target == ErrPartialCompletion }

func (e *PartialCompletionError) Unwrap() error { return e.Err }
