package errs

import (
    "errors"
    "fmt"
)

// Common sentinel errors for cross-layer signaling.
var (
    ErrNotFound = errors.New("not_found")
    // ErrNotFoundOrVoided is returned by edit/void when no current, non-voided
    // version exists in the caller's organization.
    ErrNotFoundOrVoided = errors.New("not_found_or_voided")
    ErrConflict         = errors.New("conflict")
    ErrInvalid          = errors.New("validation_error")
    // ErrInvalidStatusTransition indicates a bill status change outside the allowed table.
    ErrInvalidStatusTransition = errors.New("invalid_status_transition")
    ErrAlreadyVoided           = errors.New("already_voided")
    ErrAlreadyReconciled       = errors.New("already_reconciled")
    ErrCannotCancelPaidBill    = errors.New("cannot_cancel_paid_bill")
    // ErrConcurrentModification signals a lost optimistic close; callers may retry.
    ErrConcurrentModification = errors.New("concurrent_modification")
)

// ValidationError describes malformed input on a single field.
type ValidationError struct {
    Field   string
    Message string
}

func (e *ValidationError) Error() string {
    if e.Field == "" { return e.Message }
    return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
    return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsRetryable reports whether the operation may succeed if repeated.
func IsRetryable(err error) bool {
    return errors.Is(err, ErrConcurrentModification)
}

// Code returns the stable machine-readable code for err, or "" for unknown errors.
func Code(err error) string {
    for _, s := range []error{
        ErrNotFoundOrVoided, ErrNotFound, ErrInvalidStatusTransition, ErrAlreadyVoided,
        ErrAlreadyReconciled, ErrCannotCancelPaidBill, ErrConcurrentModification,
        ErrInvalid, ErrConflict,
    } {
        if errors.Is(err, s) { return s.Error() }
    }
    return ""
}
