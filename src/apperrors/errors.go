// backend/src/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation to callers. Row-level validation
// problems are accumulated, never fatal; integrity violations are treated as
// security faults and logged distinctly.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindIntegrity  Kind = "integrity"
	KindUpstream   Kind = "upstream"
)

// Error is a classified application error with a stable reason code.
// The Reason is what callers see; internal detail stays in the wrapped error.
type Error struct {
	Kind   Kind
	Reason string
	err    error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.err }

// New creates a classified error with a reason code.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap attaches a cause. The cause is never surfaced to API callers.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, err: err}
}

// Reason codes surfaced to callers.
const (
	ReasonInvalidDate            = "InvalidDate"
	ReasonAmbiguousAmount        = "AmbiguousAmount"
	ReasonInvalidAmount          = "InvalidAmount"
	ReasonMissingRequiredColumn  = "MissingRequiredColumn"
	ReasonUnparsableFile         = "UnparsableFile"
	ReasonEmptyFile              = "EmptyFile"
	ReasonNoTransactionsImported = "NoTransactionsImported"
	ReasonAlreadyMatched         = "AlreadyMatched"
	ReasonCrossBusiness          = "CrossBusinessViolation"
	ReasonStorageFailure         = "StorageFailure"
	ReasonInvalidTransition      = "InvalidStatusTransition"
)

// Common sentinel instances. Compare with errors.Is.
var (
	ErrAlreadyMatched        = New(KindConflict, ReasonAlreadyMatched)
	ErrCrossBusiness         = New(KindIntegrity, ReasonCrossBusiness)
	ErrNotFound              = New(KindNotFound, "NotFound")
	ErrMissingRequiredColumn = New(KindValidation, ReasonMissingRequiredColumn)
)

// Is lets sentinel instances match wrapped copies that carry a cause,
// so Wrap(KindConflict, ReasonAlreadyMatched, err) matches ErrAlreadyMatched.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

// KindOf extracts the Kind from any error, or empty if unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonOf extracts the stable reason code from any error.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
