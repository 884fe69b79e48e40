// Package apperror is the error taxonomy shared by the coordination services.
// Provider and store failures are converted to one of these kinds at the
// operation boundary; nothing below it leaks to callers.
package apperror

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindForbidden
	KindNotFound
	KindSecondary
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindSecondary:
		return "rollback_failed"
	default:
		return "internal_error"
	}
}

// Error is a classified failure. Reason is machine readable, Message is for humans.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and, when set, by reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

var (
	ErrUsernameConflict = &Error{Kind: KindValidation, Reason: "username_not_available", Message: "username is not available"}
	ErrEmailConflict    = &Error{Kind: KindValidation, Reason: "email_not_available", Message: "email is not available"}

	// Kind-only sentinels for errors.Is checks.
	ErrValidation = &Error{Kind: KindValidation}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrInternal   = &Error{Kind: KindInternal}
)

func Validation(reason, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func Conflict(reason, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(reason, format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func NotFound(reason, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps cause as an internal error with a diagnostic message.
func Internal(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf classifies err; unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var sec *SecondaryError
	if errors.As(err, &sec) {
		return KindSecondary
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the machine readable reason of a classified error.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// SecondaryError reports that compensation failed after a primary failure.
// The cross-system state may be inconsistent and needs operator attention.
type SecondaryError struct {
	Primary  error
	Rollback *multierror.Error
}

// Secondary builds a SecondaryError; it returns nil when no rollback failed.
func Secondary(primary error, rollback *multierror.Error) error {
	if rollback.ErrorOrNil() == nil {
		return nil
	}
	return &SecondaryError{Primary: primary, Rollback: rollback}
}

func (e *SecondaryError) Error() string {
	return fmt.Sprintf("%v (rollback failed: %v)", e.Primary, e.Rollback.ErrorOrNil())
}

// Unwrap exposes both the primary error and every rollback failure.
func (e *SecondaryError) Unwrap() []error {
	out := []error{e.Primary}
	if e.Rollback != nil {
		out = append(out, e.Rollback.Errors...)
	}
	return out
}
