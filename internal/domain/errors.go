package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Compare with errors.Is; the client-facing text lives on *Error.
var (
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrInvalidState           = errors.New("invalid state")
	ErrInsufficientCollateral = errors.New("insufficient collateral")
	ErrNotEligible            = errors.New("not eligible")
	ErrConflict               = errors.New("concurrent modification")
	ErrPersistence            = errors.New("persistence error")
)

// Error is a classified domain failure. Message is safe to return to clients.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Is lets errors.Is match both the kind and any wrapped cause.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *Error {
	return newError(ErrValidation, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(ErrNotFound, format, args...)
}

func InvalidState(format string, args ...interface{}) *Error {
	return newError(ErrInvalidState, format, args...)
}

func InsufficientCollateral(format string, args ...interface{}) *Error {
	return newError(ErrInsufficientCollateral, format, args...)
}

func NotEligible(format string, args ...interface{}) *Error {
	return newError(ErrNotEligible, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newError(ErrConflict, format, args...)
}

// Persistence wraps a storage failure. The cause is kept for logs and for
// non-production error bodies.
func Persistence(op string, err error) *Error {
	return &Error{Kind: ErrPersistence, Message: op + " failed", Err: err}
}

// IsClientError reports whether err should be answered with a 4xx status.
func IsClientError(err error) bool {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrInvalidState, ErrInsufficientCollateral, ErrNotEligible, ErrConflict} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Message returns the client-facing text of a classified error, or the raw
// error text otherwise.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
