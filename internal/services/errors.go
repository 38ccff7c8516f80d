package services

import (
	"errors"
	"fmt"

	"github.com/tutorhub/apiserver/internal/store"
)

// Failure kinds. Every *Error unwraps to exactly one of these, so callers can
// branch with errors.Is(err, services.ErrConflict).
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state")
	ErrPaymentFailed   = errors.New("payment failed")
)

// Error is a typed failure with a human-readable message and optional payload.
type Error struct {
	Kind    error
	Message string
	Details any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Details: details}
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) *Error {
	return newError(ErrValidation, format, args...)
}

func forbidden(format string, args ...any) *Error {
	return newError(ErrForbidden, format, args...)
}

func notFound(format string, args ...any) *Error {
	return newError(ErrNotFound, format, args...)
}

// notFoundOr maps store.ErrNotFound to a NotFound failure and wraps anything else.
func notFoundOr(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound("%s not found", what)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

func isStoreNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
