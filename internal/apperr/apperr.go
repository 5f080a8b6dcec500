// Package apperr carries the typed failures returned by the managers.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindInvalidState    Kind = "invalid_state"
	KindRateLimited     Kind = "rate_limited"
	KindInternal        Kind = "internal"
)

// FieldErrors maps an input field to its messages.
type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

type Error struct {
	Kind    Kind
	Message string
	Fields  FieldErrors
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status is the HTTP status the kind maps to.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindInvalidState:
		return fiber.StatusBadRequest
	case KindUnauthenticated:
		return fiber.StatusUnauthorized
	case KindForbidden:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	case KindRateLimited:
		return fiber.StatusTooManyRequests
	}
	return fiber.StatusInternalServerError
}

func Validation(fields FieldErrors) *Error {
	return &Error{Kind: KindValidation, Message: "Validation error", Fields: fields}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func InvalidState(msg string) *Error {
	return &Error{Kind: KindInvalidState, Message: msg}
}

func RateLimited(msg string) *Error {
	return &Error{Kind: KindRateLimited, Message: msg}
}

// Internal wraps an infrastructure failure; the message shown to callers stays opaque.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extracts the *Error from err, wrapping anything else as Internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
