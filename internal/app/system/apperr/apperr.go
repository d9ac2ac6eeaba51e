// Package apperr defines the typed failures mass actions signal to the
// HTTP boundary.
//
// Kinds, not status codes, cross package boundaries; the feature layer
// maps kinds to transport codes in one place. NotFound deliberately
// covers both "no such mass" and "actor is not an administrator of this
// mass" so unauthorized administrators cannot probe for existence.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain failure.
type Kind string

const (
	KindValidation Kind = "validation" // malformed or semantically invalid input
	KindForbidden  Kind = "forbidden"  // actor's role does not permit the action
	KindNotFound   Kind = "not_found"  // missing record, or no administrative relationship
	KindConflict   Kind = "conflict"   // legal request, state forbids it (or lost race)
	KindInternal   Kind = "internal"   // unexpected storage/collaborator failure
)

// Error is a domain failure with a stable machine-readable kind and a
// human-readable message. Internal details stay in the wrapped cause
// and are never rendered to clients.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match on kind: errors.Is(err, apperr.Conflict("")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && (t.Message == "" || t.Message == e.Message)
}

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }
func Forbidden(msg string) *Error  { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) *Error   { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error   { return &Error{Kind: KindConflict, Message: msg} }

// Internal wraps an unexpected collaborator failure. The message shown
// to callers is generic; cause is preserved for logs.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", cause: cause}
}

// Wrap attaches a cause to a typed error without changing its kind or
// message.
func Wrap(e *Error, cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, cause: cause}
}

// KindOf extracts the kind from any error chain. Unclassified errors
// report KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message for an error chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps a kind to its transport status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
