// Package errors provides the standardized error vocabulary used across the
// OpenNeuro runtime.
//
// Error is the base type that carries a machine-readable Kind, a human
// detail string, and an optional underlying cause. It implements the error
// and Unwrap interfaces for seamless integration with Go's errors package,
// and maps each Kind to the HTTP status the control surface should return.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable machine-readable error code.
type Kind string

// Error kinds surfaced by the runtime and the control surface.
const (
	KindComponentNotFound Kind = "ComponentNotFound"
	KindInvalidArgs       Kind = "InvalidArgs"
	KindDuplicateID       Kind = "DuplicateId"
	KindNodeNotFound      Kind = "NodeNotFound"
	KindUnknownSlot       Kind = "UnknownSlot"
	KindTypeMismatch      Kind = "TypeMismatch"
	KindDuplicateEdge     Kind = "DuplicateEdge"
	KindCycleDetected     Kind = "CycleDetected"
	KindEdgeNotFound      Kind = "EdgeNotFound"
	KindAlreadyRunning    Kind = "AlreadyRunning"
	KindAlreadySubscribed Kind = "AlreadySubscribed"
	KindChannelClosed     Kind = "ChannelClosed"
)

// Error is a structured runtime error with a stable code and human detail.
type Error struct {
	// Kind identifies the error class for machine consumption.
	Kind Kind

	// Detail is the human-readable message.
	Detail string

	// Cause is the underlying error, if any.
	Cause error
}

// New creates an Error with the given kind and formatted detail.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error with the given kind and cause. The detail is taken
// from the cause.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Detail: cause.Error(), Cause: cause}
}

// Error returns a human-readable representation of the error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap returns the underlying cause, enabling use with errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error kind to the HTTP status code the control
// surface returns for it.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindComponentNotFound, KindNodeNotFound, KindEdgeNotFound:
		return http.StatusNotFound
	case KindDuplicateID, KindAlreadyRunning:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// KindOf extracts the Kind from err, unwrapping as needed. It returns an
// empty Kind when err carries no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
