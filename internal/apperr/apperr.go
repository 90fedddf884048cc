// Package apperr defines the error kinds surfaced by the negotiation service.
//
// Every failure a caller can act on is an *Error carrying a Kind. Anything
// else (I/O, driver failures) is an internal error and is wrapped with
// fmt.Errorf as usual.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind string

const (
	Validation    Kind = "validation"
	NotFound      Kind = "not_found"
	Forbidden     Kind = "forbidden"
	Conflict      Kind = "conflict"
	Precondition  Kind = "precondition"
	DataIntegrity Kind = "data_integrity"
)

// Error is a classified error with a human readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: Conflict}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == ""
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Validationf returns a Validation error.
func Validationf(format string, args ...interface{}) *Error {
	return newf(Validation, format, args...)
}

// NotFoundf returns a NotFound error.
func NotFoundf(format string, args ...interface{}) *Error {
	return newf(NotFound, format, args...)
}

// Forbiddenf returns a Forbidden error.
func Forbiddenf(format string, args ...interface{}) *Error {
	return newf(Forbidden, format, args...)
}

// Conflictf returns a Conflict error.
func Conflictf(format string, args ...interface{}) *Error {
	return newf(Conflict, format, args...)
}

// Preconditionf returns a Precondition error.
func Preconditionf(format string, args ...interface{}) *Error {
	return newf(Precondition, format, args...)
}

// DataIntegrityf returns a DataIntegrity error.
func DataIntegrityf(format string, args ...interface{}) *Error {
	return newf(DataIntegrity, format, args...)
}

// Wrap classifies cause under kind with a message.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
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
