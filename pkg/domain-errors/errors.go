// Package domainerrors provides typed domain errors with stable codes.
//
// Services return these so transports can map them to protocol responses
// without inspecting error strings. Stores return sentinel errors
// (pkg/platform/sentinel) and services translate them into domain errors at
// the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and callers that
// branch on failure kind.
type Code string

const (
	// CodeInvalidInput marks malformed or missing caller input.
	CodeInvalidInput Code = "invalid_input"
	// CodeUnauthorized marks a caller acting outside their granted turn,
	// e.g. an approver whose step is not pending.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks a caller lacking the role for an operation.
	CodeForbidden Code = "forbidden"
	// CodeNotFound marks a reference to an entity that does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a write that lost to a concurrent or prior write.
	CodeConflict Code = "conflict"
	// CodeInvariantViolation marks state that breaks a domain invariant,
	// e.g. a policy step with an unknown kind.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal marks unexpected infrastructure failure.
	CodeInternal Code = "internal"
)

// Error is a domain error carrying a code, a message safe to surface, and an
// optional wrapped cause.
type Error struct {
	code Code
	msg  string
	err  error
}

// New builds a domain error with no underlying cause.
func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a domain error around an underlying cause.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{code: code, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Code returns the error's classification code.
func (e *Error) Code() Code { return e.code }

// Message returns the surface-safe message without the wrapped cause.
func (e *Error) Message() string { return e.msg }

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the domain error code from err, or CodeInternal when err is
// not a domain error.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.code
	}
	return CodeInternal
}
