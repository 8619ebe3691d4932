// Package domainerrors provides coded errors for the service layer.
//
// Stores and infrastructure return sentinel errors (pkg/platform/sentinel);
// services translate those into coded domain errors so transports can map
// them to protocol-level responses without inspecting error strings. The
// code vocabulary deliberately separates authorization failures from
// validation failures: a client facing CodeForbidden needs role escalation,
// one facing CodeBadRequest needs to fix its input.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeBadRequest marks validation failures: zero hash, out-of-range
	// probability, non-positive usage rate, undecodable image.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized marks missing or invalid authentication.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks authorization failures: missing issuer/oracle
	// role, non-owner admin calls.
	CodeForbidden Code = "forbidden"
	// CodeNotFound marks lookups of entries that do not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks duplicate registration of a currently-valid hash.
	CodeConflict Code = "conflict"
	// CodePayloadTooLarge marks oversized uploads.
	CodePayloadTooLarge Code = "payload_too_large"
	// CodeUnsupportedMedia marks uploads with a non-image content type.
	CodeUnsupportedMedia Code = "unsupported_media_type"
	// CodeInvariantViolation marks aggregate invariant breaches caught at
	// construction or transition time.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal marks unexpected infrastructure failures.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Construct via New or Wrap.
type Error struct {
	code    Code
	message string
	cause   error
}

// New returns a coded error with the given message.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap returns a coded error wrapping an underlying cause.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another coded error by code and message so errors.Is works
// against freshly constructed targets.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == te.code && e.message == te.message
}

// Code returns the classification code.
func (e *Error) Code() Code {
	return e.code
}

// Message returns the human-readable description without the code prefix.
func (e *Error) Message() string {
	return e.message
}

// CodeOf returns the code of err, or CodeInternal if err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.code == code
	}
	return false
}

// Is is a readability alias for HasCode used at call sites that branch on
// a single code.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}
