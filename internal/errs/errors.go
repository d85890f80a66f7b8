package errs

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure. Codes are stable and safe to match on.
type Code string

const (
	CodeInvalidCode   Code = "INVALID_CODE"
	CodeDuplicateCode Code = "DUPLICATE_CODE"
	CodeConnection    Code = "CONNECTION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodePartialSeed   Code = "PARTIAL_SEED_FAILURE"
	CodeTimeout       Code = "TIMEOUT"
	CodeSuspended     Code = "TENANT_SUSPENDED"
	CodeBadTransition Code = "INVALID_STATUS_TRANSITION"
	CodeInternal      Code = "INTERNAL_ERROR"
)

// Error carries a code, a human-readable message and an optional cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches two errors by code, so callers can compare against a bare
// New(code, ...) sentinel with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an existing error. Returns nil when
// err is nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// CodeOf extracts the code from err, or CodeInternal when it is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
