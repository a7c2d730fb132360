// Package errors provides structured error types for atlas.
//
// Every recoverable condition the interaction core can report carries a
// machine-readable [Code]. The engine surfaces these codes as inert status
// values instead of failing, and the HTTP server maps them onto responses.
//
// # Error Codes
//
// Codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - *_NOT_FOUND: Resource not found
//   - CAPACITY_EXCEEDED, ALREADY_PRESENT: Comparison set outcomes
//   - UNRESOLVED_PARENT: A district selection could not resolve its state
//   - NETWORK_*, INTERNAL_*: Infrastructure failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeCapacityExceeded, "comparison holds at most %d districts", 4)
//	if errors.Is(err, errors.ErrCodeCapacityExceeded) {
//	    // disable the "add to comparison" button
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput     Code = "INVALID_INPUT"
	ErrCodeInvalidLevel     Code = "INVALID_LEVEL"
	ErrCodeInvalidFeatureID Code = "INVALID_FEATURE_ID"
	ErrCodeInvalidPath      Code = "INVALID_PATH"
	ErrCodeInvalidRoute     Code = "INVALID_ROUTE"
	ErrCodeInvalidConfig    Code = "INVALID_CONFIG"

	// Comparison and selection outcomes
	ErrCodeCapacityExceeded Code = "CAPACITY_EXCEEDED"
	ErrCodeAlreadyPresent   Code = "ALREADY_PRESENT"
	ErrCodeUnresolvedParent Code = "UNRESOLVED_PARENT"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeFeatureNotFound Code = "FEATURE_NOT_FOUND"
	ErrCodeViewNotFound    Code = "VIEW_NOT_FOUND"
	ErrCodeViewExpired     Code = "VIEW_EXPIRED"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsRecoverable reports whether code describes an outcome the interaction
// core reports as status rather than failure.
func IsRecoverable(code Code) bool {
	switch code {
	case ErrCodeCapacityExceeded, ErrCodeAlreadyPresent, ErrCodeUnresolvedParent, ErrCodeInvalidInput:
		return true
	}
	return false
}
