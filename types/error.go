package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the memory store.
type ErrorCode string

// Validation error codes
const (
	ErrInvalidMemory   ErrorCode = "INVALID_MEMORY"
	ErrDuplicateMemory ErrorCode = "DUPLICATE_MEMORY"
	ErrMemoryNotFound  ErrorCode = "MEMORY_NOT_FOUND"
	ErrScopeMismatch   ErrorCode = "SCOPE_MISMATCH"
)

// Capacity and compression error codes
const (
	ErrCapacityExceeded  ErrorCode = "CAPACITY_EXCEEDED"
	ErrCompressionFailed ErrorCode = "COMPRESSION_FAILED"
	ErrInvalidEngineData ErrorCode = "INVALID_ENGINE_DATA"
	ErrConcurrentUpdate  ErrorCode = "CONCURRENT_UPDATE"
)

// Engine error codes
const (
	ErrEngineFailure     ErrorCode = "ENGINE_FAILURE"
	ErrEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	ErrRateLimited       ErrorCode = "RATE_LIMITED"
	ErrInternalError     ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Scope     string    `json:"scope,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithScope records the memory scope the error originated from.
func (e *Error) WithScope(scope MemoryScope) *Error {
	e.Scope = scope.String()
	return e
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode reports whether any *Error in the chain carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	return ok && e.Retryable
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// WrapError wraps err with a code and message. A nil err yields nil.
func WrapError(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return NewError(code, message).WithCause(err)
}
