// Package errors provides custom error types for the session coordination package
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents the type of error that occurred
type ErrorCode string

const (
	ErrCodeNetworkFailure    ErrorCode = "NETWORK_FAILURE"
	ErrCodeStorageFailure    ErrorCode = "STORAGE_FAILURE"
	ErrCodeCacheFailure      ErrorCode = "CACHE_FAILURE"
	ErrCodeConflictFailure   ErrorCode = "CONFLICT_FAILURE"
	ErrCodeValidationFailure ErrorCode = "VALIDATION_FAILURE"
)

// Operation represents the type of session operation
type Operation string

const (
	OpLoad      Operation = "load"
	OpFlush     Operation = "flush"
	OpSave      Operation = "save"
	OpPersist   Operation = "persist"
	OpCacheSave Operation = "cache_save"
	OpCacheLoad Operation = "cache_load"
	OpRecover   Operation = "recover"
	OpJoin      Operation = "join"
	OpLeave     Operation = "leave"
	OpComment   Operation = "comment"
	OpSubscribe Operation = "subscribe"
	OpClose     Operation = "close"
)

// SessionError represents an error that occurred during a document session operation
type SessionError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "cache", "persister", "channel")
	Component string

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Error code for the error type
	Code ErrorCode

	// Metadata for additional context
	Metadata map[string]interface{}
}

func (e *SessionError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}

	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new storage-related SessionError
func NewStorageError(op Operation, cause error) *SessionError {
	return &SessionError{
		Code:      ErrCodeStorageFailure,
		Op:        op,
		Component: "persister",
		Err:       cause,
		Retryable: true,
	}
}

// NewCacheError creates a new draft-cache-related SessionError.
// Cache failures are retryable; the cache is best-effort by contract.
func NewCacheError(op Operation, cause error) *SessionError {
	return &SessionError{
		Code:      ErrCodeCacheFailure,
		Op:        op,
		Component: "cache",
		Err:       cause,
		Retryable: true,
	}
}

// NewConflictError creates a new version-conflict-related SessionError
func NewConflictError(op Operation, cause error) *SessionError {
	return &SessionError{
		Code:      ErrCodeConflictFailure,
		Op:        op,
		Component: "persister",
		Err:       cause,
		Retryable: false,
	}
}

// NewValidationError creates a new validation-related SessionError
func NewValidationError(op Operation, cause error) *SessionError {
	return &SessionError{
		Code:      ErrCodeValidationFailure,
		Op:        op,
		Err:       cause,
		Retryable: false,
	}
}

// NewNetworkError creates a new network-related SessionError
func NewNetworkError(op Operation, cause error) *SessionError {
	return &SessionError{
		Code:      ErrCodeNetworkFailure,
		Op:        op,
		Component: "channel",
		Err:       cause,
		Retryable: true,
	}
}

// New creates a new SessionError
func New(op Operation, err error) *SessionError {
	return &SessionError{
		Op:  op,
		Err: err,
	}
}

// NewWithComponent creates a new SessionError with component information
func NewWithComponent(op Operation, component string, err error) *SessionError {
	return &SessionError{
		Op:        op,
		Component: component,
		Err:       err,
	}
}

// NewRetryable creates a new retryable SessionError
func NewRetryable(op Operation, err error) *SessionError {
	return &SessionError{
		Op:        op,
		Err:       err,
		Retryable: true,
	}
}

// IsRetryable checks if an error is a retryable SessionError
func IsRetryable(err error) bool {
	var sessErr *SessionError
	if errors.As(err, &sessErr) {
		return sessErr.Retryable
	}
	return false
}

// IsConflict checks if an error is a version-conflict SessionError
func IsConflict(err error) bool {
	var sessErr *SessionError
	if errors.As(err, &sessErr) {
		return sessErr.Code == ErrCodeConflictFailure
	}
	return false
}
