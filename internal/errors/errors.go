// Package errors provides error code definitions for the StockPoint offline core.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error code surfaced to callers and the UI.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrPermission ErrorCode = "PERMISSION_DENIED"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Storage errors
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrMigration          ErrorCode = "MIGRATION_FAILED"
	ErrQueueFull          ErrorCode = "QUEUE_FULL"

	// Sync errors
	ErrNetworkUnavailable ErrorCode = "NETWORK_UNAVAILABLE"
	ErrSyncTimeout        ErrorCode = "SYNC_TIMEOUT"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrSyncFailed         ErrorCode = "SYNC_FAILED"
	ErrSyncInProgress     ErrorCode = "SYNC_IN_PROGRESS"
	ErrSyncConflict       ErrorCode = "SYNC_CONFLICT"

	// Auth errors
	ErrAuthFailed   ErrorCode = "AUTH_FAILED"
	ErrTokenExpired ErrorCode = "TOKEN_EXPIRED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error carries a specific code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Code extracts the error code from an error chain.
// Returns ErrInternal for errors without a code.
func Code(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsTransient reports whether a drain-time failure is retryable:
// network unreachable, timeout, or rate limiting. Timeouts from expired
// contexts count as transient so a hung call never stalls the queue.
// Unclassified errors are treated as transient; at-least-once delivery makes
// an extra retry safe where misclassifying as permanent would lose the write.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch Code(err) {
	case ErrNetworkUnavailable, ErrSyncTimeout, ErrRateLimited, ErrInternal:
		return true
	}
	return false
}

// IsPermanent reports whether a drain-time failure must not be retried:
// the caller lacks permission, the target no longer exists, or the payload
// failed remote validation.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	switch Code(err) {
	case ErrPermission, ErrNotFound, ErrValidation, ErrInvalid:
		return true
	}
	return false
}
