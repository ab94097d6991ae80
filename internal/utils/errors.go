package utils

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode identifies the failure class of an AppError.
type ErrorCode string

const (
	// CodeValidation indicates invalid caller input. Never retried.
	CodeValidation ErrorCode = "VALIDATION_ERROR"
	// CodeNotFound indicates a missing portfolio or asset. Never retried.
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeRateNotFound indicates no stored exchange rate in either direction.
	CodeRateNotFound ErrorCode = "RATE_NOT_FOUND"
	// CodeProviderFailed indicates a transient upstream failure. Retried internally.
	CodeProviderFailed ErrorCode = "PROVIDER_FAILED"
	// CodeRateLimited indicates the upstream returned HTTP 429. Retried internally.
	CodeRateLimited ErrorCode = "RATE_LIMITED"
	// CodeAllProvidersFailed indicates the fallback chain was exhausted with no usable cache.
	CodeAllProvidersFailed ErrorCode = "ALL_PROVIDERS_FAILED"
	// CodeInternal indicates an unexpected invariant violation.
	CodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError is the error type surfaced to callers of the recommendation core.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error returns the formatted error message.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error, if any.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an AppError with the given code and message.
//
// Parameters:
//
//	code: Failure class.
//	message: Human-readable description.
//
// Returns:
//
//	error: The AppError.
func NewAppError(code ErrorCode, message string) error {
	return &AppError{Code: code, Message: message}
}

// NewAppErrorf creates an AppError with a formatted message.
func NewAppErrorf(code ErrorCode, format string, args ...interface{}) error {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapAppError creates an AppError wrapping an underlying cause.
func WrapAppError(code ErrorCode, message string, err error) error {
	return &AppError{Code: code, Message: message, Err: err}
}

// CodeOf returns the ErrorCode of err, or CodeInternal when err is not an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HasCode returns true if err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsValidationError returns true for VALIDATION_ERROR failures.
func IsValidationError(err error) bool {
	return HasCode(err, CodeValidation)
}

// IsNotFoundError returns true for NOT_FOUND failures.
func IsNotFoundError(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsRateNotFoundError returns true for RATE_NOT_FOUND failures.
func IsRateNotFoundError(err error) bool {
	return HasCode(err, CodeRateNotFound)
}

// RateLimitError represents an HTTP 429 from an upstream provider.
// It carries the server-supplied Retry-After hint when present.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

// Error returns the error message string.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("RATE_LIMITED: provider %s rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("RATE_LIMITED: provider %s rate limited", e.Provider)
}

// IsRateLimitError returns true if the error is a rate limit error,
// and reports the Retry-After hint if one was supplied.
func IsRateLimitError(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	return 0, false
}

// IsRetryable reports whether err belongs to a transient failure class
// that the retry executor should attempt again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := IsRateLimitError(err); ok {
		return true
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeProviderFailed || appErr.Code == CodeRateLimited
	}
	// Unclassified errors (network failures, timeouts) are treated as transient.
	return true
}
