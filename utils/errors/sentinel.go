package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the proxy pipeline. Callers classify failures with
// errors.Is; AppContextError values wrap one of these as their cause.
var (
	ErrInvalidInput               = errors.New("invalid input")
	ErrDomainNotAllowed           = errors.New("domain not allowed")
	ErrMethodNotAllowed           = errors.New("method not allowed")
	ErrRateLimitExceeded          = errors.New("rate limit exceeded")
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
	ErrImageProcessingFailed      = errors.New("image processing failed")
	ErrOperationTimeout           = errors.New("operation timeout")
)

// IsValidationError checks if an error represents invalid input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsDomainNotAllowed checks if an error represents a rejected source domain
func IsDomainNotAllowed(err error) bool {
	return errors.Is(err, ErrDomainNotAllowed)
}

// IsRateLimitError checks if an error represents a rate limiting issue
func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded)
}

// IsExternalServiceError checks if an error represents an upstream fetch failure
func IsExternalServiceError(err error) bool {
	return errors.Is(err, ErrExternalServiceUnavailable)
}

// IsImageProcessingError checks if an error came out of the transform pipeline
func IsImageProcessingError(err error) bool {
	return errors.Is(err, ErrImageProcessingFailed)
}

// IsTimeoutError checks if an error represents a timeout condition
func IsTimeoutError(err error) bool {
	return errors.Is(err, ErrOperationTimeout)
}

func wrapSentinel(sentinel, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w", sentinel)
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// NewValidationError creates an AppContextError that wraps ErrInvalidInput
func NewValidationError(message, layer, component, operation string, context map[string]interface{}) *AppContextError {
	return NewAppContextError(
		CodeValidation,
		message,
		layer,
		component,
		operation,
		wrapSentinel(ErrInvalidInput, nil),
		context,
	)
}

// NewDomainNotAllowedError creates an AppContextError that wraps ErrDomainNotAllowed
func NewDomainNotAllowedError(layer, component, operation string, context map[string]interface{}) *AppContextError {
	return NewAppContextError(
		CodeForbidden,
		"Domain not allowed",
		layer,
		component,
		operation,
		wrapSentinel(ErrDomainNotAllowed, nil),
		context,
	)
}

// NewRateLimitExceededError creates an AppContextError that wraps ErrRateLimitExceeded
func NewRateLimitExceededError(layer, component, operation string, context map[string]interface{}) *AppContextError {
	return NewAppContextError(
		CodeRateLimit,
		"Too many requests, please try again later",
		layer,
		component,
		operation,
		wrapSentinel(ErrRateLimitExceeded, nil),
		context,
	)
}

// NewExternalServiceUnavailableError creates an AppContextError that wraps ErrExternalServiceUnavailable
func NewExternalServiceUnavailableError(message, layer, component, operation string, cause error, context map[string]interface{}) *AppContextError {
	return NewAppContextError(
		CodeExternalAPI,
		message,
		layer,
		component,
		operation,
		wrapSentinel(ErrExternalServiceUnavailable, cause),
		context,
	)
}

// NewOperationTimeoutError creates an AppContextError that wraps ErrOperationTimeout
func NewOperationTimeoutError(message, layer, component, operation string, cause error, context map[string]interface{}) *AppContextError {
	return NewAppContextError(
		CodeTimeout,
		message,
		layer,
		component,
		operation,
		wrapSentinel(ErrOperationTimeout, cause),
		context,
	)
}

// NewImageProcessingError creates an AppContextError that wraps ErrImageProcessingFailed
func NewImageProcessingError(message, layer, component, operation string, cause error, context map[string]interface{}) *AppContextError {
	return NewAppContextError(
		CodeImageProcessing,
		message,
		layer,
		component,
		operation,
		wrapSentinel(ErrImageProcessingFailed, cause),
		context,
	)
}

// NewMethodNotAllowedError creates an AppContextError that wraps ErrMethodNotAllowed
func NewMethodNotAllowedError(method, layer, component, operation string) *AppContextError {
	return NewAppContextError(
		CodeMethodNotAllowed,
		"Method not allowed",
		layer,
		component,
		operation,
		wrapSentinel(ErrMethodNotAllowed, nil),
		map[string]interface{}{"method": method},
	)
}
