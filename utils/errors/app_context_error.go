// Package errors provides structured error handling for the image proxy.
// It defines error types with codes, messages, causes, and contextual information
// so that every layer (rest, usecase, gateway, driver) reports failures the same way.
package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Error codes carried by AppContextError.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeForbidden        = "FORBIDDEN_ERROR"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRateLimit        = "RATE_LIMIT_ERROR"
	CodeExternalAPI      = "EXTERNAL_API_ERROR"
	CodeTimeout          = "TIMEOUT_ERROR"
	CodeImageProcessing  = "IMAGE_PROCESSING_ERROR"
	CodeUnknown          = "UNKNOWN_ERROR"
)

// AppContextError represents an error with rich context information
type AppContextError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Layer     string                 `json:"layer,omitempty"`     // rest, usecase, gateway, driver
	Component string                 `json:"component,omitempty"` // Specific component/service name
	Operation string                 `json:"operation,omitempty"` // Specific operation/method name
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppContextError) Error() string {
	var prefix string
	if e.Layer != "" && e.Component != "" && e.Operation != "" {
		prefix = fmt.Sprintf("[%s:%s:%s] ", e.Layer, e.Component, e.Operation)
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s%s: %s (caused by: %v)", prefix, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s%s: %s", prefix, e.Code, e.Message)
}

// Unwrap returns the underlying error for error chain unwrapping
func (e *AppContextError) Unwrap() error {
	return e.Cause
}

// HTTPStatusCode maps error codes to HTTP status codes
func (e *AppContextError) HTTPStatusCode() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeExternalAPI:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// NewAppContextError creates a new AppContextError with full context
func NewAppContextError(
	code, message, layer, component, operation string,
	cause error,
	context map[string]interface{},
) *AppContextError {
	if context == nil {
		context = make(map[string]interface{})
	}

	return &AppContextError{
		Code:      code,
		Message:   message,
		Layer:     layer,
		Component: component,
		Operation: operation,
		Cause:     cause,
		Context:   context,
	}
}

// AsAppContextError extracts the outermost AppContextError from an error chain.
func AsAppContextError(err error) (*AppContextError, bool) {
	var appErr *AppContextError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// LogError logs an error with structured attributes. AppContextError values
// contribute their code, location and context.
func LogError(ctx context.Context, logger *slog.Logger, err error, operation string) {
	// Handle nil logger gracefully (e.g., during tests)
	if logger == nil || err == nil {
		return
	}

	appErr, ok := AsAppContextError(err)
	if !ok {
		logger.ErrorContext(ctx, "unknown error occurred",
			"operation", operation,
			"error", err.Error(),
		)
		return
	}

	args := []interface{}{
		"operation", operation,
		"error_code", appErr.Code,
		"error_message", appErr.Message,
		"layer", appErr.Layer,
		"component", appErr.Component,
	}
	for key, value := range appErr.Context {
		args = append(args, key, value)
	}
	if appErr.Cause != nil {
		args = append(args, "cause", appErr.Cause.Error())
	}

	if appErr.HTTPStatusCode() >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "application error occurred", args...)
		return
	}
	logger.WarnContext(ctx, "request rejected", args...)
}
