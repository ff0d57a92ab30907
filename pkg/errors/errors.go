package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes exposed to clients
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeConflict      = "CONFLICT"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeUpstream      = "UPSTREAM_FAILURE"
	CodeTranscription = "TRANSCRIPTION_ERROR"
	CodeRateLimited   = "RATE_LIMITED"
	CodeServer        = "SERVER_ERROR"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	// Cause is logged but never rendered
	Cause error `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// WithCause attaches the internal error that triggered this one
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// NewValidationError creates a 400 error for malformed or missing input
func NewValidationError(message string) *AppError {
	return NewError(http.StatusBadRequest, CodeValidation, message)
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *AppError {
	return NewError(http.StatusConflict, CodeConflict, message)
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return NewError(http.StatusUnauthorized, CodeUnauthorized, message)
}

// NewUpstreamError creates a 500 for provider or tool failures. The message is
// what the client sees, so keep provider internals in the cause.
func NewUpstreamError(message string, cause error) *AppError {
	return NewError(http.StatusInternalServerError, CodeUpstream, message).WithCause(cause)
}

// NewTranscriptionError creates a 400 for empty or failed speech-to-text
func NewTranscriptionError(message string) *AppError {
	return NewError(http.StatusBadRequest, CodeTranscription, message)
}

// NewRateLimitError creates a 429 Too Many Requests error
func NewRateLimitError(message string) *AppError {
	return NewError(http.StatusTooManyRequests, CodeRateLimited, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(message string) *AppError {
	return NewError(http.StatusInternalServerError, CodeServer, message)
}

// FromError converts any error to an AppError.
// Unknown errors become a generic internal error; their text is kept as the cause only.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return NewInternalServerError("An unexpected error occurred").WithCause(err)
}
