// Package apperr defines the error taxonomy shared by services and handlers.
// Every error carries a stable machine code, an HTTP status, and messages in
// both English and Arabic for the response envelope.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeUnauthorized    = "AUTHENTICATION_ERROR"
	CodeForbidden       = "AUTHORIZATION_ERROR"
	CodeNotFound        = "NOT_FOUND_ERROR"
	CodeConflict        = "CONFLICT_ERROR"
	CodeRateLimited     = "RATE_LIMIT_ERROR"
	CodeDatabase        = "DATABASE_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
)

// Error is an application error with a stable code and bilingual messages
type Error struct {
	Code      string
	Message   string
	MessageAr string
	Status    int
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause attaches an underlying error for logging. The cause is never
// serialized into the response.
func (e *Error) WithCause(cause error) *Error {
	clone := *e
	clone.cause = cause
	return &clone
}

// As extracts an *Error from an error chain, nil if absent
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// Validation creates a 400 validation error
func Validation(msg, msgAr string) *Error {
	return &Error{Code: CodeValidation, Message: msg, MessageAr: msgAr, Status: http.StatusBadRequest}
}

// Unauthorized creates a 401 error
func Unauthorized(msg, msgAr string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg, MessageAr: msgAr, Status: http.StatusUnauthorized}
}

// Forbidden creates a 403 error
func Forbidden(msg, msgAr string) *Error {
	return &Error{Code: CodeForbidden, Message: msg, MessageAr: msgAr, Status: http.StatusForbidden}
}

// NotFound creates a 404 error
func NotFound(msg, msgAr string) *Error {
	return &Error{Code: CodeNotFound, Message: msg, MessageAr: msgAr, Status: http.StatusNotFound}
}

// Conflict creates a 409 error
func Conflict(msg, msgAr string) *Error {
	return &Error{Code: CodeConflict, Message: msg, MessageAr: msgAr, Status: http.StatusConflict}
}

// RateLimited creates a 429 error
func RateLimited() *Error {
	return &Error{
		Code:      CodeRateLimited,
		Message:   "Too many requests, please try again later",
		MessageAr: "طلبات كثيرة جداً، يرجى المحاولة لاحقاً",
		Status:    http.StatusTooManyRequests,
	}
}

// Database creates a 500 error for storage failures
func Database(cause error) *Error {
	return &Error{
		Code:      CodeDatabase,
		Message:   "A database error occurred",
		MessageAr: "حدث خطأ في قاعدة البيانات",
		Status:    http.StatusInternalServerError,
		cause:     cause,
	}
}

// Internal creates a generic 500 error
func Internal(cause error) *Error {
	return &Error{
		Code:      CodeInternal,
		Message:   "An internal error occurred",
		MessageAr: "حدث خطأ داخلي",
		Status:    http.StatusInternalServerError,
		cause:     cause,
	}
}

// External creates a 502 error for upstream service failures
func External(msg, msgAr string, cause error) *Error {
	return &Error{Code: CodeExternalService, Message: msg, MessageAr: msgAr, Status: http.StatusBadGateway, cause: cause}
}
