// Package errors provides domain-specific error types for the Premium
// Freight approval service.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the approval core. Callers branch on these with
// errors.Is; the HTTP layer maps them to AppError codes.
var (
	// ErrInvalidActor means the actor is not an authorized approver for the
	// level the action targets.
	ErrInvalidActor = errors.New("actor not authorized for approval level")

	// ErrAlreadyTerminal means the order is already approved or rejected.
	// Callers treat it as "already processed", not as a failure.
	ErrAlreadyTerminal = errors.New("order already in terminal state")

	// ErrTokenInvalid covers every token failure: unknown, used, expired,
	// or owner/order mismatch. The reason is deliberately not exposed.
	ErrTokenInvalid = errors.New("invalid or expired token")

	// ErrNoApproverConfigured signals a configuration defect: a pending
	// level with no eligible approver. Never skipped silently.
	ErrNoApproverConfigured = errors.New("no approver configured for level")

	// ErrConcurrentModification means the optimistic guard on act_approv
	// failed. Retried once, then collapsed into ErrAlreadyTerminal semantics.
	ErrConcurrentModification = errors.New("order state changed concurrently")

	ErrOrderNotFound = errors.New("order not found")
	ErrReasonMissing = errors.New("rejection reason is required")

	// ErrAuthFailed covers both unknown email and wrong password.
	ErrAuthFailed = errors.New("invalid credentials")
)

// AppError is a structured application error with HTTP status and error code.
type AppError struct {
	// Code is a machine-readable error code (e.g. "TOKEN_INVALID").
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// HTTPStatus is the corresponding HTTP status code.
	HTTPStatus int `json:"-"`

	// Params carries structured context for frontend interpolation.
	Params map[string]interface{} `json:"params,omitempty"`

	// Err is the wrapped underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error into an AppError.
func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// WithParams attaches structured parameters to the error.
func (e *AppError) WithParams(params map[string]interface{}) *AppError {
	if e == nil || len(params) == 0 {
		return e
	}
	e.Params = params
	return e
}

// Common error constructors.

// NotFound creates a 404 error.
func NotFound(code, message string) *AppError {
	return New(code, message, http.StatusNotFound)
}

// BadRequest creates a 400 error.
func BadRequest(code, message string) *AppError {
	return New(code, message, http.StatusBadRequest)
}

// Unauthorized creates a 401 error.
func Unauthorized(code, message string) *AppError {
	return New(code, message, http.StatusUnauthorized)
}

// Forbidden creates a 403 error.
func Forbidden(code, message string) *AppError {
	return New(code, message, http.StatusForbidden)
}

// Conflict creates a 409 error.
func Conflict(code, message string) *AppError {
	return New(code, message, http.StatusConflict)
}

// Internal creates a 500 error.
func Internal(code, message string) *AppError {
	return New(code, message, http.StatusInternalServerError)
}

// IsAppError checks if an error is an AppError and returns it.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
