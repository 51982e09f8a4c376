package errors

import "net/http"

// Error code constants. Errors carry code + params; the dashboard frontend
// owns the user-facing wording. Backend logs are always in English.

// Order error codes.
const (
	CodeOrderNotFound    = "ORDER_NOT_FOUND"
	CodeOrderCreateFail  = "ORDER_CREATION_FAILED"
	CodeValidationFailed = "VALIDATION_FAILED"
)

// Approval error codes.
const (
	CodeNotAuthorized        = "NOT_AUTHORIZED"
	CodeAlreadyProcessed     = "ALREADY_PROCESSED"
	CodeNoApproverConfigured = "NO_APPROVER_CONFIGURED"
	CodeReasonRequired       = "REASON_REQUIRED"
)

// Token error codes. Email-link endpoints never surface these to the
// clicker; they collapse into a generic "no longer available" page.
const (
	CodeTokenInvalid = "TOKEN_INVALID"
)

// Auth error codes (UI session boundary).
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenExpired = "SESSION_EXPIRED"
)

// Systemic codes.
const (
	CodeInternal = "INTERNAL_ERROR"
)

// Convenience constructors using predefined codes.

// ErrOrderNotFoundf creates an order not found error.
func ErrOrderNotFoundf(orderID int64) *AppError {
	return (&AppError{
		Code:       CodeOrderNotFound,
		Message:    "order not found",
		HTTPStatus: http.StatusNotFound,
	}).WithParams(map[string]interface{}{"order_id": orderID})
}

// ErrNotAuthorizedf creates a forbidden error for an unauthorized approver.
func ErrNotAuthorizedf(level int) *AppError {
	return (&AppError{
		Code:       CodeNotAuthorized,
		Message:    "actor is not an authorized approver for this level",
		HTTPStatus: http.StatusForbidden,
	}).WithParams(map[string]interface{}{"level": level})
}

// ErrAlreadyProcessedf creates the benign already-processed error.
// HTTP 200-family semantics are decided by the handler; the conflict status
// here only applies when the caller chooses to surface it as an error.
func ErrAlreadyProcessedf() *AppError {
	return &AppError{
		Code:       CodeAlreadyProcessed,
		Message:    "order has already been processed",
		HTTPStatus: http.StatusConflict,
	}
}

// ErrTokenInvalidf creates the generic token error. One code for every
// token failure so valid-looking tokens cannot be enumerated.
func ErrTokenInvalidf() *AppError {
	return &AppError{
		Code:       CodeTokenInvalid,
		Message:    "this action is no longer available",
		HTTPStatus: http.StatusGone,
	}
}
