package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(CodeOrderNotFound, "order not found", http.StatusNotFound),
			want: "ORDER_NOT_FOUND: order not found",
		},
		{
			name: "with wrapped error",
			err:  Wrap(fmt.Errorf("db error"), CodeInternal, "database failure", http.StatusInternalServerError),
			want: "INTERNAL_ERROR: database failure: db error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap(inner, "CODE", "msg", 500)

	if !errors.Is(appErr, inner) {
		t.Error("errors.Is should match inner error")
	}
}

func TestIsAppError(t *testing.T) {
	appErr := NotFound(CodeOrderNotFound, "order not found")
	wrapped := fmt.Errorf("wrapped: %w", appErr)

	got, ok := IsAppError(wrapped)
	if !ok {
		t.Fatal("IsAppError should return true for wrapped AppError")
	}
	if got.Code != CodeOrderNotFound {
		t.Errorf("Code = %q, want %q", got.Code, CodeOrderNotFound)
	}
}

func TestIsAppError_PlainError(t *testing.T) {
	if _, ok := IsAppError(fmt.Errorf("plain")); ok {
		t.Error("IsAppError should return false for plain errors")
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantStatus int
	}{
		{"NotFound", NotFound("C", "m"), http.StatusNotFound},
		{"BadRequest", BadRequest("C", "m"), http.StatusBadRequest},
		{"Unauthorized", Unauthorized("C", "m"), http.StatusUnauthorized},
		{"Forbidden", Forbidden("C", "m"), http.StatusForbidden},
		{"Conflict", Conflict("C", "m"), http.StatusConflict},
		{"Internal", Internal("C", "m"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", tt.err.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestErrNotAuthorizedf_CarriesLevelParam(t *testing.T) {
	err := ErrNotAuthorizedf(3)
	if err.HTTPStatus != http.StatusForbidden {
		t.Errorf("HTTPStatus = %d, want 403", err.HTTPStatus)
	}
	if err.Params["level"] != 3 {
		t.Errorf("Params[level] = %v, want 3", err.Params["level"])
	}
}

func TestErrTokenInvalidf_IsGeneric(t *testing.T) {
	err := ErrTokenInvalidf()
	if err.Code != CodeTokenInvalid {
		t.Errorf("Code = %q, want %q", err.Code, CodeTokenInvalid)
	}
	// The message must not say whether the token was used, expired or unknown.
	if err.Message != "this action is no longer available" {
		t.Errorf("Message = %q leaks token failure detail", err.Message)
	}
}

func TestWithParams(t *testing.T) {
	err := New("C", "m", 400).WithParams(map[string]interface{}{"order_id": int64(7)})
	if err.Params["order_id"] != int64(7) {
		t.Errorf("Params not attached: %v", err.Params)
	}

	var nilErr *AppError
	if nilErr.WithParams(map[string]interface{}{"x": 1}) != nil {
		t.Error("WithParams on nil should return nil")
	}
}
