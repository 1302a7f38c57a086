package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("identity", "a@b.com"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("email", "Email is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "UpstreamAuth wraps ErrUpstreamAuth",
			err:       UpstreamAuth("Authentication failed"),
			target:    ErrUpstreamAuth,
			wantMatch: true,
		},
		{
			name:      "Configuration wraps ErrConfiguration",
			err:       Configuration("Google Sheets is not configured"),
			target:    ErrConfiguration,
			wantMatch: true,
		},
		{
			name:      "SinkWrite wraps ErrSinkWrite",
			err:       SinkWrite("Failed to log login", errors.New("quota exceeded")),
			target:    ErrSinkWrite,
			wantMatch: true,
		},
		{
			name:      "wrapped with fmt.Errorf still matches",
			err:       fmt.Errorf("service/activity: %w", ValidationFailed("name", "Name is required")),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "SinkWrite does NOT match ErrValidation",
			err:       SinkWrite("Failed to log login", nil),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "ValidationFailed does NOT match ErrNotFound",
			err:       ValidationFailed("name", "too long"),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("identity", "a@b.com"),
			wantMessage: "identity not found with id a@b.com",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("name", "Email and name are required"),
			wantMessage: "Email and name are required",
		},
		{
			name:        "SinkWrite hides the cause",
			err:         SinkWrite("Failed to log chat question", errors.New("googleapi: Error 403: secret detail")),
			wantMessage: "Failed to log chat question",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("identity", "a@b.com")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestSinkWriteKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := SinkWrite("Failed to save user data", cause)

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("email", "Email is required")

	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
}
