// Package apperror defines the application's error taxonomy.
//
// Every error that should reach a client with a specific status code is an
// *AppError wrapping one of the sentinels below. Handlers translate the
// sentinel into an HTTP status with errors.Is; anything else becomes a
// generic 500.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrUpstreamAuth means an OAuth provider rejected a stored credential.
	ErrUpstreamAuth = errors.New("upstream authentication failed")
	// ErrConfiguration means a required credential or setting is missing.
	ErrConfiguration = errors.New("configuration error")
	// ErrSinkWrite means an external store (Sheets, Postgres) refused a write.
	ErrSinkWrite = errors.New("sink write failed")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message, safe to show clients
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error, logged but never sent to clients
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// UpstreamAuth is mapped to 401 Unauthorized.
func UpstreamAuth(message string) *AppError {
	return &AppError{
		Err:     ErrUpstreamAuth,
		Message: message,
	}
}

// Configuration reports a missing setting. The message names the setting
// category only, never its value.
func Configuration(message string) *AppError {
	return &AppError{
		Err:     ErrConfiguration,
		Message: message,
	}
}

// SinkWrite wraps a failed external write. cause is kept for logging.
func SinkWrite(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrSinkWrite,
		Message: message,
		Cause:   cause,
	}
}
