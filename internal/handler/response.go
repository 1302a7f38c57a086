package handler

// RESPONSE HELPERS:
// Every handler in this package answers through writeJSON and writeError,
// so status codes, Content-Type, and body shape are decided in one place:
//
//	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
//	writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
// Every JSON error from the API has the same shape:
//
//	{"error": "Email and name are required"}
//
// The message is the AppError message, which is always safe to show. Causes
// (a Sheets 403, a refused database connection) are logged by the handler
// and never sent.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/sakif/repochat/internal/apperror"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is the body of write endpoints that return nothing else.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// writeJSON sends data with the given status.
//
// HEADER ORDER MATTERS:
// Headers are sent with the first WriteHeader call. Any header set after
// that, including Set-Cookie, is silently dropped. Handlers that issue a
// session cookie therefore set it before calling writeJSON.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status:
//
//	ErrValidation     → 400
//	ErrUpstreamAuth   → 401
//	ErrForbidden      → 403
//	ErrNotFound       → 404
//	ErrConflict       → 409
//	ErrConfiguration  → 500
//	ErrSinkWrite      → 500
//
// Anything that is not an *apperror.AppError becomes a generic 500.
//
// WHY HERE AND NOT IN THE SERVICE?
// The services are also called from startup (EnsureSheetStructure) and from
// each other (SignIn logs through the Activity Logger). Only the HTTP
// boundary knows about status codes.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "An internal error occurred"})
		return
	}

	writeJSON(w, statusFor(err), ErrorResponse{Error: appErr.Message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUpstreamAuth):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into dst. A malformed body is reported as a
// validation error so writeError answers 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &apperror.AppError{
			Err:     apperror.ErrValidation,
			Message: "Invalid request body",
			Cause:   err,
		}
	}
	return nil
}

// logFailure logs err at a level matching the status it maps to.
func logFailure(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, slog.String("error", err.Error()))

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Cause != nil {
		attrs = append(attrs, slog.String("cause", appErr.Cause.Error()))
	}

	if statusFor(err) >= http.StatusInternalServerError {
		logger.Error(msg, attrs...)
		return
	}
	logger.Warn(msg, attrs...)
}

// clientIP returns the caller address without its port. RealIP middleware has
// already replaced RemoteAddr with the forwarded address when one was sent.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
