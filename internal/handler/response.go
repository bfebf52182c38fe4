package handler

// RESPONSE HELPERS:
// Every endpoint sends JSON through these two functions so the wire shapes
// stay uniform. Execution outcomes are NOT errors here — a compile failure
// or a timeout is a 200 carrying a result with its status field set, because
// the caller's program failing is a successful execution service request.
// writeError is reserved for requests this service could not act on at all.
//
// CONSISTENT ERROR FORMAT:
// Every error response has the same shape:
//
//	{"error": "validation_error", "message": "Code is required"}
//
// so callers can parse failures without caring which endpoint produced them.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/execbox/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "validation_error")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code. Headers must
// be set before the first body write; that ordering is the only subtlety.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already gone, so the failure can only be logged.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status and sends it.
//
// The engine layer deals in apperror sentinels, never HTTP codes — the
// translation lives here so a different transport could map the same errors
// its own way. errors.Is walks the wrapped chain, so handlers may pass
// errors wrapped any number of times with fmt.Errorf("...: %w", err).
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest // 400
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotSupported):
			status = http.StatusNotFound // 404
			errorType = "not_supported"
		case errors.Is(err, apperror.ErrUnavailable):
			status = http.StatusServiceUnavailable // 503
			errorType = "unavailable"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error — return a generic 500. The raw message might carry
	// daemon socket paths or filesystem layout; callers get none of that.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
