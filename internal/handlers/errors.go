package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/crucial707/coach-scheduler/internal/dispatch"
	"github.com/crucial707/coach-scheduler/internal/scheduling"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// ErrMessageInternal is the generic message for 500 responses. Do not expose internal details to clients.
const ErrMessageInternal = "internal server error"

// JSONError sends a JSON error response with a single "error" field.
func JSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// JSONValidationError sends a JSON error response with "error" and optional "fields" for field-level details.
// status is typically http.StatusBadRequest (400).
func JSONValidationError(w http.ResponseWriter, message string, fields map[string]string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	out := map[string]interface{}{"error": message}
	if len(fields) > 0 {
		out["fields"] = fields
	}
	json.NewEncoder(w).Encode(out)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeServiceError maps lifecycle and dispatch errors to HTTP responses.
// Unexpected errors are logged and answered with ErrMessageInternal.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *scheduling.ValidationError
		rerr *scheduling.RegistrationError
		terr *dispatch.TargetResolutionError
	)
	switch {
	case errors.As(err, &verr):
		JSONValidationError(w, "validation failed", verr.Fields, http.StatusBadRequest)
	case errors.Is(err, scheduling.ErrNotFound):
		JSONError(w, "schedule not found", http.StatusNotFound)
	case errors.Is(err, scheduling.ErrInvalidTransition):
		JSONError(w, "schedule status does not allow this action", http.StatusConflict)
	case errors.As(err, &rerr):
		slog.Error("trigger registration failed", "request_id", chimw.GetReqID(r.Context()), "error", err)
		JSONError(w, "trigger registration failed", http.StatusBadGateway)
	case errors.As(err, &terr):
		slog.Error("target resolution failed", "request_id", chimw.GetReqID(r.Context()), "error", err)
		JSONError(w, "target resolution failed", http.StatusBadGateway)
	default:
		slog.Error("request failed", "request_id", chimw.GetReqID(r.Context()), "path", r.URL.Path, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
	}
}

// pagination reads limit and offset query parameters, falling back to def
// and ignoring limits above maxLimit.
func pagination(r *http.Request, def, maxLimit int) (limit, offset int) {
	limit = def
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= maxLimit {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
