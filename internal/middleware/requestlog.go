package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// responseWriter wraps http.ResponseWriter to capture status and size.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// quietPaths are polled by probes and scrapers; they log at debug.
var quietPaths = map[string]bool{"/health": true, "/ready": true, "/metrics": true}

// ownerSinkKey holds a *uuid.UUID that JWTMiddleware fills in, so RequestLog
// can log the coach id of requests it wraps.
type ownerSinkKey struct{}

func recordOwner(ctx context.Context, id uuid.UUID) {
	if p, ok := ctx.Value(ownerSinkKey{}).(*uuid.UUID); ok {
		*p = id
	}
}

// RequestLog logs each request with request_id, method, path, status,
// duration, size and, once authenticated, coach_id. Use after RequestID.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrap := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		var owner uuid.UUID
		next.ServeHTTP(wrap, r.WithContext(context.WithValue(r.Context(), ownerSinkKey{}, &owner)))

		level := slog.LevelInfo
		switch {
		case wrap.status >= 500:
			level = slog.LevelError
		case quietPaths[r.URL.Path]:
			level = slog.LevelDebug
		}
		attrs := []any{
			"request_id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrap.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"size", wrap.size,
		}
		if owner != uuid.Nil {
			attrs = append(attrs, "coach_id", owner)
		}
		slog.Log(r.Context(), level, "request", attrs...)
	})
}
