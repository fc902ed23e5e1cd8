package middleware

import (
	"net/http"
	"time"

	"github.com/crucial707/coach-scheduler/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// unmatchedRoute labels requests no route matched, so probes for random
// paths do not create a series each.
const unmatchedRoute = "unmatched"

// Prometheus records request duration and count for each request, labelled
// by the chi route pattern ("/v1/schedules/{id}/pause") when one matched.
// /metrics scrapes are not recorded. Mount it after recovery and request ID.
func Prometheus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		statusW := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(statusW, r)
		if r.URL.Path == "/metrics" {
			return
		}
		metrics.RecordRequest(r.Method, routeLabel(r, statusW.status), statusW.status, time.Since(start).Seconds())
	})
}

func routeLabel(r *http.Request, status int) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" && p != "/*" {
			return p
		}
	}
	if status == http.StatusNotFound || status == http.StatusMethodNotAllowed {
		return unmatchedRoute
	}
	if r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
