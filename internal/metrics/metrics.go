package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// FiringsTotal counts processed firings by source (trigger, sweep) and
	// outcome (dispatched, not_due, inactive, expired, completed, error).
	FiringsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_firings_total",
			Help: "Total number of schedule firings by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	// DeliveriesTotal counts per-recipient delivery outcomes (sent, failed, skipped, duplicate).
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_deliveries_total",
			Help: "Total number of per-recipient deliveries by outcome",
		},
		[]string{"outcome"},
	)

	// TriggerRegistrationsTotal counts calls to the trigger coordinator by
	// kind (once, recurring, cancel) and outcome (ok, error).
	TriggerRegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trigger_registrations_total",
			Help: "Total number of trigger coordinator calls by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// SweepDuration tracks the duration of fallback sweep passes.
	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schedule_sweep_duration_seconds",
			Help:    "Duration of fallback sweep passes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

var (
	idPathSegment = regexp.MustCompile(`/([0-9]+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})(/|$)`)
	initOnce      sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, FiringsTotal, DeliveriesTotal, TriggerRegistrationsTotal, SweepDuration)
	})
}

// NormalizePath reduces cardinality by replacing numeric and UUID path segments with {id}.
// E.g. /v1/schedules/3f2c...-... -> /v1/schedules/{id}.
func NormalizePath(path string) string {
	return idPathSegment.ReplaceAllString(path, "/{id}$2")
}

// RecordRequest records duration and count for an HTTP request. Call from middleware with method, path, statusCode, duration.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// IncFirings increments the firings counter.
func IncFirings(source, outcome string) {
	FiringsTotal.WithLabelValues(source, outcome).Inc()
}

// IncDeliveries increments the deliveries counter for one recipient outcome.
func IncDeliveries(outcome string) {
	DeliveriesTotal.WithLabelValues(outcome).Inc()
}

// IncTriggerRegistrations increments the trigger coordinator counter.
func IncTriggerRegistrations(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	TriggerRegistrationsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveSweep records the duration of one sweep pass.
func ObserveSweep(seconds float64) {
	SweepDuration.Observe(seconds)
}
