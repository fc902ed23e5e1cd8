package main

import (
	"net/http"

	"github.com/crucial707/coach-scheduler/internal/app"
	"github.com/crucial707/coach-scheduler/internal/config"
	"github.com/crucial707/coach-scheduler/internal/handlers"
	"github.com/crucial707/coach-scheduler/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds request bodies; message content is at most a few KB.
const maxBodyBytes = 1 << 20

func newRouter(a *app.App, cfg config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLog)
	r.Use(middleware.SecurityHeaders(cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.Prometheus)
	r.Use(middleware.MaxBytes(maxBodyBytes))

	health := &handlers.HealthHandler{}
	if a.Storage.DB != nil {
		health.DB = a.Storage.DB
	}
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Called by the trigger service and operators.
	process := &handlers.ProcessHandler{Processor: a.Service, Sweeper: a.Sweeper}
	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.BearerSecret(cfg.ProcessSecret))
		r.Post("/process", process.Process)
		r.Post("/sweep", process.Sweep)
	})

	schedules := &handlers.ScheduleHandler{Service: a.Service}
	audit := &handlers.AuditHandler{Repo: a.Storage.Audit}
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.JWTMiddleware([]byte(cfg.JWTSecret)))
		r.Use(middleware.APIRateLimiter().Middleware)

		r.Route("/schedules", func(r chi.Router) {
			r.Post("/", schedules.CreateSchedule)
			r.Get("/", schedules.ListSchedules)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", schedules.GetSchedule)
				r.Patch("/", schedules.UpdateSchedule)
				r.Post("/pause", schedules.PauseSchedule)
				r.Post("/resume", schedules.ResumeSchedule)
				r.Post("/cancel", schedules.CancelSchedule)
				r.Get("/deliveries", schedules.ListDeliveries)
			})
		})
		r.Get("/audit", audit.ListAudit)
	})
	return r
}
