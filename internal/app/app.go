// Package app wires storage, the trigger coordinator, messaging and the
// scheduling service from configuration. Both the API server and the
// standalone sweeper build on it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/crucial707/coach-scheduler/internal/config"
	"github.com/crucial707/coach-scheduler/internal/db"
	"github.com/crucial707/coach-scheduler/internal/dispatch"
	"github.com/crucial707/coach-scheduler/internal/memstore"
	"github.com/crucial707/coach-scheduler/internal/messaging"
	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/crucial707/coach-scheduler/internal/repo"
	"github.com/crucial707/coach-scheduler/internal/scheduler"
	"github.com/crucial707/coach-scheduler/internal/scheduling"
	"github.com/crucial707/coach-scheduler/internal/trigger"
	"github.com/google/uuid"
)

// ScheduleStore is everything the service, dispatcher and sweep need from
// the schedule store.
type ScheduleStore interface {
	scheduling.Store
	scheduler.Lister
	dispatch.Cursor
}

// LedgerStore is the delivery ledger plus its history view.
type LedgerStore interface {
	dispatch.Ledger
	scheduling.Deliveries
}

// AuditStore records and lists coach actions.
type AuditStore interface {
	scheduling.Auditor
	ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]models.AuditEntry, error)
}

// Storage groups the persistence collaborators.
type Storage struct {
	Schedules  ScheduleStore
	Recipients dispatch.Recipients
	Ledger     LedgerStore
	Audit      AuditStore
	// DB is nil for in-memory storage.
	DB *sql.DB
}

// Postgres returns Storage backed by the repo package.
func Postgres(database *sql.DB) Storage {
	return Storage{
		Schedules:  repo.NewScheduleRepo(database),
		Recipients: repo.NewRecipientRepo(database),
		Ledger:     repo.NewDeliveryRepo(database),
		Audit:      repo.NewAuditRepo(database),
		DB:         database,
	}
}

// Memory returns Storage backed by one in-memory store.
func Memory(m *memstore.Store) Storage {
	return Storage{Schedules: m, Recipients: m, Ledger: m, Audit: m}
}

// OpenStorage connects to the configured storage, applying migrations when
// enabled.
func OpenStorage(cfg config.Config, logger *slog.Logger) (Storage, error) {
	if cfg.Storage == "memory" {
		logger.Warn("using in-memory storage; schedules are lost on restart")
		return Memory(memstore.New()), nil
	}
	database, err := db.Connect(cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass, db.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return Storage{}, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)

	if cfg.DBAutoMigrate {
		version, err := db.Run(db.URL(cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass))
		if err != nil {
			database.Close()
			return Storage{}, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations applied", "schema_version", version)
	}
	return Postgres(database), nil
}

// Close releases the database connection, if any.
func (s Storage) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// NewTriggers returns the configured trigger coordinator and a stop function.
func NewTriggers(cfg config.Config, logger *slog.Logger) (trigger.Coordinator, func()) {
	if cfg.TriggerMode == "qstash" {
		logger.Info("using hosted trigger service", "url", cfg.TriggerURL, "destination", cfg.ProcessURL())
		return trigger.NewClient(cfg.TriggerURL, cfg.TriggerToken, cfg.ProcessURL(), cfg.ProcessSecret), func() {}
	}
	logger.Info("using in-process triggers", "endpoint", cfg.ProcessURL())
	l := trigger.NewLocal(cfg.ProcessURL(), cfg.ProcessSecret, logger)
	return l, l.Stop
}

// NewSender returns the chat sender, or a logging sender when no messaging
// service is configured.
func NewSender(cfg config.Config, logger *slog.Logger) messaging.Sender {
	if cfg.MessagingURL == "" {
		logger.Warn("MESSAGING_URL not set; messages are logged, not sent")
		return messaging.LogSender{Logger: logger}
	}
	return messaging.NewHTTPSender(cfg.MessagingURL, cfg.MessagingToken, cfg.SendTimeout)
}

// App is the assembled scheduling engine.
type App struct {
	Storage Storage
	Service *scheduling.Service
	Sweeper *scheduler.Sweeper
}

// New assembles the service, dispatcher and sweeper over st.
func New(st Storage, triggers trigger.Coordinator, sender messaging.Sender, concurrency int, logger *slog.Logger) *App {
	svc := &scheduling.Service{
		Store:      st.Schedules,
		Deliveries: st.Ledger,
		Audit:      st.Audit,
		Triggers:   triggers,
		Dispatcher: &dispatch.Dispatcher{
			Recipients:  st.Recipients,
			Ledger:      st.Ledger,
			Cursor:      st.Schedules,
			Sender:      sender,
			Logger:      logger,
			Concurrency: concurrency,
		},
		Logger: logger,
	}
	return &App{
		Storage: st,
		Service: svc,
		Sweeper: &scheduler.Sweeper{Schedules: st.Schedules, Processor: svc, Logger: logger},
	}
}
