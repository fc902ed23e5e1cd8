package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crucial707/coach-scheduler/internal/app"
	"github.com/crucial707/coach-scheduler/internal/config"
	"github.com/crucial707/coach-scheduler/internal/logging"
	"github.com/crucial707/coach-scheduler/internal/scheduler"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogFormat, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := app.OpenStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	triggers, stopTriggers := app.NewTriggers(cfg, logger)
	defer stopTriggers()

	a := app.New(st, triggers, app.NewSender(cfg, logger), cfg.SendConcurrency, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(a, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			logger.Info("starting server (HTTPS)", "port", cfg.Port)
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			logger.Info("starting server", "port", cfg.Port)
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.SweepInterval > 0 {
		g.Go(func() error {
			return scheduler.Run(gctx, a.Sweeper, cfg.SweepInterval)
		})
	} else {
		logger.Info("in-process sweep disabled")
	}
	return g.Wait()
}
