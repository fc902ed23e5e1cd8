// Command sweeper runs the fallback sweep as its own process, next to API
// replicas started with SWEEP_INTERVAL=0.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/crucial707/coach-scheduler/internal/app"
	"github.com/crucial707/coach-scheduler/internal/config"
	"github.com/crucial707/coach-scheduler/internal/logging"
	"github.com/crucial707/coach-scheduler/internal/scheduler"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:           "sweeper",
		Short:         "Re-check every active schedule and deliver overdue messages",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.LogFormat, cfg.LogLevel)
			if err := checkConfig(cfg); err != nil {
				logger.Error("invalid configuration", "error", err)
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := run(ctx, cfg, logger, once); err != nil {
				logger.Error("sweeper exited", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass, print its summary and exit")
	return cmd
}

// checkConfig rejects settings under which a separate sweep process cannot
// see the API's schedules.
func checkConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Storage == "memory" {
		return errors.New("the standalone sweeper requires STORAGE=postgres")
	}
	if cfg.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive")
	}
	return nil
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, once bool) error {
	st, err := app.OpenStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	triggers, stopTriggers := app.NewTriggers(cfg, logger)
	defer stopTriggers()

	a := app.New(st, triggers, app.NewSender(cfg, logger), cfg.SendConcurrency, logger)
	if once {
		sum, err := a.Sweeper.RunOnce(ctx)
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(sum, "", "  ")
		fmt.Println(string(out))
		return nil
	}
	return scheduler.Run(ctx, a.Sweeper, cfg.SweepInterval)
}
