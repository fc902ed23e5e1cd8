// Package scheduler runs the fallback sweep: an independent timer that
// re-applies the due check to every active schedule, covering firings the
// trigger service lost or never sent.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crucial707/coach-scheduler/internal/dispatch"
	"github.com/crucial707/coach-scheduler/internal/metrics"
	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/crucial707/coach-scheduler/internal/scheduling"
	"github.com/crucial707/coach-scheduler/internal/trigger"
	"github.com/robfig/cron/v3"
)

// Lister returns the schedules eligible for dispatch.
type Lister interface {
	ListDispatchable(ctx context.Context) ([]models.Schedule, error)
}

// Processor handles one firing.
type Processor interface {
	Process(ctx context.Context, f scheduling.Firing) (dispatch.Result, scheduling.Outcome, error)
}

// Summary reports one sweep pass.
type Summary struct {
	Schedules  int `json:"schedules"`
	Dispatched int `json:"dispatched"`
	Processed  int `json:"processed"`
	Failed     int `json:"failed"`
}

// Sweeper processes every active schedule as a sweep firing.
type Sweeper struct {
	Schedules Lister
	Processor Processor
	Logger    *slog.Logger
}

// RunOnce performs one pass. A failure on one schedule is logged and counted;
// the pass continues with the next.
func (s *Sweeper) RunOnce(ctx context.Context) (Summary, error) {
	start := time.Now()
	defer func() { metrics.ObserveSweep(time.Since(start).Seconds()) }()

	list, err := s.Schedules.ListDispatchable(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("sweep: list active schedules: %w", err)
	}

	sum := Summary{Schedules: len(list)}
	for _, sched := range list {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		res, outcome, err := s.Processor.Process(ctx, scheduling.Firing{
			Payload: trigger.Payload{ScheduleID: sched.ID, OwnerID: sched.OwnerID},
			Source:  scheduling.SourceSweep,
		})
		if err != nil {
			sum.Failed++
			s.Logger.Error("sweep: process schedule", "schedule_id", sched.ID, "error", err)
			continue
		}
		if outcome == scheduling.OutcomeDispatched || outcome == scheduling.OutcomeCompleted {
			sum.Dispatched++
			sum.Processed += res.Processed
		}
	}

	s.Logger.Info("sweep finished",
		"schedules", sum.Schedules,
		"dispatched", sum.Dispatched,
		"processed", sum.Processed,
		"failed", sum.Failed,
		"duration", time.Since(start))
	return sum, nil
}

// Run starts the sweep on a robfig cron "@every interval" entry and blocks
// until ctx is done. Passes never overlap; a pass still running when the
// next tick arrives causes that tick to be skipped.
func Run(ctx context.Context, s *Sweeper, interval time.Duration) error {
	if interval < time.Second {
		return fmt.Errorf("sweep: interval %s is below one second", interval)
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.Logger.Error("sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("sweep: schedule every %s: %w", interval, err)
	}

	s.Logger.Info("sweep started", "interval", interval)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.Logger.Info("sweep stopped")
	return nil
}
