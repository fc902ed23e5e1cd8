// Package dispatch delivers one firing of a schedule: it resolves the target
// recipients, sends through the messaging collaborator guarded by the delivery
// ledger, and advances the schedule's last_sent_at.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/crucial707/coach-scheduler/internal/cadence"
	"github.com/crucial707/coach-scheduler/internal/messaging"
	"github.com/crucial707/coach-scheduler/internal/metrics"
	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/crucial707/coach-scheduler/internal/tzcron"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel sends within one firing.
const DefaultConcurrency = 8

// Recipients resolves the users a schedule targets.
type Recipients interface {
	ListActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Recipient, error)
	ListActiveByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]models.Recipient, error)
}

// Ledger is the delivery idempotency record. Claim must be atomic across
// processes (a unique constraint or equivalent).
type Ledger interface {
	Claim(ctx context.Context, key models.DeliveryKey, reopenFailed bool) (bool, error)
	MarkSent(ctx context.Context, key models.DeliveryKey, sentAt time.Time) error
	MarkFailed(ctx context.Context, key models.DeliveryKey, reason string) error
	Status(ctx context.Context, key models.DeliveryKey) (models.DeliveryStatus, error)
}

// Cursor advances a schedule's last_sent_at with compare-and-set semantics.
type Cursor interface {
	AdvanceLastSent(ctx context.Context, id uuid.UUID, prev *time.Time, sentAt time.Time, next *time.Time) (bool, error)
}

// RecipientError reports one failed recipient in a firing.
type RecipientError struct {
	RecipientID uuid.UUID `json:"recipientId"`
	Error       string    `json:"error"`
}

// Result summarises one firing.
type Result struct {
	Processed int              `json:"processed"`
	Total     int              `json:"total"`
	Skipped   int              `json:"skipped"`
	Errors    []RecipientError `json:"errors"`

	// AlreadySent counts skipped recipients whose ledger row was already sent.
	AlreadySent int `json:"-"`
	// Advanced is false when another firing advanced last_sent_at first.
	Advanced bool `json:"-"`
}

// Confirmed is the number of recipients known to hold a sent record for
// this window, whether sent by this firing or a concurrent one.
func (r Result) Confirmed() int {
	return r.Processed + r.AlreadySent
}

// TargetResolutionError means the recipients of a schedule could not be
// determined. The firing is aborted and last_sent_at is left untouched.
type TargetResolutionError struct {
	ScheduleID uuid.UUID
	Err        error
}

func (e *TargetResolutionError) Error() string {
	return fmt.Sprintf("resolve targets for schedule %s: %v", e.ScheduleID, e.Err)
}

func (e *TargetResolutionError) Unwrap() error { return e.Err }

// Dispatcher sends one firing of a schedule.
type Dispatcher struct {
	Recipients  Recipients
	Ledger      Ledger
	Cursor      Cursor
	Sender      messaging.Sender
	Logger      *slog.Logger
	Concurrency int
	Now         func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) resolve(ctx context.Context, s *models.Schedule) ([]models.Recipient, error) {
	switch s.TargetType {
	case models.TargetAll:
		return d.Recipients.ListActiveByOwner(ctx, s.OwnerID)
	case models.TargetExplicit:
		return d.Recipients.ListActiveByIDs(ctx, s.OwnerID, s.TargetIDs)
	default:
		return nil, fmt.Errorf("unknown target type %q", s.TargetType)
	}
}

// Dispatch sends s to each of its recipients for the window identified by
// s.LastSentAt, then advances last_sent_at to evalTime. Each recipient's
// ledger row is claimed immediately before its send, so a concurrent firing of
// the same window skips recipients already claimed. Per-recipient failures are
// recorded and reported in the result without aborting the batch.
//
// The firing runs to completion even if ctx is cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, s *models.Schedule, evalTime time.Time) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	log := d.Logger.With("schedule_id", s.ID)

	recipients, err := d.resolve(ctx, s)
	if err != nil {
		return Result{}, &TargetResolutionError{ScheduleID: s.ID, Err: err}
	}

	window := s.WindowKey()
	reopen := s.Cadence == cadence.Once
	res := Result{Total: len(recipients), Errors: []RecipientError{}}

	limit := d.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(limit)

	for _, rc := range recipients {
		g.Go(func() error {
			key := models.DeliveryKey{ScheduleID: s.ID, RecipientID: rc.ID, Window: window}
			outcome, sendErr := d.deliver(ctx, s, rc, key, reopen)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeSent:
				res.Processed++
			case outcomeAlreadySent:
				res.Skipped++
				res.AlreadySent++
			case outcomeSkipped:
				res.Skipped++
			case outcomeFailed:
				res.Errors = append(res.Errors, RecipientError{RecipientID: rc.ID, Error: sendErr.Error()})
			}
			metrics.IncDeliveries(string(outcome))
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.Errors, func(i, j int) bool {
		return res.Errors[i].RecipientID.String() < res.Errors[j].RecipientID.String()
	})

	var next *time.Time
	if s.CronExpr != "" {
		if n, err := tzcron.NextAfter(s.CronExpr, evalTime); err == nil {
			next = &n
		} else {
			log.Warn("next send time", "cron", s.CronExpr, "error", err)
		}
	}
	res.Advanced, err = d.Cursor.AdvanceLastSent(ctx, s.ID, s.LastSentAt, evalTime, next)
	if err != nil {
		return res, fmt.Errorf("advance last_sent_at: %w", err)
	}
	if !res.Advanced {
		log.Info("last_sent_at already advanced by a concurrent firing", "window", window)
	}

	log.Info("firing dispatched",
		"window", window,
		"total", res.Total,
		"processed", res.Processed,
		"skipped", res.Skipped,
		"failed", len(res.Errors))
	return res, nil
}

type outcome string

const (
	outcomeSent        outcome = "sent"
	outcomeFailed      outcome = "failed"
	outcomeSkipped     outcome = "skipped"
	outcomeAlreadySent outcome = "duplicate"
)

func (d *Dispatcher) deliver(ctx context.Context, s *models.Schedule, rc models.Recipient, key models.DeliveryKey, reopen bool) (outcome, error) {
	claimed, err := d.Ledger.Claim(ctx, key, reopen)
	if err != nil {
		return outcomeFailed, fmt.Errorf("ledger claim: %w", err)
	}
	if !claimed {
		st, err := d.Ledger.Status(ctx, key)
		if err == nil && st == models.DeliverySent {
			return outcomeAlreadySent, nil
		}
		return outcomeSkipped, nil
	}

	msg := messaging.Message{
		ScheduleID: s.ID.String(),
		OwnerID:    s.OwnerID.String(),
		Recipient:  rc,
		Content:    s.Content,
	}
	if err := d.Sender.Send(ctx, msg); err != nil {
		if markErr := d.Ledger.MarkFailed(ctx, key, err.Error()); markErr != nil {
			d.Logger.Error("record failed delivery", "schedule_id", s.ID, "recipient_id", rc.ID, "error", markErr)
		}
		return outcomeFailed, err
	}
	if err := d.Ledger.MarkSent(ctx, key, d.now()); err != nil {
		// The message went out; the row stays pending and is never re-claimed.
		d.Logger.Error("record sent delivery", "schedule_id", s.ID, "recipient_id", rc.ID, "error", err)
	}
	return outcomeSent, nil
}
