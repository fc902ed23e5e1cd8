package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crucial707/coach-scheduler/internal/cadence"
	"github.com/crucial707/coach-scheduler/internal/dispatch"
	"github.com/crucial707/coach-scheduler/internal/metrics"
	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/crucial707/coach-scheduler/internal/trigger"
	"github.com/crucial707/coach-scheduler/internal/tzcron"
)

// Firing sources.
const (
	SourceTrigger = "trigger"
	SourceSweep   = "sweep"
)

// startTolerance lets a firing that arrives slightly before start_at through.
const startTolerance = time.Minute

// tickSkew is how early a trigger may arrive and still count for the cron
// activation it was sent for.
const tickSkew = 30 * time.Second

// Firing is one wake-up for one schedule.
type Firing struct {
	trigger.Payload
	Source string
}

// Outcome describes what a firing did.
type Outcome string

const (
	OutcomeMissing    Outcome = "missing"
	OutcomeForeign    Outcome = "owner_mismatch"
	OutcomeInactive   Outcome = "inactive"
	OutcomeExpired    Outcome = "expired"
	OutcomeNotStarted Outcome = "not_started"
	OutcomeNotDue     Outcome = "not_due"
	OutcomeDispatched Outcome = "dispatched"
	OutcomeCompleted  Outcome = "completed"
	OutcomeFailed     Outcome = "error"
	OutcomeActivated  Outcome = "activated"

	// OutcomeActivationFailed is a first firing that delivered but could not
	// register the recurring job.
	OutcomeActivationFailed Outcome = "activation_failed"
)

// Process handles one firing. The schedule is always re-read from the store;
// the payload only identifies it. Firings for schedules that are missing,
// owned by someone else, paused, cancelled, completed, expired or not yet
// due are no-ops that return an empty result.
func (s *Service) Process(ctx context.Context, f Firing) (dispatch.Result, Outcome, error) {
	res, outcome, err := s.process(ctx, f)
	source := f.Source
	if source == "" {
		source = SourceTrigger
	}
	metrics.IncFirings(source, string(outcome))
	if res.Errors == nil {
		res.Errors = []dispatch.RecipientError{}
	}
	return res, outcome, err
}

func (s *Service) process(ctx context.Context, f Firing) (dispatch.Result, Outcome, error) {
	log := s.logger().With("schedule_id", f.ScheduleID, "source", f.Source)
	now := s.now()

	sched, err := s.Store.GetByID(ctx, f.ScheduleID)
	if err != nil {
		return dispatch.Result{}, OutcomeFailed, fmt.Errorf("load schedule: %w", err)
	}
	if sched == nil {
		log.Info("firing for unknown schedule ignored")
		return dispatch.Result{}, OutcomeMissing, nil
	}
	if sched.OwnerID != f.OwnerID {
		log.Warn("firing owner does not match schedule owner", "payload_owner", f.OwnerID)
		return dispatch.Result{}, OutcomeForeign, nil
	}
	if !sched.Dispatchable() {
		log.Debug("firing for inactive schedule ignored", "status", sched.Status, "active", sched.Active)
		return dispatch.Result{}, OutcomeInactive, nil
	}
	if sched.Expired(now) {
		s.expire(ctx, sched)
		return dispatch.Result{}, OutcomeExpired, nil
	}
	if now.Add(startTolerance).Before(sched.StartAt) {
		log.Debug("firing before start ignored", "start_at", sched.StartAt)
		return dispatch.Result{}, OutcomeNotStarted, nil
	}

	var regErr error
	activated := false
	if f.IsFirstFiring && sched.Cadence.Recurring() && !trigger.Handle(sched.TriggerHandle).Recurring() {
		regErr = s.activate(ctx, sched)
		activated = regErr == nil
	}

	at, due := s.evaluate(sched, now)
	if !due {
		log.Debug("schedule not due", "last_sent_at", sched.LastSentAt)
		if activated {
			return dispatch.Result{}, OutcomeActivated, nil
		}
		return dispatch.Result{}, OutcomeNotDue, regErr
	}

	res, err := s.Dispatcher.Dispatch(ctx, sched, at)
	if err != nil {
		var tre *dispatch.TargetResolutionError
		if errors.As(err, &tre) {
			log.Error("target resolution failed, firing aborted", "error", err)
		}
		return res, OutcomeFailed, err
	}

	outcome := OutcomeDispatched
	if sched.Cadence == cadence.Once && res.Confirmed() > 0 {
		if s.complete(ctx, sched) {
			outcome = OutcomeCompleted
		}
	}
	if regErr != nil {
		return res, OutcomeActivationFailed, regErr
	}
	return res, outcome, nil
}

// evaluate decides whether sched is due at now and returns the time the
// firing is recorded at. Recurring schedules are anchored to their cron
// activations: the firing counts for the latest activation at or before
// now+tickSkew, so last_sent_at stays on the cron grid however late the
// trigger or sweep arrives. When that activation is not yet a full window
// after last_sent_at but now is (a monthly window spanning February, or a
// cursor left off the grid), the firing still goes out and the cursor moves
// to the activation if it is past last_sent_at, or to now otherwise.
func (s *Service) evaluate(sched *models.Schedule, now time.Time) (time.Time, bool) {
	if !sched.Cadence.Recurring() || sched.CronExpr == "" {
		return now, sched.Due(now)
	}
	tick, err := tzcron.LastAtOrBefore(sched.CronExpr, now.Add(tickSkew))
	if err != nil {
		s.logger().Warn("latest cron activation", "schedule_id", sched.ID, "cron", sched.CronExpr, "error", err)
		return now, sched.Due(now)
	}
	if tick.Before(sched.StartAt) {
		tick = sched.StartAt
	}
	if sched.Due(tick) {
		return tick, true
	}
	if !sched.Due(now) {
		return now, false
	}
	if sched.LastSentAt != nil && !tick.After(*sched.LastSentAt) {
		return now, true
	}
	return tick, true
}

// activate replaces the one-shot activation trigger with the recurring job.
func (s *Service) activate(ctx context.Context, sched *models.Schedule) error {
	p := trigger.Payload{ScheduleID: sched.ID, OwnerID: sched.OwnerID}
	h, err := s.registerRecurring(ctx, p, sched.CronExpr)
	if err != nil {
		s.logger().Error("activation: register recurring trigger", "schedule_id", sched.ID, "error", err)
		return err
	}
	if err := s.Store.SetTriggerHandle(ctx, sched.ID, string(h)); err != nil {
		s.cancelTrigger(ctx, sched.ID, h)
		return fmt.Errorf("activation: store trigger handle: %w", err)
	}
	sched.TriggerHandle = string(h)
	s.logger().Info("schedule activated", "schedule_id", sched.ID, "cron", sched.CronExpr)
	return nil
}

func (s *Service) complete(ctx context.Context, sched *models.Schedule) bool {
	ok, err := s.Store.Transition(ctx, sched.ID, models.StatusCompleted, models.StatusActive)
	if err != nil {
		s.logger().Error("complete once schedule", "schedule_id", sched.ID, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := s.Store.SetTriggerHandle(ctx, sched.ID, ""); err != nil {
		s.logger().Error("clear trigger handle", "schedule_id", sched.ID, "error", err)
	}
	s.logger().Info("once schedule completed", "schedule_id", sched.ID)
	return true
}

func (s *Service) expire(ctx context.Context, sched *models.Schedule) {
	if err := s.Store.Deactivate(ctx, sched.ID); err != nil {
		s.logger().Error("deactivate expired schedule", "schedule_id", sched.ID, "error", err)
		return
	}
	s.cancelTrigger(ctx, sched.ID, trigger.Handle(sched.TriggerHandle))
	if err := s.Store.SetTriggerHandle(ctx, sched.ID, ""); err != nil {
		s.logger().Error("clear trigger handle", "schedule_id", sched.ID, "error", err)
	}
	s.logger().Info("schedule passed its end date", "schedule_id", sched.ID, "end_date", sched.EndDate)
}
