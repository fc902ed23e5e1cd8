// Package scheduling owns the schedule lifecycle: creation with trigger
// registration, pause/resume/cancel, content updates, and the processing of
// firings delivered by the trigger coordinator or the fallback sweep.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/crucial707/coach-scheduler/internal/cadence"
	"github.com/crucial707/coach-scheduler/internal/dispatch"
	"github.com/crucial707/coach-scheduler/internal/metrics"
	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/crucial707/coach-scheduler/internal/trigger"
	"github.com/crucial707/coach-scheduler/internal/tzcron"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// MaxContentLength bounds the message text.
const MaxContentLength = 4000

// Store is the schedule store.
type Store interface {
	Create(ctx context.Context, s *models.Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Schedule, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
	SetTriggerHandle(ctx context.Context, id uuid.UUID, handle string) error
	Transition(ctx context.Context, id uuid.UUID, to models.ScheduleStatus, from ...models.ScheduleStatus) (bool, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	UpdateContent(ctx context.Context, id uuid.UUID, content string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Deliveries lists ledger rows for the delivery history.
type Deliveries interface {
	ListBySchedule(ctx context.Context, scheduleID uuid.UUID, limit, offset int) ([]models.Delivery, error)
}

// Auditor records coach actions.
type Auditor interface {
	Log(ctx context.Context, actorID uuid.UUID, action, resourceType string, resourceID uuid.UUID, details string) error
}

// Dispatcher sends one firing.
type Dispatcher interface {
	Dispatch(ctx context.Context, s *models.Schedule, evalTime time.Time) (dispatch.Result, error)
}

// Service implements schedule lifecycle and firing processing.
type Service struct {
	Store      Store
	Deliveries Deliveries
	Audit      Auditor
	Triggers   trigger.Coordinator
	Dispatcher Dispatcher
	Logger     *slog.Logger
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Service) audit(ctx context.Context, actor uuid.UUID, action string, id uuid.UUID, details string) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Log(ctx, actor, action, "schedule", id, details); err != nil {
		s.logger().Warn("audit log", "action", action, "schedule_id", id, "error", err)
	}
}

// CreateInput is the coach-facing schedule definition. The validate tags
// cover the shape of the input; validate() then checks what depends on
// parsing (zones, times, date order).
type CreateInput struct {
	Content    string      `json:"content" validate:"required,max=4000"`
	Cadence    string      `json:"cadence" validate:"required"`
	StartDate  string      `json:"startDate" validate:"required,datetime=2006-01-02"`
	StartTime  string      `json:"startTime" validate:"required"`
	Timezone   string      `json:"timezone" validate:"required"`
	EndDate    string      `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TargetType string      `json:"targetType" validate:"oneof=all explicit"`
	TargetIDs  []uuid.UUID `json:"targetIds,omitempty"`
}

var inputValidator = newInputValidator()

func newInputValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkShape runs the struct tags and records one message per failing field.
func checkShape(in any, v *ValidationError) {
	var errs validator.ValidationErrors
	if err := inputValidator.Struct(in); !errors.As(err, &errs) {
		return
	}
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			v.add(fe.Field(), "is required")
		case "datetime":
			v.add(fe.Field(), "must be YYYY-MM-DD")
		case "oneof":
			v.add(fe.Field(), "must be one of "+strings.ReplaceAll(fe.Param(), " ", ", "))
		case "max":
			v.add(fe.Field(), "must be at most "+fe.Param()+" characters")
		default:
			v.add(fe.Field(), "is invalid")
		}
	}
}

type normalized struct {
	content  string
	cadence  cadence.Cadence
	start    time.Time
	offset   int
	endDate  *time.Time
	target   models.TargetType
	targets  []uuid.UUID
	cronExpr string
}

func validateContent(content string, v *ValidationError) string {
	content = strings.TrimSpace(content)
	switch {
	case content == "":
		v.add("content", "is required")
	case utf8.RuneCountInString(content) > MaxContentLength:
		v.add("content", fmt.Sprintf("must be at most %d characters", MaxContentLength))
	}
	return content
}

func (in CreateInput) validate() (normalized, error) {
	var (
		v ValidationError
		n normalized
	)
	checkShape(in, &v)
	n.content = validateContent(in.Content, &v)

	c, err := cadence.Parse(in.Cadence)
	if err != nil {
		v.add("cadence", "must be one of once, 5min, daily, weekly, monthly")
	}
	n.cadence = c

	day, err := time.Parse("2006-01-02", strings.TrimSpace(in.StartDate))
	if err != nil {
		v.add("startDate", "must be YYYY-MM-DD")
	}
	if _, err := tzcron.ParseLocalTime(in.StartTime); err != nil {
		v.add("startTime", "must be HH:MM (24h)")
	}
	if _, err := tzcron.Location(in.Timezone); err != nil {
		v.add("timezone", "must be an IANA zone name or a UTC offset such as UTC-05:00")
	}
	if len(v.Fields) == 0 {
		n.start, n.offset, err = tzcron.StartInstant(in.StartDate, in.StartTime, in.Timezone)
		if err != nil {
			v.add("startDate", err.Error())
		}
	}

	if strings.TrimSpace(in.EndDate) != "" {
		end, err := time.Parse("2006-01-02", strings.TrimSpace(in.EndDate))
		switch {
		case err != nil:
			v.add("endDate", "must be YYYY-MM-DD")
		case !day.IsZero() && end.Before(day):
			v.add("endDate", "must not be before startDate")
		case c == cadence.Once:
			v.add("endDate", "is not supported for once schedules")
		default:
			n.endDate = &end
		}
	}

	switch models.TargetType(in.TargetType) {
	case models.TargetAll:
		n.target = models.TargetAll
	case models.TargetExplicit:
		n.target = models.TargetExplicit
		seen := make(map[uuid.UUID]bool, len(in.TargetIDs))
		for _, id := range in.TargetIDs {
			if id != uuid.Nil && !seen[id] {
				seen[id] = true
				n.targets = append(n.targets, id)
			}
		}
		if len(n.targets) == 0 {
			v.add("targetIds", "at least one recipient is required for explicit targets")
		}
	default:
		v.add("targetType", "must be all or explicit")
	}

	if len(v.Fields) == 0 && c.Recurring() {
		n.cronExpr, err = tzcron.CronFor(c, in.StartTime, n.offset, n.start)
		if err != nil {
			v.add("cadence", err.Error())
		}
	}
	return n, v.orNil()
}

// Create validates in, persists the schedule and registers its trigger. If
// the trigger cannot be registered the schedule is deleted and a
// *RegistrationError is returned.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in CreateInput) (*models.Schedule, error) {
	n, err := in.validate()
	if err != nil {
		return nil, err
	}
	now := s.now()

	sched := &models.Schedule{
		OwnerID:         ownerID,
		Content:         n.content,
		Cadence:         n.cadence,
		StartDate:       strings.TrimSpace(in.StartDate),
		StartTime:       strings.TrimSpace(in.StartTime),
		Timezone:        strings.TrimSpace(in.Timezone),
		TZOffsetMinutes: n.offset,
		CronExpr:        n.cronExpr,
		StartAt:         n.start,
		EndDate:         n.endDate,
		TargetType:      n.target,
		TargetIDs:       n.targets,
		Status:          models.StatusActive,
		Active:          true,
	}
	next := n.start
	if !next.After(now) && n.cronExpr != "" {
		if nx, err := tzcron.NextAfter(n.cronExpr, now); err == nil {
			next = nx
		}
	}
	sched.NextSendAt = &next

	if err := s.Store.Create(ctx, sched); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	handle, err := s.register(ctx, sched, now)
	if err != nil {
		if delErr := s.Store.Delete(ctx, sched.ID); delErr != nil {
			s.logger().Error("delete unregistered schedule", "schedule_id", sched.ID, "error", delErr)
		}
		return nil, err
	}
	if err := s.Store.SetTriggerHandle(ctx, sched.ID, string(handle)); err != nil {
		s.cancelTrigger(ctx, sched.ID, handle)
		if delErr := s.Store.Delete(ctx, sched.ID); delErr != nil {
			s.logger().Error("delete unregistered schedule", "schedule_id", sched.ID, "error", delErr)
		}
		return nil, fmt.Errorf("store trigger handle: %w", err)
	}
	sched.TriggerHandle = string(handle)

	s.audit(ctx, ownerID, "create", sched.ID, sched.Cadence.String())
	s.logger().Info("schedule created",
		"schedule_id", sched.ID,
		"owner_id", ownerID,
		"cadence", sched.Cadence,
		"start_at", sched.StartAt,
		"cron", sched.CronExpr)
	return sched, nil
}

// register picks the initial trigger: a one-shot for once schedules, a
// one-shot activation for recurring schedules that start in the future, and
// the recurring job otherwise.
func (s *Service) register(ctx context.Context, sched *models.Schedule, now time.Time) (trigger.Handle, error) {
	p := trigger.Payload{ScheduleID: sched.ID, OwnerID: sched.OwnerID}
	switch {
	case sched.Cadence == cadence.Once:
		return s.registerOnce(ctx, p, sched.StartAt)
	case sched.StartAt.After(now):
		p.IsFirstFiring = true
		return s.registerOnce(ctx, p, sched.StartAt)
	default:
		return s.registerRecurring(ctx, p, sched.CronExpr)
	}
}

func (s *Service) registerOnce(ctx context.Context, p trigger.Payload, at time.Time) (trigger.Handle, error) {
	h, err := s.Triggers.RegisterOnce(ctx, p, at)
	metrics.IncTriggerRegistrations("once", err)
	if err != nil {
		return "", &RegistrationError{ScheduleID: p.ScheduleID, Kind: "once", Err: err}
	}
	return h, nil
}

func (s *Service) registerRecurring(ctx context.Context, p trigger.Payload, cronExpr string) (trigger.Handle, error) {
	p.IsFirstFiring = false
	h, err := s.Triggers.RegisterRecurring(ctx, p, cronExpr)
	metrics.IncTriggerRegistrations("recurring", err)
	if err != nil {
		return "", &RegistrationError{ScheduleID: p.ScheduleID, Kind: "recurring", Err: err}
	}
	return h, nil
}

// cancelTrigger tears down h; a failure is logged as a *CancellationError.
func (s *Service) cancelTrigger(ctx context.Context, id uuid.UUID, h trigger.Handle) {
	if h == "" {
		return
	}
	err := s.Triggers.Cancel(ctx, h)
	metrics.IncTriggerRegistrations("cancel", err)
	if err != nil {
		cerr := &CancellationError{ScheduleID: id, Handle: string(h), Err: err}
		s.logger().Error("trigger teardown failed", "schedule_id", id, "handle", h, "error", cerr)
	}
}

// Get returns one of the coach's schedules.
func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Schedule, error) {
	sched, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if sched == nil || sched.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return sched, nil
}

// List returns a page of the coach's schedules and the total count.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Schedule, int, error) {
	list, err := s.Store.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}
	total, err := s.Store.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}
	return list, total, nil
}

// History returns ledger rows of one of the coach's schedules.
func (s *Service) History(ctx context.Context, ownerID, id uuid.UUID, limit, offset int) ([]models.Delivery, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return s.Deliveries.ListBySchedule(ctx, id, limit, offset)
}

// Pause stops future firings from dispatching. The external trigger is kept;
// firings that arrive while paused are no-ops.
func (s *Service) Pause(ctx context.Context, ownerID, id uuid.UUID) (*models.Schedule, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	ok, err := s.Store.Transition(ctx, id, models.StatusPaused, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("pause schedule: %w", err)
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	s.audit(ctx, ownerID, "pause", id, "")
	return s.Get(ctx, ownerID, id)
}

// Resume re-activates a paused schedule. When its start has already passed,
// the trigger is re-armed in case the one-shot it relied on fired while paused.
func (s *Service) Resume(ctx context.Context, ownerID, id uuid.UUID) (*models.Schedule, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	ok, err := s.Store.Transition(ctx, id, models.StatusActive, models.StatusPaused)
	if err != nil {
		return nil, fmt.Errorf("resume schedule: %w", err)
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	s.audit(ctx, ownerID, "resume", id, "")

	sched, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	s.rearm(ctx, sched)
	return s.Get(ctx, ownerID, id)
}

func (s *Service) rearm(ctx context.Context, sched *models.Schedule) {
	now := s.now()
	if sched.StartAt.After(now) || !sched.Dispatchable() {
		return
	}
	old := trigger.Handle(sched.TriggerHandle)
	p := trigger.Payload{ScheduleID: sched.ID, OwnerID: sched.OwnerID}

	var (
		h   trigger.Handle
		err error
	)
	switch {
	case sched.Cadence == cadence.Once:
		h, err = s.registerOnce(ctx, p, now)
	case !old.Recurring():
		h, err = s.registerRecurring(ctx, p, sched.CronExpr)
	default:
		return
	}
	if err != nil {
		s.logger().Error("re-arm trigger on resume", "schedule_id", sched.ID, "error", err)
		return
	}
	s.cancelTrigger(ctx, sched.ID, old)
	if err := s.Store.SetTriggerHandle(ctx, sched.ID, string(h)); err != nil {
		s.logger().Error("store trigger handle", "schedule_id", sched.ID, "error", err)
	}
}

// Cancel ends the schedule permanently and tears down its external trigger.
// A teardown failure is logged; the schedule is cancelled regardless.
func (s *Service) Cancel(ctx context.Context, ownerID, id uuid.UUID) (*models.Schedule, error) {
	sched, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.Store.Transition(ctx, id, models.StatusCancelled, models.StatusActive, models.StatusPaused)
	if err != nil {
		return nil, fmt.Errorf("cancel schedule: %w", err)
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	s.cancelTrigger(ctx, id, trigger.Handle(sched.TriggerHandle))
	if err := s.Store.SetTriggerHandle(ctx, id, ""); err != nil {
		s.logger().Error("clear trigger handle", "schedule_id", id, "error", err)
	}
	s.audit(ctx, ownerID, "cancel", id, "")
	s.logger().Info("schedule cancelled", "schedule_id", id, "owner_id", ownerID)
	return s.Get(ctx, ownerID, id)
}

// UpdateContent replaces the message text of an active or paused schedule.
func (s *Service) UpdateContent(ctx context.Context, ownerID, id uuid.UUID, content string) (*models.Schedule, error) {
	var v ValidationError
	content = validateContent(content, &v)
	if err := v.orNil(); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	ok, err := s.Store.UpdateContent(ctx, id, content)
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	s.audit(ctx, ownerID, "update", id, "content")
	return s.Get(ctx, ownerID, id)
}

// IsClientError reports whether err is caused by the caller's input or state.
func IsClientError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition)
}
