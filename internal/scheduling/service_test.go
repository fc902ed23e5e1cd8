package scheduling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crucial707/coach-scheduler/internal/cadence"
	"github.com/crucial707/coach-scheduler/internal/dispatch"
	"github.com/crucial707/coach-scheduler/internal/memstore"
	"github.com/crucial707/coach-scheduler/internal/messaging"
	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/crucial707/coach-scheduler/internal/trigger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeCoordinator struct {
	mu            sync.Mutex
	seq           int
	once          []trigger.Payload
	onceAt        []time.Time
	recurring     []string
	cancelled     []trigger.Handle
	failOnce      error
	failRecurring error
	failCancel    error
}

func (f *fakeCoordinator) RegisterOnce(_ context.Context, p trigger.Payload, at time.Time) (trigger.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOnce != nil {
		return "", f.failOnce
	}
	f.seq++
	f.once = append(f.once, p)
	f.onceAt = append(f.onceAt, at)
	return trigger.NewHandle(trigger.KindMessage, fmt.Sprintf("m%d", f.seq)), nil
}

func (f *fakeCoordinator) RegisterRecurring(_ context.Context, p trigger.Payload, cronExpr string) (trigger.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRecurring != nil {
		return "", f.failRecurring
	}
	f.seq++
	f.recurring = append(f.recurring, cronExpr)
	return trigger.NewHandle(trigger.KindSchedule, fmt.Sprintf("s%d", f.seq)), nil
}

func (f *fakeCoordinator) Cancel(_ context.Context, h trigger.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, h)
	return f.failCancel
}

type fakeSender struct {
	mu   sync.Mutex
	sent []messaging.Message
	fail bool
}

func (f *fakeSender) Send(_ context.Context, msg messaging.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("chat service timeout")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fixture struct {
	svc    *Service
	store  *memstore.Store
	coord  *fakeCoordinator
	sender *fakeSender
	clock  *clock
	owner  uuid.UUID
	users  []uuid.UUID
}

func newFixture(t *testing.T, recipients int) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		store:  memstore.New(),
		coord:  &fakeCoordinator{},
		sender: &fakeSender{},
		clock:  &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		owner:  uuid.New(),
	}
	for i := 0; i < recipients; i++ {
		id := uuid.New()
		f.users = append(f.users, id)
		f.store.AddRecipient(models.Recipient{ID: id, OwnerID: f.owner, ChatID: fmt.Sprintf("chat-%d", i), Active: true})
	}
	f.svc = &Service{
		Store:      f.store,
		Deliveries: f.store,
		Audit:      f.store,
		Triggers:   f.coord,
		Dispatcher: &dispatch.Dispatcher{
			Recipients: f.store,
			Ledger:     f.store,
			Cursor:     f.store,
			Sender:     f.sender,
			Logger:     logger,
			Now:        f.clock.Now,
		},
		Logger: logger,
		Now:    f.clock.Now,
	}
	return f
}

func (f *fixture) fire(t *testing.T, s *models.Schedule, first bool) (dispatch.Result, Outcome) {
	t.Helper()
	res, outcome, err := f.svc.Process(context.Background(), Firing{
		Payload: trigger.Payload{ScheduleID: s.ID, OwnerID: s.OwnerID, IsFirstFiring: first},
		Source:  SourceTrigger,
	})
	require.NoError(t, err)
	return res, outcome
}

func (f *fixture) records(t *testing.T, id uuid.UUID) []models.Delivery {
	t.Helper()
	rows, err := f.store.ListBySchedule(context.Background(), id, 0, 0)
	require.NoError(t, err)
	return rows
}

func TestCreate_ValidationErrors(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content:    "  ",
		Cadence:    "hourly",
		StartDate:  "03/01/2025",
		StartTime:  "25:00",
		Timezone:   "Mars/Olympus",
		TargetType: "explicit",
	})
	var v *ValidationError
	require.True(t, errors.As(err, &v), "got %v", err)
	for _, field := range []string{"content", "cadence", "startDate", "startTime", "timezone", "targetIds"} {
		assert.Contains(t, v.Fields, field)
	}
	assert.True(t, IsClientError(err))
	assert.Empty(t, f.coord.once)
	n, _ := f.store.CountByOwner(context.Background(), f.owner)
	assert.Zero(t, n)
}

func TestCreate_EndDateBeforeStart(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "hi", Cadence: "daily", StartDate: "2025-03-10", StartTime: "09:00",
		Timezone: "UTC", EndDate: "2025-03-01", TargetType: "all",
	})
	var v *ValidationError
	require.True(t, errors.As(err, &v))
	assert.Contains(t, v.Fields, "endDate")
}

func TestCreate_RecurringFutureRegistersActivation(t *testing.T) {
	f := newFixture(t, 2)
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "Morning check-in", Cadence: "daily", StartDate: "2025-03-03", StartTime: "09:00",
		Timezone: "UTC-05:00", TargetType: "all",
	})
	require.NoError(t, err)

	assert.Equal(t, "00 14 * * *", s.CronExpr)
	assert.Equal(t, -300, s.TZOffsetMinutes)
	assert.Equal(t, time.Date(2025, 3, 3, 14, 0, 0, 0, time.UTC), s.StartAt)
	require.Len(t, f.coord.once, 1)
	assert.True(t, f.coord.once[0].IsFirstFiring)
	assert.Equal(t, s.StartAt, f.coord.onceAt[0])
	assert.Empty(t, f.coord.recurring)

	stored, _ := f.store.GetByID(context.Background(), s.ID)
	assert.Equal(t, "message:m1", stored.TriggerHandle)
}

func TestCreate_RecurringPastStartRegistersCron(t *testing.T) {
	f := newFixture(t, 1)
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "Evening reflection", Cadence: "weekly", StartDate: "2025-02-24", StartTime: "22:00",
		Timezone: "UTC-05:00", TargetType: "all",
	})
	require.NoError(t, err)
	// Monday 22:00 at UTC-5 is Tuesday 03:00 UTC.
	assert.Equal(t, "00 03 * * 2", s.CronExpr)
	assert.Equal(t, []string{"00 03 * * 2"}, f.coord.recurring)
	assert.Empty(t, f.coord.once)
}

func TestCreate_RegistrationErrorLeavesNoSchedule(t *testing.T) {
	f := newFixture(t, 1)
	f.coord.failOnce = errors.New("trigger service unavailable")

	_, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "hi", Cadence: "once", StartDate: "2025-03-02", StartTime: "10:00",
		Timezone: "UTC", TargetType: "all",
	})
	var regErr *RegistrationError
	require.True(t, errors.As(err, &regErr), "got %v", err)
	assert.Equal(t, "once", regErr.Kind)

	n, _ := f.store.CountByOwner(context.Background(), f.owner)
	assert.Zero(t, n)
}

func TestProcess_OnceCompletesAndNeverFiresAgain(t *testing.T) {
	f := newFixture(t, 2)
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "Welcome aboard", Cadence: "once", StartDate: "2025-03-01", StartTime: "11:00",
		Timezone: "UTC", TargetType: "all",
	})
	require.NoError(t, err)

	res, outcome := f.fire(t, s, false)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, 2, res.Processed)

	got, _ := f.store.GetByID(context.Background(), s.ID)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Empty(t, got.TriggerHandle)

	for _, d := range []time.Duration{time.Minute, 24 * time.Hour, 400 * 24 * time.Hour} {
		f.clock.Advance(d)
		assert.False(t, got.Due(f.clock.Now()))
		res, outcome = f.fire(t, s, false)
		assert.Equal(t, OutcomeInactive, outcome)
		assert.Zero(t, res.Total)
	}
	assert.Len(t, f.records(t, s.ID), 2)
	assert.Equal(t, 2, f.sender.count())
}

func TestProcess_OnceAllFailedStaysActive(t *testing.T) {
	f := newFixture(t, 2)
	f.sender.fail = true
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "Welcome aboard", Cadence: "once", StartDate: "2025-03-01", StartTime: "11:00",
		Timezone: "UTC", TargetType: "all",
	})
	require.NoError(t, err)

	res, outcome := f.fire(t, s, false)
	assert.Equal(t, OutcomeDispatched, outcome)
	assert.Len(t, res.Errors, 2)

	got, _ := f.store.GetByID(context.Background(), s.ID)
	assert.Equal(t, models.StatusActive, got.Status)

	// The sweep retries and the once schedule completes.
	f.sender.fail = false
	f.clock.Advance(5 * time.Minute)
	res, outcome = f.fire(t, s, false)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, 2, res.Processed)
}

func TestProcess_CancelledFiringIsNoop(t *testing.T) {
	f := newFixture(t, 3)
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "Daily tip", Cadence: "daily", StartDate: "2025-02-01", StartTime: "08:00",
		Timezone: "UTC", TargetType: "all",
	})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), f.owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Empty(t, cancelled.TriggerHandle)
	assert.Equal(t, []trigger.Handle{trigger.Handle(s.TriggerHandle)}, f.coord.cancelled)

	res, outcome := f.fire(t, s, false)
	assert.Equal(t, OutcomeInactive, outcome)
	assert.Zero(t, res.Processed)
	assert.Empty(t, f.records(t, s.ID))
	assert.Zero(t, f.sender.count())

	_, err = f.svc.Cancel(context.Background(), f.owner, s.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancel_TeardownFailureStillCancels(t *testing.T) {
	f := newFixture(t, 1)
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "Daily tip", Cadence: "daily", StartDate: "2025-02-01", StartTime: "08:00",
		Timezone: "UTC", TargetType: "all",
	})
	require.NoError(t, err)
	f.coord.failCancel = errors.New("trigger service unavailable")

	got, err := f.svc.Cancel(context.Background(), f.owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
}

func TestProcess_ActivationRegistersRecurringAndDelivers(t *testing.T) {
	f := newFixture(t, 2)
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "Weekly plan", Cadence: "weekly", StartDate: "2025-03-03", StartTime: "09:00",
		Timezone: "UTC", TargetType: "all",
	})
	require.NoError(t, err)

	// Early sweep firing before the start is ignored.
	_, outcome := f.fire(t, s, false)
	assert.Equal(t, OutcomeNotStarted, outcome)

	f.clock.now = s.StartAt
	res, outcome := f.fire(t, s, true)
	assert.Equal(t, OutcomeDispatched, outcome)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, []string{"00 09 * * 1"}, f.coord.recurring)

	got, _ := f.store.GetByID(context.Background(), s.ID)
	assert.True(t, trigger.Handle(got.TriggerHandle).Recurring())

	// A duplicated activation neither re-registers nor re-sends.
	res, outcome = f.fire(t, s, true)
	assert.Equal(t, OutcomeNotDue, outcome)
	assert.Zero(t, res.Processed)
	assert.Len(t, f.coord.recurring, 1)
}

func TestProcess_ActivationRegistrationFailureStillDelivers(t *testing.T) {
	f := newFixture(t, 1)
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "Weekly plan", Cadence: "weekly", StartDate: "2025-03-03", StartTime: "09:00",
		Timezone: "UTC", TargetType: "all",
	})
	require.NoError(t, err)
	f.coord.failRecurring = errors.New("rejected")
	f.clock.now = s.StartAt

	res, outcome, err := f.svc.Process(context.Background(), Firing{
		Payload: trigger.Payload{ScheduleID: s.ID, OwnerID: f.owner, IsFirstFiring: true},
	})
	var regErr *RegistrationError
	assert.True(t, errors.As(err, &regErr))
	assert.Equal(t, OutcomeActivationFailed, outcome)
	assert.Equal(t, 1, res.Processed)
}

func TestProcess_OwnerMismatchIsNoop(t *testing.T) {
	f := newFixture(t, 1)
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "hi", Cadence: "daily", StartDate: "2025-02-01", StartTime: "08:00",
		Timezone: "UTC", TargetType: "all",
	})
	require.NoError(t, err)

	_, outcome, err := f.svc.Process(context.Background(), Firing{
		Payload: trigger.Payload{ScheduleID: s.ID, OwnerID: uuid.New()},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeForeign, outcome)
	assert.Zero(t, f.sender.count())

	_, outcome, err = f.svc.Process(context.Background(), Firing{
		Payload: trigger.Payload{ScheduleID: uuid.New(), OwnerID: f.owner},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeMissing, outcome)
}

func TestProcess_WeeklyEndToEnd(t *testing.T) {
	f := newFixture(t, 2)
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "Weekly review", Cadence: "weekly", StartDate: "2025-03-01", StartTime: "09:00",
		Timezone: "UTC", TargetType: "all",
	})
	require.NoError(t, err)

	var last *time.Time
	for i := 0; i < 3; i++ {
		res, outcome := f.fire(t, s, false)
		require.Equal(t, OutcomeDispatched, outcome, "firing %d", i)
		assert.Equal(t, 2, res.Processed)
		assert.Equal(t, 2, res.Total)

		got, _ := f.store.GetByID(context.Background(), s.ID)
		require.NotNil(t, got.LastSentAt)
		if last != nil {
			assert.Equal(t, 7*24*time.Hour, got.LastSentAt.Sub(*last), "firing %d", i)
		}
		last = got.LastSentAt

		// A sweep a minute later finds nothing due.
		f.clock.Advance(time.Minute)
		_, outcome = f.fire(t, s, false)
		assert.Equal(t, OutcomeNotDue, outcome)
		f.clock.Advance(7*24*time.Hour - time.Minute)
	}

	assert.Len(t, f.records(t, s.ID), 6)
	assert.Equal(t, 6, f.sender.count())
}

func TestProcess_DailyTriggerArrivingEarlierThanYesterday(t *testing.T) {
	f := newFixture(t, 1)
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "Morning check-in", Cadence: "daily", StartDate: "2025-03-01", StartTime: "12:00",
		Timezone: "UTC", TargetType: "all",
	})
	require.NoError(t, err)
	tick := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	f.clock.now = tick.Add(3 * time.Second)
	_, outcome := f.fire(t, s, true)
	require.Equal(t, OutcomeDispatched, outcome)
	got, _ := f.store.GetByID(context.Background(), s.ID)
	require.NotNil(t, got.LastSentAt)
	assert.Equal(t, tick, *got.LastSentAt, "cursor sits on the cron activation")

	f.clock.now = tick.Add(24*time.Hour + time.Second)
	_, outcome = f.fire(t, s, false)
	assert.Equal(t, OutcomeDispatched, outcome)

	// A trigger a few seconds ahead of the activation still counts for it.
	f.clock.now = tick.Add(48*time.Hour - 5*time.Second)
	_, outcome = f.fire(t, s, false)
	assert.Equal(t, OutcomeDispatched, outcome)

	// The late sweep for that same day finds nothing left to send.
	f.clock.now = tick.Add(48*time.Hour + 5*time.Minute)
	_, outcome = f.fire(t, s, false)
	assert.Equal(t, OutcomeNotDue, outcome)

	got, _ = f.store.GetByID(context.Background(), s.ID)
	assert.Equal(t, tick.Add(48*time.Hour), *got.LastSentAt)
	assert.Equal(t, 3, f.sender.count())
	assert.Len(t, f.records(t, s.ID), 3)
}

func TestProcess_SweepCatchesUpOnCronGrid(t *testing.T) {
	f := newFixture(t, 1)
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "Evening recap", Cadence: "daily", StartDate: "2025-03-01", StartTime: "20:00",
		Timezone: "UTC+02:00", TargetType: "all",
	})
	require.NoError(t, err)
	tick := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	f.clock.now = tick
	_, outcome := f.fire(t, s, true)
	require.Equal(t, OutcomeDispatched, outcome)

	// The next trigger is lost; the sweep delivers it hours later.
	f.clock.now = tick.Add(24*time.Hour + 4*time.Hour)
	_, outcome = f.fire(t, s, false)
	require.Equal(t, OutcomeDispatched, outcome)

	got, _ := f.store.GetByID(context.Background(), s.ID)
	assert.Equal(t, tick.Add(24*time.Hour), *got.LastSentAt)
	require.NotNil(t, got.NextSendAt)
	assert.Equal(t, tick.Add(48*time.Hour), *got.NextSendAt)

	// The following day's trigger is back on time.
	f.clock.now = tick.Add(48*time.Hour + 2*time.Second)
	_, outcome = f.fire(t, s, false)
	assert.Equal(t, OutcomeDispatched, outcome)
	assert.Equal(t, 3, f.sender.count())
}

func TestProcess_EndDateDeactivates(t *testing.T) {
	f := newFixture(t, 1)
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "Challenge day", Cadence: "daily", StartDate: "2025-02-20", StartTime: "08:00",
		Timezone: "UTC", EndDate: "2025-03-01", TargetType: "all",
	})
	require.NoError(t, err)

	_, outcome := f.fire(t, s, false)
	assert.Equal(t, OutcomeDispatched, outcome, "end date is inclusive")

	f.clock.Advance(24 * time.Hour)
	_, outcome = f.fire(t, s, false)
	assert.Equal(t, OutcomeExpired, outcome)

	got, _ := f.store.GetByID(context.Background(), s.ID)
	assert.False(t, got.Active)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Contains(t, f.coord.cancelled, trigger.Handle(s.TriggerHandle))

	_, outcome = f.fire(t, s, false)
	assert.Equal(t, OutcomeInactive, outcome)
	assert.Equal(t, 1, f.sender.count())
}

func TestPauseResume(t *testing.T) {
	f := newFixture(t, 1)
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "Daily tip", Cadence: "daily", StartDate: "2025-03-01", StartTime: "13:00",
		Timezone: "UTC", TargetType: "all",
	})
	require.NoError(t, err)
	require.True(t, trigger.Handle(s.TriggerHandle) != "" && !trigger.Handle(s.TriggerHandle).Recurring())

	paused, err := f.svc.Pause(context.Background(), f.owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, paused.Status)
	_, err = f.svc.Pause(context.Background(), f.owner, s.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// The activation fires while paused and is dropped.
	f.clock.Advance(2 * time.Hour)
	_, outcome := f.fire(t, s, true)
	assert.Equal(t, OutcomeInactive, outcome)
	assert.Empty(t, f.coord.recurring)

	resumed, err := f.svc.Resume(context.Background(), f.owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, resumed.Status)
	assert.True(t, trigger.Handle(resumed.TriggerHandle).Recurring(), "resume re-arms the recurring job")
	assert.Equal(t, []string{"00 13 * * *"}, f.coord.recurring)

	_, err = f.svc.Resume(context.Background(), f.owner, s.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestLifecycle_OtherCoachGetsNotFound(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "hi", Cadence: "daily", StartDate: "2025-03-01", StartTime: "13:00",
		Timezone: "UTC", TargetType: "all",
	})
	require.NoError(t, err)

	other := uuid.New()
	_, err = f.svc.Get(context.Background(), other, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Pause(context.Background(), other, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Cancel(context.Background(), other, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.History(context.Background(), other, s.ID, 10, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateContent(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content: "old", Cadence: "daily", StartDate: "2025-03-01", StartTime: "13:00",
		Timezone: "UTC", TargetType: "all",
	})
	require.NoError(t, err)

	got, err := f.svc.UpdateContent(context.Background(), f.owner, s.ID, "  new text ")
	require.NoError(t, err)
	assert.Equal(t, "new text", got.Content)

	_, err = f.svc.UpdateContent(context.Background(), f.owner, s.ID, "")
	var v *ValidationError
	assert.True(t, errors.As(err, &v))

	_, err = f.svc.Cancel(context.Background(), f.owner, s.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateContent(context.Background(), f.owner, s.ID, "after cancel")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	entries, _ := f.store.ListByActor(context.Background(), f.owner, 10, 0)
	actions := make([]string, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	assert.Equal(t, []string{"cancel", "update", "create"}, actions)
}

func TestList(t *testing.T) {
	f := newFixture(t, 0)
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(context.Background(), f.owner, CreateInput{
			Content: fmt.Sprintf("msg %d", i), Cadence: cadence.FiveMinutes.String(), StartDate: "2025-03-01",
			StartTime: "13:00", Timezone: "UTC", TargetType: "all",
		})
		require.NoError(t, err)
	}
	list, total, err := f.svc.List(context.Background(), f.owner, 2, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 3, total)
}

func TestCreate_ShapeMessages(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.svc.Create(context.Background(), f.owner, CreateInput{
		Content:   strings.Repeat("é", MaxContentLength+1),
		Cadence:   "daily",
		StartDate: "03/01/2025",
		StartTime: "09:00",
		Timezone:  "UTC",
		EndDate:   "soon",
	})
	var v *ValidationError
	require.True(t, errors.As(err, &v), "got %v", err)
	assert.Equal(t, "must be at most 4000 characters", v.Fields["content"])
	assert.Equal(t, "must be YYYY-MM-DD", v.Fields["startDate"])
	assert.Equal(t, "must be YYYY-MM-DD", v.Fields["endDate"])
	assert.Equal(t, "must be one of all, explicit", v.Fields["targetType"])
	assert.NotContains(t, v.Fields, "timezone")
}
