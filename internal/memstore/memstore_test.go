package memstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crucial707/coach-scheduler/internal/cadence"
	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaim_OnePerKey(t *testing.T) {
	m := New()
	ctx := context.Background()
	key := models.DeliveryKey{ScheduleID: uuid.New(), RecipientID: uuid.New(), Window: "first"}

	var won atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.Claim(ctx, key, false); ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, won.Load())
}

func TestClaim_ReopenFailed(t *testing.T) {
	m := New()
	ctx := context.Background()
	key := models.DeliveryKey{ScheduleID: uuid.New(), RecipientID: uuid.New(), Window: "once"}

	ok, _ := m.Claim(ctx, key, true)
	require.True(t, ok)
	require.NoError(t, m.MarkFailed(ctx, key, "timeout"))

	ok, _ = m.Claim(ctx, key, false)
	assert.False(t, ok, "failed rows stay closed without reopen")

	ok, _ = m.Claim(ctx, key, true)
	require.True(t, ok)
	require.NoError(t, m.MarkSent(ctx, key, time.Now()))

	ok, _ = m.Claim(ctx, key, true)
	assert.False(t, ok, "sent rows are never reopened")

	rows, _ := m.ListBySchedule(ctx, key.ScheduleID, 10, 0)
	require.Len(t, rows, 1)
	assert.Equal(t, models.DeliverySent, rows[0].Status)
	assert.Equal(t, 2, rows[0].Attempts)
	assert.Empty(t, rows[0].Error)
}

func TestAdvanceLastSent_CompareAndSet(t *testing.T) {
	m := New()
	ctx := context.Background()
	s := &models.Schedule{OwnerID: uuid.New(), Cadence: cadence.Daily, Status: models.StatusActive, Active: true}
	require.NoError(t, m.Create(ctx, s))

	t1 := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	ok, _ := m.AdvanceLastSent(ctx, s.ID, nil, t1, &t2)
	assert.True(t, ok)
	ok, _ = m.AdvanceLastSent(ctx, s.ID, nil, t1.Add(time.Second), nil)
	assert.False(t, ok, "stale prev must lose")
	ok, _ = m.AdvanceLastSent(ctx, s.ID, &t1, t1, nil)
	assert.False(t, ok, "last_sent_at never moves backwards or stays equal")

	got, _ := m.GetByID(ctx, s.ID)
	require.NotNil(t, got.LastSentAt)
	assert.True(t, got.LastSentAt.Equal(t1))
	assert.True(t, got.NextSendAt.Equal(t2))
}

func TestTransition(t *testing.T) {
	m := New()
	ctx := context.Background()
	s := &models.Schedule{OwnerID: uuid.New(), Cadence: cadence.Once, Status: models.StatusActive, Active: true}
	require.NoError(t, m.Create(ctx, s))

	ok, _ := m.Transition(ctx, s.ID, models.StatusCancelled, models.StatusActive, models.StatusPaused)
	assert.True(t, ok)
	ok, _ = m.Transition(ctx, s.ID, models.StatusActive, models.StatusPaused)
	assert.False(t, ok)

	got, _ := m.GetByID(ctx, s.ID)
	assert.False(t, got.Active)
	list, _ := m.ListDispatchable(ctx)
	assert.Empty(t, list)

	updated, _ := m.UpdateContent(ctx, s.ID, "new")
	assert.False(t, updated, "terminal schedules are read-only")
}

func TestRecipients_OwnerScoped(t *testing.T) {
	m := New()
	ctx := context.Background()
	owner := uuid.New()
	mine := models.Recipient{ID: uuid.New(), OwnerID: owner, Active: true}
	inactive := models.Recipient{ID: uuid.New(), OwnerID: owner}
	foreign := models.Recipient{ID: uuid.New(), OwnerID: uuid.New(), Active: true}
	for _, rc := range []models.Recipient{mine, inactive, foreign} {
		m.AddRecipient(rc)
	}

	all, _ := m.ListActiveByOwner(ctx, owner)
	assert.Equal(t, []models.Recipient{mine}, all)

	picked, _ := m.ListActiveByIDs(ctx, owner, []uuid.UUID{mine.ID, inactive.ID, foreign.ID})
	assert.Equal(t, []models.Recipient{mine}, picked)
}
