package tzcron

import (
	"testing"
	"time"

	"github.com/crucial707/coach-scheduler/internal/cadence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToUTCCron(t *testing.T) {
	tests := []struct {
		local  string
		offset int
		want   string
	}{
		{"09:00", -5 * 60, "00 14 * * *"},
		{"23:30", 2 * 60, "30 21 * * *"},
		{"00:15", 2 * 60, "15 22 * * *"},
		{"22:00", -5 * 60, "00 03 * * *"},
		{"12:00", 0, "00 12 * * *"},
		{"08:45", 5*60 + 30, "15 03 * * *"},
	}
	for _, tt := range tests {
		got, err := ToUTCCron(tt.local, tt.offset)
		require.NoError(t, err, tt.local)
		assert.Equal(t, tt.want, got, "local %s offset %d", tt.local, tt.offset)
	}
}

func TestToUTCCron_InvalidTime(t *testing.T) {
	for _, in := range []string{"", "9", "24:00", "12:60", "ab:cd"} {
		_, err := ToUTCCron(in, 0)
		assert.Error(t, err, in)
	}
}

func TestToLocalTime_RoundTrip(t *testing.T) {
	for _, offset := range []int{-600, -300, 0, 120, 330, 840} {
		for _, local := range []string{"00:00", "09:00", "23:30", "12:05"} {
			expr, err := ToUTCCron(local, offset)
			require.NoError(t, err)
			back, err := ToLocalTime(expr, offset)
			require.NoError(t, err)
			assert.Equal(t, local, back, "offset %d", offset)
		}
	}
}

func TestToLocalTime_NotFixed(t *testing.T) {
	_, err := ToLocalTime("*/5 * * * *", 0)
	assert.Error(t, err)
}

func TestCronFor(t *testing.T) {
	// Sunday 2025-03-02 23:30 at UTC+2 is Sunday 21:30 UTC.
	start := time.Date(2025, 3, 2, 21, 30, 0, 0, time.UTC)

	got, err := CronFor(cadence.Daily, "23:30", 120, start)
	require.NoError(t, err)
	assert.Equal(t, "30 21 * * *", got)

	got, err = CronFor(cadence.Weekly, "23:30", 120, start)
	require.NoError(t, err)
	assert.Equal(t, "30 21 * * 0", got)

	got, err = CronFor(cadence.Monthly, "23:30", 120, start)
	require.NoError(t, err)
	assert.Equal(t, "30 21 2 * *", got)

	got, err = CronFor(cadence.FiveMinutes, "23:30", 120, start)
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", got)

	_, err = CronFor(cadence.Once, "23:30", 120, start)
	assert.ErrorIs(t, err, ErrNoCron)

	_, err = CronFor(cadence.Unknown, "23:30", 120, start)
	assert.ErrorIs(t, err, cadence.ErrUnknownCadence)
}

func TestCronFor_StartMustMatchLocalTime(t *testing.T) {
	start := time.Date(2025, 3, 2, 21, 30, 0, 0, time.UTC)
	_, err := CronFor(cadence.Daily, "23:30", 60, start)
	assert.Error(t, err)
	_, err = CronFor(cadence.Daily, "7pm", 120, start)
	assert.Error(t, err)
}

func TestCronFor_WeeklyRollsIntoNextUTCDay(t *testing.T) {
	// Monday 22:00 at UTC-5 is Tuesday 03:00 UTC.
	start, offset, err := StartInstant("2025-03-03", "22:00", "UTC-05:00")
	require.NoError(t, err)
	assert.Equal(t, -300, offset)

	got, err := CronFor(cadence.Weekly, "22:00", offset, start)
	require.NoError(t, err)
	assert.Equal(t, "00 03 * * 2", got)

	local, err := ToLocalTime(got, offset)
	require.NoError(t, err)
	assert.Equal(t, "22:00", local)
}

func TestLastAtOrBefore(t *testing.T) {
	tests := []struct {
		name string
		expr string
		at   time.Time
		want time.Time
	}{
		{"daily just after tick", "00 12 * * *", time.Date(2025, 3, 2, 12, 0, 3, 0, time.UTC), time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)},
		{"daily on tick", "00 12 * * *", time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC), time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)},
		{"daily before tick", "00 12 * * *", time.Date(2025, 3, 2, 11, 59, 0, 0, time.UTC), time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"five minutes", "*/5 * * * *", time.Date(2025, 3, 2, 9, 7, 30, 0, time.UTC), time.Date(2025, 3, 2, 9, 5, 0, 0, time.UTC)},
		{"weekly", "00 09 * * 1", time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC), time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)},
		{"monthly", "30 08 15 * *", time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), time.Date(2025, 2, 15, 8, 30, 0, 0, time.UTC)},
		{"monthly on the 31st skips short months", "00 12 31 * *", time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LastAtOrBefore(tt.expr, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := LastAtOrBefore("not a cron", time.Now())
	assert.Error(t, err)
}

func TestResolveOffset(t *testing.T) {
	at := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		tz   string
		want int
	}{
		{"UTC", 0},
		{"", 0},
		{"UTC-05:00", -300},
		{"+02:00", 120},
		{"-0530", -330},
		{"GMT+9", 540},
	}
	for _, tt := range tests {
		got, err := ResolveOffset(tt.tz, at)
		require.NoError(t, err, tt.tz)
		assert.Equal(t, tt.want, got, tt.tz)
	}

	_, err := ResolveOffset("Mars/Olympus", at)
	assert.Error(t, err)
}

func TestStartInstant_IANA(t *testing.T) {
	if _, err := time.LoadLocation("America/New_York"); err != nil {
		t.Skip("tzdata not available")
	}
	// Winter: EST is UTC-5.
	start, offset, err := StartInstant("2025-01-15", "09:00", "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, -300, offset)
	assert.Equal(t, time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC), start)

	// Summer: EDT is UTC-4.
	start, offset, err = StartInstant("2025-07-15", "09:00", "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, -240, offset)
	assert.Equal(t, time.Date(2025, 7, 15, 13, 0, 0, 0, time.UTC), start)
}

func TestNextAfter(t *testing.T) {
	from := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	next, err := NextAfter("00 14 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 2, 14, 0, 0, 0, time.UTC), next)

	_, err = NextAfter("not a cron", from)
	assert.Error(t, err)
}
