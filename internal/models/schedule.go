package models

import (
	"time"

	"github.com/crucial707/coach-scheduler/internal/cadence"
	"github.com/google/uuid"
)

// ScheduleStatus is the lifecycle state of a message schedule.
type ScheduleStatus string

const (
	StatusActive    ScheduleStatus = "active"
	StatusPaused    ScheduleStatus = "paused"
	StatusCompleted ScheduleStatus = "completed"
	StatusCancelled ScheduleStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s ScheduleStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// TargetType selects who receives a scheduled message.
type TargetType string

const (
	// TargetAll sends to every active recipient of the owning coach.
	TargetAll TargetType = "all"
	// TargetExplicit sends to the recipient ids stored on the schedule.
	TargetExplicit TargetType = "explicit"
)

// Schedule is a coach's message definition together with when and how often
// it is delivered.
type Schedule struct {
	ID      uuid.UUID       `json:"id"`
	OwnerID uuid.UUID       `json:"owner_id"`
	Content string          `json:"content"`
	Cadence cadence.Cadence `json:"cadence"`

	// StartDate, StartTime and Timezone are kept as entered so the UTC
	// cron can be re-derived.
	StartDate       string     `json:"start_date"`
	StartTime       string     `json:"start_time"`
	Timezone        string     `json:"timezone"`
	TZOffsetMinutes int        `json:"tz_offset_minutes"`
	CronExpr        string     `json:"cron_expr,omitempty"`
	StartAt         time.Time  `json:"start_at"`
	EndDate         *time.Time `json:"end_date,omitempty"`

	TargetType TargetType  `json:"target_type"`
	TargetIDs  []uuid.UUID `json:"target_ids,omitempty"`

	Status ScheduleStatus `json:"status"`
	// Active is cleared once the end date has passed; such schedules are
	// never dispatched even though their status remains active.
	Active bool `json:"active"`

	LastSentAt    *time.Time `json:"last_sent_at,omitempty"`
	NextSendAt    *time.Time `json:"next_send_at,omitempty"`
	TriggerHandle string     `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Dispatchable reports whether the schedule may be fired at all, regardless
// of elapsed time.
func (s *Schedule) Dispatchable() bool {
	return s.Status == StatusActive && s.Active
}

// Due reports whether the schedule should fire at now.
func (s *Schedule) Due(now time.Time) bool {
	if !s.Dispatchable() {
		return false
	}
	return cadence.IsDue(s.Cadence, s.LastSentAt, now)
}

// Expired reports whether the optional end date is before now. The end date
// is inclusive: a schedule ending on 2025-03-31 may still fire that day (UTC).
func (s *Schedule) Expired(now time.Time) bool {
	if s.EndDate == nil {
		return false
	}
	return !now.UTC().Before(s.EndDate.UTC().AddDate(0, 0, 1))
}

// WindowKey identifies the due window the next firing consumes.
func (s *Schedule) WindowKey() string {
	return cadence.WindowKey(s.Cadence, s.LastSentAt)
}
