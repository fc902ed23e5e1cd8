// Package trigger registers and cancels the external timers that wake the
// processing endpoint: one-shot triggers for once schedules and deferred
// activations, and recurring cron jobs.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Payload is the JSON body delivered to the processing endpoint on every firing.
type Payload struct {
	ScheduleID    uuid.UUID `json:"scheduleId"`
	OwnerID       uuid.UUID `json:"ownerId"`
	IsFirstFiring bool      `json:"isFirstFiring,omitempty"`
}

// Handle identifies a registered trigger. It has the form "message:<id>" for
// one-shot triggers and "schedule:<id>" for recurring ones.
type Handle string

const (
	KindMessage  = "message"
	KindSchedule = "schedule"
)

// ErrInvalidHandle is returned when a handle is not of a known form.
var ErrInvalidHandle = errors.New("invalid trigger handle")

// NewHandle joins kind and id into a Handle.
func NewHandle(kind, id string) Handle {
	return Handle(kind + ":" + id)
}

// Parse splits h into its kind and id.
func (h Handle) Parse() (kind, id string, err error) {
	kind, id, ok := strings.Cut(string(h), ":")
	if !ok || id == "" || (kind != KindMessage && kind != KindSchedule) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidHandle, string(h))
	}
	return kind, id, nil
}

// Recurring reports whether h refers to a recurring job.
func (h Handle) Recurring() bool {
	return strings.HasPrefix(string(h), KindSchedule+":")
}

// Coordinator registers triggers with a cron-capable service.
type Coordinator interface {
	// RegisterOnce fires payload once at fireAt (immediately if fireAt is past).
	RegisterOnce(ctx context.Context, p Payload, fireAt time.Time) (Handle, error)
	// RegisterRecurring fires payload on every match of the UTC cron expression.
	RegisterRecurring(ctx context.Context, p Payload, cronExpr string) (Handle, error)
	// Cancel tears the trigger down. Cancelling an unknown or already
	// delivered trigger is not an error.
	Cancel(ctx context.Context, h Handle) error
}

func delaySeconds(fireAt, now time.Time) int64 {
	d := fireAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
