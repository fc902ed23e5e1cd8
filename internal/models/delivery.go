package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the outcome of one send attempt in the delivery ledger.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// DeliveryKey identifies one ledger row: at most one row, and so at most one
// successful send, exists per key.
type DeliveryKey struct {
	ScheduleID  uuid.UUID
	RecipientID uuid.UUID
	Window      string
}

// Delivery is one delivery ledger row.
type Delivery struct {
	ID          int64          `json:"id"`
	ScheduleID  uuid.UUID      `json:"schedule_id"`
	RecipientID uuid.UUID      `json:"recipient_id"`
	Window      string         `json:"window"`
	Status      DeliveryStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	Attempts    int            `json:"attempts"`
	SentAt      *time.Time     `json:"sent_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Key returns the ledger key of d.
func (d Delivery) Key() DeliveryKey {
	return DeliveryKey{ScheduleID: d.ScheduleID, RecipientID: d.RecipientID, Window: d.Window}
}
