package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry represents one audit log row.
type AuditEntry struct {
	ID           int       `json:"id"`
	ActorID      uuid.UUID `json:"actor_id"`
	Action       string    `json:"action"`        // create, update, pause, resume, cancel
	ResourceType string    `json:"resource_type"` // schedule
	ResourceID   uuid.UUID `json:"resource_id"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
