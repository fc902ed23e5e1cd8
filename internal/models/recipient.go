package models

import "github.com/google/uuid"

// Recipient is a user coached by OwnerID who can receive scheduled messages.
type Recipient struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	DisplayName string    `json:"display_name"`
	ChatID      string    `json:"chat_id"`
	Active      bool      `json:"active"`
}
