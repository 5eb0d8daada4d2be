package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the durable record of a Stripe delivery. Failed rows are the
// dead-letter log.
type WebhookEvent struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	StripeEventID string          `db:"stripe_event_id" json:"stripe_event_id"`
	EventType     string          `db:"event_type" json:"event_type"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	Status        string          `db:"status" json:"status"`
	Error         string          `db:"error" json:"error,omitempty"`
	Attempts      int             `db:"attempts" json:"attempts"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}
