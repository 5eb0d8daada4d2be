package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Conversation is the chat room of one agreement.
type Conversation struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	AgreementID      uuid.UUID  `db:"agreement_id" json:"agreement_id"`
	ContractorUserID uuid.UUID  `db:"contractor_user_id" json:"contractor_user_id"`
	HomeownerUserID  *uuid.UUID `db:"homeowner_user_id" json:"homeowner_user_id,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether userID may read and post in the conversation.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	if userID == c.ContractorUserID {
		return true
	}
	return c.HomeownerUserID != nil && *c.HomeownerUserID == userID
}

// Participants lists the user ids of the conversation.
func (c *Conversation) Participants() []uuid.UUID {
	out := []uuid.UUID{c.ContractorUserID}
	if c.HomeownerUserID != nil {
		out = append(out, *c.HomeownerUserID)
	}
	return out
}

// Message is one chat line.
type Message struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ConversationID uuid.UUID `db:"conversation_id" json:"conversation_id"`
	AuthorID       uuid.UUID `db:"author_id" json:"author_id"`
	Text           string    `db:"text" json:"text"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Notification is an event delivered to a user.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
