package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is the engagement container. Number has the form PRJ-YYYYMMDD-NNNN.
type Project struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Number       string     `db:"number" json:"number"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	Status       string     `db:"status" json:"status"`
	ContractorID uuid.UUID  `db:"contractor_id" json:"contractor_id"`
	HomeownerID  *uuid.UUID `db:"homeowner_id" json:"homeowner_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
