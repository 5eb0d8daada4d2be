package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense is a cost the contractor logged against an agreement.
type Expense struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	AgreementID uuid.UUID       `db:"agreement_id" json:"agreement_id"`
	Description string          `db:"description" json:"description"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	IncurredOn  time.Time       `db:"incurred_on" json:"incurred_on"`
	CreatedBy   uuid.UUID       `db:"created_by" json:"created_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
