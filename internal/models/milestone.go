package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Milestone is a priced, dated deliverable of an agreement. OrderNum is unique
// within the agreement.
type Milestone struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	AgreementID    uuid.UUID       `db:"agreement_id" json:"agreement_id"`
	OrderNum       int             `db:"order_num" json:"order"`
	Title          string          `db:"title" json:"title"`
	Description    string          `db:"description" json:"description"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	StartDate      time.Time       `db:"start_date" json:"start_date"`
	CompletionDate time.Time       `db:"completion_date" json:"completion_date"`
	DurationDays   int             `db:"duration_days" json:"duration_days"`
	DurationHours  int             `db:"duration_hours" json:"duration_hours"`
	Completed      bool            `db:"completed" json:"completed"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	IsInvoiced     bool            `db:"is_invoiced" json:"is_invoiced"`
	EscrowFrozen   bool            `db:"escrow_frozen" json:"escrow_frozen"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// IsLate reports whether the completion date has passed without completion.
func (m *Milestone) IsLate(now time.Time) bool {
	if m.Completed {
		return false
	}
	y, mo, d := now.Date()
	today := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	cy, cm, cd := m.CompletionDate.Date()
	due := time.Date(cy, cm, cd, 0, 0, 0, 0, time.UTC)
	return today.After(due)
}

// MilestoneComment is a note left on a milestone by either party.
type MilestoneComment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	MilestoneID uuid.UUID `db:"milestone_id" json:"milestone_id"`
	AuthorID    uuid.UUID `db:"author_id" json:"author_id"`
	Content     string    `db:"content" json:"content"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// MilestoneFile is a progress photo or document attached to a milestone.
type MilestoneFile struct {
	ID          uuid.UUID `db:"id" json:"id"`
	MilestoneID uuid.UUID `db:"milestone_id" json:"milestone_id"`
	UploadedBy  uuid.UUID `db:"uploaded_by" json:"uploaded_by"`
	FileName    string    `db:"file_name" json:"file_name"`
	FilePath    string    `db:"file_path" json:"-"`
	ContentType string    `db:"content_type" json:"content_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
