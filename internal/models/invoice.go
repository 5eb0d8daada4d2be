package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
)

// Invoice bills one milestone. There is at most one invoice per milestone.
type Invoice struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	AgreementID      uuid.UUID       `db:"agreement_id" json:"agreement_id"`
	MilestoneID      uuid.UUID       `db:"milestone_id" json:"milestone_id"`
	InvoiceNumber    string          `db:"invoice_number" json:"invoice_number"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	DueDate          time.Time       `db:"due_date" json:"due_date"`
	Status           string          `db:"status" json:"status"`
	DisputeReason    string          `db:"dispute_reason" json:"dispute_reason,omitempty"`
	DisputedAt       *time.Time      `db:"disputed_at" json:"disputed_at,omitempty"`
	DisputeBy        string          `db:"dispute_by" json:"dispute_by,omitempty"`
	ApprovedAt       *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	AutoReleased     bool            `db:"auto_released" json:"auto_released"`
	StripeTransferID string          `db:"stripe_transfer_id" json:"stripe_transfer_id,omitempty"`
	PaidAt           *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

func (i *Invoice) status() valueobject.InvoiceStatus {
	return valueobject.InvoiceStatus(i.Status)
}

func (i *Invoice) transition(next valueobject.InvoiceStatus) error {
	if !i.status().CanTransitionTo(next) {
		return apperror.BadRequest("invoice cannot move from " + i.Status + " to " + string(next))
	}
	i.Status = string(next)
	return nil
}

// Approve moves a pending invoice to approved.
func (i *Invoice) Approve(at time.Time, auto bool) error {
	if err := i.transition(valueobject.InvoiceStatusApproved); err != nil {
		return err
	}
	t := at.UTC()
	i.ApprovedAt = &t
	i.AutoReleased = auto
	return nil
}

// Dispute moves a pending invoice to disputed and records who raised it.
func (i *Invoice) Dispute(reason, by string, at time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperror.Validation("dispute reason is required", map[string][]string{"reason": {"This field is required"}})
	}
	if err := i.transition(valueobject.InvoiceStatusDisputed); err != nil {
		return err
	}
	t := at.UTC()
	i.DisputeReason = reason
	i.DisputeBy = by
	i.DisputedAt = &t
	return nil
}

// MarkPaid moves an approved invoice to paid.
func (i *Invoice) MarkPaid(at time.Time) error {
	if err := i.transition(valueobject.InvoiceStatusPaid); err != nil {
		return err
	}
	t := at.UTC()
	i.PaidAt = &t
	return nil
}
