package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
)

// Dispute contests an agreement, or one milestone of it.
type Dispute struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	AgreementID        uuid.UUID       `db:"agreement_id" json:"agreement_id"`
	MilestoneID        *uuid.UUID      `db:"milestone_id" json:"milestone_id,omitempty"`
	InitiatorID        uuid.UUID       `db:"initiator_id" json:"initiator_id"`
	InitiatorRole      string          `db:"initiator_role" json:"initiator_role"`
	Reason             string          `db:"reason" json:"reason"`
	Description        string          `db:"description" json:"description"`
	Status             string          `db:"status" json:"status"`
	FeeAmount          decimal.Decimal `db:"fee_amount" json:"fee_amount"`
	FeePaid            bool            `db:"fee_paid" json:"fee_paid"`
	FeePaymentIntentID string          `db:"fee_payment_intent_id" json:"-"`
	Resolution         string          `db:"resolution" json:"resolution,omitempty"`
	ResolvedBy         *uuid.UUID      `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt         *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// Open moves an initiated dispute to open. The fee must be paid first.
func (d *Dispute) Open() error {
	if !d.FeePaid {
		return apperror.BadRequest("dispute fee must be paid before the dispute can be opened")
	}
	if !valueobject.DisputeStatus(d.Status).CanTransitionTo(valueobject.DisputeStatusOpen) {
		return apperror.BadRequest("dispute cannot be opened from " + d.Status)
	}
	d.Status = string(valueobject.DisputeStatusOpen)
	return nil
}

// Resolve records an administrative outcome.
func (d *Dispute) Resolve(outcome valueobject.DisputeStatus, resolution string, by uuid.UUID, at time.Time) error {
	if !outcome.IsResolution() {
		return apperror.BadRequest("invalid dispute outcome " + string(outcome))
	}
	if !valueobject.DisputeStatus(d.Status).CanTransitionTo(outcome) {
		return apperror.BadRequest("dispute cannot move from " + d.Status + " to " + string(outcome))
	}
	t := at.UTC()
	d.Status = string(outcome)
	d.Resolution = resolution
	d.ResolvedBy = &by
	d.ResolvedAt = &t
	return nil
}

// FreezesEscrow reports whether the dispute blocks fund release.
func (d *Dispute) FreezesEscrow() bool {
	return valueobject.DisputeStatus(d.Status).Active()
}

// DisputeAttachment is evidence uploaded to a dispute.
type DisputeAttachment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DisputeID   uuid.UUID `db:"dispute_id" json:"dispute_id"`
	UploadedBy  uuid.UUID `db:"uploaded_by" json:"uploaded_by"`
	FileName    string    `db:"file_name" json:"file_name"`
	FilePath    string    `db:"file_path" json:"-"`
	ContentType string    `db:"content_type" json:"content_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
