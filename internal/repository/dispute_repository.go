package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
)

var ErrDisputeNotFound = errors.New("dispute not found")

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// DisputeFilter narrows List.
type DisputeFilter struct {
	AgreementID  *uuid.UUID
	ContractorID *uuid.UUID
	HomeownerID  *uuid.UUID
	Status       string
}

func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	query := `
		INSERT INTO disputes (agreement_id, milestone_id, initiator_id, initiator_role, reason, description, status, fee_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		d.AgreementID, d.MilestoneID, d.InitiatorID, d.InitiatorRole, d.Reason, d.Description, d.Status, d.FeeAmount,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return fmt.Errorf("dispute repository: create %w", err)
	}
	return nil
}

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, r.db, "disputes", id, ErrDisputeNotFound)
}

func (r *DisputeRepository) List(ctx context.Context, f DisputeFilter, page common.PageRequest) ([]models.Dispute, int, error) {
	ds := common.PG.From(goqu.T("disputes").As("d")).
		Join(goqu.T("agreements").As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("d.agreement_id")))).
		Select(goqu.I("d.*")).
		Order(goqu.I("d.created_at").Desc())

	if f.AgreementID != nil {
		ds = ds.Where(goqu.I("d.agreement_id").Eq(*f.AgreementID))
	}
	if f.ContractorID != nil {
		ds = ds.Where(goqu.I("a.contractor_id").Eq(*f.ContractorID))
	}
	if f.HomeownerID != nil {
		ds = ds.Where(goqu.I("a.homeowner_id").Eq(*f.HomeownerID))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.I("d.status").Eq(f.Status))
	}

	return common.SelectPage[models.Dispute](ctx, r.db, ds, page)
}

// SetFeeIntent stores the PaymentIntent created for the dispute fee.
func (r *DisputeRepository) SetFeeIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes SET fee_payment_intent_id = $2, updated_at = NOW() WHERE id = $1
	`, id, intentID)
	if err != nil {
		return fmt.Errorf("dispute repository: set fee intent %w", err)
	}
	return requireAffected(res, ErrDisputeNotFound)
}

// ConfirmFee marks the fee paid and opens the dispute, freezing escrow on its
// scope. opened is false when the fee had already been confirmed.
func (r *DisputeRepository) ConfirmFee(ctx context.Context, id uuid.UUID) (d *models.Dispute, opened bool, err error) {
	err = common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.LockByID[models.Dispute](ctx, tx, "disputes", id, ErrDisputeNotFound)
		if err != nil {
			return err
		}
		d = locked
		if d.FeePaid {
			return nil
		}

		d.FeePaid = true
		if err := d.Open(); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE disputes SET fee_paid = TRUE, status = $2, updated_at = NOW() WHERE id = $1
		`, d.ID, d.Status); err != nil {
			return fmt.Errorf("dispute repository: confirm fee %w", err)
		}
		if err := setScopeFrozen(ctx, tx, d, true); err != nil {
			return err
		}
		opened = true
		return nil
	})
	return d, opened, err
}

// Resolve applies an administrative outcome. Escrow on the dispute's scope is
// released once no other active dispute covers it.
func (r *DisputeRepository) Resolve(ctx context.Context, id uuid.UUID, apply func(d *models.Dispute) error) (*models.Dispute, error) {
	var out *models.Dispute
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		d, err := common.LockByID[models.Dispute](ctx, tx, "disputes", id, ErrDisputeNotFound)
		if err != nil {
			return err
		}
		wasFreezing := d.FreezesEscrow()
		if err := apply(d); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE disputes SET status = $2, resolution = $3, resolved_by = $4, resolved_at = $5, updated_at = NOW()
			WHERE id = $1
		`, d.ID, d.Status, d.Resolution, d.ResolvedBy, d.ResolvedAt); err != nil {
			return fmt.Errorf("dispute repository: resolve %w", err)
		}

		if wasFreezing && !d.FreezesEscrow() {
			others, err := countActiveOnScope(ctx, tx, d)
			if err != nil {
				return err
			}
			if others == 0 {
				if err := setScopeFrozen(ctx, tx, d, false); err != nil {
					return err
				}
			}
		}
		out = d
		return nil
	})
	return out, err
}

func setScopeFrozen(ctx context.Context, tx *sqlx.Tx, d *models.Dispute, frozen bool) error {
	var err error
	if d.MilestoneID != nil {
		_, err = tx.ExecContext(ctx, `UPDATE milestones SET escrow_frozen = $2, updated_at = NOW() WHERE id = $1`, *d.MilestoneID, frozen)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE agreements SET escrow_frozen = $2, updated_at = NOW() WHERE id = $1`, d.AgreementID, frozen)
	}
	if err != nil {
		return fmt.Errorf("dispute repository: set escrow frozen %w", err)
	}
	return nil
}

func countActiveOnScope(ctx context.Context, tx *sqlx.Tx, d *models.Dispute) (int, error) {
	active := []string{string(valueobject.DisputeStatusOpen), string(valueobject.DisputeStatusUnderReview)}
	ds := common.PG.From("disputes").
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C("id").Neq(d.ID), goqu.C("status").In(active), goqu.C("agreement_id").Eq(d.AgreementID))
	if d.MilestoneID != nil {
		ds = ds.Where(goqu.C("milestone_id").Eq(*d.MilestoneID))
	} else {
		ds = ds.Where(goqu.C("milestone_id").IsNull())
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("dispute repository: build count %w", err)
	}
	var n int
	if err := tx.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("dispute repository: count active %w", err)
	}
	return n, nil
}

func (r *DisputeRepository) AddAttachment(ctx context.Context, a *models.DisputeAttachment) error {
	if err := r.db.QueryRowxContext(ctx, `
		INSERT INTO dispute_attachments (dispute_id, uploaded_by, file_name, file_path, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, a.DisputeID, a.UploadedBy, a.FileName, a.FilePath, a.ContentType, a.SizeBytes).Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("dispute repository: add attachment %w", err)
	}
	return nil
}

func (r *DisputeRepository) ListAttachments(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeAttachment, error) {
	out := []models.DisputeAttachment{}
	if err := r.db.SelectContext(ctx, &out, `
		SELECT * FROM dispute_attachments WHERE dispute_id = $1 ORDER BY created_at
	`, disputeID); err != nil {
		return nil, fmt.Errorf("dispute repository: list attachments %w", err)
	}
	return out, nil
}
