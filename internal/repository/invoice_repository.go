package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

type InvoiceRepository struct {
	db *sqlx.DB
}

func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// InvoiceFilter narrows List.
type InvoiceFilter struct {
	ContractorID *uuid.UUID
	HomeownerID  *uuid.UUID
	AgreementID  *uuid.UUID
	Status       string
}

// InvoiceContext is an invoice together with the rows that govern it.
type InvoiceContext struct {
	Invoice   *models.Invoice
	Agreement *models.Agreement
	Milestone *models.Milestone
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return common.GetByID[models.Invoice](ctx, r.db, "invoices", id, ErrInvoiceNotFound)
}

func (r *InvoiceRepository) ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]models.Invoice, error) {
	invoices := []models.Invoice{}
	if err := r.db.SelectContext(ctx, &invoices, `
		SELECT i.* FROM invoices i
		JOIN milestones m ON m.id = i.milestone_id
		WHERE i.agreement_id = $1
		ORDER BY m.order_num
	`, agreementID); err != nil {
		return nil, fmt.Errorf("invoice repository: list by agreement %w", err)
	}
	return invoices, nil
}

// List returns a page of invoices, newest first.
func (r *InvoiceRepository) List(ctx context.Context, f InvoiceFilter, page common.PageRequest) ([]models.Invoice, int, error) {
	ds := common.PG.From(goqu.T("invoices").As("i")).
		Join(goqu.T("agreements").As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("i.agreement_id")))).
		Select(goqu.I("i.*")).
		Order(goqu.I("i.created_at").Desc(), goqu.I("i.invoice_number").Asc())

	if f.ContractorID != nil {
		ds = ds.Where(goqu.I("a.contractor_id").Eq(*f.ContractorID))
	}
	if f.HomeownerID != nil {
		ds = ds.Where(goqu.I("a.homeowner_id").Eq(*f.HomeownerID))
	}
	if f.AgreementID != nil {
		ds = ds.Where(goqu.I("i.agreement_id").Eq(*f.AgreementID))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.I("i.status").Eq(f.Status))
	}

	return common.SelectPage[models.Invoice](ctx, r.db, ds, page)
}

// Load returns the invoice with its agreement and milestone.
func (r *InvoiceRepository) Load(ctx context.Context, id uuid.UUID) (*InvoiceContext, error) {
	return loadInvoiceContext(ctx, r.db, id, false)
}

func loadInvoiceContext(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, lock bool) (*InvoiceContext, error) {
	query := `SELECT * FROM invoices WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var inv models.Invoice
	if err := sqlx.GetContext(ctx, q, &inv, query, id); err != nil {
		return nil, notFoundOr(err, ErrInvoiceNotFound, "invoice repository: load")
	}
	a, err := common.GetByID[models.Agreement](ctx, q, "agreements", inv.AgreementID, ErrAgreementNotFound)
	if err != nil {
		return nil, err
	}
	m, err := common.GetByID[models.Milestone](ctx, q, "milestones", inv.MilestoneID, ErrMilestoneNotFound)
	if err != nil {
		return nil, err
	}
	return &InvoiceContext{Invoice: &inv, Agreement: a, Milestone: m}, nil
}

// Transition locks the invoice, lets apply move it through the state machine
// and persists the result.
func (r *InvoiceRepository) Transition(ctx context.Context, id uuid.UUID, apply func(ic *InvoiceContext) error) (*InvoiceContext, error) {
	var out *InvoiceContext
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		ic, err := loadInvoiceContext(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := apply(ic); err != nil {
			return err
		}
		inv := ic.Invoice
		if err := tx.QueryRowxContext(ctx, `
			UPDATE invoices SET
				status = $2, dispute_reason = $3, disputed_at = $4, dispute_by = $5,
				approved_at = $6, auto_released = $7, paid_at = $8, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`, inv.ID, inv.Status, inv.DisputeReason, inv.DisputedAt, inv.DisputeBy,
			inv.ApprovedAt, inv.AutoReleased, inv.PaidAt,
		).Scan(&inv.UpdatedAt); err != nil {
			return fmt.Errorf("invoice repository: save transition %w", err)
		}
		out = ic
		return nil
	})
	return out, err
}

// SetTransfer records the Stripe transfer that released the invoice's funds.
func (r *InvoiceRepository) SetTransfer(ctx context.Context, id uuid.UUID, transferID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invoices SET stripe_transfer_id = $2, updated_at = NOW() WHERE id = $1
	`, id, transferID)
	if err != nil {
		return fmt.Errorf("invoice repository: set transfer %w", err)
	}
	return requireAffected(res, ErrInvoiceNotFound)
}

// ListAutoReleaseDue returns pending invoices created at or before cutoff
// whose agreement and milestone escrow are not frozen.
func (r *InvoiceRepository) ListAutoReleaseDue(ctx context.Context, cutoff time.Time, limit int) ([]models.Invoice, error) {
	ds := common.PG.From(goqu.T("invoices").As("i")).
		Join(goqu.T("agreements").As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("i.agreement_id")))).
		Join(goqu.T("milestones").As("m"), goqu.On(goqu.I("m.id").Eq(goqu.I("i.milestone_id")))).
		Select(goqu.I("i.*")).
		Where(
			goqu.I("i.status").Eq(string(valueobject.InvoiceStatusPending)),
			goqu.I("i.created_at").Lte(cutoff),
			goqu.I("a.escrow_frozen").IsFalse(),
			goqu.I("m.escrow_frozen").IsFalse(),
			goqu.I("a.escrow_funded").IsTrue(),
		).
		Order(goqu.I("i.created_at").Asc()).
		Limit(uint(limit))

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("invoice repository: build auto release query %w", err)
	}
	invoices := []models.Invoice{}
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, fmt.Errorf("invoice repository: list auto release %w", err)
	}
	return invoices, nil
}
