package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
)

var ErrExpenseNotFound = errors.New("expense not found")

type ExpenseRepository struct {
	db *sqlx.DB
}

func NewExpenseRepository(db *sqlx.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Create(ctx context.Context, e *models.Expense) error {
	if err := r.db.QueryRowxContext(ctx, `
		INSERT INTO expenses (agreement_id, description, amount, incurred_on, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, e.AgreementID, e.Description, e.Amount, e.IncurredOn, e.CreatedBy).Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("expense repository: create %w", err)
	}
	return nil
}

// ListByAgreement returns the expenses and their total.
func (r *ExpenseRepository) ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]models.Expense, decimal.Decimal, error) {
	out := []models.Expense{}
	if err := r.db.SelectContext(ctx, &out, `
		SELECT * FROM expenses WHERE agreement_id = $1 ORDER BY incurred_on DESC, created_at DESC
	`, agreementID); err != nil {
		return nil, decimal.Zero, fmt.Errorf("expense repository: list %w", err)
	}
	total := decimal.Zero
	for _, e := range out {
		total = total.Add(e.Amount)
	}
	return out, total, nil
}

// Delete removes an expense of the given agreement.
func (r *ExpenseRepository) Delete(ctx context.Context, agreementID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1 AND agreement_id = $2`, id, agreementID)
	if err != nil {
		return fmt.Errorf("expense repository: delete %w", err)
	}
	return requireAffected(res, ErrExpenseNotFound)
}
