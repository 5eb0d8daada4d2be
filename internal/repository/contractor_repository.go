package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
)

var ErrContractorNotFound = errors.New("contractor not found")

// ContractorRepository works with contractors and connected_accounts.
type ContractorRepository struct {
	db *sqlx.DB
}

func NewContractorRepository(db *sqlx.DB) *ContractorRepository {
	return &ContractorRepository{db: db}
}

func (r *ContractorRepository) Create(ctx context.Context, c *models.Contractor) error {
	query := `
		INSERT INTO contractors (user_id, business_name, phone, license_number, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, onboarding_status, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query, c.UserID, c.BusinessName, c.Phone, c.LicenseNumber, c.Address).
		Scan(&c.ID, &c.OnboardingStatus, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("contractor repository: create %w", err)
	}
	return nil
}

func (r *ContractorRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contractor, error) {
	return common.GetByID[models.Contractor](ctx, r.db, "contractors", id, ErrContractorNotFound)
}

func (r *ContractorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Contractor, error) {
	return common.GetByField[models.Contractor](ctx, r.db, "contractors", "user_id", userID, ErrContractorNotFound)
}

func (r *ContractorRepository) GetByStripeAccountID(ctx context.Context, accountID string) (*models.Contractor, error) {
	return common.GetByField[models.Contractor](ctx, r.db, "contractors", "stripe_account_id", accountID, ErrContractorNotFound)
}

// UpdateProfile writes the editable business fields.
func (r *ContractorRepository) UpdateProfile(ctx context.Context, c *models.Contractor) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contractors
		SET business_name = $2, phone = $3, license_number = $4, address = $5, updated_at = NOW()
		WHERE id = $1
	`, c.ID, c.BusinessName, c.Phone, c.LicenseNumber, c.Address)
	if err != nil {
		return fmt.Errorf("contractor repository: update profile %w", err)
	}
	return requireAffected(res, ErrContractorNotFound)
}

// SaveStripeState writes the Connect account id, capability flags and the
// onboarding status, and mirrors them into connected_accounts.
func (r *ContractorRepository) SaveStripeState(ctx context.Context, c *models.Contractor) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE contractors
			SET stripe_account_id = $2, charges_enabled = $3, payouts_enabled = $4,
				details_submitted = $5, onboarding_status = $6, updated_at = NOW()
			WHERE id = $1
		`, c.ID, c.StripeAccountID, c.ChargesEnabled, c.PayoutsEnabled, c.DetailsSubmitted, c.OnboardingStatus); err != nil {
			return fmt.Errorf("contractor repository: save stripe state %w", err)
		}
		if !c.HasStripeAccount() {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO connected_accounts (user_id, stripe_account_id, charges_enabled, payouts_enabled, details_submitted)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id) DO UPDATE
			SET stripe_account_id = EXCLUDED.stripe_account_id,
				charges_enabled = EXCLUDED.charges_enabled,
				payouts_enabled = EXCLUDED.payouts_enabled,
				details_submitted = EXCLUDED.details_submitted,
				deauthorized = FALSE,
				updated_at = NOW()
		`, c.UserID, *c.StripeAccountID, c.ChargesEnabled, c.PayoutsEnabled, c.DetailsSubmitted); err != nil {
			return fmt.Errorf("contractor repository: upsert connected account %w", err)
		}
		return nil
	})
}

// Deauthorize clears the Connect link after the contractor revoked the platform.
func (r *ContractorRepository) Deauthorize(ctx context.Context, accountID string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE contractors
			SET stripe_account_id = NULL, charges_enabled = FALSE, payouts_enabled = FALSE,
				details_submitted = FALSE, onboarding_status = $2, updated_at = NOW()
			WHERE stripe_account_id = $1
		`, accountID, models.OnboardingNotStarted); err != nil {
			return fmt.Errorf("contractor repository: deauthorize %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE connected_accounts
			SET deauthorized = TRUE, charges_enabled = FALSE, payouts_enabled = FALSE, updated_at = NOW()
			WHERE stripe_account_id = $1
		`, accountID); err != nil {
			return fmt.Errorf("contractor repository: deauthorize connected account %w", err)
		}
		return nil
	})
}

// AdjustExternalAccounts adds delta (+1 or -1) to the cached bank account count.
func (r *ContractorRepository) AdjustExternalAccounts(ctx context.Context, accountID string, delta int) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE connected_accounts
		SET external_accounts_count = GREATEST(external_accounts_count + $2, 0), updated_at = NOW()
		WHERE stripe_account_id = $1
	`, accountID, delta); err != nil {
		return fmt.Errorf("contractor repository: adjust external accounts %w", err)
	}
	return nil
}

func (r *ContractorRepository) GetConnectedAccount(ctx context.Context, userID uuid.UUID) (*models.ConnectedAccount, error) {
	var acc models.ConnectedAccount
	if err := r.db.GetContext(ctx, &acc, `SELECT * FROM connected_accounts WHERE user_id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("contractor repository: get connected account %w", err)
	}
	return &acc, nil
}
