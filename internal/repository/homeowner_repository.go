package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
)

var ErrHomeownerNotFound = errors.New("homeowner not found")

type HomeownerRepository struct {
	db *sqlx.DB
}

func NewHomeownerRepository(db *sqlx.DB) *HomeownerRepository {
	return &HomeownerRepository{db: db}
}

// upsertHomeowner creates the homeowner or refreshes the contact details of the
// existing row with the same email. Runs inside the agreement transaction.
func upsertHomeowner(ctx context.Context, tx *sqlx.Tx, h *models.Homeowner) error {
	h.Email = strings.ToLower(strings.TrimSpace(h.Email))
	query := `
		INSERT INTO homeowners (full_name, email, phone, street_address, city, state, zip_code, created_by_contractor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (email) DO UPDATE
		SET full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			street_address = EXCLUDED.street_address,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip_code = EXCLUDED.zip_code,
			updated_at = NOW()
		RETURNING id, user_id, created_by_contractor_id, created_at, updated_at
	`
	if err := tx.QueryRowxContext(ctx, query,
		h.FullName, h.Email, h.Phone, h.StreetAddress, h.City, h.State, h.ZipCode, h.CreatedByContractorID,
	).Scan(&h.ID, &h.UserID, &h.CreatedByContractorID, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return fmt.Errorf("homeowner repository: upsert %w", err)
	}
	return nil
}

func (r *HomeownerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Homeowner, error) {
	return common.GetByID[models.Homeowner](ctx, r.db, "homeowners", id, ErrHomeownerNotFound)
}

func (r *HomeownerRepository) GetByEmail(ctx context.Context, email string) (*models.Homeowner, error) {
	return common.GetByField[models.Homeowner](ctx, r.db, "homeowners", "email", strings.ToLower(strings.TrimSpace(email)), ErrHomeownerNotFound)
}

// LinkUser attaches a login account to the homeowner with the same email.
func (r *HomeownerRepository) LinkUser(ctx context.Context, email string, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE homeowners SET user_id = $2, updated_at = NOW() WHERE email = $1 AND user_id IS NULL
	`, strings.ToLower(strings.TrimSpace(email)), userID); err != nil {
		return fmt.Errorf("homeowner repository: link user %w", err)
	}
	return nil
}

// ListForContractor lists homeowners the contractor created or has agreements with.
func (r *HomeownerRepository) ListForContractor(ctx context.Context, contractorID uuid.UUID, search string, page common.PageRequest) ([]models.Homeowner, int, error) {
	ds := common.PG.From(goqu.T("homeowners").As("h")).
		Select(goqu.I("h.*")).
		Where(goqu.Or(
			goqu.I("h.created_by_contractor_id").Eq(contractorID),
			goqu.I("h.id").In(
				common.PG.From("agreements").Select("homeowner_id").Where(goqu.C("contractor_id").Eq(contractorID)),
			),
		)).
		Order(goqu.I("h.full_name").Asc())

	if s := strings.TrimSpace(search); s != "" {
		pattern := "%" + s + "%"
		ds = ds.Where(goqu.Or(goqu.I("h.full_name").ILike(pattern), goqu.I("h.email").ILike(pattern)))
	}

	return common.SelectPage[models.Homeowner](ctx, r.db, ds, page)
}
