package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
)

var ErrAttachmentNotFound = errors.New("attachment not found")

// AttachmentRepository stores documents appended to agreement PDFs.
type AttachmentRepository struct {
	db *sqlx.DB
}

func NewAttachmentRepository(db *sqlx.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Create(ctx context.Context, a *models.AgreementAttachment) error {
	if err := r.db.QueryRowxContext(ctx, `
		INSERT INTO agreement_attachments (agreement_id, uploaded_by, title, category, file_path, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, a.AgreementID, a.UploadedBy, a.Title, a.Category, a.FilePath, a.ContentType, a.SizeBytes).Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("attachment repository: create %w", err)
	}
	return nil
}

func (r *AttachmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AgreementAttachment, error) {
	return common.GetByID[models.AgreementAttachment](ctx, r.db, "agreement_attachments", id, ErrAttachmentNotFound)
}

// ListByAgreement returns attachments in upload order; that order assigns the
// letters in the PDF table of contents.
func (r *AttachmentRepository) ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]models.AgreementAttachment, error) {
	out := []models.AgreementAttachment{}
	if err := r.db.SelectContext(ctx, &out, `
		SELECT * FROM agreement_attachments WHERE agreement_id = $1 ORDER BY created_at, id
	`, agreementID); err != nil {
		return nil, fmt.Errorf("attachment repository: list %w", err)
	}
	return out, nil
}

func (r *AttachmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM agreement_attachments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("attachment repository: delete %w", err)
	}
	return requireAffected(res, ErrAttachmentNotFound)
}
