package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
)

var ErrMilestoneNotFound = errors.New("milestone not found")

type MilestoneRepository struct {
	db *sqlx.DB
}

func NewMilestoneRepository(db *sqlx.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

func (r *MilestoneRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	return common.GetByID[models.Milestone](ctx, r.db, "milestones", id, ErrMilestoneNotFound)
}

// ListByAgreement returns milestones in order.
func (r *MilestoneRepository) ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]models.Milestone, error) {
	milestones := []models.Milestone{}
	if err := r.db.SelectContext(ctx, &milestones, `
		SELECT * FROM milestones WHERE agreement_id = $1 ORDER BY order_num
	`, agreementID); err != nil {
		return nil, fmt.Errorf("milestone repository: list %w", err)
	}
	return milestones, nil
}

// ListBetween returns milestones of the contractor or homeowner whose dates
// overlap [from, to]; used by the calendar view.
func (r *MilestoneRepository) ListBetween(ctx context.Context, contractorID, homeownerID *uuid.UUID, from, to time.Time) ([]models.Milestone, error) {
	milestones := []models.Milestone{}
	if err := r.db.SelectContext(ctx, &milestones, `
		SELECT m.* FROM milestones m
		JOIN agreements a ON a.id = m.agreement_id
		WHERE NOT a.is_archived
			AND ($1::uuid IS NULL OR a.contractor_id = $1)
			AND ($2::uuid IS NULL OR a.homeowner_id = $2)
			AND m.start_date <= $4 AND m.completion_date >= $3
		ORDER BY m.start_date, m.order_num
	`, contractorID, homeownerID, from, to); err != nil {
		return nil, fmt.Errorf("milestone repository: list between %w", err)
	}
	return milestones, nil
}

// MarkComplete flags the milestone as done.
func (r *MilestoneRepository) MarkComplete(ctx context.Context, id uuid.UUID, at time.Time) (*models.Milestone, error) {
	var m models.Milestone
	if err := r.db.GetContext(ctx, &m, `
		UPDATE milestones SET completed = TRUE, completed_at = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, at.UTC()); err != nil {
		return nil, notFoundOr(err, ErrMilestoneNotFound, "milestone repository: mark complete")
	}
	return &m, nil
}

func (r *MilestoneRepository) AddComment(ctx context.Context, c *models.MilestoneComment) error {
	if err := r.db.QueryRowxContext(ctx, `
		INSERT INTO milestone_comments (milestone_id, author_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, c.MilestoneID, c.AuthorID, c.Content).Scan(&c.ID, &c.CreatedAt); err != nil {
		return fmt.Errorf("milestone repository: add comment %w", err)
	}
	return nil
}

func (r *MilestoneRepository) ListComments(ctx context.Context, milestoneID uuid.UUID) ([]models.MilestoneComment, error) {
	comments := []models.MilestoneComment{}
	if err := r.db.SelectContext(ctx, &comments, `
		SELECT * FROM milestone_comments WHERE milestone_id = $1 ORDER BY created_at
	`, milestoneID); err != nil {
		return nil, fmt.Errorf("milestone repository: list comments %w", err)
	}
	return comments, nil
}

func (r *MilestoneRepository) AddFile(ctx context.Context, f *models.MilestoneFile) error {
	if err := r.db.QueryRowxContext(ctx, `
		INSERT INTO milestone_files (milestone_id, uploaded_by, file_name, file_path, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, f.MilestoneID, f.UploadedBy, f.FileName, f.FilePath, f.ContentType, f.SizeBytes).Scan(&f.ID, &f.CreatedAt); err != nil {
		return fmt.Errorf("milestone repository: add file %w", err)
	}
	return nil
}

func (r *MilestoneRepository) ListFiles(ctx context.Context, milestoneID uuid.UUID) ([]models.MilestoneFile, error) {
	files := []models.MilestoneFile{}
	if err := r.db.SelectContext(ctx, &files, `
		SELECT * FROM milestone_files WHERE milestone_id = $1 ORDER BY created_at
	`, milestoneID); err != nil {
		return nil, fmt.Errorf("milestone repository: list files %w", err)
	}
	return files, nil
}
