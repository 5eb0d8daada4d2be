package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/storage"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/validation"
)

const maxCalendarSpan = 366 * 24 * time.Hour

type MilestoneRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	ListBetween(ctx context.Context, contractorID, homeownerID *uuid.UUID, from, to time.Time) ([]models.Milestone, error)
	MarkComplete(ctx context.Context, id uuid.UUID, at time.Time) (*models.Milestone, error)
	AddComment(ctx context.Context, c *models.MilestoneComment) error
	ListComments(ctx context.Context, milestoneID uuid.UUID) ([]models.MilestoneComment, error)
	AddFile(ctx context.Context, f *models.MilestoneFile) error
	ListFiles(ctx context.Context, milestoneID uuid.UUID) ([]models.MilestoneFile, error)
}

type ExpenseRepository interface {
	Create(ctx context.Context, e *models.Expense) error
	ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]models.Expense, decimal.Decimal, error)
	Delete(ctx context.Context, agreementID, id uuid.UUID) error
}

type CreateExpenseInput struct {
	Description string          `json:"description" validate:"required,max=500"`
	Amount      decimal.Decimal `json:"amount"`
	IncurredOn  time.Time       `json:"incurred_on"`
}

// MilestoneService covers progress tracking on funded agreements: completion,
// comments, photos, expenses and the calendar.
type MilestoneService struct {
	repo       MilestoneRepository
	expenses   ExpenseRepository
	agreements AgreementByID
	access     *Access
	files      FileStore
	now        func() time.Time
}

func NewMilestoneService(repo MilestoneRepository, expenses ExpenseRepository, agreements AgreementByID, access *Access, files FileStore) *MilestoneService {
	return &MilestoneService{
		repo:       repo,
		expenses:   expenses,
		agreements: agreements,
		access:     access,
		files:      files,
		now:        time.Now,
	}
}

func (s *MilestoneService) load(ctx context.Context, actor Actor, id uuid.UUID, roles ...valueobject.Role) (*models.Milestone, valueobject.Role, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", mapErr("milestone service: get", err)
	}
	a, err := s.agreements.GetByID(ctx, m.AgreementID)
	if err != nil {
		return nil, "", mapErr("milestone service: agreement", err)
	}
	if len(roles) == 0 {
		roles = []valueobject.Role{valueobject.RoleContractor, valueobject.RoleHomeowner, valueobject.RoleAdmin}
	}
	role, err := s.access.Require(ctx, actor, a, roles...)
	if err != nil {
		return nil, "", err
	}
	return m, role, nil
}

// Complete marks the milestone done. Only the contractor reports completion.
func (s *MilestoneService) Complete(ctx context.Context, actor Actor, id uuid.UUID) (*models.Milestone, error) {
	m, _, err := s.load(ctx, actor, id, valueobject.RoleContractor)
	if err != nil {
		return nil, err
	}
	if m.Completed {
		return nil, apperror.BadRequest("milestone already completed")
	}
	done, err := s.repo.MarkComplete(ctx, m.ID, s.now())
	if err != nil {
		return nil, mapErr("milestone service: complete", err)
	}
	return done, nil
}

func (s *MilestoneService) AddComment(ctx context.Context, actor Actor, id uuid.UUID, content string) (*models.MilestoneComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.Validation("empty comment", map[string][]string{"content": {"This field is required"}})
	}
	m, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.UserID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	c := &models.MilestoneComment{MilestoneID: m.ID, AuthorID: actor.UserID, Content: content}
	if err := s.repo.AddComment(ctx, c); err != nil {
		return nil, mapErr("milestone service: add comment", err)
	}
	return c, nil
}

func (s *MilestoneService) Comments(ctx context.Context, actor Actor, id uuid.UUID) ([]models.MilestoneComment, error) {
	m, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListComments(ctx, m.ID)
	return items, mapErr("milestone service: comments", err)
}

func (s *MilestoneService) AddFile(ctx context.Context, actor Actor, id uuid.UUID, up Upload) (*models.MilestoneFile, error) {
	m, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.UserID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	stored, err := s.files.SaveUpload(ctx, "milestones/"+m.ID.String(), up.Name, up.Reader, storage.DocumentTypes)
	if err != nil {
		return nil, uploadErr("milestone service: save file", err)
	}
	f := &models.MilestoneFile{
		MilestoneID: m.ID,
		UploadedBy:  actor.UserID,
		FileName:    up.Name,
		FilePath:    stored.Path,
		ContentType: stored.ContentType,
		SizeBytes:   stored.Size,
	}
	if err := s.repo.AddFile(ctx, f); err != nil {
		_ = s.files.Delete(ctx, stored.Path)
		return nil, mapErr("milestone service: add file", err)
	}
	return f, nil
}

func (s *MilestoneService) Files(ctx context.Context, actor Actor, id uuid.UUID) ([]models.MilestoneFile, error) {
	m, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListFiles(ctx, m.ID)
	return items, mapErr("milestone service: files", err)
}

// Calendar lists the actor's milestones overlapping [from, to].
func (s *MilestoneService) Calendar(ctx context.Context, actor Actor, from, to time.Time) ([]models.Milestone, error) {
	if to.Before(from) {
		return nil, apperror.Validation("invalid range", map[string][]string{"end": {"Must not be before start"}})
	}
	if to.Sub(from) > maxCalendarSpan {
		return nil, apperror.Validation("invalid range", map[string][]string{"end": {"Range is limited to one year"}})
	}

	var contractorID, homeownerID *uuid.UUID
	switch {
	case actor.IsAdmin():
	case actor.Role == valueobject.RoleContractor:
		c, err := s.access.ContractorOf(ctx, actor)
		if err != nil {
			return nil, err
		}
		contractorID = &c.ID
	case actor.Role == valueobject.RoleHomeowner && actor.UserID != uuid.Nil:
		h, err := s.access.HomeownerOf(ctx, actor)
		if err != nil {
			return nil, err
		}
		if h == nil {
			return []models.Milestone{}, nil
		}
		homeownerID = &h.ID
	default:
		return nil, apperror.ErrForbidden
	}

	items, err := s.repo.ListBetween(ctx, contractorID, homeownerID, from, to)
	return items, mapErr("milestone service: calendar", err)
}

// AddExpense logs a contractor cost against the agreement.
func (s *MilestoneService) AddExpense(ctx context.Context, actor Actor, agreementID uuid.UUID, in CreateExpenseInput) (*models.Expense, error) {
	fields, err := validation.Fields(in)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string][]string{}
	}
	if !in.Amount.IsPositive() {
		fields["amount"] = append(fields["amount"], "Must be greater than 0")
	}
	if len(fields) > 0 {
		return nil, apperror.Validation("invalid expense", fields)
	}

	a, err := s.agreements.GetByID(ctx, agreementID)
	if err != nil {
		return nil, mapErr("milestone service: expense agreement", err)
	}
	if _, err := s.access.Require(ctx, actor, a, valueobject.RoleContractor); err != nil {
		return nil, err
	}
	incurred := in.IncurredOn
	if incurred.IsZero() {
		incurred = s.now()
	}
	e := &models.Expense{
		AgreementID: a.ID,
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount.Round(2),
		IncurredOn:  incurred.UTC(),
		CreatedBy:   actor.UserID,
	}
	if err := s.expenses.Create(ctx, e); err != nil {
		return nil, mapErr("milestone service: add expense", err)
	}
	return e, nil
}

// Expenses lists the agreement's expenses and their total.
func (s *MilestoneService) Expenses(ctx context.Context, actor Actor, agreementID uuid.UUID) ([]models.Expense, decimal.Decimal, error) {
	a, err := s.agreements.GetByID(ctx, agreementID)
	if err != nil {
		return nil, decimal.Zero, mapErr("milestone service: expenses", err)
	}
	if _, err := s.access.PartyOf(ctx, actor, a); err != nil {
		return nil, decimal.Zero, err
	}
	items, total, err := s.expenses.ListByAgreement(ctx, a.ID)
	if err != nil {
		return nil, decimal.Zero, mapErr("milestone service: expenses", err)
	}
	return items, total, nil
}

func (s *MilestoneService) DeleteExpense(ctx context.Context, actor Actor, agreementID, id uuid.UUID) error {
	a, err := s.agreements.GetByID(ctx, agreementID)
	if err != nil {
		return mapErr("milestone service: delete expense", err)
	}
	if _, err := s.access.Require(ctx, actor, a, valueobject.RoleContractor); err != nil {
		return err
	}
	return mapErr("milestone service: delete expense", s.expenses.Delete(ctx, a.ID, id))
}
