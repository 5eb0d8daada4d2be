package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/storage"
)

type AttachmentRepository interface {
	Create(ctx context.Context, a *models.AgreementAttachment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AgreementAttachment, error)
	ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]models.AgreementAttachment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AttachmentService manages the documents appended to agreement PDFs.
type AttachmentService struct {
	repo       AttachmentRepository
	agreements AgreementByID
	access     *Access
	files      FileStore
}

func NewAttachmentService(repo AttachmentRepository, agreements AgreementByID, access *Access, files FileStore) *AttachmentService {
	return &AttachmentService{repo: repo, agreements: agreements, access: access, files: files}
}

func (s *AttachmentService) Upload(ctx context.Context, actor Actor, agreementID uuid.UUID, title, category string, up Upload) (*models.AgreementAttachment, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = models.AttachmentCategoryOther
	}
	if _, ok := models.ValidAttachmentCategories[category]; !ok {
		return nil, apperror.Validation("invalid attachment", map[string][]string{"category": {fmt.Sprintf("%q is not a valid choice", category)}})
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = up.Name
	}

	a, err := s.agreements.GetByID(ctx, agreementID)
	if err != nil {
		return nil, mapErr("attachment service: upload", err)
	}
	if _, err := s.access.Require(ctx, actor, a, valueobject.RoleContractor, valueobject.RoleHomeowner); err != nil {
		return nil, err
	}
	if actor.UserID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	if a.IsArchived {
		return nil, apperror.BadRequest("archived agreements cannot take new attachments")
	}

	stored, err := s.files.SaveUpload(ctx, "attachments/"+a.ID.String(), up.Name, up.Reader, storage.DocumentTypes)
	if err != nil {
		return nil, uploadErr("attachment service: save", err)
	}
	att := &models.AgreementAttachment{
		AgreementID: a.ID,
		UploadedBy:  actor.UserID,
		Title:       title,
		Category:    category,
		FilePath:    stored.Path,
		ContentType: stored.ContentType,
		SizeBytes:   stored.Size,
	}
	if err := s.repo.Create(ctx, att); err != nil {
		_ = s.files.Delete(ctx, stored.Path)
		return nil, mapErr("attachment service: create", err)
	}
	return att, nil
}

func (s *AttachmentService) List(ctx context.Context, actor Actor, agreementID uuid.UUID) ([]models.AgreementAttachment, error) {
	a, err := s.agreements.GetByID(ctx, agreementID)
	if err != nil {
		return nil, mapErr("attachment service: list", err)
	}
	if _, err := s.access.PartyOf(ctx, actor, a); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByAgreement(ctx, a.ID)
	return items, mapErr("attachment service: list", err)
}

// Open returns the stored file of an attachment.
func (s *AttachmentService) Open(ctx context.Context, actor Actor, id uuid.UUID) (*File, error) {
	att, err := s.authorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	data, err := s.files.ReadFile(ctx, att.FilePath)
	if err != nil {
		return nil, fmt.Errorf("attachment service: read %w", err)
	}
	return &File{Name: att.Title, ContentType: att.ContentType, Data: data}, nil
}

// Delete removes an attachment. Only its uploader or the contractor may.
func (s *AttachmentService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	att, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return mapErr("attachment service: delete", err)
	}
	a, err := s.agreements.GetByID(ctx, att.AgreementID)
	if err != nil {
		return mapErr("attachment service: delete", err)
	}
	role, err := s.access.PartyOf(ctx, actor, a)
	if err != nil {
		return err
	}
	if role != valueobject.RoleContractor && role != valueobject.RoleAdmin && att.UploadedBy != actor.UserID {
		return apperror.ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapErr("attachment service: delete", err)
	}
	if err := s.files.Delete(ctx, att.FilePath); err != nil {
		logger.L().WithError(err).WithField("attachment_id", id).Warn("attachment service: remove file")
	}
	return nil
}

func (s *AttachmentService) authorized(ctx context.Context, actor Actor, id uuid.UUID) (*models.AgreementAttachment, error) {
	att, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapErr("attachment service: get", err)
	}
	a, err := s.agreements.GetByID(ctx, att.AgreementID)
	if err != nil {
		return nil, mapErr("attachment service: get", err)
	}
	if _, err := s.access.PartyOf(ctx, actor, a); err != nil {
		return nil, err
	}
	return att, nil
}
