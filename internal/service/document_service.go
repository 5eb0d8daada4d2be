package service

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pdf"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
)

const pdfContentType = "application/pdf"

// AgreementDocuments is the part of the agreement store the PDF pipeline reads.
type AgreementDocuments interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Agreement, error)
	GetByToken(ctx context.Context, token uuid.UUID) (*models.Agreement, error)
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	RecordFinalPDF(ctx context.Context, id uuid.UUID, write func(a *models.Agreement, version int) (string, error)) (*models.AgreementPDF, error)
	LatestPDF(ctx context.Context, agreementID uuid.UUID) (*models.AgreementPDF, error)
}

type AttachmentLister interface {
	ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]models.AgreementAttachment, error)
}

type DocumentAssembler interface {
	Assemble(doc *pdf.Document) (*pdf.Result, error)
}

// DocumentService renders agreement PDFs and serves the stored versions.
type DocumentService struct {
	agreements  AgreementDocuments
	milestones  MilestoneReader
	attachments AttachmentLister
	contractors ContractorByID
	users       UserLookup
	homeowners  HomeownerLookup
	access      *Access
	assembler   DocumentAssembler
	files       FileStore
}

func NewDocumentService(
	agreements AgreementDocuments,
	milestones MilestoneReader,
	attachments AttachmentLister,
	contractors ContractorByID,
	users UserLookup,
	homeowners HomeownerLookup,
	access *Access,
	assembler DocumentAssembler,
	files FileStore,
) *DocumentService {
	return &DocumentService{
		agreements:  agreements,
		milestones:  milestones,
		attachments: attachments,
		contractors: contractors,
		users:       users,
		homeowners:  homeowners,
		access:      access,
		assembler:   assembler,
		files:       files,
	}
}

// GenerateFinal renders the next final version of a fully signed agreement.
// Stored versions are never replaced.
func (s *DocumentService) GenerateFinal(ctx context.Context, agreementID uuid.UUID) (*models.AgreementPDF, error) {
	var written string
	rec, err := s.agreements.RecordFinalPDF(ctx, agreementID, func(a *models.Agreement, version int) (string, error) {
		if !a.IsFullySigned() {
			return "", apperror.BadRequest("agreement is not fully signed")
		}
		res, err := s.render(ctx, a)
		if err != nil {
			return "", err
		}
		rel := path.Join("agreements", a.ID.String(), a.PDFFileName(version))
		if err := s.files.WriteNew(ctx, rel, res.Data); err != nil {
			return "", fmt.Errorf("document service: store pdf %w", err)
		}
		written = rel
		return rel, nil
	})
	if err != nil {
		if written != "" {
			s.discard(ctx, written)
		}
		return nil, mapErr("document service: generate final", err)
	}

	logger.L().WithFields(logrus.Fields{
		"agreement_id": agreementID,
		"version":      rec.Version,
	}).Info("final agreement pdf stored")
	return rec, nil
}

// discard removes a file whose version row was never committed, so the
// next attempt can write the same version again.
func (s *DocumentService) discard(ctx context.Context, rel string) {
	if err := s.files.Delete(context.WithoutCancel(ctx), rel); err != nil {
		logger.L().WithError(err).WithField("path", rel).Warn("orphan agreement pdf left behind")
	}
}

// Preview renders the current state without storing it.
func (s *DocumentService) Preview(ctx context.Context, actor Actor, agreementID uuid.UUID) (*File, error) {
	a, err := s.agreements.GetByID(ctx, agreementID)
	if err != nil {
		return nil, mapErr("document service: preview", err)
	}
	if _, err := s.access.PartyOf(ctx, actor, a); err != nil {
		return nil, err
	}
	return s.preview(ctx, a)
}

func (s *DocumentService) preview(ctx context.Context, a *models.Agreement) (*File, error) {
	res, err := s.render(ctx, a)
	if err != nil {
		return nil, err
	}
	return &File{Name: fmt.Sprintf("agreement_%s_preview.pdf", a.ID), ContentType: pdfContentType, Data: res.Data}, nil
}

// Download returns the latest stored version, or a live preview when the
// agreement has none yet.
func (s *DocumentService) Download(ctx context.Context, actor Actor, agreementID uuid.UUID) (*File, error) {
	a, err := s.agreements.GetByID(ctx, agreementID)
	if err != nil {
		return nil, mapErr("document service: download", err)
	}
	if _, err := s.access.PartyOf(ctx, actor, a); err != nil {
		return nil, err
	}
	return s.latest(ctx, a)
}

// DownloadByToken is Download through the magic link.
func (s *DocumentService) DownloadByToken(ctx context.Context, token uuid.UUID) (*File, error) {
	if token == uuid.Nil {
		return nil, apperror.ErrAgreementNotFound
	}
	a, err := s.agreements.GetByToken(ctx, token)
	if err != nil {
		return nil, mapErr("document service: download", err)
	}
	return s.latest(ctx, a)
}

func (s *DocumentService) latest(ctx context.Context, a *models.Agreement) (*File, error) {
	rec, err := s.agreements.LatestPDF(ctx, a.ID)
	if errors.Is(err, common.ErrNotFound) {
		return s.preview(ctx, a)
	}
	if err != nil {
		return nil, mapErr("document service: latest pdf", err)
	}
	data, err := s.files.ReadFile(ctx, rec.FilePath)
	if err != nil {
		return nil, fmt.Errorf("document service: read pdf %w", err)
	}
	return &File{Name: a.PDFFileName(rec.Version), ContentType: pdfContentType, Data: data}, nil
}

func (s *DocumentService) render(ctx context.Context, a *models.Agreement) (*pdf.Result, error) {
	doc, err := s.document(ctx, a)
	if err != nil {
		return nil, err
	}
	res, err := s.assembler.Assemble(doc)
	if err != nil {
		return nil, fmt.Errorf("document service: assemble %w", err)
	}
	if len(res.Skipped) > 0 {
		logger.L().WithFields(logrus.Fields{
			"agreement_id": a.ID,
			"skipped":      res.Skipped,
		}).Warn("attachments left out of agreement pdf")
	}
	return res, nil
}

func (s *DocumentService) document(ctx context.Context, a *models.Agreement) (*pdf.Document, error) {
	project, err := s.agreements.GetProject(ctx, a.ProjectID)
	if err != nil {
		return nil, mapErr("document service: project", err)
	}
	h, err := s.homeowners.GetByID(ctx, a.HomeownerID)
	if err != nil {
		return nil, mapErr("document service: homeowner", err)
	}
	milestones, err := s.milestones.ListByAgreement(ctx, a.ID)
	if err != nil {
		return nil, mapErr("document service: milestones", err)
	}
	doc := &pdf.Document{Agreement: a, Project: project, Homeowner: h, Milestones: milestones}

	if c, err := s.contractors.GetByID(ctx, a.ContractorID); err == nil {
		doc.Contractor = c
		if u, err := s.users.GetByID(ctx, c.UserID); err == nil {
			doc.ContractorEmail = u.Email
		}
	}

	atts, err := s.attachments.ListByAgreement(ctx, a.ID)
	if err != nil {
		return nil, mapErr("document service: attachments", err)
	}
	for _, att := range atts {
		data, err := s.files.ReadFile(ctx, att.FilePath)
		if err != nil {
			logger.L().WithError(err).WithField("attachment_id", att.ID).Warn("document service: unreadable attachment")
			continue
		}
		doc.Attachments = append(doc.Attachments, pdf.Attachment{
			Title:       att.Title,
			Category:    att.Category,
			ContentType: att.ContentType,
			Data:        data,
		})
	}
	return doc, nil
}
