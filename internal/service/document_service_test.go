package service

import (
	"bytes"
	"context"
	"errors"
	"path"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pdf"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/storage"
)

// memDocuments is the agreement store of the PDF pipeline.
type memDocuments struct {
	fakeAgreements
	pdfs map[uuid.UUID][]models.AgreementPDF
	// failRecord fails the next version insert after the file is written.
	failRecord error
}

func (m *memDocuments) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return &models.Project{ID: id, Number: "20260402-01", Title: "Kitchen remodel"}, nil
}

func (m *memDocuments) RecordFinalPDF(ctx context.Context, id uuid.UUID, write func(a *models.Agreement, version int) (string, error)) (*models.AgreementPDF, error) {
	a, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	version := a.PDFVersion + 1
	rel, err := write(a, version)
	if err != nil {
		return nil, err
	}
	if err := m.failRecord; err != nil {
		m.failRecord = nil
		return nil, err
	}
	a.PDFVersion = version
	rec := models.AgreementPDF{ID: uuid.New(), AgreementID: id, Version: version, FilePath: rel, IsFinal: true}
	m.pdfs[id] = append(m.pdfs[id], rec)
	return &rec, nil
}

func (m *memDocuments) LatestPDF(ctx context.Context, agreementID uuid.UUID) (*models.AgreementPDF, error) {
	recs := m.pdfs[agreementID]
	if len(recs) == 0 {
		return nil, common.ErrNotFound
	}
	return &recs[len(recs)-1], nil
}

type memAttachments struct {
	rows map[uuid.UUID]*models.AgreementAttachment
}

func (m *memAttachments) Create(ctx context.Context, a *models.AgreementAttachment) error {
	a.ID = uuid.New()
	m.rows[a.ID] = a
	return nil
}

func (m *memAttachments) GetByID(ctx context.Context, id uuid.UUID) (*models.AgreementAttachment, error) {
	if a, ok := m.rows[id]; ok {
		return a, nil
	}
	return nil, repository.ErrAttachmentNotFound
}

func (m *memAttachments) ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]models.AgreementAttachment, error) {
	var out []models.AgreementAttachment
	for _, a := range m.rows {
		if a.AgreementID == agreementID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAttachments) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.rows, id)
	return nil
}

// stubAssembler renders a marker per call and remembers the documents.
type stubAssembler struct {
	docs []*pdf.Document
}

func (s *stubAssembler) Assemble(doc *pdf.Document) (*pdf.Result, error) {
	s.docs = append(s.docs, doc)
	return &pdf.Result{Data: append([]byte(nil), samplePDF...)}, nil
}

type documentFixture struct {
	*world
	svc         *DocumentService
	attachments *AttachmentService
	store       *memDocuments
	attRepo     *memAttachments
	assembler   *stubAssembler
	files       *storage.DocumentStorage
	agreement   *models.Agreement
}

func newDocumentFixture(t *testing.T) *documentFixture {
	f := &documentFixture{
		world:     newWorld(),
		attRepo:   &memAttachments{rows: map[uuid.UUID]*models.AgreementAttachment{}},
		assembler: &stubAssembler{},
	}
	f.agreement = f.world.agreement()
	f.store = &memDocuments{fakeAgreements: fakeAgreements{f.agreement.ID: f.agreement}, pdfs: map[uuid.UUID][]models.AgreementPDF{}}
	f.files = newFileStore(t)
	f.svc = NewDocumentService(f.store, fakeMilestones{}, f.attRepo, f.contractors, f.users, f.homeowners, f.access, f.assembler, f.files)
	f.attachments = NewAttachmentService(f.attRepo, f.store, f.access, f.files)
	return f
}

func TestDocumentService_GenerateFinal_RequiresBothSignatures(t *testing.T) {
	f := newDocumentFixture(t)

	_, err := f.svc.GenerateFinal(context.Background(), f.agreement.ID)
	assert.True(t, apperror.IsValidation(err))
	assert.Empty(t, f.store.pdfs)
}

func TestDocumentService_GenerateFinal_FailedInsertRemovesFile(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()
	signedAgreement(f.agreement)
	rel := path.Join("agreements", f.agreement.ID.String(), f.agreement.PDFFileName(1))

	f.store.failRecord = errors.New("insert agreement_pdfs: connection reset")
	_, err := f.svc.GenerateFinal(ctx, f.agreement.ID)
	require.Error(t, err)
	assert.Empty(t, f.store.pdfs)
	assert.Equal(t, 0, f.agreement.PDFVersion)
	_, err = f.files.ReadFile(ctx, rel)
	require.Error(t, err)

	rec, err := f.svc.GenerateFinal(ctx, f.agreement.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, rel, rec.FilePath)
	data, err := f.files.ReadFile(ctx, rel)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, data)
}

func TestDocumentService_GenerateFinal_VersionsNeverOverwrite(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()
	signedAgreement(f.agreement)

	first, err := f.svc.GenerateFinal(ctx, f.agreement.ID)
	require.NoError(t, err)
	second, err := f.svc.GenerateFinal(ctx, f.agreement.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.NotEqual(t, first.FilePath, second.FilePath)
	assert.Contains(t, second.FilePath, f.agreement.PDFFileName(2))

	file, err := f.svc.Download(ctx, f.asHomeowner(), f.agreement.ID)
	require.NoError(t, err)
	assert.Equal(t, f.agreement.PDFFileName(2), file.Name)
	assert.Equal(t, "application/pdf", file.ContentType)

	doc := f.assembler.docs[0]
	assert.Equal(t, "bob@builder.com", doc.ContractorEmail)
	assert.Equal(t, f.homeowner.ID, doc.Homeowner.ID)
}

func TestDocumentService_DownloadFallsBackToPreview(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	file, err := f.svc.DownloadByToken(ctx, f.agreement.HomeownerAccessToken)
	require.NoError(t, err)
	assert.Contains(t, file.Name, "preview")
	assert.Empty(t, f.store.pdfs)

	_, err = f.svc.Download(ctx, f.asStranger(), f.agreement.ID)
	assert.True(t, apperror.IsForbidden(err))
}

func TestAttachmentService_UploadFeedsPDF(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	_, err := f.attachments.Upload(ctx, f.asContractor(), f.agreement.ID, "Plans", "blueprints", Upload{Name: "plans.pdf", Reader: bytes.NewReader(samplePDF)})
	assert.True(t, apperror.IsValidation(err))

	att, err := f.attachments.Upload(ctx, f.asContractor(), f.agreement.ID, "", "PLANS", Upload{Name: "plans.pdf", Reader: bytes.NewReader(samplePDF)})
	require.NoError(t, err)
	assert.Equal(t, "plans.pdf", att.Title)
	assert.Equal(t, models.AttachmentCategoryPlans, att.Category)

	_, err = f.svc.Preview(ctx, f.asContractor(), f.agreement.ID)
	require.NoError(t, err)
	require.Len(t, f.assembler.docs, 1)
	require.Len(t, f.assembler.docs[0].Attachments, 1)
	assert.Equal(t, samplePDF, f.assembler.docs[0].Attachments[0].Data)

	opened, err := f.attachments.Open(ctx, f.asHomeowner(), att.ID)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, opened.Data)
}

func TestAttachmentService_Delete(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	att, err := f.attachments.Upload(ctx, f.asHomeowner(), f.agreement.ID, "Permit", "permit", Upload{Name: "permit.pdf", Reader: bytes.NewReader(samplePDF)})
	require.NoError(t, err)

	// The contractor may remove anything on their agreement.
	require.NoError(t, f.attachments.Delete(ctx, f.asContractor(), att.ID))
	assert.Empty(t, f.attRepo.rows)

	att, err = f.attachments.Upload(ctx, f.asContractor(), f.agreement.ID, "Warranty", "warranty", Upload{Name: "warranty.pdf", Reader: bytes.NewReader(samplePDF)})
	require.NoError(t, err)
	err = f.attachments.Delete(ctx, f.asHomeowner(), att.ID)
	assert.True(t, apperror.IsForbidden(err))
}

func TestAttachmentService_ArchivedAgreement(t *testing.T) {
	f := newDocumentFixture(t)
	f.agreement.IsArchived = true

	_, err := f.attachments.Upload(context.Background(), f.asContractor(), f.agreement.ID, "x", "other", Upload{Name: "x.pdf", Reader: bytes.NewReader(samplePDF)})
	assert.True(t, apperror.IsValidation(err))
}
