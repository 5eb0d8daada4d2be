package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/lifecycle"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/legal"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/mail"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/payments"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/validation"
)

// AgreementRepository is the agreement store as used by AgreementService.
type AgreementRepository interface {
	CreateDraft(ctx context.Context, d *repository.AgreementDraft) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Agreement, error)
	GetByToken(ctx context.Context, token uuid.UUID) (*models.Agreement, error)
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	List(ctx context.Context, f repository.AgreementFilter, page common.PageRequest) ([]models.Agreement, int, error)
	Sign(ctx context.Context, id uuid.UUID, apply func(a *models.Agreement) error) (*models.Agreement, error)
	SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error
	Merge(ctx context.Context, ids []uuid.UUID, hint *uuid.UUID) (*repository.MergeResult, error)
	Amend(ctx context.Context, id uuid.UUID) (*models.Agreement, error)
	ListAmendments(ctx context.Context, parentID uuid.UUID) ([]models.AgreementAmendment, error)
}

type MilestoneReader interface {
	ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]models.Milestone, error)
}

// Notifier delivers post-commit notifications.
type Notifier interface {
	Dispatch(ctx context.Context, a *models.Agreement, note Note)
	Go(ctx context.Context, fn func(ctx context.Context))
}

// FinalPDFGenerator renders and stores the next final PDF version.
type FinalPDFGenerator interface {
	GenerateFinal(ctx context.Context, agreementID uuid.UUID) (*models.AgreementPDF, error)
}

type HomeownerInput struct {
	FullName      string `json:"full_name" validate:"required,max=200"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone" validate:"max=30"`
	StreetAddress string `json:"street_address" validate:"max=255"`
	City          string `json:"city" validate:"max=100"`
	State         string `json:"state" validate:"omitempty,usstate"`
	ZipCode       string `json:"zip_code" validate:"max=20"`
}

type ProjectInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
}

type MilestoneInput struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	StartDate      time.Time       `json:"start_date"`
	CompletionDate time.Time       `json:"completion_date"`
	DurationDays   int             `json:"duration_days"`
	DurationHours  int             `json:"duration_hours"`
}

// CreateAgreementInput is a contractor's draft. TotalCost overrides the sum
// of milestone amounts when given.
type CreateAgreementInput struct {
	Homeowner          HomeownerInput   `json:"homeowner"`
	Project            ProjectInput     `json:"project"`
	Milestones         []MilestoneInput `json:"milestones"`
	TotalCost          *decimal.Decimal `json:"total_cost"`
	GoverningState     string           `json:"governing_state" validate:"omitempty,usstate"`
	WarrantyType       string           `json:"warranty_type" validate:"omitempty,oneof=default custom"`
	CustomWarrantyText string           `json:"custom_warranty_text" validate:"max=10000"`
}

// AgreementDetail is an agreement with the rows shown alongside it.
type AgreementDetail struct {
	*models.Agreement
	Project    *models.Project    `json:"project"`
	Homeowner  *models.Homeowner  `json:"homeowner"`
	Milestones []models.Milestone `json:"milestones"`
}

// ListAgreementsInput carries the list filters.
type ListAgreementsInput struct {
	Status   string
	Archived *bool
	Search   string
	Page     common.PageRequest
}

type AgreementService struct {
	repo        AgreementRepository
	milestones  MilestoneReader
	homeowners  HomeownerLookup
	access      *Access
	catalog     *legal.Catalog
	gateway     payments.Gateway
	notifier    Notifier
	mailer      mail.Mailer
	pdfs        FinalPDFGenerator
	frontendURL string
	now         func() time.Time
}

func NewAgreementService(
	repo AgreementRepository,
	milestones MilestoneReader,
	homeowners HomeownerLookup,
	access *Access,
	catalog *legal.Catalog,
	gateway payments.Gateway,
	notifier Notifier,
	mailer mail.Mailer,
	pdfs FinalPDFGenerator,
	frontendURL string,
) *AgreementService {
	return &AgreementService{
		repo:        repo,
		milestones:  milestones,
		homeowners:  homeowners,
		access:      access,
		catalog:     catalog,
		gateway:     gateway,
		notifier:    notifier,
		mailer:      mailer,
		pdfs:        pdfs,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         time.Now,
	}
}

// Create validates the whole draft and writes it in one transaction.
func (s *AgreementService) Create(ctx context.Context, actor Actor, in CreateAgreementInput) (*AgreementDetail, error) {
	contractor, err := s.access.ContractorOf(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := s.validateCreate(in); err != nil {
		return nil, err
	}

	specs := make([]lifecycle.MilestoneSpec, len(in.Milestones))
	for i, m := range in.Milestones {
		specs[i] = lifecycle.MilestoneSpec{
			Title:          strings.TrimSpace(m.Title),
			Description:    m.Description,
			Amount:         m.Amount,
			StartDate:      m.StartDate,
			CompletionDate: m.CompletionDate,
			DurationDays:   m.DurationDays,
			DurationHours:  m.DurationHours,
		}
	}

	total := lifecycle.SumAmounts(specs)
	if in.TotalCost != nil && in.TotalCost.IsPositive() {
		total = in.TotalCost.Round(2)
	}

	state := strings.ToUpper(strings.TrimSpace(in.GoverningState))
	if state == "" {
		state = strings.ToUpper(strings.TrimSpace(in.Homeowner.State))
	}
	warranty := in.WarrantyType
	if warranty == "" {
		warranty = models.WarrantyDefault
	}

	contractorID := contractor.ID
	draft := &repository.AgreementDraft{
		Homeowner: &models.Homeowner{
			FullName:              strings.TrimSpace(in.Homeowner.FullName),
			Email:                 strings.ToLower(strings.TrimSpace(in.Homeowner.Email)),
			Phone:                 in.Homeowner.Phone,
			StreetAddress:         in.Homeowner.StreetAddress,
			City:                  in.Homeowner.City,
			State:                 strings.ToUpper(in.Homeowner.State),
			ZipCode:               in.Homeowner.ZipCode,
			CreatedByContractorID: &contractorID,
		},
		Project: &models.Project{
			Title:        strings.TrimSpace(in.Project.Title),
			Description:  in.Project.Description,
			ContractorID: contractor.ID,
		},
		Agreement: &models.Agreement{
			TotalCost:             total,
			TotalTimeEstimateDays: lifecycle.EstimateDays(specs),
			MilestoneCount:        len(specs),
			GoverningState:        state,
			WarrantyType:          warranty,
			CustomWarrantyText:    strings.TrimSpace(in.CustomWarrantyText),
		},
	}
	for i, spec := range specs {
		draft.Milestones = append(draft.Milestones, models.Milestone{
			OrderNum:       i + 1,
			Title:          spec.Title,
			Description:    spec.Description,
			Amount:         spec.Amount,
			StartDate:      spec.StartDate,
			CompletionDate: spec.CompletionDate,
			DurationDays:   spec.DurationDays,
			DurationHours:  spec.DurationHours,
		})
	}

	if err := s.repo.CreateDraft(ctx, draft); err != nil {
		return nil, mapErr("agreement service: create", err)
	}

	logger.L().WithFields(logrus.Fields{
		"agreement_id":  draft.Agreement.ID,
		"project":       draft.Project.Number,
		"contractor_id": contractor.ID,
	}).Info("agreement drafted")

	return &AgreementDetail{
		Agreement:  draft.Agreement,
		Project:    draft.Project,
		Homeowner:  draft.Homeowner,
		Milestones: draft.Milestones,
	}, nil
}

func (s *AgreementService) validateCreate(in CreateAgreementInput) error {
	fields, err := validation.Fields(in)
	if err != nil {
		return fmt.Errorf("agreement service: validate %w", err)
	}
	if fields == nil {
		fields = map[string][]string{}
	}

	specs := make([]lifecycle.MilestoneSpec, len(in.Milestones))
	for i, m := range in.Milestones {
		specs[i] = lifecycle.MilestoneSpec{
			Title: m.Title, Amount: m.Amount, StartDate: m.StartDate, CompletionDate: m.CompletionDate,
			DurationDays: m.DurationDays, DurationHours: m.DurationHours,
		}
	}
	if err := lifecycle.ValidateMilestones(specs); err != nil {
		appErr, ok := apperror.As(err)
		if !ok {
			return err
		}
		for k, v := range appErr.Fields {
			fields[k] = append(fields[k], v...)
		}
	}

	if in.WarrantyType == models.WarrantyCustom && strings.TrimSpace(in.CustomWarrantyText) == "" {
		fields["custom_warranty_text"] = append(fields["custom_warranty_text"], "Required when warranty_type is custom")
	}
	if in.TotalCost != nil && in.TotalCost.IsNegative() {
		fields["total_cost"] = append(fields["total_cost"], "Must be greater than 0")
	}

	if len(fields) > 0 {
		return apperror.Validation("invalid agreement", fields)
	}
	return nil
}

// Get returns the agreement if actor is one of its parties (or staff).
func (s *AgreementService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*AgreementDetail, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapErr("agreement service: get", err)
	}
	if _, err := s.access.PartyOf(ctx, actor, a); err != nil {
		return nil, err
	}
	return s.detail(ctx, a)
}

// GetByToken is the magic-link read.
func (s *AgreementService) GetByToken(ctx context.Context, token uuid.UUID) (*AgreementDetail, error) {
	a, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, a)
}

func (s *AgreementService) byToken(ctx context.Context, token uuid.UUID) (*models.Agreement, error) {
	if token == uuid.Nil {
		return nil, apperror.ErrAgreementNotFound
	}
	a, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, mapErr("agreement service: get by token", err)
	}
	return a, nil
}

func (s *AgreementService) detail(ctx context.Context, a *models.Agreement) (*AgreementDetail, error) {
	project, err := s.repo.GetProject(ctx, a.ProjectID)
	if err != nil {
		return nil, mapErr("agreement service: project", err)
	}
	homeowner, err := s.homeowners.GetByID(ctx, a.HomeownerID)
	if err != nil {
		return nil, mapErr("agreement service: homeowner", err)
	}
	milestones, err := s.milestones.ListByAgreement(ctx, a.ID)
	if err != nil {
		return nil, mapErr("agreement service: milestones", err)
	}
	return &AgreementDetail{Agreement: a, Project: project, Homeowner: homeowner, Milestones: milestones}, nil
}

// List scopes the listing to the actor's side: a contractor sees their own
// agreements, a homeowner the ones addressed to them, staff everything.
func (s *AgreementService) List(ctx context.Context, actor Actor, in ListAgreementsInput) ([]models.Agreement, int, error) {
	f := repository.AgreementFilter{Status: in.Status, Archived: in.Archived, Search: in.Search}
	switch {
	case actor.IsAdmin():
	case actor.Role == valueobject.RoleContractor:
		c, err := s.access.ContractorOf(ctx, actor)
		if err != nil {
			return nil, 0, err
		}
		f.ContractorID = &c.ID
	case actor.Role == valueobject.RoleHomeowner && actor.UserID != uuid.Nil:
		h, err := s.access.HomeownerOf(ctx, actor)
		if err != nil {
			return nil, 0, err
		}
		if h == nil {
			return []models.Agreement{}, 0, nil
		}
		f.HomeownerID = &h.ID
	default:
		return nil, 0, apperror.ErrForbidden
	}

	items, total, err := s.repo.List(ctx, f, in.Page.Normalize())
	if err != nil {
		return nil, 0, mapErr("agreement service: list", err)
	}
	return items, total, nil
}

// Sign records the actor's signature. The first signature freezes the legal
// text. A fully signed agreement gets its final PDF rendered in the background.
func (s *AgreementService) Sign(ctx context.Context, actor Actor, id uuid.UUID, typedName, ip string) (*models.Agreement, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapErr("agreement service: sign", err)
	}
	role, err := s.access.Require(ctx, actor, a, valueobject.RoleContractor, valueobject.RoleHomeowner)
	if err != nil {
		return nil, err
	}
	return s.sign(ctx, a.ID, role, typedName, ip)
}

// SignByToken is the magic-link signature of the homeowner.
func (s *AgreementService) SignByToken(ctx context.Context, token uuid.UUID, typedName, ip string) (*models.Agreement, error) {
	a, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.sign(ctx, a.ID, valueobject.RoleHomeowner, typedName, ip)
}

func (s *AgreementService) sign(ctx context.Context, id uuid.UUID, role valueobject.Role, typedName, ip string) (*models.Agreement, error) {
	signed, err := s.repo.Sign(ctx, id, func(a *models.Agreement) error {
		if err := a.ApplySignature(role, typedName, ip, s.now()); err != nil {
			return err
		}
		s.catalog.SnapshotFor(a).Apply(a)
		return nil
	})
	if err != nil {
		return nil, mapErr("agreement service: sign", err)
	}

	logger.L().WithFields(logrus.Fields{
		"agreement_id": signed.ID,
		"role":         role,
		"fully_signed": signed.IsFullySigned(),
	}).Info("agreement signed")

	event, subject := EventAgreementSigned, "Agreement signed by the "+string(role)
	if signed.IsFullySigned() {
		event, subject = EventAgreementFullySigned, "Agreement fully signed"
	}
	s.notifier.Dispatch(ctx, signed, Note{
		Event:   event,
		Data:    map[string]any{"agreement_id": signed.ID, "role": role},
		Subject: subject,
		Body:    fmt.Sprintf("%s.\nView it at %s/agreements/%s\n", subject, s.frontendURL, signed.ID),
	})

	if signed.IsFullySigned() && s.pdfs != nil {
		agreementID := signed.ID
		s.notifier.Go(ctx, func(ctx context.Context) {
			if _, err := s.pdfs.GenerateFinal(ctx, agreementID); err != nil {
				logger.L().WithError(err).WithField("agreement_id", agreementID).Error("agreement service: final pdf")
			}
		})
	}
	return signed, nil
}

// FundEscrow creates the escrow PaymentIntent and returns its client secret.
func (s *AgreementService) FundEscrow(ctx context.Context, actor Actor, id uuid.UUID) (*payments.Intent, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapErr("agreement service: fund escrow", err)
	}
	if _, err := s.access.Require(ctx, actor, a, valueobject.RoleContractor, valueobject.RoleHomeowner); err != nil {
		return nil, err
	}
	return s.fund(ctx, a)
}

// FundEscrowByToken is FundEscrow through the magic link.
func (s *AgreementService) FundEscrowByToken(ctx context.Context, token uuid.UUID) (*payments.Intent, error) {
	a, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.fund(ctx, a)
}

func (s *AgreementService) fund(ctx context.Context, a *models.Agreement) (*payments.Intent, error) {
	if err := a.CanFundEscrow(); err != nil {
		return nil, err
	}

	in := payments.IntentInput{
		Amount:         a.TotalCost,
		Kind:           payments.KindEscrow,
		AgreementID:    a.ID,
		IdempotencyKey: fmt.Sprintf("escrow-%s-%d", a.ID, valueobject.ToCents(a.TotalCost)),
	}
	if h, err := s.homeowners.GetByID(ctx, a.HomeownerID); err == nil {
		in.ReceiptEmail = h.Email
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, in)
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	if err := s.repo.SetPaymentIntent(ctx, a.ID, intent.ID); err != nil {
		return nil, mapErr("agreement service: store payment intent", err)
	}

	logger.L().WithFields(logrus.Fields{
		"agreement_id":      a.ID,
		"payment_intent_id": intent.ID,
		"amount":            a.TotalCost.StringFixed(2),
	}).Info("escrow payment intent created")
	return intent, nil
}

// Amend creates the next amendment of a fully signed agreement.
func (s *AgreementService) Amend(ctx context.Context, actor Actor, id uuid.UUID) (*models.Agreement, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapErr("agreement service: amend", err)
	}
	if _, err := s.access.Require(ctx, actor, a, valueobject.RoleContractor); err != nil {
		return nil, err
	}
	if a.IsArchived {
		return nil, apperror.BadRequest("archived agreements cannot be amended")
	}
	if !a.IsFullySigned() {
		return nil, apperror.BadRequest("only fully signed agreements can be amended")
	}

	amended, err := s.repo.Amend(ctx, id)
	if err != nil {
		return nil, mapErr("agreement service: amend", err)
	}
	logger.L().WithFields(logrus.Fields{
		"original_id":      id,
		"agreement_id":     amended.ID,
		"amendment_number": amended.AmendmentNumber,
	}).Info("agreement amended")
	return amended, nil
}

// Merge folds agreements of one contractor into a primary.
func (s *AgreementService) Merge(ctx context.Context, actor Actor, ids []uuid.UUID, hint *uuid.UUID) (*repository.MergeResult, error) {
	distinct := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			distinct = append(distinct, id)
		}
	}
	if len(distinct) < 2 {
		return nil, apperror.Validation("invalid merge", map[string][]string{"agreement_ids": {"At least two distinct agreements are required"}})
	}
	if hint != nil && !seen[*hint] {
		return nil, apperror.Validation("invalid merge", map[string][]string{"primary_id": {"Must be one of agreement_ids"}})
	}

	for _, id := range distinct {
		a, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, mapErr("agreement service: merge", err)
		}
		if _, err := s.access.Require(ctx, actor, a, valueobject.RoleContractor); err != nil {
			return nil, err
		}
	}

	res, err := s.repo.Merge(ctx, distinct, hint)
	if err != nil {
		return nil, mapErr("agreement service: merge", err)
	}
	logger.L().WithFields(logrus.Fields{
		"primary_id": res.Primary.ID,
		"merged":     len(distinct) - 1,
		"noop":       res.Plan.IsNoop(),
	}).Info("agreements merged")
	return res, nil
}

func (s *AgreementService) ListAmendments(ctx context.Context, actor Actor, id uuid.UUID) ([]models.AgreementAmendment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapErr("agreement service: amendments", err)
	}
	if _, err := s.access.PartyOf(ctx, actor, a); err != nil {
		return nil, err
	}
	links, err := s.repo.ListAmendments(ctx, id)
	return links, mapErr("agreement service: amendments", err)
}

// SendInvite emails the homeowner the magic link of the agreement.
func (s *AgreementService) SendInvite(ctx context.Context, actor Actor, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return mapErr("agreement service: invite", err)
	}
	if _, err := s.access.Require(ctx, actor, a, valueobject.RoleContractor); err != nil {
		return err
	}
	if a.IsArchived {
		return apperror.BadRequest("archived agreements cannot be sent")
	}
	h, err := s.homeowners.GetByID(ctx, a.HomeownerID)
	if err != nil {
		return mapErr("agreement service: invite", err)
	}
	project, err := s.repo.GetProject(ctx, a.ProjectID)
	if err != nil {
		return mapErr("agreement service: invite", err)
	}

	link := fmt.Sprintf("%s/magic/agreements/%s", s.frontendURL, a.HomeownerAccessToken)
	msg := mail.Message{
		To:      h.Email,
		Subject: "Review and sign: " + project.Title,
		Body: fmt.Sprintf("Hello %s,\n\nYour contractor sent you agreement %s for %s (%s).\nReview, sign and fund escrow here:\n%s\n",
			h.FullName, project.Number, project.Title, valueobject.FormatUSD(a.TotalCost), link),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeUpstream, "invitation email could not be sent")
	}
	return nil
}
