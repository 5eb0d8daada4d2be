package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/payments"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/storage"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/validation"
)

// DefaultDisputeFee is charged to open a dispute when no fee is configured.
var DefaultDisputeFee = decimal.RequireFromString("25.00")

type DisputeRepository interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	List(ctx context.Context, f repository.DisputeFilter, page common.PageRequest) ([]models.Dispute, int, error)
	SetFeeIntent(ctx context.Context, id uuid.UUID, intentID string) error
	ConfirmFee(ctx context.Context, id uuid.UUID) (*models.Dispute, bool, error)
	Resolve(ctx context.Context, id uuid.UUID, apply func(d *models.Dispute) error) (*models.Dispute, error)
	AddAttachment(ctx context.Context, a *models.DisputeAttachment) error
	ListAttachments(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeAttachment, error)
}

type AgreementByID interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Agreement, error)
}

type MilestoneByID interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
}

type CreateDisputeInput struct {
	AgreementID uuid.UUID  `json:"agreement_id" validate:"required"`
	MilestoneID *uuid.UUID `json:"milestone_id"`
	Reason      string     `json:"reason" validate:"required,max=255"`
	Description string     `json:"description" validate:"max=10000"`
}

type ResolveDisputeInput struct {
	Outcome    string `json:"outcome" validate:"required,oneof=resolved_contractor resolved_homeowner canceled"`
	Resolution string `json:"resolution" validate:"required,max=10000"`
}

type DisputeService struct {
	repo       DisputeRepository
	agreements AgreementByID
	milestones MilestoneByID
	access     *Access
	gateway    payments.Gateway
	files      FileStore
	notifier   Notifier
	fee        decimal.Decimal
	now        func() time.Time
}

func NewDisputeService(
	repo DisputeRepository,
	agreements AgreementByID,
	milestones MilestoneByID,
	access *Access,
	gateway payments.Gateway,
	files FileStore,
	notifier Notifier,
	fee decimal.Decimal,
) *DisputeService {
	if !fee.IsPositive() {
		fee = DefaultDisputeFee
	}
	return &DisputeService{
		repo:       repo,
		agreements: agreements,
		milestones: milestones,
		access:     access,
		gateway:    gateway,
		files:      files,
		notifier:   notifier,
		fee:        fee,
		now:        time.Now,
	}
}

// Create files a dispute in the initiated state. Escrow is not frozen until
// the fee is paid and the dispute opens.
func (s *DisputeService) Create(ctx context.Context, actor Actor, in CreateDisputeInput) (*models.Dispute, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if actor.viaToken() {
		return nil, apperror.ErrUnauthorized
	}
	a, err := s.agreements.GetByID(ctx, in.AgreementID)
	if err != nil {
		return nil, mapErr("dispute service: create", err)
	}
	role, err := s.access.Require(ctx, actor, a, valueobject.RoleContractor, valueobject.RoleHomeowner)
	if err != nil {
		return nil, err
	}
	if in.MilestoneID != nil {
		m, err := s.milestones.GetByID(ctx, *in.MilestoneID)
		if err != nil {
			return nil, mapErr("dispute service: create", err)
		}
		if m.AgreementID != a.ID {
			return nil, apperror.Validation("invalid dispute", map[string][]string{"milestone_id": {"Milestone does not belong to this agreement"}})
		}
	}

	d := &models.Dispute{
		AgreementID:   a.ID,
		MilestoneID:   in.MilestoneID,
		InitiatorID:   actor.UserID,
		InitiatorRole: string(role),
		Reason:        strings.TrimSpace(in.Reason),
		Description:   in.Description,
		Status:        string(valueobject.DisputeStatusInitiated),
		FeeAmount:     s.fee,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, mapErr("dispute service: create", err)
	}

	logger.L().WithFields(logrus.Fields{
		"dispute_id":   d.ID,
		"agreement_id": a.ID,
		"role":         role,
	}).Info("dispute created")
	return d, nil
}

// Get returns the dispute to a party of its agreement.
func (s *DisputeService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Dispute, error) {
	d, _, err := s.load(ctx, actor, id)
	return d, err
}

func (s *DisputeService) load(ctx context.Context, actor Actor, id uuid.UUID) (*models.Dispute, *models.Agreement, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, mapErr("dispute service: get", err)
	}
	a, err := s.agreements.GetByID(ctx, d.AgreementID)
	if err != nil {
		return nil, nil, mapErr("dispute service: get", err)
	}
	if _, err := s.access.PartyOf(ctx, actor, a); err != nil {
		return nil, nil, err
	}
	return d, a, nil
}

// List scopes disputes to the actor's agreements; staff see all.
func (s *DisputeService) List(ctx context.Context, actor Actor, f repository.DisputeFilter, page common.PageRequest) ([]models.Dispute, int, error) {
	f.ContractorID, f.HomeownerID = nil, nil
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
			return []models.Dispute{}, 0, nil
		}
		f.HomeownerID = &h.ID
	default:
		return nil, 0, apperror.ErrForbidden
	}

	items, total, err := s.repo.List(ctx, f, page.Normalize())
	if err != nil {
		return nil, 0, mapErr("dispute service: list", err)
	}
	return items, total, nil
}

// PayFee creates the PaymentIntent for the dispute fee. Only the initiator pays.
func (s *DisputeService) PayFee(ctx context.Context, actor Actor, id uuid.UUID) (*payments.Intent, error) {
	d, a, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if d.InitiatorID != actor.UserID {
		return nil, apperror.Forbidden("only the initiator pays the dispute fee")
	}
	if d.FeePaid {
		return nil, apperror.BadRequest("dispute fee already paid")
	}
	if valueobject.DisputeStatus(d.Status) != valueobject.DisputeStatusInitiated {
		return nil, apperror.BadRequest("dispute is " + d.Status)
	}

	disputeID := d.ID
	intent, err := s.gateway.CreatePaymentIntent(ctx, payments.IntentInput{
		Amount:         d.FeeAmount,
		Kind:           payments.KindDisputeFee,
		AgreementID:    a.ID,
		DisputeID:      &disputeID,
		IdempotencyKey: "dispute-fee-" + d.ID.String(),
	})
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	if err := s.repo.SetFeeIntent(ctx, d.ID, intent.ID); err != nil {
		return nil, mapErr("dispute service: store fee intent", err)
	}
	return intent, nil
}

// ConfirmFee is called when the fee payment succeeded. It opens the dispute
// and freezes escrow on its scope. Repeated confirmations are no-ops.
func (s *DisputeService) ConfirmFee(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	d, opened, err := s.repo.ConfirmFee(ctx, id)
	if err != nil {
		return nil, mapErr("dispute service: confirm fee", err)
	}
	if !opened {
		return d, nil
	}

	logger.L().WithFields(logrus.Fields{
		"dispute_id":   d.ID,
		"agreement_id": d.AgreementID,
		"milestone_id": d.MilestoneID,
	}).Info("dispute opened, escrow frozen")

	if a, err := s.agreements.GetByID(ctx, d.AgreementID); err == nil {
		s.notifier.Dispatch(ctx, a, Note{
			Event:   EventDisputeOpened,
			Data:    disputeData(d),
			Subject: "Dispute opened",
			Body:    fmt.Sprintf("A dispute was opened: %s\nEscrow is frozen until it is resolved.\n", d.Reason),
		})
	}
	return d, nil
}

// Resolve applies an administrative outcome.
func (s *DisputeService) Resolve(ctx context.Context, actor Actor, id uuid.UUID, in ResolveDisputeInput) (*models.Dispute, error) {
	if !actor.IsAdmin() {
		return nil, apperror.Forbidden("only staff can resolve disputes")
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	d, err := s.repo.Resolve(ctx, id, func(d *models.Dispute) error {
		return d.Resolve(valueobject.DisputeStatus(in.Outcome), strings.TrimSpace(in.Resolution), actor.UserID, s.now())
	})
	if err != nil {
		return nil, mapErr("dispute service: resolve", err)
	}

	logger.L().WithFields(logrus.Fields{
		"dispute_id": d.ID,
		"outcome":    d.Status,
		"admin_id":   actor.UserID,
	}).Info("dispute resolved")

	if a, err := s.agreements.GetByID(ctx, d.AgreementID); err == nil {
		s.notifier.Dispatch(ctx, a, Note{
			Event:   EventDisputeResolved,
			Data:    disputeData(d),
			Subject: "Dispute resolved",
			Body:    fmt.Sprintf("Your dispute was resolved (%s):\n\n%s\n", d.Status, d.Resolution),
		})
	}
	return d, nil
}

// AddAttachment stores evidence on a dispute.
func (s *DisputeService) AddAttachment(ctx context.Context, actor Actor, id uuid.UUID, up Upload) (*models.DisputeAttachment, error) {
	d, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.UserID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	stored, err := s.files.SaveUpload(ctx, "disputes/"+d.ID.String(), up.Name, up.Reader, storage.DocumentTypes)
	if err != nil {
		return nil, uploadErr("dispute service: save attachment", err)
	}
	att := &models.DisputeAttachment{
		DisputeID:   d.ID,
		UploadedBy:  actor.UserID,
		FileName:    up.Name,
		FilePath:    stored.Path,
		ContentType: stored.ContentType,
		SizeBytes:   stored.Size,
	}
	if err := s.repo.AddAttachment(ctx, att); err != nil {
		_ = s.files.Delete(ctx, stored.Path)
		return nil, mapErr("dispute service: add attachment", err)
	}
	return att, nil
}

func (s *DisputeService) ListAttachments(ctx context.Context, actor Actor, id uuid.UUID) ([]models.DisputeAttachment, error) {
	d, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListAttachments(ctx, d.ID)
	return items, mapErr("dispute service: list attachments", err)
}

func disputeData(d *models.Dispute) map[string]any {
	return map[string]any{
		"dispute_id":   d.ID,
		"agreement_id": d.AgreementID,
		"milestone_id": d.MilestoneID,
		"status":       d.Status,
	}
}
