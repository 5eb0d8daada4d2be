package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/lifecycle"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/payments"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
)

const (
	DefaultAutoReleaseWindow = 72 * time.Hour
	autoReleaseBatch         = 100
)

var errNotDue = errors.New("invoice no longer due for auto release")

type InvoiceRepository interface {
	List(ctx context.Context, f repository.InvoiceFilter, page common.PageRequest) ([]models.Invoice, int, error)
	Load(ctx context.Context, id uuid.UUID) (*repository.InvoiceContext, error)
	Transition(ctx context.Context, id uuid.UUID, apply func(ic *repository.InvoiceContext) error) (*repository.InvoiceContext, error)
	SetTransfer(ctx context.Context, id uuid.UUID, transferID string) error
	ListAutoReleaseDue(ctx context.Context, cutoff time.Time, limit int) ([]models.Invoice, error)
}

type AgreementByToken interface {
	GetByToken(ctx context.Context, token uuid.UUID) (*models.Agreement, error)
}

// InvoiceService moves milestone invoices through approval and pays out
// approved ones from escrow.
type InvoiceService struct {
	repo        InvoiceRepository
	agreements  AgreementByToken
	contractors ContractorByID
	access      *Access
	gateway     payments.Gateway
	notifier    Notifier
	window      time.Duration
	now         func() time.Time
}

func NewInvoiceService(
	repo InvoiceRepository,
	agreements AgreementByToken,
	contractors ContractorByID,
	access *Access,
	gateway payments.Gateway,
	notifier Notifier,
	window time.Duration,
) *InvoiceService {
	if window <= 0 {
		window = DefaultAutoReleaseWindow
	}
	return &InvoiceService{
		repo:        repo,
		agreements:  agreements,
		contractors: contractors,
		access:      access,
		gateway:     gateway,
		notifier:    notifier,
		window:      window,
		now:         time.Now,
	}
}

// Get returns the invoice if actor is a party of its agreement.
func (s *InvoiceService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Invoice, error) {
	ic, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, mapErr("invoice service: get", err)
	}
	if _, err := s.access.PartyOf(ctx, actor, ic.Agreement); err != nil {
		return nil, err
	}
	return ic.Invoice, nil
}

// List scopes invoices to the actor's side of the marketplace.
func (s *InvoiceService) List(ctx context.Context, actor Actor, f repository.InvoiceFilter, page common.PageRequest) ([]models.Invoice, int, error) {
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
			return []models.Invoice{}, 0, nil
		}
		f.HomeownerID = &h.ID
	default:
		return nil, 0, apperror.ErrForbidden
	}

	items, total, err := s.repo.List(ctx, f, page.Normalize())
	if err != nil {
		return nil, 0, mapErr("invoice service: list", err)
	}
	return items, total, nil
}

// ListByToken lists the invoices of the magic-link agreement.
func (s *InvoiceService) ListByToken(ctx context.Context, token uuid.UUID, page common.PageRequest) ([]models.Invoice, int, error) {
	a, err := s.agreementByToken(ctx, token)
	if err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.List(ctx, repository.InvoiceFilter{AgreementID: &a.ID}, page.Normalize())
	if err != nil {
		return nil, 0, mapErr("invoice service: list", err)
	}
	return items, total, nil
}

// Approve is the homeowner accepting the milestone work. The funds are
// released to the contractor right after the approval commits.
func (s *InvoiceService) Approve(ctx context.Context, actor Actor, id uuid.UUID) (*models.Invoice, error) {
	ic, err := s.transition(ctx, actor, id, func(ic *repository.InvoiceContext) error {
		if lifecycle.ReleaseBlocked(ic.Agreement, ic.Milestone) {
			return apperror.BadRequest("escrow is frozen by an open dispute")
		}
		return ic.Invoice.Approve(s.now(), false)
	})
	if err != nil {
		return nil, err
	}

	s.release(ctx, ic)
	s.notifier.Dispatch(ctx, ic.Agreement, Note{
		Event:   EventInvoiceApproved,
		Data:    invoiceData(ic.Invoice),
		Subject: "Invoice " + ic.Invoice.InvoiceNumber + " approved",
		Body: fmt.Sprintf("Invoice %s for %s was approved and the funds are on their way.\n",
			ic.Invoice.InvoiceNumber, valueobject.FormatUSD(ic.Invoice.Amount)),
	})
	return ic.Invoice, nil
}

// Dispute is the homeowner rejecting the milestone work.
func (s *InvoiceService) Dispute(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*models.Invoice, error) {
	ic, err := s.transition(ctx, actor, id, func(ic *repository.InvoiceContext) error {
		return ic.Invoice.Dispute(reason, models.DisputeByHomeowner, s.now())
	})
	if err != nil {
		return nil, err
	}

	logger.L().WithFields(logrus.Fields{
		"invoice_id":   ic.Invoice.ID,
		"agreement_id": ic.Agreement.ID,
	}).Info("invoice disputed")

	s.notifier.Dispatch(ctx, ic.Agreement, Note{
		Event:   EventInvoiceDisputed,
		Data:    invoiceData(ic.Invoice),
		Subject: "Invoice " + ic.Invoice.InvoiceNumber + " disputed",
		Body:    fmt.Sprintf("The homeowner disputed invoice %s:\n\n%s\n", ic.Invoice.InvoiceNumber, ic.Invoice.DisputeReason),
	})
	return ic.Invoice, nil
}

// transition authorizes a homeowner action, by session or by magic-link
// token, and applies it under the invoice row lock.
func (s *InvoiceService) transition(ctx context.Context, actor Actor, id uuid.UUID, apply func(ic *repository.InvoiceContext) error) (*repository.InvoiceContext, error) {
	current, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, mapErr("invoice service: load", err)
	}
	if _, err := s.access.Require(ctx, actor, current.Agreement, valueobject.RoleHomeowner); err != nil {
		return nil, err
	}
	ic, err := s.repo.Transition(ctx, id, apply)
	if err != nil {
		return nil, mapErr("invoice service: transition", err)
	}
	return ic, nil
}

// MarkPaid records an out-of-band payment of an approved invoice.
func (s *InvoiceService) MarkPaid(ctx context.Context, actor Actor, id uuid.UUID) (*models.Invoice, error) {
	current, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, mapErr("invoice service: mark paid", err)
	}
	if _, err := s.access.Require(ctx, actor, current.Agreement, valueobject.RoleContractor, valueobject.RoleAdmin); err != nil {
		return nil, err
	}
	ic, err := s.repo.Transition(ctx, id, func(ic *repository.InvoiceContext) error {
		return ic.Invoice.MarkPaid(s.now())
	})
	if err != nil {
		return nil, mapErr("invoice service: mark paid", err)
	}

	s.notifier.Dispatch(ctx, ic.Agreement, Note{Event: EventInvoicePaid, Data: invoiceData(ic.Invoice)})
	return ic.Invoice, nil
}

// ReleaseDue approves every pending invoice older than the release window
// whose escrow is not frozen, and pays it out. It returns how many invoices
// were released.
func (s *InvoiceService) ReleaseDue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.repo.ListAutoReleaseDue(ctx, now.Add(-s.window), autoReleaseBatch)
	if err != nil {
		return 0, fmt.Errorf("invoice service: list due %w", err)
	}

	released := 0
	for _, inv := range due {
		if err := ctx.Err(); err != nil {
			return released, err
		}
		entry := logger.L().WithFields(logrus.Fields{"invoice_id": inv.ID, "agreement_id": inv.AgreementID})

		ic, err := s.repo.Transition(ctx, inv.ID, func(ic *repository.InvoiceContext) error {
			milestoneFrozen := ic.Milestone != nil && ic.Milestone.EscrowFrozen
			if !lifecycle.AutoReleaseDue(ic.Invoice, ic.Agreement.EscrowFrozen, milestoneFrozen, s.window, now) {
				return errNotDue
			}
			return ic.Invoice.Approve(now, true)
		})
		if errors.Is(err, errNotDue) {
			entry.Debug("auto release skipped")
			continue
		}
		if err != nil {
			entry.WithError(err).Error("auto release failed")
			continue
		}

		entry.Info("invoice auto released")
		released++
		s.release(ctx, ic)
		s.notifier.Dispatch(ctx, ic.Agreement, Note{
			Event:   EventInvoiceApproved,
			Data:    invoiceData(ic.Invoice),
			Subject: "Invoice " + ic.Invoice.InvoiceNumber + " auto-approved",
			Body: fmt.Sprintf("Invoice %s for %s had no response for %s and was approved automatically.\n",
				ic.Invoice.InvoiceNumber, valueobject.FormatUSD(ic.Invoice.Amount), s.window),
		})
	}
	return released, nil
}

// release transfers an approved invoice's amount to the contractor's
// connected account. A contractor who cannot receive payouts yet keeps the
// invoice approved without a transfer; it is retried by support.
func (s *InvoiceService) release(ctx context.Context, ic *repository.InvoiceContext) {
	inv := ic.Invoice
	entry := logger.L().WithFields(logrus.Fields{"invoice_id": inv.ID, "agreement_id": ic.Agreement.ID})

	if inv.StripeTransferID != "" {
		return
	}
	if lifecycle.ReleaseBlocked(ic.Agreement, ic.Milestone) {
		entry.Warn("release blocked: escrow frozen")
		return
	}
	c, err := s.contractors.GetByID(ctx, ic.Agreement.ContractorID)
	if err != nil {
		entry.WithError(err).Error("release: load contractor")
		return
	}
	if !c.CanReceivePayouts() {
		entry.WithField("contractor_id", c.ID).Warn("release skipped: contractor payouts not enabled")
		return
	}

	transferID, err := s.gateway.CreateTransfer(ctx, payments.TransferInput{
		Amount:        inv.Amount,
		Destination:   *c.StripeAccountID,
		AgreementID:   ic.Agreement.ID,
		InvoiceID:     inv.ID,
		TransferGroup: ic.Agreement.ID.String(),
	})
	if err != nil {
		entry.WithError(err).Error("release: stripe transfer")
		return
	}
	if err := s.repo.SetTransfer(ctx, inv.ID, transferID); err != nil {
		entry.WithError(err).WithField("transfer_id", transferID).Error("release: record transfer")
		return
	}
	inv.StripeTransferID = transferID
	entry.WithField("transfer_id", transferID).Info("escrow released")
}

func (s *InvoiceService) agreementByToken(ctx context.Context, token uuid.UUID) (*models.Agreement, error) {
	if token == uuid.Nil {
		return nil, apperror.ErrAgreementNotFound
	}
	a, err := s.agreements.GetByToken(ctx, token)
	if err != nil {
		return nil, mapErr("invoice service: agreement by token", err)
	}
	return a, nil
}

func invoiceData(inv *models.Invoice) map[string]any {
	return map[string]any{
		"invoice_id":     inv.ID,
		"agreement_id":   inv.AgreementID,
		"invoice_number": inv.InvoiceNumber,
		"amount":         inv.Amount.StringFixed(2),
		"status":         inv.Status,
	}
}
