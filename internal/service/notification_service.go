package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/goroutine"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/mail"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
)

// Notification events.
const (
	EventAgreementInvite      = "agreement.invite"
	EventAgreementSigned      = "agreement.signed"
	EventAgreementFullySigned = "agreement.fully_signed"
	EventEscrowFunded         = "escrow.funded"
	EventInvoiceCreated       = "invoice.created"
	EventInvoiceApproved      = "invoice.approved"
	EventInvoiceDisputed      = "invoice.disputed"
	EventInvoicePaid          = "invoice.paid"
	EventDisputeOpened        = "dispute.opened"
	EventDisputeResolved      = "dispute.resolved"
	EventChatMessage          = "chat.message"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page common.PageRequest) ([]models.Notification, int, error)
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// Publisher pushes live events to a user's websocket room.
type Publisher interface {
	PublishToUser(userID uuid.UUID, event string, data any) error
}

type ContractorByID interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contractor, error)
}

// Recipient is a notification target. Homeowners without an account only
// have an email.
type Recipient struct {
	UserID *uuid.UUID
	Email  string
}

// Note is one event to deliver. Subject and Body are the email; an empty
// Subject skips email.
type Note struct {
	Event   string
	Data    any
	Subject string
	Body    string
}

// NotificationService stores notifications and fans them out to websocket
// and email. Dispatch runs after the caller's transaction has committed.
type NotificationService struct {
	repo        NotificationRepository
	publisher   Publisher
	mailer      mail.Mailer
	users       UserLookup
	contractors ContractorByID
	homeowners  HomeownerLookup
	async       *goroutine.RecoveryHandler
}

func NewNotificationService(repo NotificationRepository, publisher Publisher, mailer mail.Mailer, users UserLookup, contractors ContractorByID, homeowners HomeownerLookup) *NotificationService {
	return &NotificationService{
		repo:        repo,
		publisher:   publisher,
		mailer:      mailer,
		users:       users,
		contractors: contractors,
		homeowners:  homeowners,
		async:       goroutine.NewRecoveryHandler(logger.RecoveryLogger{}),
	}
}

// Dispatch delivers note to both parties of a in the background. Failures
// are logged and never reach the caller.
func (s *NotificationService) Dispatch(ctx context.Context, a *models.Agreement, note Note) {
	agreement := *a
	s.async.GoWithContext(ctx, func(ctx context.Context) {
		recipients, err := s.PartiesOf(ctx, &agreement)
		if err != nil {
			logger.L().WithError(err).WithField("agreement_id", agreement.ID).Warn("notification service: resolve parties")
		}
		for _, r := range recipients {
			s.Notify(ctx, r, note)
		}
	})
}

// Go runs fn in the background with panic recovery.
func (s *NotificationService) Go(ctx context.Context, fn func(ctx context.Context)) {
	s.async.GoWithContext(ctx, fn)
}

// Wait blocks until background deliveries have finished.
func (s *NotificationService) Wait() {
	s.async.Wait()
}

// PartiesOf resolves the contractor and homeowner of a as recipients.
func (s *NotificationService) PartiesOf(ctx context.Context, a *models.Agreement) ([]Recipient, error) {
	var out []Recipient

	c, err := s.contractors.GetByID(ctx, a.ContractorID)
	if err != nil {
		return out, fmt.Errorf("notification service: contractor %w", err)
	}
	contractorUser := c.UserID
	r := Recipient{UserID: &contractorUser}
	if u, err := s.users.GetByID(ctx, c.UserID); err == nil {
		r.Email = u.Email
	}
	out = append(out, r)

	h, err := s.homeowners.GetByID(ctx, a.HomeownerID)
	if err != nil {
		return out, fmt.Errorf("notification service: homeowner %w", err)
	}
	return append(out, Recipient{UserID: h.UserID, Email: h.Email}), nil
}

// Notify persists, pushes and emails one note to one recipient.
func (s *NotificationService) Notify(ctx context.Context, to Recipient, note Note) {
	entry := logger.L().WithFields(logrus.Fields{"event": note.Event})

	if to.UserID != nil {
		entry = entry.WithField("user_id", *to.UserID)
		if _, err := s.Create(ctx, *to.UserID, note.Event, note.Data); err != nil {
			entry.WithError(err).Warn("notification service: persist")
		}
		if s.publisher != nil {
			if err := s.publisher.PublishToUser(*to.UserID, note.Event, note.Data); err != nil {
				entry.WithError(err).Warn("notification service: push")
			}
		}
	}

	if to.Email != "" && note.Subject != "" && s.mailer != nil {
		if err := s.mailer.Send(ctx, mail.Message{To: to.Email, Subject: note.Subject, Body: note.Body}); err != nil {
			entry.WithError(err).Warn("notification service: email")
		}
	}
}

// Create stores a notification with payload {"event", "data"}.
func (s *NotificationService) Create(ctx context.Context, userID uuid.UUID, event string, data any) (*models.Notification, error) {
	payload, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		return nil, fmt.Errorf("notification service: marshal payload %w", err)
	}
	n := &models.Notification{UserID: userID, Payload: payload}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page common.PageRequest) ([]models.Notification, int, error) {
	items, total, err := s.repo.List(ctx, userID, unreadOnly, page.Normalize())
	return items, total, mapErr("notification service: list", err)
}

// MarkAsRead only touches notifications owned by userID.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	return mapErr("notification service: mark read", s.repo.MarkAsRead(ctx, userID, id))
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return mapErr("notification service: mark all read", s.repo.MarkAllAsRead(ctx, userID))
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.repo.CountUnread(ctx, userID)
	return n, mapErr("notification service: count unread", err)
}
