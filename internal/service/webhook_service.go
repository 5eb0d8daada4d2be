package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/alert"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/payments"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository"
)

type WebhookEventStore interface {
	Begin(ctx context.Context, eventID, eventType string, payload json.RawMessage) (bool, error)
	Finish(ctx context.Context, eventID, status, errText string) error
}

type EscrowFunder interface {
	FundEscrow(ctx context.Context, id uuid.UUID, intentID string) (*repository.FundingResult, error)
}

// StripeAccountStore keeps the Connect state of contractors.
type StripeAccountStore interface {
	GetByStripeAccountID(ctx context.Context, accountID string) (*models.Contractor, error)
	SaveStripeState(ctx context.Context, c *models.Contractor) error
	Deauthorize(ctx context.Context, accountID string) error
	AdjustExternalAccounts(ctx context.Context, accountID string, delta int) error
}

type FeeConfirmer interface {
	ConfirmFee(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
}

// WebhookService applies verified Stripe events. Each event id is processed
// at most once; failures are recorded for replay and alerted.
type WebhookService struct {
	secret   string
	events   WebhookEventStore
	escrow   EscrowFunder
	accounts StripeAccountStore
	disputes FeeConfirmer
	notifier Notifier
	alerter  alert.Alerter
}

func NewWebhookService(
	secret string,
	events WebhookEventStore,
	escrow EscrowFunder,
	accounts StripeAccountStore,
	disputes FeeConfirmer,
	notifier Notifier,
	alerter alert.Alerter,
) *WebhookService {
	if alerter == nil {
		alerter = alert.LogOnly{}
	}
	return &WebhookService{
		secret:   secret,
		events:   events,
		escrow:   escrow,
		accounts: accounts,
		disputes: disputes,
		notifier: notifier,
		alerter:  alerter,
	}
}

// Handle verifies and applies one delivery and returns the stored status.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, signature string) (string, error) {
	evt, err := payments.ParseEvent(payload, signature, s.secret)
	if err != nil {
		logger.L().WithError(err).Warn("stripe webhook rejected")
		return "", err
	}
	entry := logger.L().WithFields(logrus.Fields{"event_id": evt.ID, "event_type": evt.Type})

	done, err := s.events.Begin(ctx, evt.ID, evt.Type, json.RawMessage(payload))
	if err != nil {
		entry.WithError(err).Error("stripe webhook: record event")
		return models.WebhookStatusFailed, err
	}
	if done {
		entry.Debug("stripe webhook: duplicate delivery")
		return models.WebhookStatusProcessed, nil
	}

	status, procErr := s.apply(ctx, evt)
	errText := ""
	if procErr != nil {
		status, errText = models.WebhookStatusFailed, procErr.Error()
		entry.WithError(procErr).Error("stripe webhook: processing failed")
		if err := s.alerter.Alert(ctx, alert.Alert{
			Title:  "Stripe webhook failed",
			Text:   procErr.Error(),
			Fields: map[string]string{"event_id": evt.ID, "event_type": evt.Type},
		}); err != nil {
			entry.WithError(err).Warn("stripe webhook: alert")
		}
	}
	if err := s.events.Finish(ctx, evt.ID, status, errText); err != nil {
		entry.WithError(err).Error("stripe webhook: store outcome")
	}
	entry.WithField("status", status).Info("stripe webhook handled")
	return status, procErr
}

func (s *WebhookService) apply(ctx context.Context, evt *payments.Event) (string, error) {
	switch {
	case evt.Type == payments.EventPaymentIntentSucceeded:
		return s.paymentSucceeded(ctx, evt)
	case evt.Type == payments.EventAccountUpdated:
		return s.accountUpdated(ctx, evt)
	case evt.Type == payments.EventAccountDeauthorized:
		if evt.Account == "" {
			return models.WebhookStatusIgnored, nil
		}
		if err := s.accounts.Deauthorize(ctx, evt.Account); err != nil {
			return "", err
		}
		logger.L().WithField("account_id", evt.Account).Warn("stripe account deauthorized")
		return models.WebhookStatusProcessed, nil
	case payments.IsExternalAccountEvent(evt.Type):
		return s.externalAccount(ctx, evt)
	}
	return models.WebhookStatusIgnored, nil
}

func (s *WebhookService) paymentSucceeded(ctx context.Context, evt *payments.Event) (string, error) {
	pi, err := payments.DecodeIntent(evt.Object)
	if err != nil {
		return "", err
	}

	switch pi.Kind {
	case payments.KindEscrow:
		if pi.AgreementID == uuid.Nil {
			return models.WebhookStatusIgnored, nil
		}
		res, err := s.escrow.FundEscrow(ctx, pi.AgreementID, pi.ID)
		if err != nil {
			return "", fmt.Errorf("fund escrow %s: %w", pi.AgreementID, err)
		}
		if res.AlreadyFunded {
			return models.WebhookStatusProcessed, nil
		}
		s.announceFunding(ctx, res)
		return models.WebhookStatusProcessed, nil

	case payments.KindDisputeFee:
		if pi.DisputeID == nil {
			return models.WebhookStatusIgnored, nil
		}
		if _, err := s.disputes.ConfirmFee(ctx, *pi.DisputeID); err != nil {
			return "", fmt.Errorf("confirm dispute fee %s: %w", *pi.DisputeID, err)
		}
		return models.WebhookStatusProcessed, nil
	}
	return models.WebhookStatusIgnored, nil
}

func (s *WebhookService) announceFunding(ctx context.Context, res *repository.FundingResult) {
	a := res.Agreement
	logger.L().WithFields(logrus.Fields{
		"agreement_id": a.ID,
		"invoices":     len(res.Invoices),
	}).Info("escrow funded")

	s.notifier.Dispatch(ctx, a, Note{
		Event:   EventEscrowFunded,
		Data:    map[string]any{"agreement_id": a.ID, "amount": a.TotalCost.StringFixed(2)},
		Subject: "Escrow funded",
		Body:    fmt.Sprintf("Escrow of %s is funded. Work can begin.\n", valueobject.FormatUSD(a.TotalCost)),
	})
	for i := range res.Invoices {
		inv := &res.Invoices[i]
		s.notifier.Dispatch(ctx, a, Note{Event: EventInvoiceCreated, Data: invoiceData(inv)})
	}
}

func (s *WebhookService) accountUpdated(ctx context.Context, evt *payments.Event) (string, error) {
	state, err := payments.DecodeAccount(evt.Object)
	if err != nil {
		return "", err
	}
	c, err := s.accounts.GetByStripeAccountID(ctx, state.ID)
	if errors.Is(err, repository.ErrContractorNotFound) {
		return models.WebhookStatusIgnored, nil
	}
	if err != nil {
		return "", err
	}
	c.ApplyCapabilities(state.ChargesEnabled, state.PayoutsEnabled, state.DetailsSubmitted)
	if err := s.accounts.SaveStripeState(ctx, c); err != nil {
		return "", err
	}
	return models.WebhookStatusProcessed, nil
}

func (s *WebhookService) externalAccount(ctx context.Context, evt *payments.Event) (string, error) {
	var delta int
	switch evt.Type {
	case payments.EventExternalAccountCreated:
		delta = 1
	case payments.EventExternalAccountDeleted:
		delta = -1
	}
	if delta == 0 || evt.Account == "" {
		return models.WebhookStatusIgnored, nil
	}
	if err := s.accounts.AdjustExternalAccounts(ctx, evt.Account, delta); err != nil {
		return "", err
	}
	return models.WebhookStatusProcessed, nil
}
