package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Event types handled by the webhook.
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventAccountUpdated         = "account.updated"
	EventAccountDeauthorized    = "account.application.deauthorized"
	EventExternalAccountCreated = "account.external_account.created"
	EventExternalAccountDeleted = "account.external_account.deleted"
	EventExternalAccountUpdated = "account.external_account.updated"
)

// ErrInvalidSignature is returned when the Stripe-Signature header does not verify.
var ErrInvalidSignature = errors.New("stripe: invalid webhook signature")

// Event is a verified webhook delivery.
type Event struct {
	ID      string
	Type    string
	Account string
	Object  json.RawMessage
}

// IsExternalAccountEvent reports whether t is one of account.external_account.*.
func IsExternalAccountEvent(t string) bool {
	return strings.HasPrefix(t, "account.external_account.")
}

// ParseEvent verifies the signature header and decodes the event envelope.
// API version mismatches are tolerated; only the fields we read matter.
func ParseEvent(payload []byte, signatureHeader, secret string) (*Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := &Event{ID: evt.ID, Type: string(evt.Type), Account: evt.Account}
	if evt.Data != nil {
		out.Object = evt.Data.Raw
	}
	return out, nil
}

// IntentEvent is the decoded object of a payment_intent.* event.
type IntentEvent struct {
	ID          string
	Kind        string
	AgreementID uuid.UUID
	DisputeID   *uuid.UUID
}

// DecodeIntent reads the PaymentIntent object and its metadata.
func DecodeIntent(raw json.RawMessage) (*IntentEvent, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(raw, &pi); err != nil {
		return nil, fmt.Errorf("stripe: decode payment intent: %w", err)
	}
	out := &IntentEvent{ID: pi.ID, Kind: pi.Metadata[MetaKind]}
	if out.Kind == "" {
		out.Kind = KindEscrow
	}

	if v := pi.Metadata[MetaAgreementID]; v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("stripe: payment intent %s: bad agreement_id %q", pi.ID, v)
		}
		out.AgreementID = id
	}
	if v := pi.Metadata[MetaDisputeID]; v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("stripe: payment intent %s: bad dispute_id %q", pi.ID, v)
		}
		out.DisputeID = &id
	}
	return out, nil
}

// DecodeAccount reads the Account object of an account.updated event.
func DecodeAccount(raw json.RawMessage) (*AccountState, error) {
	var acct stripe.Account
	if err := json.Unmarshal(raw, &acct); err != nil {
		return nil, fmt.Errorf("stripe: decode account: %w", err)
	}
	if acct.ID == "" {
		return nil, errors.New("stripe: account object without id")
	}
	return accountState(&acct), nil
}
