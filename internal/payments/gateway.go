package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
)

// PaymentIntent metadata kinds.
const (
	KindEscrow     = "escrow"
	KindDisputeFee = "dispute_fee"
)

// Metadata keys written on PaymentIntents.
const (
	MetaKind        = "kind"
	MetaAgreementID = "agreement_id"
	MetaDisputeID   = "dispute_id"
)

// IntentInput describes a PaymentIntent to create.
type IntentInput struct {
	Amount         decimal.Decimal
	Kind           string
	AgreementID    uuid.UUID
	DisputeID      *uuid.UUID
	ReceiptEmail   string
	IdempotencyKey string
}

// Intent is the part of a created PaymentIntent the API hands back.
type Intent struct {
	ID           string `json:"payment_intent_id"`
	ClientSecret string `json:"client_secret"`
}

// AccountState mirrors the Connect capability flags we cache.
type AccountState struct {
	ID                    string
	ChargesEnabled        bool
	PayoutsEnabled        bool
	DetailsSubmitted      bool
	ExternalAccountsCount int
}

// TransferInput describes a release of escrowed funds to a connected account.
type TransferInput struct {
	Amount        decimal.Decimal
	Destination   string
	AgreementID   uuid.UUID
	InvoiceID     uuid.UUID
	TransferGroup string
}

// Gateway is the payment provider as seen by the services.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, in IntentInput) (*Intent, error)
	CreateExpressAccount(ctx context.Context, email string) (string, error)
	CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	GetAccount(ctx context.Context, accountID string) (*AccountState, error)
	CreateTransfer(ctx context.Context, in TransferInput) (string, error)
}

// StripeGateway implements Gateway with the Stripe API.
type StripeGateway struct {
	client   *stripe.Client
	currency string
}

// NewStripeGateway builds the client once; it is shared by every request.
func NewStripeGateway(secretKey, currency string) *StripeGateway {
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeGateway{
		client:   stripe.NewClient(secretKey),
		currency: currency,
	}
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, in IntentInput) (*Intent, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(valueobject.ToCents(in.Amount)),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		TransferGroup: stripe.String(in.AgreementID.String()),
		Metadata: map[string]string{
			MetaKind:        in.Kind,
			MetaAgreementID: in.AgreementID.String(),
		},
	}
	if in.DisputeID != nil {
		params.Metadata[MetaDisputeID] = in.DisputeID.String()
	}
	if in.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(in.ReceiptEmail)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	pi, err := g.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *StripeGateway) CreateExpressAccount(ctx context.Context, email string) (string, error) {
	params := &stripe.AccountCreateParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
		Capabilities: &stripe.AccountCreateCapabilitiesParams{
			Transfers: &stripe.AccountCreateCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	}
	acct, err := g.client.V1Accounts.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("stripe: create account: %w", err)
	}
	return acct.ID, nil
}

func (g *StripeGateway) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	link, err := g.client.V1AccountLinks.Create(ctx, &stripe.AccountLinkCreateParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	})
	if err != nil {
		return "", fmt.Errorf("stripe: create account link: %w", err)
	}
	return link.URL, nil
}

func (g *StripeGateway) GetAccount(ctx context.Context, accountID string) (*AccountState, error) {
	acct, err := g.client.V1Accounts.GetByID(ctx, accountID, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe: get account: %w", err)
	}
	return accountState(acct), nil
}

// CreateTransfer is keyed by invoice so a retried release never pays twice.
func (g *StripeGateway) CreateTransfer(ctx context.Context, in TransferInput) (string, error) {
	params := &stripe.TransferCreateParams{
		Amount:        stripe.Int64(valueobject.ToCents(in.Amount)),
		Currency:      stripe.String(g.currency),
		Destination:   stripe.String(in.Destination),
		TransferGroup: stripe.String(in.TransferGroup),
		Metadata: map[string]string{
			MetaAgreementID: in.AgreementID.String(),
			"invoice_id":    in.InvoiceID.String(),
		},
	}
	params.SetIdempotencyKey("invoice-release-" + in.InvoiceID.String())

	tr, err := g.client.V1Transfers.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("stripe: create transfer: %w", err)
	}
	return tr.ID, nil
}

func accountState(acct *stripe.Account) *AccountState {
	state := &AccountState{
		ID:               acct.ID,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}
	if acct.ExternalAccounts != nil {
		state.ExternalAccountsCount = len(acct.ExternalAccounts.Data)
	}
	return state
}
