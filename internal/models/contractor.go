package models

import (
	"time"

	"github.com/google/uuid"
)

// Contractor is the business side of a contractor user.
type Contractor struct {
	ID               uuid.UUID `db:"id" json:"id"`
	UserID           uuid.UUID `db:"user_id" json:"user_id"`
	BusinessName     string    `db:"business_name" json:"business_name"`
	Phone            string    `db:"phone" json:"phone"`
	LicenseNumber    string    `db:"license_number" json:"license_number"`
	Address          string    `db:"address" json:"address"`
	StripeAccountID  *string   `db:"stripe_account_id" json:"stripe_account_id,omitempty"`
	ChargesEnabled   bool      `db:"charges_enabled" json:"charges_enabled"`
	PayoutsEnabled   bool      `db:"payouts_enabled" json:"payouts_enabled"`
	DetailsSubmitted bool      `db:"details_submitted" json:"details_submitted"`
	OnboardingStatus string    `db:"onboarding_status" json:"onboarding_status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// HasStripeAccount reports whether a Connect account id is linked.
func (c *Contractor) HasStripeAccount() bool {
	return c.StripeAccountID != nil && *c.StripeAccountID != ""
}

// CanReceivePayouts reports whether transfers to the contractor will succeed.
func (c *Contractor) CanReceivePayouts() bool {
	return c.HasStripeAccount() && c.PayoutsEnabled
}

// ApplyCapabilities copies Stripe capability flags and recomputes the onboarding status.
func (c *Contractor) ApplyCapabilities(charges, payouts, details bool) {
	c.ChargesEnabled = charges
	c.PayoutsEnabled = payouts
	c.DetailsSubmitted = details
	c.OnboardingStatus = OnboardingStatusFor(c.HasStripeAccount(), charges, payouts, details)
}

// OnboardingStatusFor derives the onboarding status from Stripe flags.
func OnboardingStatusFor(hasAccount, charges, payouts, details bool) string {
	switch {
	case !hasAccount:
		return OnboardingNotStarted
	case charges && payouts && details:
		return OnboardingComplete
	case details:
		return OnboardingPending
	default:
		return OnboardingIncomplete
	}
}

// ConnectedAccount caches a user's Stripe Connect account state.
type ConnectedAccount struct {
	ID                    uuid.UUID `db:"id" json:"id"`
	UserID                uuid.UUID `db:"user_id" json:"user_id"`
	StripeAccountID       string    `db:"stripe_account_id" json:"stripe_account_id"`
	ChargesEnabled        bool      `db:"charges_enabled" json:"charges_enabled"`
	PayoutsEnabled        bool      `db:"payouts_enabled" json:"payouts_enabled"`
	DetailsSubmitted      bool      `db:"details_submitted" json:"details_submitted"`
	ExternalAccountsCount int       `db:"external_accounts_count" json:"external_accounts_count"`
	Deauthorized          bool      `db:"deauthorized" json:"deauthorized"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// Homeowner is the client party of an agreement. A login account is optional.
type Homeowner struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	FullName              string     `db:"full_name" json:"full_name"`
	Email                 string     `db:"email" json:"email"`
	Phone                 string     `db:"phone" json:"phone"`
	StreetAddress         string     `db:"street_address" json:"street_address"`
	City                  string     `db:"city" json:"city"`
	State                 string     `db:"state" json:"state"`
	ZipCode               string     `db:"zip_code" json:"zip_code"`
	UserID                *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	CreatedByContractorID *uuid.UUID `db:"created_by_contractor_id" json:"created_by_contractor_id,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}
