package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/payments"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/validation"
)

type ContractorRepository interface {
	UpdateProfile(ctx context.Context, c *models.Contractor) error
	SaveStripeState(ctx context.Context, c *models.Contractor) error
}

type HomeownerLister interface {
	ListForContractor(ctx context.Context, contractorID uuid.UUID, search string, page common.PageRequest) ([]models.Homeowner, int, error)
}

type UpdateContractorInput struct {
	BusinessName  string `json:"business_name" validate:"required,max=200"`
	Phone         string `json:"phone" validate:"max=30"`
	LicenseNumber string `json:"license_number" validate:"max=100"`
	Address       string `json:"address" validate:"max=500"`
}

// OnboardingLink is where the contractor finishes Stripe onboarding.
type OnboardingLink struct {
	URL       string `json:"url"`
	AccountID string `json:"account_id"`
}

type OnboardingStatus struct {
	Status           string `json:"onboarding_status"`
	AccountID        string `json:"stripe_account_id,omitempty"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
}

type ContractorService struct {
	repo        ContractorRepository
	homeowners  HomeownerLister
	users       UserLookup
	access      *Access
	gateway     payments.Gateway
	frontendURL string
}

func NewContractorService(repo ContractorRepository, homeowners HomeownerLister, users UserLookup, access *Access, gateway payments.Gateway, frontendURL string) *ContractorService {
	return &ContractorService{
		repo:        repo,
		homeowners:  homeowners,
		users:       users,
		access:      access,
		gateway:     gateway,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

func (s *ContractorService) Profile(ctx context.Context, actor Actor) (*models.Contractor, error) {
	return s.access.ContractorOf(ctx, actor)
}

func (s *ContractorService) UpdateProfile(ctx context.Context, actor Actor, in UpdateContractorInput) (*models.Contractor, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	c, err := s.access.ContractorOf(ctx, actor)
	if err != nil {
		return nil, err
	}
	c.BusinessName = strings.TrimSpace(in.BusinessName)
	c.Phone = strings.TrimSpace(in.Phone)
	c.LicenseNumber = strings.TrimSpace(in.LicenseNumber)
	c.Address = strings.TrimSpace(in.Address)
	if err := s.repo.UpdateProfile(ctx, c); err != nil {
		return nil, mapErr("contractor service: update profile", err)
	}
	return c, nil
}

// StartOnboarding creates the Express account on first use and returns a
// fresh onboarding link. Links expire quickly, so one is minted per call.
func (s *ContractorService) StartOnboarding(ctx context.Context, actor Actor) (*OnboardingLink, error) {
	c, err := s.access.ContractorOf(ctx, actor)
	if err != nil {
		return nil, err
	}

	if !c.HasStripeAccount() {
		u, err := s.users.GetByID(ctx, c.UserID)
		if err != nil {
			return nil, mapErr("contractor service: load user", err)
		}
		accountID, err := s.gateway.CreateExpressAccount(ctx, u.Email)
		if err != nil {
			return nil, apperror.Upstream(err)
		}
		c.StripeAccountID = &accountID
		c.ApplyCapabilities(false, false, false)
		if err := s.repo.SaveStripeState(ctx, c); err != nil {
			return nil, mapErr("contractor service: save stripe account", err)
		}
		logger.L().WithFields(logrus.Fields{
			"contractor_id": c.ID,
			"account_id":    accountID,
		}).Info("stripe express account created")
	}

	url, err := s.gateway.CreateOnboardingLink(ctx, *c.StripeAccountID,
		s.frontendURL+"/contractor/onboarding/refresh",
		s.frontendURL+"/contractor/onboarding/return",
	)
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	return &OnboardingLink{URL: url, AccountID: *c.StripeAccountID}, nil
}

// OnboardingStatus re-reads the account from Stripe so a missed
// account.updated webhook cannot leave the cached flags stale. When Stripe
// is unreachable the cached state is returned.
func (s *ContractorService) OnboardingStatus(ctx context.Context, actor Actor) (*OnboardingStatus, error) {
	c, err := s.access.ContractorOf(ctx, actor)
	if err != nil {
		return nil, err
	}

	if c.HasStripeAccount() {
		state, err := s.gateway.GetAccount(ctx, *c.StripeAccountID)
		switch {
		case err != nil:
			logger.L().WithError(err).WithField("contractor_id", c.ID).Warn("onboarding status: stripe unavailable, using cached state")
		case state.ChargesEnabled != c.ChargesEnabled || state.PayoutsEnabled != c.PayoutsEnabled || state.DetailsSubmitted != c.DetailsSubmitted:
			c.ApplyCapabilities(state.ChargesEnabled, state.PayoutsEnabled, state.DetailsSubmitted)
			if err := s.repo.SaveStripeState(ctx, c); err != nil {
				return nil, mapErr("contractor service: save stripe state", err)
			}
		}
	}

	out := &OnboardingStatus{
		Status:           c.OnboardingStatus,
		ChargesEnabled:   c.ChargesEnabled,
		PayoutsEnabled:   c.PayoutsEnabled,
		DetailsSubmitted: c.DetailsSubmitted,
	}
	if out.Status == "" {
		out.Status = models.OnboardingStatusFor(c.HasStripeAccount(), c.ChargesEnabled, c.PayoutsEnabled, c.DetailsSubmitted)
	}
	if c.HasStripeAccount() {
		out.AccountID = *c.StripeAccountID
	}
	return out, nil
}

// ListHomeowners lists the homeowners the contractor has drafted agreements for.
func (s *ContractorService) ListHomeowners(ctx context.Context, actor Actor, search string, page common.PageRequest) ([]models.Homeowner, int, error) {
	c, err := s.access.ContractorOf(ctx, actor)
	if err != nil {
		return nil, 0, err
	}
	items, total, err := s.homeowners.ListForContractor(ctx, c.ID, strings.TrimSpace(search), page.Normalize())
	if err != nil {
		return nil, 0, mapErr("contractor service: list homeowners", err)
	}
	return items, total, nil
}
