package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agencyCheckoutAPI/internal/types/checkout"
	"agencyCheckoutAPI/internal/types/partner"
)

// PartnerLookup finds a partner by exact referral code. It returns
// ErrPartnerNotFound (possibly wrapped) when no row matches.
type PartnerLookup interface {
	LookupPartner(ctx context.Context, referralCode string) (*partner.Partner, error)
}

// PaymentProvider opens hosted checkout sessions.
type PaymentProvider interface {
	Name() string
	// ResolveCustomer returns the provider customer id for data, creating the
	// customer when needed. A nil data yields "".
	ResolveCustomer(ctx context.Context, data *checkout.CustomerData) (string, error)
	// CreateCheckoutSession returns the URL the buyer is redirected to.
	CreateCheckoutSession(ctx context.Context, params *checkout.SessionParams) (string, error)
}

type CheckoutService struct {
	partners PartnerLookup
	provider PaymentProvider
}

func NewCheckoutService(partners PartnerLookup, provider PaymentProvider) *CheckoutService {
	return &CheckoutService{
		partners: partners,
		provider: provider,
	}
}

func (s *CheckoutService) ProviderName() string {
	return s.provider.Name()
}

// CreateSession validates req and opens a hosted checkout for it. origin is
// the site the buyer came from; redirects go to {origin}/success and
// {origin}/services. Every returned error is a *CheckoutError.
func (s *CheckoutService) CreateSession(ctx context.Context, req *checkout.CreateCheckoutRequest, origin, idempotencyKey string) (string, error) {
	if req == nil || req.PriceID == "" {
		return "", missingPriceError()
	}

	referralCode, err := s.verifyReferral(ctx, req.Referral())
	if err != nil {
		return "", err
	}

	customerID, err := s.provider.ResolveCustomer(ctx, req.CustomerData)
	if err != nil {
		return "", infrastructureError(fmt.Errorf("failed to resolve customer: %w", err))
	}

	origin = strings.TrimRight(origin, "/")
	params := &checkout.SessionParams{
		PriceID:        req.PriceID,
		Quantity:       1,
		Mode:           req.EffectiveMode(),
		CustomerID:     customerID,
		SuccessURL:     origin + "/success",
		CancelURL:      origin + "/services",
		ReferralCode:   referralCode,
		IdempotencyKey: idempotencyKey,
	}
	if customerID == "" && req.CustomerData != nil {
		params.CustomerEmail = req.CustomerData.Email
	}

	url, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", infrastructureError(fmt.Errorf("failed to create checkout session: %w", err))
	}
	return url, nil
}

// verifyReferral returns the code to attribute the session to, or "" when
// none was supplied.
func (s *CheckoutService) verifyReferral(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", nil
	}

	p, err := s.partners.LookupPartner(ctx, code)
	if errors.Is(err, ErrPartnerNotFound) {
		return "", validationError(MsgInvalidReferralCode)
	}
	if err != nil {
		return "", infrastructureError(fmt.Errorf("failed to look up referral code: %w", err))
	}
	if p == nil {
		return "", validationError(MsgInvalidReferralCode)
	}
	if !p.IsApproved() {
		return "", validationError(MsgInactiveReferral)
	}
	return code, nil
}
