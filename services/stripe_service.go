package services

import (
	"context"
	"errors"
	"strconv"

	"agencyCheckoutAPI/internal/types/checkout"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const MetadataReferralCode = "referral_code"

// StripeService talks to Stripe with its own client instead of the
// package-level stripe.Key, so several keys can coexist in tests.
type StripeService struct {
	sc            *client.API
	webhookSecret string
}

// NewStripeService builds a client for secretKey. backends may be nil to use
// the live Stripe API.
func NewStripeService(secretKey, webhookSecret string, backends *stripe.Backends) *StripeService {
	return &StripeService{
		sc:            client.New(secretKey, backends),
		webhookSecret: webhookSecret,
	}
}

func (s *StripeService) Name() string {
	return "stripe"
}

func (s *StripeService) ResolveCustomer(ctx context.Context, data *checkout.CustomerData) (string, error) {
	if data == nil || data.Email == "" {
		return "", nil
	}

	listParams := &stripe.CustomerListParams{
		Email: stripe.String(data.Email),
	}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	iter := s.sc.Customers.List(listParams)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", stripeError(err)
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(data.Email),
	}
	if data.Name != "" {
		params.Name = stripe.String(data.Name)
	}
	params.Context = ctx

	c, err := s.sc.Customers.New(params)
	if err != nil {
		return "", stripeError(err)
	}
	return c.ID, nil
}

func (s *StripeService) CreateCheckoutSession(ctx context.Context, params *checkout.SessionParams) (string, error) {
	sp := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(params.Mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(params.Quantity),
			},
		},
		SuccessURL:               stripe.String(params.SuccessURL),
		CancelURL:                stripe.String(params.CancelURL),
		AllowPromotionCodes:      stripe.Bool(true),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired)),
	}
	sp.Context = ctx
	sp.Metadata = map[string]string{
		MetadataReferralCode: params.ReferralCode,
	}

	if params.CustomerID != "" {
		sp.Customer = stripe.String(params.CustomerID)
	} else if params.CustomerEmail != "" {
		sp.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	if params.IdempotencyKey != "" {
		sp.IdempotencyKey = stripe.String(params.IdempotencyKey)
	}

	session, err := s.sc.CheckoutSessions.New(sp)
	if err != nil {
		return "", stripeError(err)
	}
	return session.URL, nil
}

func (s *StripeService) ListPrices(ctx context.Context) ([]checkout.Price, error) {
	params := &stripe.PriceListParams{
		Active: stripe.Bool(true),
	}
	params.Context = ctx
	params.AddExpand("data.product")

	prices := make([]checkout.Price, 0)
	iter := s.sc.Prices.List(params)
	for iter.Next() {
		p := iter.Price()

		price := checkout.Price{
			ID:          p.ID,
			Description: p.Nickname,
			Amount:      strconv.FormatInt(p.UnitAmount, 10),
			Currency:    string(p.Currency),
		}
		if p.Product != nil {
			price.ProductID = p.Product.ID
			if price.Description == "" {
				price.Description = p.Product.Name
			}
		}
		if p.Recurring != nil {
			price.Interval = string(p.Recurring.Interval)
		}
		prices = append(prices, price)
	}
	if err := iter.Err(); err != nil {
		return nil, stripeError(err)
	}

	return prices, nil
}

// ConstructEvent verifies a webhook payload against the Stripe-Signature
// header.
func (s *StripeService) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if s.webhookSecret == "" {
		return stripe.Event{}, errors.New("STRIPE_WEBHOOK_SECRET is not set")
	}
	return webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

func stripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &ProviderError{Provider: "stripe", Message: se.Msg, Err: err}
	}
	return &ProviderError{Provider: "stripe", Message: err.Error(), Err: err}
}
