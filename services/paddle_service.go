package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"agencyCheckoutAPI/internal/types/checkout"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
)

// PaddleService opens Paddle transactions and hands back the hosted checkout
// link for them. Paddle derives one-off vs recurring billing from the price,
// so the requested mode only travels in custom data.
type PaddleService struct {
	PaddleClient  *paddle.SDK
	checkoutURL   string
	webhookSecret string
}

func NewPaddleClient(apiKey string, sandbox bool) (*paddle.SDK, error) {
	baseURL := paddle.ProductionBaseURL
	if sandbox {
		baseURL = paddle.SandboxBaseURL
	}
	return paddle.New(apiKey, paddle.WithBaseURL(baseURL))
}

func NewPaddleService(PaddleClient *paddle.SDK, checkoutURL, webhookSecret string) *PaddleService {
	return &PaddleService{
		PaddleClient:  PaddleClient,
		checkoutURL:   checkoutURL,
		webhookSecret: webhookSecret,
	}
}

func (s *PaddleService) Name() string {
	return "paddle"
}

func (s *PaddleService) ResolveCustomer(ctx context.Context, data *checkout.CustomerData) (string, error) {
	if data == nil || data.Email == "" {
		return "", nil
	}

	customers, err := s.PaddleClient.ListCustomers(ctx, &paddle.ListCustomersRequest{
		Email: []string{data.Email},
	})
	if err != nil {
		return "", paddleError(err)
	}

	result := customers.Next(ctx)
	if result.Ok() {
		return result.Value().ID, nil
	}
	if err := result.Err(); err != nil {
		return "", paddleError(err)
	}

	createReq := &paddle.CreateCustomerRequest{
		Email: data.Email,
	}
	if data.Name != "" {
		createReq.Name = paddle.PtrTo(data.Name)
	}

	customer, err := s.PaddleClient.CreateCustomer(ctx, createReq)
	if err != nil {
		return "", paddleError(err)
	}
	return customer.ID, nil
}

// CreateCheckoutSession opens a transaction. Paddle transactions take no
// email, so a bare CustomerEmail is turned into a customer first.
func (s *PaddleService) CreateCheckoutSession(ctx context.Context, params *checkout.SessionParams) (string, error) {
	customerID := params.CustomerID
	if customerID == "" && params.CustomerEmail != "" {
		id, err := s.ResolveCustomer(ctx, &checkout.CustomerData{Email: params.CustomerEmail})
		if err != nil {
			return "", err
		}
		customerID = id
	}

	quantity := int(params.Quantity)
	if quantity < 1 {
		quantity = 1
	}

	createReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{
			*paddle.NewCreateTransactionItemsCatalogItem(&paddle.CatalogItem{
				Quantity: quantity,
				PriceID:  params.PriceID,
			}),
		},
		CustomData: paddle.CustomData{
			MetadataReferralCode: params.ReferralCode,
			"mode":               string(params.Mode),
			"success_url":        params.SuccessURL,
			"cancel_url":         params.CancelURL,
		},
		CollectionMode: paddle.PtrTo(paddle.CollectionModeAutomatic),
	}
	if customerID != "" {
		createReq.CustomerID = paddle.PtrTo(customerID)
	}

	tx, err := s.PaddleClient.CreateTransaction(ctx, createReq)
	if err != nil {
		return "", paddleError(err)
	}

	u, err := url.Parse(s.checkoutURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("_ptxn", tx.ID)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (s *PaddleService) ListPrices(ctx context.Context) ([]checkout.Price, error) {
	priceCollection, err := s.PaddleClient.ListPrices(ctx, &paddle.ListPricesRequest{
		Status: []string{string(paddle.StatusActive)},
	})
	if err != nil {
		return nil, paddleError(err)
	}

	prices := make([]checkout.Price, 0)
	for {
		result := priceCollection.Next(ctx)
		if !result.Ok() {
			if err := result.Err(); err != nil {
				return nil, paddleError(err)
			}
			break
		}

		p := result.Value()

		interval := ""
		if p.BillingCycle != nil {
			interval = string(p.BillingCycle.Interval)
		}

		prices = append(prices, checkout.Price{
			ID:          p.ID,
			ProductID:   p.ProductID,
			Description: p.Description,
			Amount:      p.UnitPrice.Amount,
			Currency:    string(p.UnitPrice.CurrencyCode),
			Interval:    interval,
		})
	}

	return prices, nil
}

// VerifyWebhook checks the Paddle-Signature header of r.
func (s *PaddleService) VerifyWebhook(r *http.Request) (bool, error) {
	if s.webhookSecret == "" {
		return false, errors.New("PADDLE_WEBHOOK_SECRET is not set")
	}
	return paddle.NewWebhookVerifier(s.webhookSecret).Verify(r)
}

func paddleError(err error) error {
	return &ProviderError{Provider: "paddle", Message: err.Error(), Err: err}
}
