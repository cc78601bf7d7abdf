package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"agencyCheckoutAPI/internal/types/checkout"
	"agencyCheckoutAPI/internal/types/partner"
	"agencyCheckoutAPI/services"
)

type fakePartners struct {
	mu      sync.Mutex
	records map[string]*partner.Partner
	byOwner map[string]*partner.Partner
	lookups int
	err     error

	conversions []*partner.Conversion
	recordErr   error
	listErr     error
}

func newFakePartners() *fakePartners {
	approved := &partner.Partner{ReferralCode: "APPROVED1", Name: "Pixel Partners", Status: partner.StatusApproved}
	return &fakePartners{
		records: map[string]*partner.Partner{
			"APPROVED1": approved,
			"PENDING01": {ReferralCode: "PENDING01", Status: partner.StatusPending},
		},
		byOwner: map[string]*partner.Partner{
			"user_owner": approved,
		},
	}
}

func (f *fakePartners) LookupPartner(_ context.Context, code string) (*partner.Partner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.records[code]
	if !ok {
		return nil, services.ErrPartnerNotFound
	}
	return p, nil
}

func (f *fakePartners) GetPartnerByOwner(_ context.Context, ownerID string) (*partner.Partner, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.byOwner[ownerID]
	if !ok {
		return nil, services.ErrPartnerNotFound
	}
	return p, nil
}

func (f *fakePartners) RecordConversion(_ context.Context, c *partner.Conversion) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return false, f.recordErr
	}
	for _, existing := range f.conversions {
		if existing.Provider == c.Provider && existing.SessionID == c.SessionID {
			return false, nil
		}
	}
	f.conversions = append(f.conversions, c)
	return true, nil
}

func (f *fakePartners) ListConversions(_ context.Context, code string) ([]*partner.Conversion, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*partner.Conversion
	for _, c := range f.conversions {
		if c.ReferralCode == code {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeProvider struct {
	url        string
	sessionErr error
	sessions   []*checkout.SessionParams
	prices     []checkout.Price
	pricesErr  error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) ResolveCustomer(context.Context, *checkout.CustomerData) (string, error) {
	return "", nil
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, params *checkout.SessionParams) (string, error) {
	f.sessions = append(f.sessions, params)
	if f.sessionErr != nil {
		return "", f.sessionErr
	}
	return f.url, nil
}

func (f *fakeProvider) ListPrices(context.Context) ([]checkout.Price, error) {
	return f.prices, f.pricesErr
}

type fakePaddleVerifier struct {
	valid bool
	err   error
}

func (f fakePaddleVerifier) VerifyWebhook(*http.Request) (bool, error) {
	return f.valid, f.err
}

var errDatabaseDown = errors.New("database is down")
