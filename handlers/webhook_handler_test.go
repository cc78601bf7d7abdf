package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agencyCheckoutAPI/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStripeWebhookSecret = "whsec_test_secret"

func stripeSignature(payload string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(testStripeWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func stripeEventPayload(eventType, paymentStatus, referralCode string) string {
	return fmt.Sprintf(`{
		"id": "evt_test_1",
		"object": "event",
		"api_version": "2023-10-16",
		"type": %q,
		"data": {
			"object": {
				"id": "cs_test_1",
				"object": "checkout.session",
				"payment_status": %q,
				"amount_total": 150000,
				"currency": "usd",
				"customer_details": {"email": "buyer@example.com"},
				"metadata": {"referral_code": %q}
			}
		}
	}`, eventType, paymentStatus, referralCode)
}

func postStripeWebhook(h *WebhookHandler, payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rr := httptest.NewRecorder()
	h.HandleStripeWebhook(rr, req)
	return rr
}

func newStripeWebhookHandler(store *fakePartners) *WebhookHandler {
	stripeService := services.NewStripeService("sk_test_unused", testStripeWebhookSecret, nil)
	return NewWebhookHandler(store, stripeService, nil)
}

func TestStripeWebhookRecordsReferralConversion(t *testing.T) {
	store := newFakePartners()
	h := newStripeWebhookHandler(store)
	payload := stripeEventPayload("checkout.session.completed", "paid", "APPROVED1")

	rr := postStripeWebhook(h, payload, stripeSignature(payload, time.Now()))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, store.conversions, 1)
	c := store.conversions[0]
	assert.Equal(t, "APPROVED1", c.ReferralCode)
	assert.Equal(t, "stripe", c.Provider)
	assert.Equal(t, "cs_test_1", c.SessionID)
	assert.Equal(t, int64(150000), c.AmountTotal)
	assert.Equal(t, "usd", c.Currency)
	require.NotNil(t, c.CustomerEmail)
	assert.Equal(t, "buyer@example.com", *c.CustomerEmail)

	rr = postStripeWebhook(h, payload, stripeSignature(payload, time.Now()))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, store.conversions, 1, "redelivery does not double count")
}

func TestStripeWebhookSkipsEvents(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "no referral code", payload: stripeEventPayload("checkout.session.completed", "paid", "")},
		{name: "unpaid session", payload: stripeEventPayload("checkout.session.completed", "unpaid", "APPROVED1")},
		{name: "unrelated event", payload: stripeEventPayload("checkout.session.expired", "unpaid", "APPROVED1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakePartners()
			h := newStripeWebhookHandler(store)

			rr := postStripeWebhook(h, tt.payload, stripeSignature(tt.payload, time.Now()))

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Empty(t, store.conversions)
		})
	}
}

func TestStripeWebhookAsyncPaymentSucceeded(t *testing.T) {
	store := newFakePartners()
	h := newStripeWebhookHandler(store)
	payload := stripeEventPayload("checkout.session.async_payment_succeeded", "paid", "APPROVED1")

	rr := postStripeWebhook(h, payload, stripeSignature(payload, time.Now()))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, store.conversions, 1)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	store := newFakePartners()
	h := newStripeWebhookHandler(store)
	payload := stripeEventPayload("checkout.session.completed", "paid", "APPROVED1")

	rr := postStripeWebhook(h, payload, stripeSignature(payload+" ", time.Now()))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postStripeWebhook(h, payload, stripeSignature(payload, time.Now().Add(-time.Hour)))
	assert.Equal(t, http.StatusBadRequest, rr.Code, "stale timestamp")

	assert.Empty(t, store.conversions)
}

func TestStripeWebhookStorageFailure(t *testing.T) {
	store := newFakePartners()
	store.recordErr = errDatabaseDown
	h := newStripeWebhookHandler(store)
	payload := stripeEventPayload("checkout.session.completed", "paid", "APPROVED1")

	rr := postStripeWebhook(h, payload, stripeSignature(payload, time.Now()))

	assert.Equal(t, http.StatusInternalServerError, rr.Code, "provider retries the delivery")
}

func TestStripeWebhookDisabled(t *testing.T) {
	h := NewWebhookHandler(newFakePartners(), nil, nil)

	rr := postStripeWebhook(h, "{}", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

const paddleTransactionPayload = `{
	"event_id": "evt_01",
	"event_type": %q,
	"data": {
		"id": "txn_01",
		"currency_code": "EUR",
		"custom_data": {"referral_code": %q, "mode": "payment"},
		"details": {"totals": {"total": "129900"}}
	}
}`

func postPaddleWebhook(h *WebhookHandler, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paddle", strings.NewReader(payload))
	req.Header.Set("Paddle-Signature", "ts=1;h1=stub")
	rr := httptest.NewRecorder()
	h.HandlePaddleWebhook(rr, req)
	return rr
}

func TestPaddleWebhookRecordsReferralConversion(t *testing.T) {
	for _, eventType := range []string{"transaction.completed", "transaction.paid"} {
		t.Run(eventType, func(t *testing.T) {
			store := newFakePartners()
			h := NewWebhookHandler(store, nil, fakePaddleVerifier{valid: true})

			rr := postPaddleWebhook(h, fmt.Sprintf(paddleTransactionPayload, eventType, "APPROVED1"))

			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			require.Len(t, store.conversions, 1)
			c := store.conversions[0]
			assert.Equal(t, "paddle", c.Provider)
			assert.Equal(t, "txn_01", c.SessionID)
			assert.Equal(t, int64(129900), c.AmountTotal)
			assert.Equal(t, "EUR", c.Currency)
			assert.Nil(t, c.CustomerEmail)
		})
	}
}

func TestPaddleWebhookPaidThenCompletedCountsOnce(t *testing.T) {
	store := newFakePartners()
	h := NewWebhookHandler(store, nil, fakePaddleVerifier{valid: true})

	postPaddleWebhook(h, fmt.Sprintf(paddleTransactionPayload, "transaction.paid", "APPROVED1"))
	postPaddleWebhook(h, fmt.Sprintf(paddleTransactionPayload, "transaction.completed", "APPROVED1"))

	assert.Len(t, store.conversions, 1)
}

func TestPaddleWebhookOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		verifier   fakePaddleVerifier
		payload    string
		wantStatus int
	}{
		{
			name:       "invalid signature",
			verifier:   fakePaddleVerifier{valid: false},
			payload:    fmt.Sprintf(paddleTransactionPayload, "transaction.completed", "APPROVED1"),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "verifier error",
			verifier:   fakePaddleVerifier{err: errors.New("missing secret")},
			payload:    fmt.Sprintf(paddleTransactionPayload, "transaction.completed", "APPROVED1"),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "malformed json",
			verifier:   fakePaddleVerifier{valid: true},
			payload:    `{"event_type":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no referral code",
			verifier:   fakePaddleVerifier{valid: true},
			payload:    fmt.Sprintf(paddleTransactionPayload, "transaction.completed", ""),
			wantStatus: http.StatusOK,
		},
		{
			name:       "other event",
			verifier:   fakePaddleVerifier{valid: true},
			payload:    fmt.Sprintf(paddleTransactionPayload, "subscription.created", "APPROVED1"),
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakePartners()
			h := NewWebhookHandler(store, nil, tt.verifier)

			rr := postPaddleWebhook(h, tt.payload)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Empty(t, store.conversions)
		})
	}
}
