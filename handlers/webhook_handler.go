package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"agencyCheckoutAPI/internal/types/partner"
	"agencyCheckoutAPI/middleware"
	"agencyCheckoutAPI/services"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
	"github.com/stripe/stripe-go/v76"
)

const maxWebhookBodyBytes = int64(65536)

// ConversionRecorder stores a referral conversion, ignoring duplicates.
type ConversionRecorder interface {
	RecordConversion(ctx context.Context, c *partner.Conversion) (bool, error)
}

type StripeEventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type PaddleWebhookVerifier interface {
	VerifyWebhook(r *http.Request) (bool, error)
}

type WebhookHandler struct {
	conversions ConversionRecorder
	stripe      StripeEventVerifier
	paddle      PaddleWebhookVerifier
}

// NewWebhookHandler takes the verifier for each provider that is configured;
// pass nil for the others.
func NewWebhookHandler(conversions ConversionRecorder, stripeEvents StripeEventVerifier, paddleEvents PaddleWebhookVerifier) *WebhookHandler {
	return &WebhookHandler{
		conversions: conversions,
		stripe:      stripeEvents,
		paddle:      paddleEvents,
	}
}

// HandleStripeWebhook records referral conversions from completed Stripe
// checkouts.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.stripe == nil {
		respondWithError(w, http.StatusNotFound, "Stripe webhooks are not enabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading request body: %v", err)
		respondWithError(w, http.StatusServiceUnavailable, "Unable to read body")
		return
	}

	event, err := h.stripe.ConstructEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("Error verifying webhook signature: %v", err)
		respondWithError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			log.Printf("Error parsing webhook JSON: %v", err)
			respondWithError(w, http.StatusBadRequest, "Unable to parse event")
			return
		}

		// Delayed payment methods complete the session unpaid and follow up
		// with async_payment_succeeded.
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			log.Printf("Checkout session %s completed unpaid, waiting for payment", session.ID)
			break
		}

		if err := h.recordStripeConversion(r.Context(), &session); err != nil {
			log.Printf("Error recording conversion for session %s: %v", session.ID, err)
			respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
			return
		}

	default:
		log.Printf("Unhandled Stripe event type: %s", event.Type)
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *WebhookHandler) recordStripeConversion(ctx context.Context, session *stripe.CheckoutSession) error {
	code := session.Metadata[services.MetadataReferralCode]
	if code == "" {
		return nil
	}

	conversion := &partner.Conversion{
		ReferralCode: code,
		Provider:     "stripe",
		SessionID:    session.ID,
		AmountTotal:  session.AmountTotal,
		Currency:     string(session.Currency),
	}
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		email := session.CustomerDetails.Email
		conversion.CustomerEmail = &email
	}

	return h.record(ctx, conversion)
}

type paddleTransactionEvent struct {
	EventID   string               `json:"event_id"`
	EventType paddle.EventTypeName `json:"event_type"`
	Data      struct {
		ID           string         `json:"id"`
		CurrencyCode string         `json:"currency_code"`
		CustomData   map[string]any `json:"custom_data"`
		Details      struct {
			Totals struct {
				Total string `json:"total"`
			} `json:"totals"`
		} `json:"details"`
	} `json:"data"`
}

// HandlePaddleWebhook records referral conversions from paid Paddle
// transactions.
func (h *WebhookHandler) HandlePaddleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.paddle == nil {
		respondWithError(w, http.StatusNotFound, "Paddle webhooks are not enabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	valid, err := h.paddle.VerifyWebhook(r)
	if err != nil {
		log.Printf("Paddle webhook verification failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Verification failed")
		return
	}
	if !valid {
		respondWithError(w, http.StatusForbidden, "Invalid signature")
		return
	}

	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Unable to read body")
		return
	}
	defer r.Body.Close()

	var event paddleTransactionEvent
	if err := json.Unmarshal(bodyBytes, &event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Unable to parse JSON")
		return
	}

	switch event.EventType {
	case paddle.EventTypeNameTransactionCompleted, paddle.EventTypeNameTransactionPaid:
		code, _ := event.Data.CustomData[services.MetadataReferralCode].(string)
		if code == "" {
			break
		}

		total, err := strconv.ParseInt(event.Data.Details.Totals.Total, 10, 64)
		if err != nil {
			log.Printf("Paddle transaction %s has unparseable total %q", event.Data.ID, event.Data.Details.Totals.Total)
		}

		conversion := &partner.Conversion{
			ReferralCode: code,
			Provider:     "paddle",
			SessionID:    event.Data.ID,
			AmountTotal:  total,
			Currency:     event.Data.CurrencyCode,
		}
		if err := h.record(r.Context(), conversion); err != nil {
			log.Printf("Error recording conversion for transaction %s: %v", event.Data.ID, err)
			respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
			return
		}

	default:
		log.Printf("Unhandled Paddle event type: %s", event.EventType)
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *WebhookHandler) record(ctx context.Context, c *partner.Conversion) error {
	inserted, err := h.conversions.RecordConversion(ctx, c)
	if err != nil {
		return err
	}
	if inserted {
		middleware.RecordReferralConversion(c.Provider)
		log.Printf("Recorded %s conversion %s for referral code %s", c.Provider, c.SessionID, c.ReferralCode)
	}
	return nil
}
