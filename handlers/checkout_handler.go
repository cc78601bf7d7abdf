package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"agencyCheckoutAPI/internal/types/checkout"
	"agencyCheckoutAPI/middleware"
	"agencyCheckoutAPI/services"
)

const maxCheckoutBodyBytes = int64(65536)

type CheckoutHandler struct {
	checkoutService *services.CheckoutService
	publicSiteURL   string
	timeout         time.Duration
}

// NewCheckoutHandler wires the checkout endpoint. publicSiteURL stands in for
// the Origin header when a caller does not send one.
func NewCheckoutHandler(checkoutService *services.CheckoutService, publicSiteURL string, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		publicSiteURL:   strings.TrimRight(publicSiteURL, "/"),
		timeout:         timeout,
	}
}

// CreateCheckoutSession handles POST /create-checkout. Preflight requests
// never get here; middleware.CORS answers them.
func (h *CheckoutHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, maxCheckoutBodyBytes)

	var req checkout.CreateCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Printf("Unreadable checkout body, treating as empty: %v", err)
		req = checkout.CreateCheckoutRequest{}
	}

	provider := h.checkoutService.ProviderName()

	url, err := h.checkoutService.CreateSession(ctx, &req, h.origin(r), r.Header.Get("Idempotency-Key"))
	if err != nil {
		var ce *services.CheckoutError
		if !errors.As(err, &ce) {
			ce = &services.CheckoutError{Kind: services.KindInfrastructure, Message: err.Error(), Err: err}
		}

		log.Printf("Checkout session failed: price=%q referral=%q kind=%s: %v",
			req.PriceID, req.Referral(), ce.Kind, err)
		middleware.RecordCheckoutOutcome(provider, string(ce.Kind))
		respondWithError(w, ce.StatusCode(), ce.Message)
		return
	}

	middleware.RecordCheckoutOutcome(provider, "created")
	respondWithJSON(w, http.StatusOK, checkout.CreateCheckoutResponse{URL: url})
}

func (h *CheckoutHandler) origin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" && origin != "null" {
		return origin
	}
	return h.publicSiteURL
}
