package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"agencyCheckoutAPI/internal/types/partner"
	"agencyCheckoutAPI/middleware"
	"agencyCheckoutAPI/services"
)

type ReferralDashboardStore interface {
	GetPartnerByOwner(ctx context.Context, ownerID string) (*partner.Partner, error)
	ListConversions(ctx context.Context, referralCode string) ([]*partner.Conversion, error)
}

type DashboardHandler struct {
	store ReferralDashboardStore
}

func NewDashboardHandler(store ReferralDashboardStore) *DashboardHandler {
	return &DashboardHandler{
		store: store,
	}
}

// GetReferralDashboard returns the signed-in partner and the checkouts
// attributed to their referral code.
func (h *DashboardHandler) GetReferralDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	p, err := h.store.GetPartnerByOwner(ctx, clerkID)
	if errors.Is(err, services.ErrPartnerNotFound) {
		respondWithError(w, http.StatusNotFound, "No partner account is linked to this user")
		return
	}
	if err != nil {
		log.Printf("Failed to load partner for %s: %v", clerkID, err)
		respondWithError(w, http.StatusInternalServerError, "Could not load dashboard")
		return
	}

	conversions, err := h.store.ListConversions(ctx, p.ReferralCode)
	if err != nil {
		log.Printf("Failed to load conversions for %s: %v", p.ReferralCode, err)
		respondWithError(w, http.StatusInternalServerError, "Could not load dashboard")
		return
	}

	respondWithJSON(w, http.StatusOK, partner.DashboardResponse{
		Partner:     p,
		Conversions: conversions,
	})
}
