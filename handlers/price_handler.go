package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"agencyCheckoutAPI/internal/types/checkout"
)

// PriceCatalog lists the prices the pricing calculator can offer.
type PriceCatalog interface {
	ListPrices(ctx context.Context) ([]checkout.Price, error)
}

type PriceHandler struct {
	catalog PriceCatalog
}

func NewPriceHandler(catalog PriceCatalog) *PriceHandler {
	return &PriceHandler{
		catalog: catalog,
	}
}

func (h *PriceHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	prices, err := h.catalog.ListPrices(ctx)
	if err != nil {
		log.Printf("Failed to list prices: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Could not load prices")
		return
	}

	respondWithJSON(w, http.StatusOK, prices)
}
