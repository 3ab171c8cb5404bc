package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shades-uz/api/internal/platform/httpx"
	"github.com/shades-uz/api/internal/services"
)

const maxPriceBodySize = 4 * 1024

// PricingHandlers exposes the anonymous price calculation endpoint.
type PricingHandlers struct {
	pricing services.PricingService
}

// NewPricingHandlers constructs a new PricingHandlers instance.
func NewPricingHandlers(pricing services.PricingService) *PricingHandlers {
	return &PricingHandlers{pricing: pricing}
}

// Routes registers the /price endpoints.
func (h *PricingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/calculate", h.calculate)
}

type priceRequestPayload struct {
	ShadeTypeID          string  `json:"shadeTypeId"`
	Width                float64 `json:"width"`
	Height               float64 `json:"height"`
	MaterialVariantID    string  `json:"materialVariantId"`
	InstallationIncluded bool    `json:"installationIncluded"`
	RemovalIncluded      bool    `json:"removalIncluded"`
}

type priceBreakdownPayload struct {
	AreaCalculation      string `json:"areaCalculation"`
	BasePriceCalculation string `json:"basePriceCalculation"`
	MinPriceApplied      bool   `json:"minPriceApplied"`
}

type priceQuotePayload struct {
	Area                float64               `json:"area"`
	BasePrice           int64                 `json:"basePrice"`
	MinPrice            int64                 `json:"minPrice"`
	PriceBeforeServices int64                 `json:"priceBeforeServices"`
	InstallationPrice   int64                 `json:"installationPrice"`
	RemovalPrice        int64                 `json:"removalPrice"`
	TotalPrice          int64                 `json:"totalPrice"`
	Breakdown           priceBreakdownPayload `json:"breakdown"`
}

func (h *PricingHandlers) calculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pricing == nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_service_unavailable", "pricing service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req priceRequestPayload
	if err := decodeJSONBody(r, maxPriceBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	quote, err := h.pricing.Quote(ctx, services.PriceRequest{
		ShadeTypeID:          strings.TrimSpace(req.ShadeTypeID),
		Width:                req.Width,
		Height:               req.Height,
		MaterialVariantID:    strings.TrimSpace(req.MaterialVariantID),
		InstallationIncluded: req.InstallationIncluded,
		RemovalIncluded:      req.RemovalIncluded,
	})
	if err != nil {
		writePricingError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildPriceQuotePayload(quote))
}

func buildPriceQuotePayload(quote services.PriceQuote) priceQuotePayload {
	return priceQuotePayload{
		Area:                quote.Area,
		BasePrice:           quote.BasePrice,
		MinPrice:            quote.MinPrice,
		PriceBeforeServices: quote.PriceBeforeServices,
		InstallationPrice:   quote.InstallationPrice,
		RemovalPrice:        quote.RemovalPrice,
		TotalPrice:          quote.TotalPrice,
		Breakdown: priceBreakdownPayload{
			AreaCalculation:      quote.Breakdown.AreaCalculation,
			BasePriceCalculation: quote.Breakdown.BasePriceCalculation,
			MinPriceApplied:      quote.Breakdown.MinPriceApplied,
		},
	}
}

func writePricingError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPricingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("price_reference_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrPricingNotConfigured):
		httpx.WriteError(ctx, w, httpx.NewError("pricing_not_configured", "service prices are not configured", http.StatusInternalServerError))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("pricing_error", "failed to calculate price", http.StatusInternalServerError))
	}
}
