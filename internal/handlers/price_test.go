package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/shades-uz/api/internal/domain"
	"github.com/shades-uz/api/internal/services"
)

type stubPricingService struct {
	quote func(ctx context.Context, req services.PriceRequest) (services.PriceQuote, error)
}

func (s *stubPricingService) Quote(ctx context.Context, req services.PriceRequest) (services.PriceQuote, error) {
	if s.quote == nil {
		return services.PriceQuote{}, nil
	}
	return s.quote(ctx, req)
}

var _ services.PricingService = (*stubPricingService)(nil)

func newPriceTestRouter(h *PricingHandlers) http.Handler {
	r := chi.NewRouter()
	r.Route("/price", h.Routes)
	return r
}

func TestPricingHandlersCalculate(t *testing.T) {
	var captured services.PriceRequest
	svc := &stubPricingService{
		quote: func(_ context.Context, req services.PriceRequest) (services.PriceQuote, error) {
			captured = req
			return domain.PriceQuote{
				Area:                1.8,
				BasePrice:           270000,
				MinPrice:            200000,
				PriceBeforeServices: 270000,
				InstallationPrice:   50000,
				TotalPrice:          320000,
				Breakdown: domain.PriceBreakdown{
					AreaCalculation:      "1200 x 1500 / 1000000 = 1.8 м²",
					BasePriceCalculation: "1.8 м² x 150000 сум = 270000 сум",
				},
			}, nil
		},
	}
	router := newPriceTestRouter(NewPricingHandlers(svc))

	body := `{"shadeTypeId":"st_roller","width":1200,"height":1500,"materialVariantId":"var_beige","installationIncluded":true}`
	req := httptest.NewRequest(http.MethodPost, "/price/calculate", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ShadeTypeID != "st_roller" || !captured.InstallationIncluded {
		t.Fatalf("unexpected request %+v", captured)
	}

	var payload priceQuotePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.TotalPrice != 320000 {
		t.Fatalf("unexpected total %d", payload.TotalPrice)
	}
	if payload.Breakdown.AreaCalculation == "" {
		t.Fatalf("expected breakdown in response")
	}
}

func TestPricingHandlersUnknownReference(t *testing.T) {
	svc := &stubPricingService{
		quote: func(context.Context, services.PriceRequest) (services.PriceQuote, error) {
			return services.PriceQuote{}, services.ErrPricingNotFound
		},
	}
	router := newPriceTestRouter(NewPricingHandlers(svc))

	req := httptest.NewRequest(http.MethodPost, "/price/calculate", strings.NewReader(`{"shadeTypeId":"st_missing","width":1000,"height":1000,"materialVariantId":"var_x"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "price_reference_not_found") {
		t.Fatalf("expected price_reference_not_found code, got %s", rr.Body.String())
	}
}

func TestPricingHandlersNotConfigured(t *testing.T) {
	svc := &stubPricingService{
		quote: func(context.Context, services.PriceRequest) (services.PriceQuote, error) {
			return services.PriceQuote{}, services.ErrPricingNotConfigured
		},
	}
	router := newPriceTestRouter(NewPricingHandlers(svc))

	req := httptest.NewRequest(http.MethodPost, "/price/calculate", strings.NewReader(`{"shadeTypeId":"st_roller","width":1000,"height":1000,"materialVariantId":"var_x"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "pricing_not_configured") {
		t.Fatalf("expected pricing_not_configured code, got %s", rr.Body.String())
	}
}
