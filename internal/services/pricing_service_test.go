package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/shades-uz/api/internal/domain"
)

func pricingCatalogStub() *stubCatalogRepo {
	return &stubCatalogRepo{
		getShadeType: func(context.Context, string) (domain.ShadeType, error) {
			return domain.ShadeType{ID: "st_roller", MinPrice: 200000}, nil
		},
		getMaterialVariant: func(context.Context, string) (domain.Material, domain.MaterialVariant, error) {
			return domain.Material{ID: "mat_fabric"}, domain.MaterialVariant{ID: "var_white", PricePerSqm: 150000}, nil
		},
		listServicePrices: func(context.Context) ([]domain.ServicePrice, error) {
			return []domain.ServicePrice{
				{Kind: domain.ServiceInstallation, Price: 50000},
				{Kind: domain.ServiceRemoval, Price: 30000},
			}, nil
		},
	}
}

func TestPricingServiceQuote(t *testing.T) {
	svc, err := NewPricingService(PricingServiceDeps{Catalog: pricingCatalogStub()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	quote, err := svc.Quote(context.Background(), domain.PriceRequest{
		ShadeTypeID:          "st_roller",
		Width:                2000,
		Height:               1500,
		MaterialVariantID:    "var_white",
		InstallationIncluded: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if quote.Area != 3 {
		t.Fatalf("expected area 3 m2, got %v", quote.Area)
	}
	if quote.BasePrice != 450000 {
		t.Fatalf("expected base price 450000, got %d", quote.BasePrice)
	}
	if quote.Breakdown.MinPriceApplied {
		t.Fatalf("min price must not apply above the floor")
	}
	if quote.TotalPrice != 500000 {
		t.Fatalf("expected total with installation 500000, got %d", quote.TotalPrice)
	}
	if quote.RemovalPrice != 0 {
		t.Fatalf("removal not requested, got %d", quote.RemovalPrice)
	}
}

func TestPricingServiceQuoteAppliesMinPriceFloor(t *testing.T) {
	svc, err := NewPricingService(PricingServiceDeps{Catalog: pricingCatalogStub()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	quote, err := svc.Quote(context.Background(), domain.PriceRequest{
		ShadeTypeID:       "st_roller",
		Width:             500,
		Height:            500,
		MaterialVariantID: "var_white",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.BasePrice != 37500 {
		t.Fatalf("expected base price 37500, got %d", quote.BasePrice)
	}
	if quote.PriceBeforeServices != 200000 {
		t.Fatalf("expected min price floor 200000, got %d", quote.PriceBeforeServices)
	}
	if !quote.Breakdown.MinPriceApplied {
		t.Fatalf("expected min price flag")
	}
	if quote.TotalPrice != 200000 {
		t.Fatalf("expected total 200000, got %d", quote.TotalPrice)
	}
}

func TestPricingServiceQuoteValidatesDimensions(t *testing.T) {
	svc, err := NewPricingService(PricingServiceDeps{Catalog: pricingCatalogStub()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Quote(context.Background(), domain.PriceRequest{Width: 0, Height: 1000}); !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected invalid input for zero width, got %v", err)
	}
	if _, err := svc.Quote(context.Background(), domain.PriceRequest{Width: 1000, Height: -5}); !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected invalid input for negative height, got %v", err)
	}
}

func TestPricingServiceQuoteUnknownReferences(t *testing.T) {
	catalog := pricingCatalogStub()
	catalog.getShadeType = func(context.Context, string) (domain.ShadeType, error) {
		return domain.ShadeType{}, repoError{notFound: true}
	}
	svc, err := NewPricingService(PricingServiceDeps{Catalog: catalog})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = svc.Quote(context.Background(), domain.PriceRequest{
		ShadeTypeID:       "st_missing",
		Width:             1000,
		Height:            1000,
		MaterialVariantID: "var_white",
	})
	if !errors.Is(err, ErrPricingNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	catalog = pricingCatalogStub()
	catalog.getMaterialVariant = func(context.Context, string) (domain.Material, domain.MaterialVariant, error) {
		return domain.Material{}, domain.MaterialVariant{}, repoError{notFound: true}
	}
	svc, err = NewPricingService(PricingServiceDeps{Catalog: catalog})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = svc.Quote(context.Background(), domain.PriceRequest{
		ShadeTypeID:       "st_roller",
		Width:             1000,
		Height:            1000,
		MaterialVariantID: "var_missing",
	})
	if !errors.Is(err, ErrPricingNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPricingServiceQuoteRequiresServicePrices(t *testing.T) {
	catalog := pricingCatalogStub()
	catalog.listServicePrices = func(context.Context) ([]domain.ServicePrice, error) {
		return []domain.ServicePrice{{Kind: domain.ServiceInstallation, Price: 50000}}, nil
	}
	svc, err := NewPricingService(PricingServiceDeps{Catalog: catalog})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = svc.Quote(context.Background(), domain.PriceRequest{
		ShadeTypeID:       "st_roller",
		Width:             1000,
		Height:            1000,
		MaterialVariantID: "var_white",
	})
	if !errors.Is(err, ErrPricingNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}
