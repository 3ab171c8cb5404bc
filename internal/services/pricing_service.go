package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/shades-uz/api/internal/domain"
	"github.com/shades-uz/api/internal/repositories"
)

var (
	// ErrPricingInvalidInput signals malformed dimensions or identifiers.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrPricingNotFound indicates the shade type or material variant does not exist.
	ErrPricingNotFound = errors.New("pricing: reference not found")
	// ErrPricingNotConfigured indicates required service price rows are absent.
	// This is a setup defect, not a client mistake.
	ErrPricingNotConfigured = errors.New("pricing: service prices are not configured")
)

// PricingServiceDeps bundles collaborators for the pricing service.
type PricingServiceDeps struct {
	Catalog repositories.CatalogRepository
}

type pricingService struct {
	catalog repositories.CatalogRepository
}

// NewPricingService wires the catalog repository into a PricingService.
func NewPricingService(deps PricingServiceDeps) (PricingService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("pricing service: catalog repository is required")
	}
	return &pricingService{catalog: deps.Catalog}, nil
}

func (s *pricingService) Quote(ctx context.Context, req PriceRequest) (PriceQuote, error) {
	if req.Width <= 0 {
		return PriceQuote{}, fmt.Errorf("%w: width must be positive", ErrPricingInvalidInput)
	}
	if req.Height <= 0 {
		return PriceQuote{}, fmt.Errorf("%w: height must be positive", ErrPricingInvalidInput)
	}

	shadeType, err := s.catalog.GetShadeType(ctx, req.ShadeTypeID)
	if err != nil {
		return PriceQuote{}, s.mapLookupError(err, "shade type", req.ShadeTypeID)
	}

	_, variant, err := s.catalog.GetMaterialVariant(ctx, req.MaterialVariantID)
	if err != nil {
		return PriceQuote{}, s.mapLookupError(err, "material variant", req.MaterialVariantID)
	}

	servicePrices, err := s.catalog.ListServicePrices(ctx)
	if err != nil {
		return PriceQuote{}, err
	}

	var installation, removal *domain.ServicePrice
	for i := range servicePrices {
		switch servicePrices[i].Kind {
		case domain.ServiceInstallation:
			installation = &servicePrices[i]
		case domain.ServiceRemoval:
			removal = &servicePrices[i]
		}
	}
	if installation == nil || removal == nil {
		return PriceQuote{}, ErrPricingNotConfigured
	}

	return domain.CalculatePrice(req, domain.PriceInputs{
		MinPrice:          shadeType.MinPrice,
		PricePerSqm:       variant.PricePerSqm,
		InstallationPrice: installation.Price,
		RemovalPrice:      removal.Price,
	}), nil
}

func (s *pricingService) mapLookupError(err error, kind string, id string) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %s %s", ErrPricingNotFound, kind, id)
	}
	return err
}
