package services

import (
	"context"
	"errors"
	"sort"

	domain "github.com/shades-uz/api/internal/domain"
	"github.com/shades-uz/api/internal/repositories"
)

// CatalogServiceDeps bundles collaborators for the catalog service.
type CatalogServiceDeps struct {
	Catalog repositories.CatalogRepository
}

type catalogService struct {
	catalog repositories.CatalogRepository
}

// NewCatalogService wires the catalog repository into a CatalogService.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog service: catalog repository is required")
	}
	return &catalogService{catalog: deps.Catalog}, nil
}

// Resolve selects one localized label per catalog entity. A missing
// translation resolves to the empty string; there is no fallback to the
// default language. An empty catalog is a valid result.
func (s *catalogService) Resolve(ctx context.Context, lang LanguageCode) (CatalogView, error) {
	shadeTypes, err := s.catalog.ListShadeTypes(ctx)
	if err != nil {
		return CatalogView{}, err
	}
	materials, err := s.catalog.ListMaterials(ctx)
	if err != nil {
		return CatalogView{}, err
	}
	servicePrices, err := s.catalog.ListServicePrices(ctx)
	if err != nil {
		return CatalogView{}, err
	}

	view := CatalogView{
		ShadeTypes:    make([]domain.CatalogShadeType, 0, len(shadeTypes)),
		Materials:     make([]domain.CatalogMaterial, 0, len(materials)),
		ServicePrices: make(map[domain.ServiceKind]domain.CatalogServicePrice, len(servicePrices)),
	}

	for _, shadeType := range shadeTypes {
		view.ShadeTypes = append(view.ShadeTypes, resolveShadeType(shadeType, lang))
	}
	for _, material := range materials {
		view.Materials = append(view.Materials, resolveMaterial(material, lang))
	}
	for _, servicePrice := range servicePrices {
		view.ServicePrices[servicePrice.Kind] = domain.CatalogServicePrice{
			Price: servicePrice.Price,
			Name:  servicePrice.Names[lang],
		}
	}

	return view, nil
}

func resolveShadeType(shadeType domain.ShadeType, lang LanguageCode) domain.CatalogShadeType {
	optionTypes := make([]domain.CatalogOptionType, 0, len(shadeType.OptionTypes))
	for _, optionType := range shadeType.OptionTypes {
		values := make([]domain.CatalogOptionValue, 0, len(optionType.Values))
		for _, value := range optionType.Values {
			values = append(values, domain.CatalogOptionValue{
				ID:           value.ID,
				Name:         value.Names[lang],
				DisplayOrder: value.DisplayOrder,
			})
		}
		sort.SliceStable(values, func(i, j int) bool {
			return values[i].DisplayOrder < values[j].DisplayOrder
		})
		optionTypes = append(optionTypes, domain.CatalogOptionType{
			ID:           optionType.ID,
			Name:         optionType.Names[lang],
			DisplayOrder: optionType.DisplayOrder,
			Values:       values,
		})
	}
	sort.SliceStable(optionTypes, func(i, j int) bool {
		return optionTypes[i].DisplayOrder < optionTypes[j].DisplayOrder
	})

	materialIDs := make([]string, len(shadeType.MaterialIDs))
	copy(materialIDs, shadeType.MaterialIDs)

	return domain.CatalogShadeType{
		ID:          shadeType.ID,
		Name:        shadeType.Names[lang],
		MinPrice:    shadeType.MinPrice,
		OptionTypes: optionTypes,
		MaterialIDs: materialIDs,
	}
}

func resolveMaterial(material domain.Material, lang LanguageCode) domain.CatalogMaterial {
	variants := make([]domain.CatalogMaterialVariant, 0, len(material.Variants))
	for _, variant := range material.Variants {
		variants = append(variants, domain.CatalogMaterialVariant{
			ID:          variant.ID,
			ColorName:   variant.ColorNames[lang],
			ColorHex:    variant.ColorHex,
			PricePerSqm: variant.PricePerSqm,
		})
	}
	return domain.CatalogMaterial{
		ID:       material.ID,
		Name:     material.Names[lang],
		Variants: variants,
	}
}
