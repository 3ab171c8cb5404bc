package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shades-uz/api/internal/platform/httpx"
	"github.com/shades-uz/api/internal/services"
)

// CatalogHandlers exposes the localized catalog read endpoint.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs a new CatalogHandlers instance.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes registers the /catalog endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCatalog)
}

type catalogResponse struct {
	ShadeTypes []catalogShadeTypePayload             `json:"shadeTypes"`
	Materials  []catalogMaterialPayload              `json:"materials"`
	Services   map[string]catalogServicePricePayload `json:"services"`
}

type catalogShadeTypePayload struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"`
	MinPrice    int64                      `json:"minPrice"`
	OptionTypes []catalogOptionTypePayload `json:"optionTypes"`
	MaterialIDs []string                   `json:"materialIds"`
}

type catalogOptionTypePayload struct {
	ID           string                      `json:"id"`
	Name         string                      `json:"name"`
	DisplayOrder int                         `json:"displayOrder"`
	Values       []catalogOptionValuePayload `json:"values"`
}

type catalogOptionValuePayload struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"displayOrder"`
}

type catalogMaterialPayload struct {
	ID       string                          `json:"id"`
	Name     string                          `json:"name"`
	Variants []catalogMaterialVariantPayload `json:"variants"`
}

type catalogMaterialVariantPayload struct {
	ID          string `json:"id"`
	ColorName   string `json:"colorName"`
	ColorHex    string `json:"colorHex"`
	PricePerSqm int64  `json:"pricePerSqm"`
}

type catalogServicePricePayload struct {
	Price int64  `json:"price"`
	Name  string `json:"name"`
}

func (h *CatalogHandlers) getCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	view, err := h.catalog.Resolve(ctx, requestLanguage(r))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to load catalog", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, buildCatalogResponse(view))
}

func buildCatalogResponse(view services.CatalogView) catalogResponse {
	response := catalogResponse{
		ShadeTypes: make([]catalogShadeTypePayload, 0, len(view.ShadeTypes)),
		Materials:  make([]catalogMaterialPayload, 0, len(view.Materials)),
		Services:   make(map[string]catalogServicePricePayload, len(view.ServicePrices)),
	}

	for _, shadeType := range view.ShadeTypes {
		optionTypes := make([]catalogOptionTypePayload, 0, len(shadeType.OptionTypes))
		for _, optionType := range shadeType.OptionTypes {
			values := make([]catalogOptionValuePayload, 0, len(optionType.Values))
			for _, value := range optionType.Values {
				values = append(values, catalogOptionValuePayload{
					ID:           value.ID,
					Name:         value.Name,
					DisplayOrder: value.DisplayOrder,
				})
			}
			optionTypes = append(optionTypes, catalogOptionTypePayload{
				ID:           optionType.ID,
				Name:         optionType.Name,
				DisplayOrder: optionType.DisplayOrder,
				Values:       values,
			})
		}
		materialIDs := shadeType.MaterialIDs
		if materialIDs == nil {
			materialIDs = []string{}
		}
		response.ShadeTypes = append(response.ShadeTypes, catalogShadeTypePayload{
			ID:          shadeType.ID,
			Name:        shadeType.Name,
			MinPrice:    shadeType.MinPrice,
			OptionTypes: optionTypes,
			MaterialIDs: materialIDs,
		})
	}

	for _, material := range view.Materials {
		variants := make([]catalogMaterialVariantPayload, 0, len(material.Variants))
		for _, variant := range material.Variants {
			variants = append(variants, catalogMaterialVariantPayload{
				ID:          variant.ID,
				ColorName:   variant.ColorName,
				ColorHex:    variant.ColorHex,
				PricePerSqm: variant.PricePerSqm,
			})
		}
		response.Materials = append(response.Materials, catalogMaterialPayload{
			ID:       material.ID,
			Name:     material.Name,
			Variants: variants,
		})
	}

	for kind, price := range view.ServicePrices {
		response.Services[string(kind)] = catalogServicePricePayload{
			Price: price.Price,
			Name:  price.Name,
		}
	}

	return response
}
