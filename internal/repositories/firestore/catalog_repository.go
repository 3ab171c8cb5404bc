package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/shades-uz/api/internal/domain"
	pfirestore "github.com/shades-uz/api/internal/platform/firestore"
	"github.com/shades-uz/api/internal/platform/textutil"
	"github.com/shades-uz/api/internal/repositories"
)

const (
	shadeTypeCollection         = "shadeTypes"
	materialCollection          = "materials"
	servicePriceCollection      = "servicePrices"
	statusTranslationCollection = "statusTranslations"
)

// CatalogRepository reads reference data from Firestore. Option types and
// values are embedded in shade type documents; variants in material documents.
type CatalogRepository struct {
	shadeTypes   *pfirestore.BaseRepository[shadeTypeDocument]
	materials    *pfirestore.BaseRepository[materialDocument]
	services     *pfirestore.BaseRepository[servicePriceDocument]
	translations *pfirestore.BaseRepository[statusTranslationDocument]
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		shadeTypes:   pfirestore.NewBaseRepository[shadeTypeDocument](provider, shadeTypeCollection),
		materials:    pfirestore.NewBaseRepository[materialDocument](provider, materialCollection),
		services:     pfirestore.NewBaseRepository[servicePriceDocument](provider, servicePriceCollection),
		translations: pfirestore.NewBaseRepository[statusTranslationDocument](provider, statusTranslationCollection),
	}, nil
}

// ListShadeTypes returns every shade type with its option axes.
func (r *CatalogRepository) ListShadeTypes(ctx context.Context) ([]domain.ShadeType, error) {
	if r == nil || r.shadeTypes == nil {
		return nil, errors.New("catalog repository not initialised")
	}

	docs, err := r.shadeTypes.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	types := make([]domain.ShadeType, 0, len(docs))
	for _, doc := range docs {
		types = append(types, toDomainShadeType(doc.ID, doc.Data))
	}
	return types, nil
}

// GetShadeType loads one shade type by ID.
func (r *CatalogRepository) GetShadeType(ctx context.Context, shadeTypeID string) (domain.ShadeType, error) {
	if r == nil || r.shadeTypes == nil {
		return domain.ShadeType{}, errors.New("catalog repository not initialised")
	}
	if strings.TrimSpace(shadeTypeID) == "" {
		return domain.ShadeType{}, errors.New("shade type id is required")
	}

	doc, err := r.shadeTypes.Get(ctx, shadeTypeID)
	if err != nil {
		return domain.ShadeType{}, err
	}
	return toDomainShadeType(doc.ID, doc.Data), nil
}

// ListMaterials returns every material with its variants.
func (r *CatalogRepository) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	if r == nil || r.materials == nil {
		return nil, errors.New("catalog repository not initialised")
	}

	docs, err := r.materials.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	materials := make([]domain.Material, 0, len(docs))
	for _, doc := range docs {
		materials = append(materials, toDomainMaterial(doc.ID, doc.Data))
	}
	return materials, nil
}

// GetMaterial loads one material by ID.
func (r *CatalogRepository) GetMaterial(ctx context.Context, materialID string) (domain.Material, error) {
	if r == nil || r.materials == nil {
		return domain.Material{}, errors.New("catalog repository not initialised")
	}
	if strings.TrimSpace(materialID) == "" {
		return domain.Material{}, errors.New("material id is required")
	}

	doc, err := r.materials.Get(ctx, materialID)
	if err != nil {
		return domain.Material{}, err
	}
	return toDomainMaterial(doc.ID, doc.Data), nil
}

// GetMaterialVariant resolves a variant ID to its owning material and the
// variant itself.
func (r *CatalogRepository) GetMaterialVariant(ctx context.Context, variantID string) (domain.Material, domain.MaterialVariant, error) {
	if r == nil || r.materials == nil {
		return domain.Material{}, domain.MaterialVariant{}, errors.New("catalog repository not initialised")
	}
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return domain.Material{}, domain.MaterialVariant{}, errors.New("material variant id is required")
	}

	docs, err := r.materials.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("variantIds", "array-contains", variantID).Limit(1)
	})
	if err != nil {
		return domain.Material{}, domain.MaterialVariant{}, err
	}
	if len(docs) == 0 {
		return domain.Material{}, domain.MaterialVariant{}, pfirestore.WrapError("materials.getVariant",
			status.Error(codes.NotFound, "material variant not found"))
	}

	material := toDomainMaterial(docs[0].ID, docs[0].Data)
	for _, variant := range material.Variants {
		if variant.ID == variantID {
			return material, variant, nil
		}
	}
	return domain.Material{}, domain.MaterialVariant{}, pfirestore.WrapError("materials.getVariant",
		status.Error(codes.NotFound, "material variant not found"))
}

// ListServicePrices returns the flat prices for field services.
func (r *CatalogRepository) ListServicePrices(ctx context.Context) ([]domain.ServicePrice, error) {
	if r == nil || r.services == nil {
		return nil, errors.New("catalog repository not initialised")
	}

	docs, err := r.services.Query(ctx, nil)
	if err != nil {
		return nil, err
	}

	prices := make([]domain.ServicePrice, 0, len(docs))
	for _, doc := range docs {
		prices = append(prices, domain.ServicePrice{
			Kind:      domain.ServiceKind(doc.ID),
			Price:     doc.Data.Price,
			Names:     toLanguageMap(doc.Data.Names),
			UpdatedAt: doc.Data.UpdatedAt,
		})
	}
	return prices, nil
}

// ListStatusTranslations returns the localized status display names.
func (r *CatalogRepository) ListStatusTranslations(ctx context.Context) ([]domain.OrderStatusTranslation, error) {
	if r == nil || r.translations == nil {
		return nil, errors.New("catalog repository not initialised")
	}

	docs, err := r.translations.Query(ctx, nil)
	if err != nil {
		return nil, err
	}

	translations := make([]domain.OrderStatusTranslation, 0, len(docs))
	for _, doc := range docs {
		translations = append(translations, domain.OrderStatusTranslation{
			Status: domain.OrderStatus(doc.ID),
			Names:  toLanguageMap(doc.Data.Names),
		})
	}
	return translations, nil
}

type shadeTypeDocument struct {
	MinPrice    int64                `firestore:"minPrice"`
	Names       map[string]string    `firestore:"names"`
	OptionTypes []optionTypeDocument `firestore:"optionTypes"`
	MaterialIDs []string             `firestore:"materialIds"`
	CreatedAt   time.Time            `firestore:"createdAt"`
	UpdatedAt   time.Time            `firestore:"updatedAt"`
}

type optionTypeDocument struct {
	ID           string                `firestore:"id"`
	DisplayOrder int                   `firestore:"displayOrder"`
	Names        map[string]string     `firestore:"names"`
	Values       []optionValueDocument `firestore:"values"`
}

type optionValueDocument struct {
	ID           string            `firestore:"id"`
	DisplayOrder int               `firestore:"displayOrder"`
	Names        map[string]string `firestore:"names"`
}

type materialDocument struct {
	Names      map[string]string         `firestore:"names"`
	Variants   []materialVariantDocument `firestore:"variants"`
	VariantIDs []string                  `firestore:"variantIds"`
	CreatedAt  time.Time                 `firestore:"createdAt"`
	UpdatedAt  time.Time                 `firestore:"updatedAt"`
}

type materialVariantDocument struct {
	ID          string            `firestore:"id"`
	ColorHex    string            `firestore:"colorHex"`
	PricePerSqm int64             `firestore:"pricePerSqm"`
	ColorNames  map[string]string `firestore:"colorNames"`
}

type servicePriceDocument struct {
	Price     int64             `firestore:"price"`
	Names     map[string]string `firestore:"names"`
	UpdatedAt time.Time         `firestore:"updatedAt"`
}

type statusTranslationDocument struct {
	Names map[string]string `firestore:"names"`
}

func toDomainShadeType(id string, doc shadeTypeDocument) domain.ShadeType {
	optionTypes := make([]domain.OptionType, 0, len(doc.OptionTypes))
	for _, ot := range doc.OptionTypes {
		values := make([]domain.OptionValue, 0, len(ot.Values))
		for _, value := range ot.Values {
			values = append(values, domain.OptionValue{
				ID:           value.ID,
				DisplayOrder: value.DisplayOrder,
				Names:        toLanguageMap(value.Names),
			})
		}
		optionTypes = append(optionTypes, domain.OptionType{
			ID:           ot.ID,
			DisplayOrder: ot.DisplayOrder,
			Names:        toLanguageMap(ot.Names),
			Values:       values,
		})
	}
	return domain.ShadeType{
		ID:          id,
		MinPrice:    doc.MinPrice,
		Names:       toLanguageMap(doc.Names),
		OptionTypes: optionTypes,
		MaterialIDs: append([]string(nil), doc.MaterialIDs...),
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func toDomainMaterial(id string, doc materialDocument) domain.Material {
	variants := make([]domain.MaterialVariant, 0, len(doc.Variants))
	for _, variant := range doc.Variants {
		variants = append(variants, domain.MaterialVariant{
			ID:          variant.ID,
			ColorHex:    variant.ColorHex,
			PricePerSqm: variant.PricePerSqm,
			ColorNames:  toLanguageMap(variant.ColorNames),
		})
	}
	return domain.Material{
		ID:        id,
		Names:     toLanguageMap(doc.Names),
		Variants:  variants,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func toLanguageMap(names map[string]string) map[domain.LanguageCode]string {
	normalized := textutil.NormalizeStringMap(names)
	out := make(map[domain.LanguageCode]string, len(normalized))
	for code, name := range normalized {
		out[domain.LanguageCode(code)] = name
	}
	return out
}
