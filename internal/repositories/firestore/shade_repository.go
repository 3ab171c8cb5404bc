package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/shades-uz/api/internal/domain"
	pfirestore "github.com/shades-uz/api/internal/platform/firestore"
	"github.com/shades-uz/api/internal/repositories"
)

const shadeCollection = "shades"

// ShadeRepository persists shades in Firestore. Option selections are
// embedded in the shade document, so replacing them is a single atomic write.
type ShadeRepository struct {
	base *pfirestore.BaseRepository[shadeDocument]
}

var _ repositories.ShadeRepository = (*ShadeRepository)(nil)

// NewShadeRepository constructs a Firestore-backed shade repository.
func NewShadeRepository(provider *pfirestore.Provider) (*ShadeRepository, error) {
	if provider == nil {
		return nil, errors.New("shade repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[shadeDocument](provider, shadeCollection)
	return &ShadeRepository{base: base}, nil
}

// Insert creates the shade document.
func (r *ShadeRepository) Insert(ctx context.Context, shade domain.Shade) error {
	if r == nil || r.base == nil {
		return errors.New("shade repository not initialised")
	}
	if strings.TrimSpace(shade.ID) == "" {
		return errors.New("shade id is required")
	}

	ref, err := r.base.DocumentRef(ctx, shade.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainShade(shade)); err != nil {
		return pfirestore.WrapError("shades.insert", err)
	}
	return nil
}

// Update overwrites the stored shade including its option selections.
func (r *ShadeRepository) Update(ctx context.Context, shade domain.Shade) error {
	if r == nil || r.base == nil {
		return errors.New("shade repository not initialised")
	}
	if strings.TrimSpace(shade.ID) == "" {
		return errors.New("shade id is required")
	}

	if _, err := r.base.Get(ctx, shade.ID); err != nil {
		return err
	}
	_, err := r.base.Set(ctx, shade.ID, fromDomainShade(shade))
	return err
}

// Delete removes the shade document.
func (r *ShadeRepository) Delete(ctx context.Context, shadeID string) error {
	if r == nil || r.base == nil {
		return errors.New("shade repository not initialised")
	}
	shadeID = strings.TrimSpace(shadeID)
	if shadeID == "" {
		return errors.New("shade id is required")
	}

	ref, err := r.base.DocumentRef(ctx, shadeID)
	if err != nil {
		return err
	}
	if _, err := r.base.Get(ctx, shadeID); err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("shades.delete", err)
	}
	return nil
}

// FindByID loads the shade by its identifier.
func (r *ShadeRepository) FindByID(ctx context.Context, shadeID string) (domain.Shade, error) {
	if r == nil || r.base == nil {
		return domain.Shade{}, errors.New("shade repository not initialised")
	}
	if strings.TrimSpace(shadeID) == "" {
		return domain.Shade{}, errors.New("shade id is required")
	}

	doc, err := r.base.Get(ctx, shadeID)
	if err != nil {
		return domain.Shade{}, err
	}
	return toDomainShade(doc.ID, doc.Data), nil
}

// ListByWindow returns the window's shades in creation order.
func (r *ShadeRepository) ListByWindow(ctx context.Context, windowID string) ([]domain.Shade, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("shade repository not initialised")
	}
	windowID = strings.TrimSpace(windowID)
	if windowID == "" {
		return nil, errors.New("window id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("windowId", "==", windowID).OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	shades := make([]domain.Shade, 0, len(docs))
	for _, doc := range docs {
		shades = append(shades, toDomainShade(doc.ID, doc.Data))
	}
	return shades, nil
}

type shadeDocument struct {
	WindowID             string                `firestore:"windowId"`
	ShadeTypeID          string                `firestore:"shadeTypeId"`
	Width                float64               `firestore:"width"`
	Height               float64               `firestore:"height"`
	MaterialVariantID    string                `firestore:"materialVariantId"`
	InstallationIncluded bool                  `firestore:"installationIncluded"`
	RemovalIncluded      bool                  `firestore:"removalIncluded"`
	Options              []shadeOptionDocument `firestore:"options"`
	CreatedAt            time.Time             `firestore:"createdAt"`
	UpdatedAt            time.Time             `firestore:"updatedAt"`
}

type shadeOptionDocument struct {
	OptionTypeID  string `firestore:"optionTypeId"`
	OptionValueID string `firestore:"optionValueId"`
}

func fromDomainShade(shade domain.Shade) shadeDocument {
	options := make([]shadeOptionDocument, 0, len(shade.Options))
	for _, opt := range shade.Options {
		options = append(options, shadeOptionDocument{
			OptionTypeID:  strings.TrimSpace(opt.OptionTypeID),
			OptionValueID: strings.TrimSpace(opt.OptionValueID),
		})
	}
	return shadeDocument{
		WindowID:             strings.TrimSpace(shade.WindowID),
		ShadeTypeID:          strings.TrimSpace(shade.ShadeTypeID),
		Width:                shade.Width,
		Height:               shade.Height,
		MaterialVariantID:    strings.TrimSpace(shade.MaterialVariantID),
		InstallationIncluded: shade.InstallationIncluded,
		RemovalIncluded:      shade.RemovalIncluded,
		Options:              options,
		CreatedAt:            shade.CreatedAt.UTC(),
		UpdatedAt:            shade.UpdatedAt.UTC(),
	}
}

func toDomainShade(id string, doc shadeDocument) domain.Shade {
	options := make([]domain.ShadeOptionSelection, 0, len(doc.Options))
	for _, opt := range doc.Options {
		options = append(options, domain.ShadeOptionSelection{
			OptionTypeID:  opt.OptionTypeID,
			OptionValueID: opt.OptionValueID,
		})
	}
	return domain.Shade{
		ID:                   id,
		WindowID:             doc.WindowID,
		ShadeTypeID:          doc.ShadeTypeID,
		Width:                doc.Width,
		Height:               doc.Height,
		MaterialVariantID:    doc.MaterialVariantID,
		InstallationIncluded: doc.InstallationIncluded,
		RemovalIncluded:      doc.RemovalIncluded,
		Options:              options,
		CreatedAt:            doc.CreatedAt,
		UpdatedAt:            doc.UpdatedAt,
	}
}
