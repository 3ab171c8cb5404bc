package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/shades-uz/api/internal/domain"
	"github.com/shades-uz/api/internal/repositories"
)

const shadeIDPrefix = "shd_"

var (
	// ErrShadeInvalidInput signals the caller provided invalid data.
	ErrShadeInvalidInput = errors.New("shade: invalid input")
	// ErrShadeNotFound indicates the shade could not be located.
	ErrShadeNotFound = errors.New("shade: not found")
	// ErrShadeOrderCompleted indicates the owning order is frozen.
	ErrShadeOrderCompleted = errors.New("shade: order is completed")
	// ErrShadeInvalidOptions indicates selections referencing option types or
	// values that do not belong to the shade's type, or a material the type
	// does not allow.
	ErrShadeInvalidOptions = errors.New("shade: invalid option selection")
)

// ShadeServiceDeps bundles collaborators for the shade service.
type ShadeServiceDeps struct {
	Shades      repositories.ShadeRepository
	Windows     repositories.WindowRepository
	Orders      repositories.OrderRepository
	Catalog     repositories.CatalogRepository
	Pricing     PricingService
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
}

type shadeService struct {
	shades     repositories.ShadeRepository
	windows    repositories.WindowRepository
	orders     repositories.OrderRepository
	catalog    repositories.CatalogRepository
	pricing    PricingService
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
}

// NewShadeService wires dependencies into a concrete ShadeService implementation.
func NewShadeService(deps ShadeServiceDeps) (ShadeService, error) {
	if deps.Shades == nil {
		return nil, errors.New("shade service: shade repository is required")
	}
	if deps.Windows == nil {
		return nil, errors.New("shade service: window repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("shade service: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("shade service: catalog repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("shade service: pricing service is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &shadeService{
		shades:     deps.Shades,
		windows:    deps.Windows,
		orders:     deps.Orders,
		catalog:    deps.Catalog,
		pricing:    deps.Pricing,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *shadeService) Create(ctx context.Context, cmd CreateShadeCommand) (ShadeWithPrice, error) {
	windowID := strings.TrimSpace(cmd.WindowID)
	if windowID == "" {
		return ShadeWithPrice{}, fmt.Errorf("%w: window id is required", ErrShadeInvalidInput)
	}
	if cmd.Width <= 0 || cmd.Height <= 0 {
		return ShadeWithPrice{}, fmt.Errorf("%w: dimensions must be positive", ErrShadeInvalidInput)
	}

	window, err := s.windows.FindByID(ctx, windowID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return ShadeWithPrice{}, fmt.Errorf("%w: window %s does not exist", ErrShadeInvalidInput, windowID)
		}
		return ShadeWithPrice{}, err
	}
	if err := s.requireEditableOrder(ctx, window.OrderID); err != nil {
		return ShadeWithPrice{}, err
	}

	now := s.clock()
	shade := Shade{
		ID:                   shadeIDPrefix + s.newID(),
		WindowID:             window.ID,
		ShadeTypeID:          strings.TrimSpace(cmd.ShadeTypeID),
		Width:                cmd.Width,
		Height:               cmd.Height,
		MaterialVariantID:    strings.TrimSpace(cmd.MaterialVariantID),
		InstallationIncluded: cmd.InstallationIncluded,
		RemovalIncluded:      cmd.RemovalIncluded,
		Options:              toSelections(cmd.Options),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.validateConfiguration(ctx, shade); err != nil {
		return ShadeWithPrice{}, err
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		return s.shades.Insert(txCtx, shade)
	})
	if err != nil {
		return ShadeWithPrice{}, s.mapRepositoryError(err)
	}

	return s.withPrice(ctx, shade)
}

func (s *shadeService) Update(ctx context.Context, cmd UpdateShadeCommand) (ShadeWithPrice, error) {
	shadeID := strings.TrimSpace(cmd.ShadeID)
	if shadeID == "" {
		return ShadeWithPrice{}, fmt.Errorf("%w: shade id is required", ErrShadeInvalidInput)
	}

	shade, err := s.shades.FindByID(ctx, shadeID)
	if err != nil {
		return ShadeWithPrice{}, s.mapRepositoryError(err)
	}

	window, err := s.windows.FindByID(ctx, shade.WindowID)
	if err != nil {
		return ShadeWithPrice{}, err
	}
	if err := s.requireEditableOrder(ctx, window.OrderID); err != nil {
		return ShadeWithPrice{}, err
	}

	if cmd.ShadeTypeID != nil {
		shade.ShadeTypeID = strings.TrimSpace(*cmd.ShadeTypeID)
	}
	if cmd.Width != nil {
		if *cmd.Width <= 0 {
			return ShadeWithPrice{}, fmt.Errorf("%w: width must be positive", ErrShadeInvalidInput)
		}
		shade.Width = *cmd.Width
	}
	if cmd.Height != nil {
		if *cmd.Height <= 0 {
			return ShadeWithPrice{}, fmt.Errorf("%w: height must be positive", ErrShadeInvalidInput)
		}
		shade.Height = *cmd.Height
	}
	if cmd.MaterialVariantID != nil {
		shade.MaterialVariantID = strings.TrimSpace(*cmd.MaterialVariantID)
	}
	if cmd.InstallationIncluded != nil {
		shade.InstallationIncluded = *cmd.InstallationIncluded
	}
	if cmd.RemovalIncluded != nil {
		shade.RemovalIncluded = *cmd.RemovalIncluded
	}
	if cmd.ReplaceOptions {
		// The selection set is replaced wholesale, never patched per entry.
		shade.Options = toSelections(cmd.Options)
	}

	if err := s.validateConfiguration(ctx, shade); err != nil {
		return ShadeWithPrice{}, err
	}

	shade.UpdatedAt = s.clock()

	// Scalars and the full option set land in one all-or-nothing write.
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		return s.shades.Update(txCtx, shade)
	})
	if err != nil {
		return ShadeWithPrice{}, s.mapRepositoryError(err)
	}

	return s.withPrice(ctx, shade)
}

func (s *shadeService) Delete(ctx context.Context, shadeID string) error {
	shadeID = strings.TrimSpace(shadeID)
	if shadeID == "" {
		return fmt.Errorf("%w: shade id is required", ErrShadeInvalidInput)
	}

	shade, err := s.shades.FindByID(ctx, shadeID)
	if err != nil {
		return s.mapRepositoryError(err)
	}

	window, err := s.windows.FindByID(ctx, shade.WindowID)
	if err != nil {
		return err
	}
	if err := s.requireEditableOrder(ctx, window.OrderID); err != nil {
		return err
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		return s.shades.Delete(txCtx, shade.ID)
	})
	if err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

// validateConfiguration checks that every selection references an option type
// of the shade's type and a value of that option type, at most one selection
// per axis, and that the material variant belongs to a material the shade
// type allows.
func (s *shadeService) validateConfiguration(ctx context.Context, shade Shade) error {
	if shade.ShadeTypeID == "" {
		return fmt.Errorf("%w: shade type id is required", ErrShadeInvalidInput)
	}
	if shade.MaterialVariantID == "" {
		return fmt.Errorf("%w: material variant id is required", ErrShadeInvalidInput)
	}

	shadeType, err := s.catalog.GetShadeType(ctx, shade.ShadeTypeID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return fmt.Errorf("%w: shade type %s does not exist", ErrShadeInvalidInput, shade.ShadeTypeID)
		}
		return err
	}

	material, _, err := s.catalog.GetMaterialVariant(ctx, shade.MaterialVariantID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return fmt.Errorf("%w: material variant %s does not exist", ErrShadeInvalidInput, shade.MaterialVariantID)
		}
		return err
	}

	allowed := false
	for _, materialID := range shadeType.MaterialIDs {
		if materialID == material.ID {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: material %s is not available for shade type %s", ErrShadeInvalidOptions, material.ID, shadeType.ID)
	}

	optionTypes := make(map[string]domain.OptionType, len(shadeType.OptionTypes))
	for _, optionType := range shadeType.OptionTypes {
		optionTypes[optionType.ID] = optionType
	}

	seen := make(map[string]bool, len(shade.Options))
	for _, selection := range shade.Options {
		optionType, ok := optionTypes[selection.OptionTypeID]
		if !ok {
			return fmt.Errorf("%w: option type %s does not belong to shade type %s", ErrShadeInvalidOptions, selection.OptionTypeID, shadeType.ID)
		}
		if seen[selection.OptionTypeID] {
			return fmt.Errorf("%w: duplicate selection for option type %s", ErrShadeInvalidOptions, selection.OptionTypeID)
		}
		seen[selection.OptionTypeID] = true

		valueOK := false
		for _, value := range optionType.Values {
			if value.ID == selection.OptionValueID {
				valueOK = true
				break
			}
		}
		if !valueOK {
			return fmt.Errorf("%w: value %s does not belong to option type %s", ErrShadeInvalidOptions, selection.OptionValueID, optionType.ID)
		}
	}

	return nil
}

func (s *shadeService) withPrice(ctx context.Context, shade Shade) (ShadeWithPrice, error) {
	quote, err := s.pricing.Quote(ctx, domain.PriceRequest{
		ShadeTypeID:          shade.ShadeTypeID,
		Width:                shade.Width,
		Height:               shade.Height,
		MaterialVariantID:    shade.MaterialVariantID,
		InstallationIncluded: shade.InstallationIncluded,
		RemovalIncluded:      shade.RemovalIncluded,
	})
	if err != nil {
		return ShadeWithPrice{}, err
	}
	return ShadeWithPrice{Shade: shade, CalculatedPrice: quote.TotalPrice}, nil
}

func (s *shadeService) requireEditableOrder(ctx context.Context, orderID string) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == domain.OrderStatusCompleted {
		return fmt.Errorf("%w: %s", ErrShadeOrderCompleted, orderID)
	}
	return nil
}

func (s *shadeService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrShadeNotFound, err)
	}
	return err
}

func (s *shadeService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func toSelections(inputs []ShadeOptionInput) []domain.ShadeOptionSelection {
	if inputs == nil {
		return nil
	}
	selections := make([]domain.ShadeOptionSelection, 0, len(inputs))
	for _, input := range inputs {
		selections = append(selections, domain.ShadeOptionSelection{
			OptionTypeID:  strings.TrimSpace(input.OptionTypeID),
			OptionValueID: strings.TrimSpace(input.OptionValueID),
		})
	}
	return selections
}
