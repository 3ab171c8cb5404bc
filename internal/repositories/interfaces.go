package repositories

import (
	"context"
	"time"

	domain "github.com/shades-uz/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Windows() WindowRepository
	Shades() ShadeRepository
	Catalog() CatalogRepository
	Users() UserRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError classifies persistence failures so services can react
// without depending on the storage driver.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations into one transactional boundary
// where the backing store supports it.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order headers and the uniqueness reservation of
// their tracking codes.
type OrderRepository interface {
	// Insert writes the order and claims its tracking code in one atomic
	// step. A RepositoryError with IsConflict reports that the code is
	// already taken; callers regenerate and retry.
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByTrackingCode(ctx context.Context, code string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// WindowRepository persists windows underneath orders.
type WindowRepository interface {
	Insert(ctx context.Context, window domain.Window) error
	Update(ctx context.Context, window domain.Window) error
	Delete(ctx context.Context, windowID string) error
	FindByID(ctx context.Context, windowID string) (domain.Window, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.Window, error)
	// CountByOrder returns the number of windows per order for the given
	// order IDs. Orders without windows are absent from the result.
	CountByOrder(ctx context.Context, orderIDs []string) (map[string]int, error)
}

// ShadeRepository persists shades and their option selections. Replacing a
// shade's option set happens through Update as one all-or-nothing write.
type ShadeRepository interface {
	Insert(ctx context.Context, shade domain.Shade) error
	Update(ctx context.Context, shade domain.Shade) error
	Delete(ctx context.Context, shadeID string) error
	FindByID(ctx context.Context, shadeID string) (domain.Shade, error)
	ListByWindow(ctx context.Context, windowID string) ([]domain.Shade, error)
}

// CatalogRepository reads the reference data the resolver and pricing need:
// shade types, materials, service prices, and status translations.
type CatalogRepository interface {
	ListShadeTypes(ctx context.Context) ([]domain.ShadeType, error)
	GetShadeType(ctx context.Context, shadeTypeID string) (domain.ShadeType, error)
	ListMaterials(ctx context.Context) ([]domain.Material, error)
	GetMaterial(ctx context.Context, materialID string) (domain.Material, error)
	// GetMaterialVariant resolves a variant ID to its owning material plus
	// the variant itself.
	GetMaterialVariant(ctx context.Context, variantID string) (domain.Material, domain.MaterialVariant, error)
	ListServicePrices(ctx context.Context) ([]domain.ServicePrice, error)
	ListStatusTranslations(ctx context.Context) ([]domain.OrderStatusTranslation, error)
}

// UserRepository stores back-office and installer accounts.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.User, error)
	FindByUsername(ctx context.Context, username string) (domain.User, error)
	ListInstallers(ctx context.Context) ([]domain.User, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

// OrderListFilter narrows order listings. Search is matched case-insensitively
// as a substring of client name, phone, and address.
type OrderListFilter struct {
	Status         []domain.OrderStatus
	Search         string
	AssignedUserID *string
	VisitDate      domain.RangeQuery[time.Time]
	Pagination     domain.Pagination
}
