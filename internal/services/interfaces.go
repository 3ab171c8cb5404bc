package services

import (
	"context"
	"time"

	domain "github.com/shades-uz/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination       = domain.Pagination
	SortOrder        = domain.SortOrder
	LanguageCode     = domain.LanguageCode
	Order            = domain.Order
	OrderStatus      = domain.OrderStatus
	Window           = domain.Window
	Shade            = domain.Shade
	User             = domain.User
	CatalogView      = domain.CatalogView
	PriceRequest     = domain.PriceRequest
	PriceQuote       = domain.PriceQuote
	OrderDetailView  = domain.OrderDetailView
	OrderSummaryView = domain.OrderSummaryView
	TrackedOrderView = domain.TrackedOrderView
	AssignedUserView = domain.AssignedUserView
)

// CatalogService resolves the localized catalog for one language.
type CatalogService interface {
	Resolve(ctx context.Context, lang LanguageCode) (CatalogView, error)
}

// PricingService looks up catalog prices and quotes one shade configuration.
type PricingService interface {
	Quote(ctx context.Context, req PriceRequest) (PriceQuote, error)
}

// OrderService owns the order lifecycle: intake, edits, the status machine,
// aggregate views, and the public tracking lookup.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	Update(ctx context.Context, cmd UpdateOrderCommand) (Order, error)
	Delete(ctx context.Context, orderID string) error
	Complete(ctx context.Context, orderID string) (Order, error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (OrderStatusChange, error)
	GetDetail(ctx context.Context, orderID string, lang LanguageCode) (OrderDetailView, error)
	Track(ctx context.Context, trackingCode string, lang LanguageCode) (TrackedOrderView, error)
	List(ctx context.Context, query OrderListQuery) (domain.CursorPage[OrderSummaryView], error)
}

// WindowService manages windows underneath an order.
type WindowService interface {
	Create(ctx context.Context, cmd CreateWindowCommand) (Window, error)
	Rename(ctx context.Context, cmd RenameWindowCommand) (Window, error)
	Delete(ctx context.Context, windowID string) error
}

// ShadeService manages shades and their option selections. Every write
// revalidates the option/material relationships and reprices the shade.
type ShadeService interface {
	Create(ctx context.Context, cmd CreateShadeCommand) (ShadeWithPrice, error)
	Update(ctx context.Context, cmd UpdateShadeCommand) (ShadeWithPrice, error)
	Delete(ctx context.Context, shadeID string) error
}

// AuthService issues and validates installer/admin sessions.
type AuthService interface {
	Login(ctx context.Context, cmd LoginCommand) (AuthSession, error)
	CurrentUser(ctx context.Context, userID string) (User, error)
}

// UserService exposes account listings for assignment pickers.
type UserService interface {
	ListInstallers(ctx context.Context) ([]AssignedUserView, error)
}

// PhotoService hands out signed URLs for measurement photos taken on site.
type PhotoService interface {
	CreateUploadURL(ctx context.Context, cmd MeasurementPhotoCommand) (SignedPhotoURL, error)
	CreateDownloadURL(ctx context.Context, cmd MeasurementPhotoCommand) (SignedPhotoURL, error)
}

// SystemService aggregates dependency health for readiness probes.
type SystemService interface {
	Health(ctx context.Context) (domain.SystemHealthReport, error)
}

// Commands and result DTOs --------------------------------------------------

// CreateOrderCommand carries intake data for a new order.
type CreateOrderCommand struct {
	ClientName     string
	ClientPhone    string
	ClientAddress  string
	Notes          *string
	VisitDate      time.Time
	AssignedUserID *string
	ActorID        string
}

// UpdateOrderCommand patches editable order fields. Nil fields are untouched.
type UpdateOrderCommand struct {
	OrderID        string
	ClientName     *string
	ClientPhone    *string
	ClientAddress  *string
	Notes          *string
	VisitDate      *time.Time
	AssignedUserID *string
	ActorID        string
}

// OrderStatusTransitionCommand moves an order to a new lifecycle state.
type OrderStatusTransitionCommand struct {
	OrderID  string
	Target   OrderStatus
	Language LanguageCode
	ActorID  string
}

// OrderStatusChange reports the outcome of a status transition.
type OrderStatusChange struct {
	OrderID    string
	Status     OrderStatus
	StatusName string
}

// OrderListQuery narrows order listings for back-office and installer views.
type OrderListQuery struct {
	Status         []OrderStatus
	Search         string
	AssignedUserID *string
	VisitFrom      *time.Time
	VisitTo        *time.Time
	Language       LanguageCode
	Pagination     Pagination
}

// CreateWindowCommand attaches a named window to an order.
type CreateWindowCommand struct {
	OrderID string
	Name    string
}

// RenameWindowCommand changes a window's display name.
type RenameWindowCommand struct {
	WindowID string
	Name     string
}

// ShadeOptionInput selects one option value on one option axis.
type ShadeOptionInput struct {
	OptionTypeID  string
	OptionValueID string
}

// CreateShadeCommand configures a new shade on a window.
type CreateShadeCommand struct {
	WindowID             string
	ShadeTypeID          string
	Width                float64
	Height               float64
	MaterialVariantID    string
	InstallationIncluded bool
	RemovalIncluded      bool
	Options              []ShadeOptionInput
}

// UpdateShadeCommand patches a shade. A non-nil Options replaces the whole
// selection set in one atomic write.
type UpdateShadeCommand struct {
	ShadeID              string
	ShadeTypeID          *string
	Width                *float64
	Height               *float64
	MaterialVariantID    *string
	InstallationIncluded *bool
	RemovalIncluded      *bool
	Options              []ShadeOptionInput
	ReplaceOptions       bool
}

// ShadeWithPrice pairs a persisted shade with its freshly computed price.
type ShadeWithPrice struct {
	Shade           Shade
	CalculatedPrice int64
}

// LoginCommand carries credentials for a session request.
type LoginCommand struct {
	Username string
	Password string
}

// AuthSession is the issued token plus the authenticated account.
type AuthSession struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

// MeasurementPhotoCommand identifies one photo slot on a window.
type MeasurementPhotoCommand struct {
	OrderID     string
	WindowID    string
	FileName    string
	ContentType string
	ActorID     string
}

// SignedPhotoURL is a time-limited URL for uploading or fetching a photo.
type SignedPhotoURL struct {
	URL       string
	Method    string
	ObjectKey string
	ExpiresAt time.Time
	Headers   map[string]string
}
