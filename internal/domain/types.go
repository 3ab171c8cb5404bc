// Package domain declares the entities and value types shared across the
// order management API. Types here carry no persistence or transport
// concerns.
package domain

import "time"

// Pagination carries cursor paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder selects the direction of list queries.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// RangeQuery filters a numeric or timestamp field inclusively on both
// ends. A nil bound leaves that side open.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage wraps list results with the token needed to fetch the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// LanguageCode identifies a supported catalog language.
type LanguageCode string

const (
	// LanguageRussian is the system default language.
	LanguageRussian LanguageCode = "ru"
	// LanguageUzbekCyrillic is Uzbek written in Cyrillic script.
	LanguageUzbekCyrillic LanguageCode = "uz_cyrl"
	// LanguageUzbekLatin is Uzbek written in Latin script.
	LanguageUzbekLatin LanguageCode = "uz_latn"
)

// Language describes one supported catalog language.
type Language struct {
	Code      LanguageCode
	Name      string
	IsDefault bool
}

// ShadeType is a configurable shade product line with a floor price and the
// option axes a shade of this type can be configured along.
type ShadeType struct {
	ID          string
	MinPrice    int64
	Names       map[LanguageCode]string
	OptionTypes []OptionType
	MaterialIDs []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OptionType is one configuration axis of a shade type (e.g. control side).
type OptionType struct {
	ID           string
	DisplayOrder int
	Names        map[LanguageCode]string
	Values       []OptionValue
}

// OptionValue is a selectable value on one option axis.
type OptionValue struct {
	ID           string
	DisplayOrder int
	Names        map[LanguageCode]string
}

// Material groups fabric variants under one localized name.
type Material struct {
	ID        string
	Names     map[LanguageCode]string
	Variants  []MaterialVariant
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MaterialVariant is a concrete color/fabric with its price per square meter.
type MaterialVariant struct {
	ID          string
	ColorHex    string
	PricePerSqm int64
	ColorNames  map[LanguageCode]string
}

// ServiceKind enumerates chargeable field services.
type ServiceKind string

const (
	// ServiceInstallation covers mounting the finished shade on site.
	ServiceInstallation ServiceKind = "installation"
	// ServiceRemoval covers taking down an existing shade.
	ServiceRemoval ServiceKind = "removal"
)

// ServicePrice is the flat price and localized label for one service kind.
type ServicePrice struct {
	Kind      ServiceKind
	Price     int64
	Names     map[LanguageCode]string
	UpdatedAt time.Time
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusNew indicates the order has been taken but work has not started.
	OrderStatusNew OrderStatus = "new"
	// OrderStatusInProgress indicates an installer is working the order.
	OrderStatusInProgress OrderStatus = "in_progress"
	// OrderStatusMeasured indicates on-site measurement is done.
	OrderStatusMeasured OrderStatus = "measured"
	// OrderStatusCompleted indicates the order is finished and frozen.
	OrderStatusCompleted OrderStatus = "completed"
)

// Order captures an order header. Windows and shades hang off it separately.
type Order struct {
	ID             string
	TrackingCode   string
	ClientName     string
	ClientPhone    string
	ClientAddress  string
	Notes          *string
	VisitDate      time.Time
	Status         OrderStatus
	AssignedUserID *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Window is one opening within an order, identified by a display name.
type Window struct {
	ID        string
	OrderID   string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShadeOptionSelection pins one option axis of a shade to a concrete value.
type ShadeOptionSelection struct {
	OptionTypeID  string
	OptionValueID string
}

// Shade is a configured shade attached to a window. Its price is never
// persisted; it is recomputed from current catalog prices at read time.
type Shade struct {
	ID                   string
	WindowID             string
	ShadeTypeID          string
	Width                float64
	Height               float64
	MaterialVariantID    string
	InstallationIncluded bool
	RemovalIncluded      bool
	Options              []ShadeOptionSelection
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// UserRole enumerates back-office roles.
type UserRole string

const (
	// UserRoleAdmin can see and edit every order.
	UserRoleAdmin UserRole = "admin"
	// UserRoleInstaller works assigned orders in the field.
	UserRoleInstaller UserRole = "installer"
)

// User is a back-office or field account.
type User struct {
	ID                string
	Username          string
	FullName          string
	Role              UserRole
	PreferredLanguage LanguageCode
	PasswordHash      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderStatusTranslation holds the localized display names of one status.
type OrderStatusTranslation struct {
	Status OrderStatus
	Names  map[LanguageCode]string
}

// CompanyContact is the localized contact block shown on the public
// tracking page.
type CompanyContact struct {
	Name         string
	Phone        string
	WorkingHours string
}

// CatalogView is the full localized catalog in one flat response.
type CatalogView struct {
	ShadeTypes    []CatalogShadeType
	Materials     []CatalogMaterial
	ServicePrices map[ServiceKind]CatalogServicePrice
}

// CatalogShadeType is a shade type with labels resolved for one language.
type CatalogShadeType struct {
	ID          string
	Name        string
	MinPrice    int64
	OptionTypes []CatalogOptionType
	MaterialIDs []string
}

// CatalogOptionType is an option axis with resolved labels, sorted values.
type CatalogOptionType struct {
	ID           string
	Name         string
	DisplayOrder int
	Values       []CatalogOptionValue
}

// CatalogOptionValue is one selectable value with its resolved label.
type CatalogOptionValue struct {
	ID           string
	Name         string
	DisplayOrder int
}

// CatalogMaterial is a material with resolved labels and its variants.
type CatalogMaterial struct {
	ID       string
	Name     string
	Variants []CatalogMaterialVariant
}

// CatalogMaterialVariant is a variant with its resolved color name.
type CatalogMaterialVariant struct {
	ID          string
	ColorName   string
	ColorHex    string
	PricePerSqm int64
}

// CatalogServicePrice is a service price with its resolved label.
type CatalogServicePrice struct {
	Price int64
	Name  string
}

// OrderDetailView is the consolidated order view with windows, shades,
// resolved labels, and recomputed prices.
type OrderDetailView struct {
	ID            string
	TrackingCode  string
	ClientName    string
	ClientPhone   string
	ClientAddress string
	Notes         *string
	VisitDate     time.Time
	Status        OrderStatus
	StatusName    string
	Windows       []WindowView
	TotalPrice    int64
}

// WindowView is one window in the detail view. Shade is nil when the window
// has no shade yet.
type WindowView struct {
	ID    string
	Name  string
	Shade *ShadeView
}

// ShadeView is a shade with labels resolved and its price recomputed.
type ShadeView struct {
	ID                   string
	ShadeTypeID          string
	ShadeTypeName        string
	Width                float64
	Height               float64
	MaterialVariantID    string
	MaterialName         string
	ColorName            string
	Options              []ShadeOptionView
	InstallationIncluded bool
	RemovalIncluded      bool
	CalculatedPrice      int64
}

// ShadeOptionView pairs a selected option with both resolved labels.
type ShadeOptionView struct {
	OptionTypeID    string
	OptionTypeName  string
	OptionValueID   string
	OptionValueName string
}

// AssignedUserView is the slim installer reference on privileged summaries.
type AssignedUserView struct {
	ID       string
	Username string
	FullName string
}

// OrderSummaryView is one row of an order listing. It carries a window count
// but no pricing.
type OrderSummaryView struct {
	ID            string
	TrackingCode  string
	ClientName    string
	ClientPhone   string
	ClientAddress string
	Notes         *string
	VisitDate     time.Time
	Status        OrderStatus
	StatusName    string
	AssignedUser  *AssignedUserView
	WindowCount   int
	CreatedAt     time.Time
}

// TrackedOrderView is the public tracking response: the order detail plus the
// localized company contact block.
type TrackedOrderView struct {
	Order   OrderDetailView
	Company CompanyContact
}
