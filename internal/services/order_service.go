package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/shades-uz/api/internal/domain"
	"github.com/shades-uz/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventDeleted       = "order.deleted"

	orderIDPrefix = "ord_"

	trackingCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	trackingCodeLength   = 8
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates a forbidden status transition or an edit
	// attempted on a completed order.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates duplicate writes such as a tracking code clash.
	ErrOrderConflict = errors.New("order: conflict")
)

// orderStateTransitions allows only forward movement through the lifecycle.
// Completing through the dedicated Complete operation bypasses this table.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusNew:        {domain.OrderStatusInProgress, domain.OrderStatusMeasured, domain.OrderStatusCompleted},
	domain.OrderStatusInProgress: {domain.OrderStatusMeasured, domain.OrderStatusCompleted},
	domain.OrderStatusMeasured:   {domain.OrderStatusCompleted},
	domain.OrderStatusCompleted:  {},
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	TrackingCode   string
	PreviousStatus domain.OrderStatus
	CurrentStatus  domain.OrderStatus
	ActorID        string
	OccurredAt     time.Time
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	Windows       repositories.WindowRepository
	Shades        repositories.ShadeRepository
	Catalog       repositories.CatalogRepository
	Users         repositories.UserRepository
	Pricing       PricingService
	UnitOfWork    repositories.UnitOfWork
	Clock         func() time.Time
	IDGenerator   func() string
	TrackingCodes func() string
	Company       map[domain.LanguageCode]domain.CompanyContact
	Events        OrderEventPublisher
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	windows    repositories.WindowRepository
	shades     repositories.ShadeRepository
	catalog    repositories.CatalogRepository
	users      repositories.UserRepository
	pricing    PricingService
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	newCode    func() string
	company    map[domain.LanguageCode]domain.CompanyContact
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	for _, dep := range []struct {
		present bool
		name    string
	}{
		{deps.Orders != nil, "order repository"},
		{deps.Windows != nil, "window repository"},
		{deps.Shades != nil, "shade repository"},
		{deps.Catalog != nil, "catalog repository"},
		{deps.Pricing != nil, "pricing service"},
	} {
		if !dep.present {
			return nil, errors.New("order service: " + dep.name + " is required")
		}
	}

	svc := &orderService{
		orders:     deps.Orders,
		windows:    deps.Windows,
		shades:     deps.Shades,
		catalog:    deps.Catalog,
		users:      deps.Users,
		pricing:    deps.Pricing,
		unitOfWork: deps.UnitOfWork,
		newID:      deps.IDGenerator,
		newCode:    deps.TrackingCodes,
		company:    deps.Company,
		events:     deps.Events,
		logger:     deps.Logger,
	}
	if svc.unitOfWork == nil {
		svc.unitOfWork = noopUnitOfWork{}
	}
	tick := deps.Clock
	if tick == nil {
		tick = time.Now
	}
	// Every timestamp the service produces is UTC.
	svc.clock = func() time.Time { return tick().UTC() }
	if svc.newID == nil {
		svc.newID = func() string { return ulid.Make().String() }
	}
	if svc.newCode == nil {
		svc.newCode = NewTrackingCode
	}
	if svc.logger == nil {
		svc.logger = func(context.Context, string, map[string]any) {}
	}
	return svc, nil
}

// NewTrackingCode draws an 8-character code uniformly from [A-Z0-9].
// Uniqueness is enforced at the store; callers retry on conflict.
func NewTrackingCode() string {
	buf := make([]byte, trackingCodeLength)
	max := big.NewInt(int64(len(trackingCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// fall back to a ULID-derived character rather than panic.
			buf[i] = trackingCodeAlphabet[int(ulid.Make().Entropy()[i%10])%len(trackingCodeAlphabet)]
			continue
		}
		buf[i] = trackingCodeAlphabet[n.Int64()]
	}
	return string(buf)
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	clientName := strings.TrimSpace(cmd.ClientName)
	clientPhone := strings.TrimSpace(cmd.ClientPhone)
	clientAddress := strings.TrimSpace(cmd.ClientAddress)

	if clientName == "" {
		return Order{}, fmt.Errorf("%w: client name is required", ErrOrderInvalidInput)
	}
	if clientPhone == "" {
		return Order{}, fmt.Errorf("%w: client phone is required", ErrOrderInvalidInput)
	}
	if clientAddress == "" {
		return Order{}, fmt.Errorf("%w: client address is required", ErrOrderInvalidInput)
	}
	if cmd.VisitDate.IsZero() {
		return Order{}, fmt.Errorf("%w: visit date is required", ErrOrderInvalidInput)
	}

	assigned, err := s.normalizeAssignee(ctx, cmd.AssignedUserID)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	order := Order{
		ID:             orderIDPrefix + s.newID(),
		ClientName:     clientName,
		ClientPhone:    clientPhone,
		ClientAddress:  clientAddress,
		Notes:          normalizeNotes(cmd.Notes),
		VisitDate:      dateOnly(cmd.VisitDate),
		Status:         domain.OrderStatusNew,
		AssignedUserID: assigned,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// The store claims the tracking code atomically with the order write;
	// a conflict means another order got there first, so draw a new code.
	for {
		order.TrackingCode = s.newCode()
		err := s.runInTx(ctx, func(txCtx context.Context) error {
			return s.orders.Insert(txCtx, order)
		})
		if err == nil {
			break
		}
		mapped := s.mapRepositoryError(err)
		if errors.Is(mapped, ErrOrderConflict) {
			s.logger(ctx, "order.tracking_code.collision", map[string]any{
				"code": order.TrackingCode,
			})
			continue
		}
		return Order{}, mapped
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		TrackingCode:  order.TrackingCode,
		CurrentStatus: order.Status,
		ActorID:       cmd.ActorID,
		OccurredAt:    now,
	})

	return order, nil
}

func (s *orderService) Update(ctx context.Context, cmd UpdateOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if order.Status == domain.OrderStatusCompleted {
		return Order{}, fmt.Errorf("%w: completed orders cannot be edited", ErrOrderInvalidState)
	}

	if cmd.ClientName != nil {
		name := strings.TrimSpace(*cmd.ClientName)
		if name == "" {
			return Order{}, fmt.Errorf("%w: client name cannot be empty", ErrOrderInvalidInput)
		}
		order.ClientName = name
	}
	if cmd.ClientPhone != nil {
		phone := strings.TrimSpace(*cmd.ClientPhone)
		if phone == "" {
			return Order{}, fmt.Errorf("%w: client phone cannot be empty", ErrOrderInvalidInput)
		}
		order.ClientPhone = phone
	}
	if cmd.ClientAddress != nil {
		address := strings.TrimSpace(*cmd.ClientAddress)
		if address == "" {
			return Order{}, fmt.Errorf("%w: client address cannot be empty", ErrOrderInvalidInput)
		}
		order.ClientAddress = address
	}
	if cmd.Notes != nil {
		order.Notes = normalizeNotes(cmd.Notes)
	}
	if cmd.VisitDate != nil {
		if cmd.VisitDate.IsZero() {
			return Order{}, fmt.Errorf("%w: visit date cannot be empty", ErrOrderInvalidInput)
		}
		order.VisitDate = dateOnly(*cmd.VisitDate)
	}
	if cmd.AssignedUserID != nil {
		assigned, err := s.normalizeAssignee(ctx, cmd.AssignedUserID)
		if err != nil {
			return Order{}, err
		}
		order.AssignedUserID = assigned
	}

	order.UpdatedAt = s.now()

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		return s.orders.Update(txCtx, order)
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	return order, nil
}

func (s *orderService) Delete(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if order.Status == domain.OrderStatusCompleted {
		return fmt.Errorf("%w: completed orders cannot be deleted", ErrOrderInvalidState)
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		return s.orders.Delete(txCtx, order.ID)
	})
	if err != nil {
		return s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventDeleted,
		OrderID:        order.ID,
		TrackingCode:   order.TrackingCode,
		PreviousStatus: order.Status,
		OccurredAt:     s.now(),
	})

	return nil
}

func (s *orderService) Complete(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	// Completing an already-completed order is a no-op.
	if order.Status == domain.OrderStatusCompleted {
		return order, nil
	}

	prev := order.Status
	now := s.now()
	order.Status = domain.OrderStatusCompleted
	order.UpdatedAt = now

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		return s.orders.Update(txCtx, order)
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		TrackingCode:   order.TrackingCode,
		PreviousStatus: prev,
		CurrentStatus:  order.Status,
		OccurredAt:     now,
	})

	return order, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (OrderStatusChange, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return OrderStatusChange{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := cmd.Target
	if _, ok := orderStateTransitions[target]; !ok {
		return OrderStatusChange{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return OrderStatusChange{}, s.mapRepositoryError(err)
	}

	if order.Status != target {
		if !canTransition(order.Status, target) {
			return OrderStatusChange{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, target)
		}

		prev := order.Status
		now := s.now()
		order.Status = target
		order.UpdatedAt = now

		err = s.runInTx(ctx, func(txCtx context.Context) error {
			return s.orders.Update(txCtx, order)
		})
		if err != nil {
			return OrderStatusChange{}, s.mapRepositoryError(err)
		}

		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventStatusChanged,
			OrderID:        order.ID,
			TrackingCode:   order.TrackingCode,
			PreviousStatus: prev,
			CurrentStatus:  order.Status,
			ActorID:        cmd.ActorID,
			OccurredAt:     now,
		})
	}

	return OrderStatusChange{
		OrderID:    order.ID,
		Status:     order.Status,
		StatusName: s.statusName(ctx, order.Status, cmd.Language),
	}, nil
}

func (s *orderService) GetDetail(ctx context.Context, orderID string, lang LanguageCode) (OrderDetailView, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return OrderDetailView{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return OrderDetailView{}, s.mapRepositoryError(err)
	}

	return s.buildDetail(ctx, order, lang)
}

func (s *orderService) Track(ctx context.Context, trackingCode string, lang LanguageCode) (TrackedOrderView, error) {
	code := strings.ToUpper(strings.TrimSpace(trackingCode))
	if len(code) != trackingCodeLength {
		return TrackedOrderView{}, fmt.Errorf("%w: tracking code must be %d characters", ErrOrderInvalidInput, trackingCodeLength)
	}

	order, err := s.orders.FindByTrackingCode(ctx, code)
	if err != nil {
		return TrackedOrderView{}, s.mapRepositoryError(err)
	}

	detail, err := s.buildDetail(ctx, order, lang)
	if err != nil {
		return TrackedOrderView{}, err
	}

	return TrackedOrderView{
		Order:   detail,
		Company: s.companyContact(lang),
	}, nil
}

func (s *orderService) List(ctx context.Context, query OrderListQuery) (domain.CursorPage[OrderSummaryView], error) {
	filter := repositories.OrderListFilter{
		Status:         query.Status,
		Search:         strings.TrimSpace(query.Search),
		AssignedUserID: query.AssignedUserID,
		VisitDate: domain.RangeQuery[time.Time]{
			From: query.VisitFrom,
			To:   query.VisitTo,
		},
		Pagination: query.Pagination,
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[OrderSummaryView]{}, s.mapRepositoryError(err)
	}

	orderIDs := make([]string, 0, len(page.Items))
	for _, order := range page.Items {
		orderIDs = append(orderIDs, order.ID)
	}

	counts := map[string]int{}
	if len(orderIDs) > 0 {
		counts, err = s.windows.CountByOrder(ctx, orderIDs)
		if err != nil {
			return domain.CursorPage[OrderSummaryView]{}, s.mapRepositoryError(err)
		}
	}

	names := s.statusNames(ctx, query.Language)
	assignees := s.resolveAssignees(ctx, page.Items)

	summaries := make([]OrderSummaryView, 0, len(page.Items))
	for _, order := range page.Items {
		summary := OrderSummaryView{
			ID:            order.ID,
			TrackingCode:  order.TrackingCode,
			ClientName:    order.ClientName,
			ClientPhone:   order.ClientPhone,
			ClientAddress: order.ClientAddress,
			Notes:         order.Notes,
			VisitDate:     order.VisitDate,
			Status:        order.Status,
			StatusName:    statusLabel(names, order.Status),
			WindowCount:   counts[order.ID],
			CreatedAt:     order.CreatedAt,
		}
		if order.AssignedUserID != nil {
			summary.AssignedUser = assignees[*order.AssignedUserID]
		}
		summaries = append(summaries, summary)
	}

	return domain.CursorPage[OrderSummaryView]{
		Items:         summaries,
		NextPageToken: page.NextPageToken,
	}, nil
}

func (s *orderService) buildDetail(ctx context.Context, order Order, lang LanguageCode) (OrderDetailView, error) {
	windows, err := s.windows.ListByOrder(ctx, order.ID)
	if err != nil {
		return OrderDetailView{}, s.mapRepositoryError(err)
	}

	shadeTypes := map[string]domain.ShadeType{}
	var totalPrice int64

	views := make([]domain.WindowView, 0, len(windows))
	for _, window := range windows {
		shades, err := s.shades.ListByWindow(ctx, window.ID)
		if err != nil {
			return OrderDetailView{}, s.mapRepositoryError(err)
		}
		if len(shades) == 0 {
			views = append(views, domain.WindowView{ID: window.ID, Name: window.Name})
			continue
		}

		// Only the first shade per window is surfaced in the aggregate.
		shade := shades[0]

		quote, err := s.pricing.Quote(ctx, domain.PriceRequest{
			ShadeTypeID:          shade.ShadeTypeID,
			Width:                shade.Width,
			Height:               shade.Height,
			MaterialVariantID:    shade.MaterialVariantID,
			InstallationIncluded: shade.InstallationIncluded,
			RemovalIncluded:      shade.RemovalIncluded,
		})
		if err != nil {
			return OrderDetailView{}, err
		}
		totalPrice += quote.TotalPrice

		shadeType, ok := shadeTypes[shade.ShadeTypeID]
		if !ok {
			shadeType, err = s.catalog.GetShadeType(ctx, shade.ShadeTypeID)
			if err != nil {
				return OrderDetailView{}, s.mapRepositoryError(err)
			}
			shadeTypes[shade.ShadeTypeID] = shadeType
		}

		material, variant, err := s.catalog.GetMaterialVariant(ctx, shade.MaterialVariantID)
		if err != nil {
			return OrderDetailView{}, s.mapRepositoryError(err)
		}

		views = append(views, domain.WindowView{
			ID:   window.ID,
			Name: window.Name,
			Shade: &domain.ShadeView{
				ID:                   shade.ID,
				ShadeTypeID:          shade.ShadeTypeID,
				ShadeTypeName:        shadeType.Names[lang],
				Width:                shade.Width,
				Height:               shade.Height,
				MaterialVariantID:    shade.MaterialVariantID,
				MaterialName:         material.Names[lang],
				ColorName:            variant.ColorNames[lang],
				Options:              resolveShadeOptions(shadeType, shade.Options, lang),
				InstallationIncluded: shade.InstallationIncluded,
				RemovalIncluded:      shade.RemovalIncluded,
				CalculatedPrice:      quote.TotalPrice,
			},
		})
	}

	return OrderDetailView{
		ID:            order.ID,
		TrackingCode:  order.TrackingCode,
		ClientName:    order.ClientName,
		ClientPhone:   order.ClientPhone,
		ClientAddress: order.ClientAddress,
		Notes:         order.Notes,
		VisitDate:     order.VisitDate,
		Status:        order.Status,
		StatusName:    s.statusName(ctx, order.Status, lang),
		Windows:       views,
		TotalPrice:    totalPrice,
	}, nil
}

// resolveShadeOptions attaches localized labels to every selection and sorts
// them by the option type's display order.
func resolveShadeOptions(shadeType domain.ShadeType, selections []domain.ShadeOptionSelection, lang LanguageCode) []domain.ShadeOptionView {
	optionTypes := make(map[string]domain.OptionType, len(shadeType.OptionTypes))
	for _, optionType := range shadeType.OptionTypes {
		optionTypes[optionType.ID] = optionType
	}

	type sortableOption struct {
		view  domain.ShadeOptionView
		order int
	}

	options := make([]sortableOption, 0, len(selections))
	for _, selection := range selections {
		view := domain.ShadeOptionView{
			OptionTypeID:  selection.OptionTypeID,
			OptionValueID: selection.OptionValueID,
		}
		order := 0
		if optionType, ok := optionTypes[selection.OptionTypeID]; ok {
			view.OptionTypeName = optionType.Names[lang]
			order = optionType.DisplayOrder
			for _, value := range optionType.Values {
				if value.ID == selection.OptionValueID {
					view.OptionValueName = value.Names[lang]
					break
				}
			}
		}
		options = append(options, sortableOption{view: view, order: order})
	}

	sort.SliceStable(options, func(i, j int) bool {
		return options[i].order < options[j].order
	})

	views := make([]domain.ShadeOptionView, 0, len(options))
	for _, option := range options {
		views = append(views, option.view)
	}
	return views
}

func (s *orderService) statusNames(ctx context.Context, lang LanguageCode) map[domain.OrderStatus]string {
	translations, err := s.catalog.ListStatusTranslations(ctx)
	if err != nil {
		s.logger(ctx, "order.status_translations.unavailable", map[string]any{
			"error": err.Error(),
		})
		return nil
	}

	names := make(map[domain.OrderStatus]string, len(translations))
	for _, translation := range translations {
		if name := translation.Names[lang]; name != "" {
			names[translation.Status] = name
		}
	}
	return names
}

func (s *orderService) statusName(ctx context.Context, status domain.OrderStatus, lang LanguageCode) string {
	return statusLabel(s.statusNames(ctx, lang), status)
}

// statusLabel falls back to the raw status code when no translation exists.
func statusLabel(names map[domain.OrderStatus]string, status domain.OrderStatus) string {
	if name, ok := names[status]; ok {
		return name
	}
	return string(status)
}

func (s *orderService) companyContact(lang LanguageCode) domain.CompanyContact {
	if contact, ok := s.company[lang]; ok {
		return contact
	}
	return s.company[domain.LanguageRussian]
}

func (s *orderService) resolveAssignees(ctx context.Context, orders []Order) map[string]*AssignedUserView {
	if s.users == nil {
		return nil
	}

	resolved := map[string]*AssignedUserView{}
	for _, order := range orders {
		if order.AssignedUserID == nil {
			continue
		}
		userID := *order.AssignedUserID
		if _, seen := resolved[userID]; seen {
			continue
		}
		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			// A removed account must not break the listing.
			resolved[userID] = nil
			continue
		}
		resolved[userID] = &AssignedUserView{
			ID:       user.ID,
			Username: user.Username,
			FullName: user.FullName,
		}
	}
	return resolved
}

func (s *orderService) normalizeAssignee(ctx context.Context, assignedUserID *string) (*string, error) {
	if assignedUserID == nil {
		return nil, nil
	}
	userID := strings.TrimSpace(*assignedUserID)
	if userID == "" {
		return nil, nil
	}
	if s.users != nil {
		if _, err := s.users.FindByID(ctx, userID); err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return nil, fmt.Errorf("%w: assigned user %s does not exist", ErrOrderInvalidInput, userID)
			}
			return nil, err
		}
	}
	return &userID, nil
}

// mapRepositoryError translates storage failures into the service's sentinel
// errors so handlers can pick HTTP statuses without knowing the store.
func (s *orderService) mapRepositoryError(err error) error {
	var repoErr repositories.RepositoryError
	switch {
	case err == nil:
		return nil
	case !errors.As(err, &repoErr):
		return err
	case repoErr.IsNotFound():
		return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	case repoErr.IsConflict():
		return fmt.Errorf("%w: %v", ErrOrderConflict, err)
	case repoErr.IsUnavailable():
		return fmt.Errorf("order: repository unavailable: %w", err)
	default:
		return err
	}
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// dateOnly strips the time component; visit dates carry no time of day.
func dateOnly(value time.Time) time.Time {
	value = value.UTC()
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func valuePtr[T any](v T) *T {
	return &v
}

func canTransition(current, target domain.OrderStatus) bool {
	if current == target {
		return true
	}
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	for _, candidate := range next {
		if candidate == target {
			return true
		}
	}
	return false
}
