package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/shades-uz/api/internal/domain"
	"github.com/shades-uz/api/internal/platform/auth"
	"github.com/shades-uz/api/internal/platform/httpx"
	"github.com/shades-uz/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 32 * 1024
)

var validOrderStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusNew:        {},
	domain.OrderStatusInProgress: {},
	domain.OrderStatusMeasured:   {},
	domain.OrderStatusCompleted:  {},
}

// OrderHandlers exposes the order lifecycle endpoints plus the anonymous
// tracking lookup.
type OrderHandlers struct {
	authn        *auth.Authenticator
	orders       services.OrderService
	trackLimiter rateLimiter
}

// NewOrderHandlers constructs a new OrderHandlers instance. trackingPerMinute
// caps anonymous tracking lookups per client IP; zero disables the limit.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, trackingPerMinute int) *OrderHandlers {
	return &OrderHandlers{
		authn:        authn,
		orders:       orders,
		trackLimiter: newFixedWindowLimiter(trackingPerMinute, time.Minute, nil),
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/track/{trackingCode}", h.trackOrder)
	r.Group(func(g chi.Router) {
		if h.authn != nil {
			g.Use(h.authn.RequireAuth())
		}
		g.Post("/", h.createOrder)
		g.Get("/", h.listOrders)
		g.Get("/{orderID}", h.getOrder)
		g.Patch("/{orderID}", h.updateOrder)
		g.Delete("/{orderID}", h.deleteOrder)
		g.Patch("/{orderID}/complete", h.completeOrder)
		g.Patch("/{orderID}/status", h.transitionStatus)
	})
}

type createOrderRequest struct {
	ClientName     string  `json:"clientName"`
	ClientPhone    string  `json:"clientPhone"`
	ClientAddress  string  `json:"clientAddress"`
	Notes          *string `json:"notes"`
	VisitDate      string  `json:"visitDate"`
	AssignedUserID *string `json:"assignedUserId"`
}

type updateOrderRequest struct {
	ClientName     *string `json:"clientName"`
	ClientPhone    *string `json:"clientPhone"`
	ClientAddress  *string `json:"clientAddress"`
	Notes          *string `json:"notes"`
	VisitDate      *string `json:"visitDate"`
	AssignedUserID *string `json:"assignedUserId"`
}

type transitionStatusRequest struct {
	Status string `json:"status"`
}

type orderPayload struct {
	ID             string  `json:"id"`
	TrackingCode   string  `json:"trackingCode"`
	ClientName     string  `json:"clientName"`
	ClientPhone    string  `json:"clientPhone"`
	ClientAddress  string  `json:"clientAddress"`
	Notes          *string `json:"notes,omitempty"`
	VisitDate      string  `json:"visitDate"`
	Status         string  `json:"status"`
	AssignedUserID *string `json:"assignedUserId,omitempty"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt,omitempty"`
}

type orderStatusChangePayload struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	StatusName string `json:"statusName"`
}

type assignedUserPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

type orderSummaryPayload struct {
	ID            string               `json:"id"`
	TrackingCode  string               `json:"trackingCode"`
	ClientName    string               `json:"clientName"`
	ClientPhone   string               `json:"clientPhone"`
	ClientAddress string               `json:"clientAddress"`
	Notes         *string              `json:"notes,omitempty"`
	VisitDate     string               `json:"visitDate"`
	Status        string               `json:"status"`
	StatusName    string               `json:"statusName"`
	AssignedUser  *assignedUserPayload `json:"assignedUser"`
	WindowCount   int                  `json:"windowCount"`
	CreatedAt     string               `json:"createdAt"`
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"nextPageToken,omitempty"`
}

type shadeOptionViewPayload struct {
	OptionTypeID    string `json:"optionTypeId"`
	OptionTypeName  string `json:"optionTypeName"`
	OptionValueID   string `json:"optionValueId"`
	OptionValueName string `json:"optionValueName"`
}

type shadeViewPayload struct {
	ID                   string                   `json:"id"`
	ShadeTypeID          string                   `json:"shadeTypeId"`
	ShadeTypeName        string                   `json:"shadeTypeName"`
	Width                float64                  `json:"width"`
	Height               float64                  `json:"height"`
	MaterialVariantID    string                   `json:"materialVariantId"`
	MaterialName         string                   `json:"materialName"`
	ColorName            string                   `json:"colorName"`
	Options              []shadeOptionViewPayload `json:"options"`
	InstallationIncluded bool                     `json:"installationIncluded"`
	RemovalIncluded      bool                     `json:"removalIncluded"`
	CalculatedPrice      int64                    `json:"calculatedPrice"`
}

type windowViewPayload struct {
	ID    string            `json:"id"`
	Name  string            `json:"name"`
	Shade *shadeViewPayload `json:"shade"`
}

type orderDetailPayload struct {
	ID            string              `json:"id"`
	TrackingCode  string              `json:"trackingCode"`
	ClientName    string              `json:"clientName"`
	ClientPhone   string              `json:"clientPhone"`
	ClientAddress string              `json:"clientAddress"`
	Notes         *string             `json:"notes,omitempty"`
	VisitDate     string              `json:"visitDate"`
	Status        string              `json:"status"`
	StatusName    string              `json:"statusName"`
	Windows       []windowViewPayload `json:"windows"`
	TotalPrice    int64               `json:"totalPrice"`
}

type companyContactPayload struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	WorkingHours string `json:"workingHours"`
}

type trackedOrderResponse struct {
	Order   orderDetailPayload    `json:"order"`
	Company companyContactPayload `json:"company"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireService(ctx, w)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	visitDate, err := parseVisitDate(req.VisitDate)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "visitDate "+err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.Create(ctx, services.CreateOrderCommand{
		ClientName:     sanitizeUserText(req.ClientName),
		ClientPhone:    sanitizeUserText(req.ClientPhone),
		ClientAddress:  sanitizeUserText(req.ClientAddress),
		Notes:          sanitizeUserTextPointer(req.Notes),
		VisitDate:      visitDate,
		AssignedUserID: req.AssignedUserID,
		ActorID:        identity.UserID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireService(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()

	statuses, err := parseStatusFilters(query["status"])
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var visitFrom, visitTo *time.Time
	if raw := strings.TrimSpace(query.Get("visitFrom")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "visitFrom must be a valid date", http.StatusBadRequest))
			return
		}
		visitFrom = &ts
	}
	if raw := strings.TrimSpace(query.Get("visitTo")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "visitTo must be a valid date", http.StatusBadRequest))
			return
		}
		visitTo = &ts
	}

	pageSize := defaultOrderPageSize
	if sizeRaw := strings.TrimSpace(query.Get("pageSize")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "pageSize must be an integer", http.StatusBadRequest))
			return
		}
		if size > 0 {
			pageSize = min(size, maxOrderPageSize)
		}
	}

	listQuery := services.OrderListQuery{
		Status:    statuses,
		Search:    strings.TrimSpace(query.Get("search")),
		VisitFrom: visitFrom,
		VisitTo:   visitTo,
		Language:  requestLanguage(r),
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("pageToken")),
		},
	}

	// Installers only ever see their own assignments. Admins may filter by
	// any installer.
	if identity.HasRole(auth.RoleInstaller) {
		assigned := identity.UserID
		listQuery.AssignedUserID = &assigned
	} else if raw := strings.TrimSpace(query.Get("assignedUserId")); raw != "" {
		listQuery.AssignedUserID = &raw
	}

	page, err := h.orders.List(ctx, listQuery)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, summary := range page.Items {
		items = append(items, buildOrderSummaryPayload(summary))
	}

	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireService(ctx, w); !ok {
		return
	}

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	detail, err := h.orders.GetDetail(ctx, orderID, requestLanguage(r))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderDetailPayload(detail))
}

func (h *OrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireService(ctx, w)
	if !ok {
		return
	}

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req updateOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.UpdateOrderCommand{
		OrderID:        orderID,
		ClientName:     sanitizeUserTextPointer(req.ClientName),
		ClientPhone:    sanitizeUserTextPointer(req.ClientPhone),
		ClientAddress:  sanitizeUserTextPointer(req.ClientAddress),
		Notes:          sanitizeUserTextPointer(req.Notes),
		AssignedUserID: req.AssignedUserID,
		ActorID:        identity.UserID,
	}
	if req.VisitDate != nil {
		visitDate, err := parseVisitDate(*req.VisitDate)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "visitDate "+err.Error(), http.StatusBadRequest))
			return
		}
		cmd.VisitDate = &visitDate
	}

	order, err := h.orders.Update(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireService(ctx, w)
	if !ok {
		return
	}
	if !identity.HasRole(auth.RoleAdmin) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "only admins may delete orders", http.StatusForbidden))
		return
	}

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	if err := h.orders.Delete(ctx, orderID); err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandlers) completeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireService(ctx, w); !ok {
		return
	}

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Complete(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) transitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireService(ctx, w)
	if !ok {
		return
	}

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req transitionStatusRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	target, ok := parseOrderStatus(req.Status)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be one of new, in_progress, measured, completed", http.StatusBadRequest))
		return
	}

	change, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID:  orderID,
		Target:   target,
		Language: requestLanguage(r),
		ActorID:  identity.UserID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderStatusChangePayload{
		ID:         change.OrderID,
		Status:     string(change.Status),
		StatusName: change.StatusName,
	})
}

func (h *OrderHandlers) trackOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.trackLimiter != nil && !h.trackLimiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many tracking requests, try again later", http.StatusTooManyRequests))
		return
	}

	code := strings.TrimSpace(chi.URLParam(r, "trackingCode"))
	if code == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "tracking code is required", http.StatusBadRequest))
		return
	}

	tracked, err := h.orders.Track(ctx, code, requestLanguage(r))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, trackedOrderResponse{
		Order: buildOrderDetailPayload(tracked.Order),
		Company: companyContactPayload{
			Name:         tracked.Company.Name,
			Phone:        tracked.Company.Phone,
			WorkingHours: tracked.Company.WorkingHours,
		},
	})
}

// requireService checks the service wiring and the authenticated identity in
// one step. Writes the error response itself when either is missing.
func (h *OrderHandlers) requireService(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UserID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func buildOrderPayload(order services.Order) orderPayload {
	return orderPayload{
		ID:             strings.TrimSpace(order.ID),
		TrackingCode:   strings.TrimSpace(order.TrackingCode),
		ClientName:     order.ClientName,
		ClientPhone:    order.ClientPhone,
		ClientAddress:  order.ClientAddress,
		Notes:          cloneStringPointer(order.Notes),
		VisitDate:      formatVisitDate(order.VisitDate),
		Status:         string(order.Status),
		AssignedUserID: cloneStringPointer(order.AssignedUserID),
		CreatedAt:      formatTime(order.CreatedAt),
		UpdatedAt:      formatTime(order.UpdatedAt),
	}
}

func buildOrderSummaryPayload(summary services.OrderSummaryView) orderSummaryPayload {
	payload := orderSummaryPayload{
		ID:            summary.ID,
		TrackingCode:  summary.TrackingCode,
		ClientName:    summary.ClientName,
		ClientPhone:   summary.ClientPhone,
		ClientAddress: summary.ClientAddress,
		Notes:         cloneStringPointer(summary.Notes),
		VisitDate:     formatVisitDate(summary.VisitDate),
		Status:        string(summary.Status),
		StatusName:    summary.StatusName,
		WindowCount:   summary.WindowCount,
		CreatedAt:     formatTime(summary.CreatedAt),
	}
	if summary.AssignedUser != nil {
		payload.AssignedUser = &assignedUserPayload{
			ID:       summary.AssignedUser.ID,
			Username: summary.AssignedUser.Username,
			FullName: summary.AssignedUser.FullName,
		}
	}
	return payload
}

func buildOrderDetailPayload(detail services.OrderDetailView) orderDetailPayload {
	windows := make([]windowViewPayload, 0, len(detail.Windows))
	for _, window := range detail.Windows {
		entry := windowViewPayload{
			ID:   window.ID,
			Name: window.Name,
		}
		if window.Shade != nil {
			shade := buildShadeViewPayload(*window.Shade)
			entry.Shade = &shade
		}
		windows = append(windows, entry)
	}
	return orderDetailPayload{
		ID:            detail.ID,
		TrackingCode:  detail.TrackingCode,
		ClientName:    detail.ClientName,
		ClientPhone:   detail.ClientPhone,
		ClientAddress: detail.ClientAddress,
		Notes:         cloneStringPointer(detail.Notes),
		VisitDate:     formatVisitDate(detail.VisitDate),
		Status:        string(detail.Status),
		StatusName:    detail.StatusName,
		Windows:       windows,
		TotalPrice:    detail.TotalPrice,
	}
}

func buildShadeViewPayload(view domain.ShadeView) shadeViewPayload {
	options := make([]shadeOptionViewPayload, 0, len(view.Options))
	for _, option := range view.Options {
		options = append(options, shadeOptionViewPayload{
			OptionTypeID:    option.OptionTypeID,
			OptionTypeName:  option.OptionTypeName,
			OptionValueID:   option.OptionValueID,
			OptionValueName: option.OptionValueName,
		})
	}
	return shadeViewPayload{
		ID:                   view.ID,
		ShadeTypeID:          view.ShadeTypeID,
		ShadeTypeName:        view.ShadeTypeName,
		Width:                view.Width,
		Height:               view.Height,
		MaterialVariantID:    view.MaterialVariantID,
		MaterialName:         view.MaterialName,
		ColorName:            view.ColorName,
		Options:              options,
		InstallationIncluded: view.InstallationIncluded,
		RemovalIncluded:      view.RemovalIncluded,
		CalculatedPrice:      view.CalculatedPrice,
	}
}

func parseStatusFilters(values []string) ([]domain.OrderStatus, error) {
	raw := parseFilterValues(values)
	if len(raw) == 0 {
		return nil, nil
	}
	statuses := make([]domain.OrderStatus, 0, len(raw))
	for _, value := range raw {
		status, ok := parseOrderStatus(value)
		if !ok {
			return nil, errors.New("status filter must be one of new, in_progress, measured, completed")
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parseOrderStatus(raw string) (domain.OrderStatus, bool) {
	status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := validOrderStatuses[status]; !ok {
		return "", false
	}
	return status, true
}

func clientKey(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if idx := strings.LastIndex(addr, ":"); idx > 0 && !strings.HasSuffix(addr, "]") {
		addr = addr[:idx]
	}
	return addr
}

// orderIDParam pulls the orderID route parameter, writing a 400 when absent.
func orderIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if id == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return id, true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	mappings := []struct {
		sentinel error
		code     string
		message  string
		status   int
	}{
		{services.ErrOrderInvalidInput, "invalid_request", err.Error(), http.StatusBadRequest},
		{services.ErrOrderNotFound, "order_not_found", "order not found", http.StatusNotFound},
		{services.ErrOrderInvalidState, "order_invalid_state", err.Error(), http.StatusBadRequest},
		{services.ErrOrderConflict, "order_conflict", err.Error(), http.StatusConflict},
	}
	for _, m := range mappings {
		if errors.Is(err, m.sentinel) {
			httpx.WriteError(ctx, w, httpx.NewError(m.code, m.message, m.status))
			return
		}
	}
	httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
}
