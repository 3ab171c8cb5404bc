package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shades-uz/api/internal/platform/auth"
	"github.com/shades-uz/api/internal/platform/httpx"
	"github.com/shades-uz/api/internal/services"
)

const maxShadeBodySize = 16 * 1024

// ShadeHandlers manages shade configuration endpoints.
type ShadeHandlers struct {
	authn  *auth.Authenticator
	shades services.ShadeService
}

// NewShadeHandlers constructs a new ShadeHandlers instance.
func NewShadeHandlers(authn *auth.Authenticator, shades services.ShadeService) *ShadeHandlers {
	return &ShadeHandlers{
		authn:  authn,
		shades: shades,
	}
}

// Routes registers the /shades endpoints.
func (h *ShadeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/", h.createShade)
	r.Patch("/{shadeID}", h.updateShade)
	r.Delete("/{shadeID}", h.deleteShade)
}

type shadeOptionInput struct {
	OptionTypeID  string `json:"optionTypeId"`
	OptionValueID string `json:"optionValueId"`
}

type createShadeRequest struct {
	WindowID             string             `json:"windowId"`
	ShadeTypeID          string             `json:"shadeTypeId"`
	Width                float64            `json:"width"`
	Height               float64            `json:"height"`
	MaterialVariantID    string             `json:"materialVariantId"`
	InstallationIncluded bool               `json:"installationIncluded"`
	RemovalIncluded      bool               `json:"removalIncluded"`
	Options              []shadeOptionInput `json:"options"`
}

// updateShadeRequest patches a shade. A present options array replaces the
// whole selection set; an absent one leaves it untouched.
type updateShadeRequest struct {
	ShadeTypeID          *string             `json:"shadeTypeId"`
	Width                *float64            `json:"width"`
	Height               *float64            `json:"height"`
	MaterialVariantID    *string             `json:"materialVariantId"`
	InstallationIncluded *bool               `json:"installationIncluded"`
	RemovalIncluded      *bool               `json:"removalIncluded"`
	Options              *[]shadeOptionInput `json:"options"`
}

type shadeOptionPayload struct {
	OptionTypeID  string `json:"optionTypeId"`
	OptionValueID string `json:"optionValueId"`
}

type shadePayload struct {
	ID                   string               `json:"id"`
	WindowID             string               `json:"windowId"`
	ShadeTypeID          string               `json:"shadeTypeId"`
	Width                float64              `json:"width"`
	Height               float64              `json:"height"`
	MaterialVariantID    string               `json:"materialVariantId"`
	InstallationIncluded bool                 `json:"installationIncluded"`
	RemovalIncluded      bool                 `json:"removalIncluded"`
	Options              []shadeOptionPayload `json:"options"`
	CalculatedPrice      int64                `json:"calculatedPrice"`
	CreatedAt            string               `json:"createdAt"`
	UpdatedAt            string               `json:"updatedAt,omitempty"`
}

func (h *ShadeHandlers) createShade(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shades == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shade_service_unavailable", "shade service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createShadeRequest
	if err := decodeJSONBody(r, maxShadeBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	result, err := h.shades.Create(ctx, services.CreateShadeCommand{
		WindowID:             strings.TrimSpace(req.WindowID),
		ShadeTypeID:          strings.TrimSpace(req.ShadeTypeID),
		Width:                req.Width,
		Height:               req.Height,
		MaterialVariantID:    strings.TrimSpace(req.MaterialVariantID),
		InstallationIncluded: req.InstallationIncluded,
		RemovalIncluded:      req.RemovalIncluded,
		Options:              toOptionInputs(req.Options),
	})
	if err != nil {
		writeShadeError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, buildShadePayload(result))
}

func (h *ShadeHandlers) updateShade(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shades == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shade_service_unavailable", "shade service unavailable", http.StatusServiceUnavailable))
		return
	}

	shadeID := strings.TrimSpace(chi.URLParam(r, "shadeID"))
	if shadeID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "shade id is required", http.StatusBadRequest))
		return
	}

	var req updateShadeRequest
	if err := decodeJSONBody(r, maxShadeBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.UpdateShadeCommand{
		ShadeID:              shadeID,
		ShadeTypeID:          req.ShadeTypeID,
		Width:                req.Width,
		Height:               req.Height,
		MaterialVariantID:    req.MaterialVariantID,
		InstallationIncluded: req.InstallationIncluded,
		RemovalIncluded:      req.RemovalIncluded,
	}
	if req.Options != nil {
		cmd.Options = toOptionInputs(*req.Options)
		cmd.ReplaceOptions = true
	}

	result, err := h.shades.Update(ctx, cmd)
	if err != nil {
		writeShadeError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildShadePayload(result))
}

func (h *ShadeHandlers) deleteShade(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shades == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shade_service_unavailable", "shade service unavailable", http.StatusServiceUnavailable))
		return
	}

	shadeID := strings.TrimSpace(chi.URLParam(r, "shadeID"))
	if shadeID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "shade id is required", http.StatusBadRequest))
		return
	}

	if err := h.shades.Delete(ctx, shadeID); err != nil {
		writeShadeError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toOptionInputs(options []shadeOptionInput) []services.ShadeOptionInput {
	result := make([]services.ShadeOptionInput, 0, len(options))
	for _, option := range options {
		result = append(result, services.ShadeOptionInput{
			OptionTypeID:  strings.TrimSpace(option.OptionTypeID),
			OptionValueID: strings.TrimSpace(option.OptionValueID),
		})
	}
	return result
}

func buildShadePayload(result services.ShadeWithPrice) shadePayload {
	shade := result.Shade
	options := make([]shadeOptionPayload, 0, len(shade.Options))
	for _, option := range shade.Options {
		options = append(options, shadeOptionPayload{
			OptionTypeID:  option.OptionTypeID,
			OptionValueID: option.OptionValueID,
		})
	}
	return shadePayload{
		ID:                   shade.ID,
		WindowID:             shade.WindowID,
		ShadeTypeID:          shade.ShadeTypeID,
		Width:                shade.Width,
		Height:               shade.Height,
		MaterialVariantID:    shade.MaterialVariantID,
		InstallationIncluded: shade.InstallationIncluded,
		RemovalIncluded:      shade.RemovalIncluded,
		Options:              options,
		CalculatedPrice:      result.CalculatedPrice,
		CreatedAt:            formatTime(shade.CreatedAt),
		UpdatedAt:            formatTime(shade.UpdatedAt),
	}
}

func writeShadeError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrShadeInvalidOptions):
		httpx.WriteError(ctx, w, httpx.NewError("shade_invalid_options", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrShadeInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrShadeNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("shade_not_found", "shade not found", http.StatusNotFound))
	case errors.Is(err, services.ErrShadeOrderCompleted):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", "order is completed and can no longer be edited", http.StatusBadRequest))
	case errors.Is(err, services.ErrPricingNotConfigured):
		httpx.WriteError(ctx, w, httpx.NewError("pricing_not_configured", "service prices are not configured", http.StatusInternalServerError))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("shade_error", "failed to process shade request", http.StatusInternalServerError))
	}
}
