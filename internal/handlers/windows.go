package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shades-uz/api/internal/platform/auth"
	"github.com/shades-uz/api/internal/platform/httpx"
	"github.com/shades-uz/api/internal/platform/storage"
	"github.com/shades-uz/api/internal/services"
)

const maxWindowBodySize = 8 * 1024

// WindowHandlers manages windows and their measurement photo URLs.
type WindowHandlers struct {
	authn   *auth.Authenticator
	windows services.WindowService
	photos  services.PhotoService
}

// NewWindowHandlers constructs a new WindowHandlers instance.
func NewWindowHandlers(authn *auth.Authenticator, windows services.WindowService, photos services.PhotoService) *WindowHandlers {
	return &WindowHandlers{
		authn:   authn,
		windows: windows,
		photos:  photos,
	}
}

// Routes registers the /windows endpoints.
func (h *WindowHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/", h.createWindow)
	r.Patch("/{windowID}", h.renameWindow)
	r.Delete("/{windowID}", h.deleteWindow)
	r.Post("/{windowID}/photos:upload-url", h.photoUploadURL)
	r.Post("/{windowID}/photos:download-url", h.photoDownloadURL)
}

type createWindowRequest struct {
	OrderID string `json:"orderId"`
	Name    string `json:"name"`
}

type renameWindowRequest struct {
	Name string `json:"name"`
}

type windowPayload struct {
	ID        string `json:"id"`
	OrderID   string `json:"orderId"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type photoURLRequest struct {
	OrderID     string `json:"orderId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType,omitempty"`
}

type photoURLResponse struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	ObjectKey string            `json:"objectKey"`
	ExpiresAt string            `json:"expiresAt"`
	Headers   map[string]string `json:"headers,omitempty"`
}

func (h *WindowHandlers) createWindow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.windows == nil {
		httpx.WriteError(ctx, w, httpx.NewError("window_service_unavailable", "window service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createWindowRequest
	if err := decodeJSONBody(r, maxWindowBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	window, err := h.windows.Create(ctx, services.CreateWindowCommand{
		OrderID: strings.TrimSpace(req.OrderID),
		Name:    sanitizeUserText(req.Name),
	})
	if err != nil {
		writeWindowError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, buildWindowPayload(window))
}

func (h *WindowHandlers) renameWindow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.windows == nil {
		httpx.WriteError(ctx, w, httpx.NewError("window_service_unavailable", "window service unavailable", http.StatusServiceUnavailable))
		return
	}

	windowID := strings.TrimSpace(chi.URLParam(r, "windowID"))
	if windowID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "window id is required", http.StatusBadRequest))
		return
	}

	var req renameWindowRequest
	if err := decodeJSONBody(r, maxWindowBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	window, err := h.windows.Rename(ctx, services.RenameWindowCommand{
		WindowID: windowID,
		Name:     sanitizeUserText(req.Name),
	})
	if err != nil {
		writeWindowError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildWindowPayload(window))
}

func (h *WindowHandlers) deleteWindow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.windows == nil {
		httpx.WriteError(ctx, w, httpx.NewError("window_service_unavailable", "window service unavailable", http.StatusServiceUnavailable))
		return
	}

	windowID := strings.TrimSpace(chi.URLParam(r, "windowID"))
	if windowID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "window id is required", http.StatusBadRequest))
		return
	}

	if err := h.windows.Delete(ctx, windowID); err != nil {
		writeWindowError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *WindowHandlers) photoUploadURL(w http.ResponseWriter, r *http.Request) {
	h.signedPhotoURL(w, r, true)
}

func (h *WindowHandlers) photoDownloadURL(w http.ResponseWriter, r *http.Request) {
	h.signedPhotoURL(w, r, false)
}

func (h *WindowHandlers) signedPhotoURL(w http.ResponseWriter, r *http.Request, upload bool) {
	ctx := r.Context()
	if h.photos == nil {
		httpx.WriteError(ctx, w, httpx.NewError("photo_service_unavailable", "photo service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UserID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	windowID := strings.TrimSpace(chi.URLParam(r, "windowID"))
	if windowID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "window id is required", http.StatusBadRequest))
		return
	}

	var req photoURLRequest
	if err := decodeJSONBody(r, maxWindowBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.MeasurementPhotoCommand{
		OrderID:     strings.TrimSpace(req.OrderID),
		WindowID:    windowID,
		FileName:    strings.TrimSpace(req.FileName),
		ContentType: strings.TrimSpace(req.ContentType),
		ActorID:     identity.UserID,
	}

	var signed services.SignedPhotoURL
	var err error
	if upload {
		signed, err = h.photos.CreateUploadURL(ctx, cmd)
	} else {
		signed, err = h.photos.CreateDownloadURL(ctx, cmd)
	}
	if err != nil {
		writePhotoError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, photoURLResponse{
		URL:       signed.URL,
		Method:    signed.Method,
		ObjectKey: signed.ObjectKey,
		ExpiresAt: formatTime(signed.ExpiresAt),
		Headers:   signed.Headers,
	})
}

func buildWindowPayload(window services.Window) windowPayload {
	return windowPayload{
		ID:        window.ID,
		OrderID:   window.OrderID,
		Name:      window.Name,
		CreatedAt: formatTime(window.CreatedAt),
		UpdatedAt: formatTime(window.UpdatedAt),
	}
}

func writeWindowError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrWindowInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrWindowNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("window_not_found", "window not found", http.StatusNotFound))
	case errors.Is(err, services.ErrWindowOrderCompleted):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", "order is completed and can no longer be edited", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("window_error", "failed to process window request", http.StatusInternalServerError))
	}
}

func writePhotoError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrPhotoInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPhotoWindowNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("window_not_found", "window not found", http.StatusNotFound))
	case errors.Is(err, storage.ErrPermissionDenied):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not allowed to access this photo", http.StatusForbidden))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("photo_error", "failed to sign photo URL", http.StatusInternalServerError))
	}
}
