package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shades-uz/api/internal/platform/auth"
	"github.com/shades-uz/api/internal/platform/httpx"
	"github.com/shades-uz/api/internal/services"
)

// UserHandlers exposes account listings for assignment pickers.
type UserHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewUserHandlers constructs a new UserHandlers instance.
func NewUserHandlers(authn *auth.Authenticator, users services.UserService) *UserHandlers {
	return &UserHandlers{
		authn: authn,
		users: users,
	}
}

// Routes registers the /users endpoints.
func (h *UserHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleAdmin))
	}
	r.Get("/installers", h.listInstallers)
}

type installerListResponse struct {
	Items []assignedUserPayload `json:"items"`
}

func (h *UserHandlers) listInstallers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return
	}

	installers, err := h.users.ListInstallers(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "failed to list installers", http.StatusInternalServerError))
		return
	}

	items := make([]assignedUserPayload, 0, len(installers))
	for _, installer := range installers {
		items = append(items, assignedUserPayload{
			ID:       installer.ID,
			Username: installer.Username,
			FullName: installer.FullName,
		})
	}

	writeJSONResponse(w, http.StatusOK, installerListResponse{Items: items})
}
