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

const maxLoginBodySize = 4 * 1024

// AuthHandlers exposes login and the current-session lookup.
type AuthHandlers struct {
	authn *auth.Authenticator
	auth  services.AuthService
}

// NewAuthHandlers constructs a new AuthHandlers instance.
func NewAuthHandlers(authn *auth.Authenticator, svc services.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authn: authn,
		auth:  svc,
	}
}

// Routes registers the /auth endpoints.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/login", h.login)
	r.Group(func(g chi.Router) {
		if h.authn != nil {
			g.Use(h.authn.RequireAuth())
		}
		g.Get("/me", h.currentUser)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expiresAt"`
	User      userPayload `json:"user"`
}

type userPayload struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	FullName          string `json:"fullName"`
	Role              string `json:"role"`
	PreferredLanguage string `json:"preferredLanguage"`
	CreatedAt         string `json:"createdAt,omitempty"`
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.auth == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_service_unavailable", "auth service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req loginRequest
	if err := decodeJSONBody(r, maxLoginBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	session, err := h.auth.Login(ctx, services.LoginCommand{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
	})
	if err != nil {
		writeAuthError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresAt: formatTime(session.ExpiresAt),
		User:      buildUserPayload(session.User),
	})
}

func (h *AuthHandlers) currentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.auth == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_service_unavailable", "auth service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UserID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	user, err := h.auth.CurrentUser(ctx, identity.UserID)
	if err != nil {
		writeAuthError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildUserPayload(user))
}

func buildUserPayload(user services.User) userPayload {
	return userPayload{
		ID:                strings.TrimSpace(user.ID),
		Username:          strings.TrimSpace(user.Username),
		FullName:          strings.TrimSpace(user.FullName),
		Role:              string(user.Role),
		PreferredLanguage: string(user.PreferredLanguage),
		CreatedAt:         formatTime(user.CreatedAt),
	}
}

func writeAuthError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrAuthInvalidCredentials):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "invalid username or password", http.StatusUnauthorized))
	case errors.Is(err, services.ErrAuthUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "account no longer exists", http.StatusUnauthorized))
	case errors.Is(err, services.ErrAuthInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("auth_error", "failed to process auth request", http.StatusInternalServerError))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
}
