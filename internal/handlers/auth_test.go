package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/shades-uz/api/internal/domain"
	"github.com/shades-uz/api/internal/platform/auth"
	"github.com/shades-uz/api/internal/services"
)

type stubAuthService struct {
	login       func(ctx context.Context, cmd services.LoginCommand) (services.AuthSession, error)
	currentUser func(ctx context.Context, userID string) (services.User, error)
}

func (s *stubAuthService) Login(ctx context.Context, cmd services.LoginCommand) (services.AuthSession, error) {
	if s.login == nil {
		return services.AuthSession{}, nil
	}
	return s.login(ctx, cmd)
}

func (s *stubAuthService) CurrentUser(ctx context.Context, userID string) (services.User, error) {
	if s.currentUser == nil {
		return services.User{}, nil
	}
	return s.currentUser(ctx, userID)
}

var _ services.AuthService = (*stubAuthService)(nil)

func newAuthTestRouter(h *AuthHandlers, identity *auth.Identity) http.Handler {
	r := chi.NewRouter()
	if identity != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(auth.WithIdentity(req.Context(), identity)))
			})
		})
	}
	r.Route("/auth", h.Routes)
	return r
}

func TestAuthHandlersLoginSuccess(t *testing.T) {
	var captured services.LoginCommand
	svc := &stubAuthService{
		login: func(_ context.Context, cmd services.LoginCommand) (services.AuthSession, error) {
			captured = cmd
			return services.AuthSession{
				Token:     "tok_abc",
				ExpiresAt: time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC),
				User: domain.User{
					ID:                "usr_1",
					Username:          "bek",
					FullName:          "Bek Karimov",
					Role:              domain.UserRoleInstaller,
					PreferredLanguage: domain.LanguageUzbekLatin,
				},
			}, nil
		},
	}
	router := newAuthTestRouter(NewAuthHandlers(nil, svc), nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"  bek ","password":"secret"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Username != "bek" {
		t.Fatalf("expected trimmed username, got %q", captured.Username)
	}
	if captured.Password != "secret" {
		t.Fatalf("expected password passed through, got %q", captured.Password)
	}

	var payload loginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.Token != "tok_abc" {
		t.Fatalf("unexpected token %q", payload.Token)
	}
	if payload.User.Role != "installer" {
		t.Fatalf("unexpected role %q", payload.User.Role)
	}
	if payload.User.PreferredLanguage != "uz_latn" {
		t.Fatalf("unexpected preferred language %q", payload.User.PreferredLanguage)
	}
}

func TestAuthHandlersLoginInvalidCredentials(t *testing.T) {
	svc := &stubAuthService{
		login: func(context.Context, services.LoginCommand) (services.AuthSession, error) {
			return services.AuthSession{}, services.ErrAuthInvalidCredentials
		},
	}
	router := newAuthTestRouter(NewAuthHandlers(nil, svc), nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"bek","password":"wrong"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "invalid_credentials") {
		t.Fatalf("expected invalid_credentials code, got %s", rr.Body.String())
	}
}

func TestAuthHandlersLoginRejectsMalformedBody(t *testing.T) {
	router := newAuthTestRouter(NewAuthHandlers(nil, &stubAuthService{}), nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAuthHandlersCurrentUser(t *testing.T) {
	svc := &stubAuthService{
		currentUser: func(_ context.Context, userID string) (services.User, error) {
			if userID != "usr_1" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return domain.User{ID: "usr_1", Username: "bek", Role: domain.UserRoleInstaller}, nil
		},
	}
	identity := &auth.Identity{UserID: "usr_1", Username: "bek", Role: auth.RoleInstaller}
	router := newAuthTestRouter(NewAuthHandlers(nil, svc), identity)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload userPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.ID != "usr_1" || payload.Username != "bek" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestAuthHandlersCurrentUserRequiresIdentity(t *testing.T) {
	router := newAuthTestRouter(NewAuthHandlers(nil, &stubAuthService{}), nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestAuthHandlersCurrentUserGone(t *testing.T) {
	svc := &stubAuthService{
		currentUser: func(context.Context, string) (services.User, error) {
			return services.User{}, services.ErrAuthUserNotFound
		},
	}
	identity := &auth.Identity{UserID: "usr_gone", Role: auth.RoleInstaller}
	router := newAuthTestRouter(NewAuthHandlers(nil, svc), identity)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}
