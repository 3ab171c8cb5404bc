package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/shades-uz/api/internal/domain"
	"github.com/shades-uz/api/internal/services"
)

type stubUserService struct {
	listInstallers func(ctx context.Context) ([]services.AssignedUserView, error)
}

func (s *stubUserService) ListInstallers(ctx context.Context) ([]services.AssignedUserView, error) {
	if s.listInstallers == nil {
		return nil, nil
	}
	return s.listInstallers(ctx)
}

var _ services.UserService = (*stubUserService)(nil)

func newUserTestRouter(h *UserHandlers) http.Handler {
	r := chi.NewRouter()
	r.Route("/users", h.Routes)
	return r
}

func TestUserHandlersListInstallers(t *testing.T) {
	svc := &stubUserService{
		listInstallers: func(context.Context) ([]services.AssignedUserView, error) {
			return []domain.AssignedUserView{
				{ID: "usr_1", Username: "bek", FullName: "Bek Karimov"},
				{ID: "usr_2", Username: "aziz", FullName: "Aziz Tursunov"},
			}, nil
		},
	}
	router := newUserTestRouter(NewUserHandlers(nil, svc))

	req := httptest.NewRequest(http.MethodGet, "/users/installers", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload installerListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(payload.Items) != 2 {
		t.Fatalf("expected 2 installers, got %d", len(payload.Items))
	}
	if payload.Items[0].Username != "bek" || payload.Items[1].FullName != "Aziz Tursunov" {
		t.Fatalf("unexpected items %+v", payload.Items)
	}
}

func TestUserHandlersListInstallersEmpty(t *testing.T) {
	router := newUserTestRouter(NewUserHandlers(nil, &stubUserService{}))

	req := httptest.NewRequest(http.MethodGet, "/users/installers", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var payload installerListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.Items == nil {
		t.Fatalf("expected items to serialize as an empty array")
	}
}

func TestUserHandlersListInstallersFailure(t *testing.T) {
	svc := &stubUserService{
		listInstallers: func(context.Context) ([]services.AssignedUserView, error) {
			return nil, errors.New("firestore unavailable")
		},
	}
	router := newUserTestRouter(NewUserHandlers(nil, svc))

	req := httptest.NewRequest(http.MethodGet, "/users/installers", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}
