package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/shades-uz/api/internal/domain"
	"github.com/shades-uz/api/internal/repositories"
)

var testClock = func() time.Time {
	return time.Date(2024, time.May, 10, 9, 30, 0, 0, time.UTC)
}

func defaultOrderDeps() OrderServiceDeps {
	return OrderServiceDeps{
		Orders:      &stubOrderRepo{},
		Windows:     &stubWindowRepo{},
		Shades:      &stubShadeRepo{},
		Catalog:     &stubCatalogRepo{},
		Users:       &stubUserRepo{},
		Pricing:     &stubPriceQuoter{},
		Clock:       testClock,
		IDGenerator: func() string { return "01HTEST" },
		Company: map[domain.LanguageCode]domain.CompanyContact{
			domain.LanguageRussian:    {Name: "Жалюзи Сервис", Phone: "+998 90 123 45 67", WorkingHours: "9:00-18:00"},
			domain.LanguageUzbekLatin: {Name: "Jalyuzi Servis", Phone: "+998 90 123 45 67", WorkingHours: "9:00-18:00"},
		},
	}
}

func TestNewOrderServiceRequiresRepositories(t *testing.T) {
	deps := defaultOrderDeps()
	deps.Orders = nil
	if _, err := NewOrderService(deps); err == nil {
		t.Fatalf("expected error when order repository missing")
	}

	deps = defaultOrderDeps()
	deps.Pricing = nil
	if _, err := NewOrderService(deps); err == nil {
		t.Fatalf("expected error when pricing service missing")
	}
}

func TestOrderServiceCreateRetriesTrackingCodeOnConflict(t *testing.T) {
	codes := []string{"AAAA1111", "BBBB2222"}
	var inserted []domain.Order
	orders := &stubOrderRepo{
		insert: func(_ context.Context, order domain.Order) error {
			inserted = append(inserted, order)
			if len(inserted) == 1 {
				return repoError{conflict: true}
			}
			return nil
		},
	}
	events := &stubEventPublisher{}

	deps := defaultOrderDeps()
	deps.Orders = orders
	deps.Events = events
	deps.TrackingCodes = func() string {
		code := codes[0]
		codes = codes[1:]
		return code
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order, err := svc.Create(context.Background(), CreateOrderCommand{
		ClientName:    "Anna Petrova",
		ClientPhone:   "+998 90 111 22 33",
		ClientAddress: "Tashkent, Chilanzar 5",
		Notes:         valuePtr("  call first  "),
		VisitDate:     time.Date(2024, time.May, 12, 14, 45, 0, 0, time.UTC),
		ActorID:       "usr_admin",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(inserted) != 2 {
		t.Fatalf("expected insert retry after code conflict, got %d inserts", len(inserted))
	}
	if order.TrackingCode != "BBBB2222" {
		t.Fatalf("expected fresh code after conflict, got %q", order.TrackingCode)
	}
	if order.ID != "ord_01HTEST" {
		t.Fatalf("unexpected order id %q", order.ID)
	}
	if order.Status != domain.OrderStatusNew {
		t.Fatalf("expected status new, got %s", order.Status)
	}
	if !order.VisitDate.Equal(time.Date(2024, time.May, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected visit date truncated to midnight, got %v", order.VisitDate)
	}
	if order.Notes == nil || *order.Notes != "call first" {
		t.Fatalf("expected trimmed notes, got %v", order.Notes)
	}
	if len(events.events) != 1 || events.events[0].Type != "order.created" {
		t.Fatalf("expected order.created event, got %#v", events.events)
	}
	if events.events[0].ActorID != "usr_admin" {
		t.Fatalf("expected actor on event, got %q", events.events[0].ActorID)
	}
}

func TestOrderServiceCreateValidatesInput(t *testing.T) {
	svc, err := NewOrderService(defaultOrderDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		name string
		cmd  CreateOrderCommand
	}{
		{name: "missing name", cmd: CreateOrderCommand{ClientPhone: "x", ClientAddress: "y", VisitDate: testClock()}},
		{name: "missing phone", cmd: CreateOrderCommand{ClientName: "x", ClientAddress: "y", VisitDate: testClock()}},
		{name: "missing address", cmd: CreateOrderCommand{ClientName: "x", ClientPhone: "y", VisitDate: testClock()}},
		{name: "missing visit date", cmd: CreateOrderCommand{ClientName: "x", ClientPhone: "y", ClientAddress: "z"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.cmd); !errors.Is(err, ErrOrderInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestOrderServiceCreateRejectsUnknownAssignee(t *testing.T) {
	deps := defaultOrderDeps()
	deps.Users = &stubUserRepo{
		findByID: func(context.Context, string) (domain.User, error) {
			return domain.User{}, repoError{notFound: true}
		},
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Create(context.Background(), CreateOrderCommand{
		ClientName:     "Anna",
		ClientPhone:    "+998",
		ClientAddress:  "Tashkent",
		VisitDate:      testClock(),
		AssignedUserID: valuePtr("usr_gone"),
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input for unknown assignee, got %v", err)
	}
}

func TestOrderServiceUpdateRejectsCompletedOrder(t *testing.T) {
	deps := defaultOrderDeps()
	deps.Orders = &stubOrderRepo{
		findByID: func(context.Context, string) (domain.Order, error) {
			return domain.Order{ID: "ord_1", Status: domain.OrderStatusCompleted}, nil
		},
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Update(context.Background(), UpdateOrderCommand{
		OrderID:    "ord_1",
		ClientName: valuePtr("New Name"),
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestOrderServiceUpdatePatchesOnlyProvidedFields(t *testing.T) {
	var updated domain.Order
	deps := defaultOrderDeps()
	deps.Orders = &stubOrderRepo{
		findByID: func(context.Context, string) (domain.Order, error) {
			return domain.Order{
				ID:            "ord_1",
				ClientName:    "Anna",
				ClientPhone:   "+998 90 111 22 33",
				ClientAddress: "Chilanzar 5",
				Status:        domain.OrderStatusInProgress,
			}, nil
		},
		update: func(_ context.Context, order domain.Order) error {
			updated = order
			return nil
		},
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Update(context.Background(), UpdateOrderCommand{
		OrderID:     "ord_1",
		ClientPhone: valuePtr("  +998 93 555 66 77 "),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ClientPhone != "+998 93 555 66 77" {
		t.Fatalf("expected trimmed phone, got %q", updated.ClientPhone)
	}
	if updated.ClientName != "Anna" {
		t.Fatalf("expected untouched name, got %q", updated.ClientName)
	}
	if !updated.UpdatedAt.Equal(testClock()) {
		t.Fatalf("expected updatedAt from clock, got %v", updated.UpdatedAt)
	}
}

func TestOrderServiceCompleteIsIdempotent(t *testing.T) {
	updateCalled := false
	deps := defaultOrderDeps()
	deps.Orders = &stubOrderRepo{
		findByID: func(context.Context, string) (domain.Order, error) {
			return domain.Order{ID: "ord_1", Status: domain.OrderStatusCompleted}, nil
		},
		update: func(context.Context, domain.Order) error {
			updateCalled = true
			return nil
		},
	}
	events := &stubEventPublisher{}
	deps.Events = events
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order, err := svc.Complete(context.Background(), "ord_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected completed status, got %s", order.Status)
	}
	if updateCalled {
		t.Fatalf("completing a completed order must not write")
	}
	if len(events.events) != 0 {
		t.Fatalf("expected no events, got %#v", events.events)
	}
}

func TestOrderServiceCompleteFromAnyActiveState(t *testing.T) {
	var updated domain.Order
	deps := defaultOrderDeps()
	deps.Orders = &stubOrderRepo{
		findByID: func(context.Context, string) (domain.Order, error) {
			return domain.Order{ID: "ord_1", TrackingCode: "AB12CD34", Status: domain.OrderStatusNew}, nil
		},
		update: func(_ context.Context, order domain.Order) error {
			updated = order
			return nil
		},
	}
	events := &stubEventPublisher{}
	deps.Events = events
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Complete(context.Background(), "ord_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected completed write, got %s", updated.Status)
	}
	if len(events.events) != 1 || events.events[0].Type != "order.status.changed" {
		t.Fatalf("expected status changed event, got %#v", events.events)
	}
	if events.events[0].PreviousStatus != domain.OrderStatusNew {
		t.Fatalf("expected previous status new, got %s", events.events[0].PreviousStatus)
	}
}

func TestOrderServiceTransitionStatus(t *testing.T) {
	t.Run("rejects unknown target", func(t *testing.T) {
		svc, err := NewOrderService(defaultOrderDeps())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err = svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
			OrderID: "ord_1",
			Target:  domain.OrderStatus("sideways"),
		})
		if !errors.Is(err, ErrOrderInvalidInput) {
			t.Fatalf("expected invalid input, got %v", err)
		}
	})

	t.Run("rejects backward movement", func(t *testing.T) {
		deps := defaultOrderDeps()
		deps.Orders = &stubOrderRepo{
			findByID: func(context.Context, string) (domain.Order, error) {
				return domain.Order{ID: "ord_1", Status: domain.OrderStatusMeasured}, nil
			},
		}
		svc, err := NewOrderService(deps)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err = svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
			OrderID: "ord_1",
			Target:  domain.OrderStatusInProgress,
		})
		if !errors.Is(err, ErrOrderInvalidState) {
			t.Fatalf("expected invalid state, got %v", err)
		}
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		updateCalled := false
		deps := defaultOrderDeps()
		deps.Orders = &stubOrderRepo{
			findByID: func(context.Context, string) (domain.Order, error) {
				return domain.Order{ID: "ord_1", Status: domain.OrderStatusInProgress}, nil
			},
			update: func(context.Context, domain.Order) error {
				updateCalled = true
				return nil
			},
		}
		svc, err := NewOrderService(deps)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		change, err := svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
			OrderID: "ord_1",
			Target:  domain.OrderStatusInProgress,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updateCalled {
			t.Fatalf("same-status transition must not write")
		}
		if change.Status != domain.OrderStatusInProgress {
			t.Fatalf("unexpected status %s", change.Status)
		}
	})

	t.Run("forward movement localizes status name", func(t *testing.T) {
		deps := defaultOrderDeps()
		deps.Orders = &stubOrderRepo{
			findByID: func(context.Context, string) (domain.Order, error) {
				return domain.Order{ID: "ord_1", Status: domain.OrderStatusNew}, nil
			},
		}
		deps.Catalog = &stubCatalogRepo{
			listStatusTranslations: func(context.Context) ([]domain.OrderStatusTranslation, error) {
				return []domain.OrderStatusTranslation{
					{Status: domain.OrderStatusInProgress, Names: map[domain.LanguageCode]string{
						domain.LanguageRussian:    "В работе",
						domain.LanguageUzbekLatin: "Jarayonda",
					}},
				}, nil
			},
		}
		svc, err := NewOrderService(deps)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		change, err := svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
			OrderID:  "ord_1",
			Target:   domain.OrderStatusInProgress,
			Language: domain.LanguageUzbekLatin,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if change.StatusName != "Jarayonda" {
			t.Fatalf("expected localized status name, got %q", change.StatusName)
		}
	})

	t.Run("falls back to raw code without translation", func(t *testing.T) {
		deps := defaultOrderDeps()
		deps.Orders = &stubOrderRepo{
			findByID: func(context.Context, string) (domain.Order, error) {
				return domain.Order{ID: "ord_1", Status: domain.OrderStatusNew}, nil
			},
		}
		svc, err := NewOrderService(deps)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		change, err := svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
			OrderID: "ord_1",
			Target:  domain.OrderStatusMeasured,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if change.StatusName != "measured" {
			t.Fatalf("expected raw status fallback, got %q", change.StatusName)
		}
	})
}

func TestOrderServiceTrack(t *testing.T) {
	t.Run("validates code length", func(t *testing.T) {
		svc, err := NewOrderService(defaultOrderDeps())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := svc.Track(context.Background(), "short", domain.LanguageRussian); !errors.Is(err, ErrOrderInvalidInput) {
			t.Fatalf("expected invalid input, got %v", err)
		}
	})

	t.Run("normalizes case and returns company contact", func(t *testing.T) {
		var lookedUp string
		deps := defaultOrderDeps()
		deps.Orders = &stubOrderRepo{
			findByTrackingCode: func(_ context.Context, code string) (domain.Order, error) {
				lookedUp = code
				return domain.Order{ID: "ord_1", TrackingCode: code, Status: domain.OrderStatusNew}, nil
			},
		}
		svc, err := NewOrderService(deps)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		view, err := svc.Track(context.Background(), "  ab12cd34 ", domain.LanguageUzbekLatin)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lookedUp != "AB12CD34" {
			t.Fatalf("expected uppercased code lookup, got %q", lookedUp)
		}
		if view.Company.Name != "Jalyuzi Servis" {
			t.Fatalf("expected uz_latn company block, got %q", view.Company.Name)
		}
	})

	t.Run("unsupported language falls back to russian contact", func(t *testing.T) {
		deps := defaultOrderDeps()
		deps.Orders = &stubOrderRepo{
			findByTrackingCode: func(_ context.Context, code string) (domain.Order, error) {
				return domain.Order{ID: "ord_1", TrackingCode: code}, nil
			},
		}
		svc, err := NewOrderService(deps)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		view, err := svc.Track(context.Background(), "AB12CD34", domain.LanguageUzbekCyrillic)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if view.Company.Name != "Жалюзи Сервис" {
			t.Fatalf("expected russian fallback contact, got %q", view.Company.Name)
		}
	})

	t.Run("unknown code maps to not found", func(t *testing.T) {
		deps := defaultOrderDeps()
		deps.Orders = &stubOrderRepo{
			findByTrackingCode: func(context.Context, string) (domain.Order, error) {
				return domain.Order{}, repoError{notFound: true}
			},
		}
		svc, err := NewOrderService(deps)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := svc.Track(context.Background(), "ZZZZ9999", domain.LanguageRussian); !errors.Is(err, ErrOrderNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestOrderServiceGetDetailAggregatesWindowsAndPrices(t *testing.T) {
	shadeType := domain.ShadeType{
		ID:          "st_roller",
		MinPrice:    200000,
		Names:       map[domain.LanguageCode]string{domain.LanguageRussian: "Рулонная штора"},
		MaterialIDs: []string{"mat_fabric"},
		OptionTypes: []domain.OptionType{
			{
				ID:           "opt_control",
				DisplayOrder: 2,
				Names:        map[domain.LanguageCode]string{domain.LanguageRussian: "Сторона управления"},
				Values: []domain.OptionValue{
					{ID: "val_left", Names: map[domain.LanguageCode]string{domain.LanguageRussian: "Слева"}},
				},
			},
			{
				ID:           "opt_fix",
				DisplayOrder: 1,
				Names:        map[domain.LanguageCode]string{domain.LanguageRussian: "Крепление"},
				Values: []domain.OptionValue{
					{ID: "val_wall", Names: map[domain.LanguageCode]string{domain.LanguageRussian: "К стене"}},
				},
			},
		},
	}
	material := domain.Material{
		ID:    "mat_fabric",
		Names: map[domain.LanguageCode]string{domain.LanguageRussian: "Ткань"},
	}
	variant := domain.MaterialVariant{
		ID:         "var_white",
		ColorNames: map[domain.LanguageCode]string{domain.LanguageRussian: "Белый"},
	}

	deps := defaultOrderDeps()
	deps.Orders = &stubOrderRepo{
		findByID: func(context.Context, string) (domain.Order, error) {
			return domain.Order{ID: "ord_1", TrackingCode: "AB12CD34", Status: domain.OrderStatusMeasured}, nil
		},
	}
	deps.Windows = &stubWindowRepo{
		listByOrder: func(context.Context, string) ([]domain.Window, error) {
			return []domain.Window{
				{ID: "win_1", Name: "Kitchen"},
				{ID: "win_2", Name: "Bedroom"},
			}, nil
		},
	}
	deps.Shades = &stubShadeRepo{
		listByWindow: func(_ context.Context, windowID string) ([]domain.Shade, error) {
			if windowID != "win_1" {
				return nil, nil
			}
			return []domain.Shade{{
				ID:                "shd_1",
				WindowID:          "win_1",
				ShadeTypeID:       "st_roller",
				Width:             1200,
				Height:            1500,
				MaterialVariantID: "var_white",
				Options: []domain.ShadeOptionSelection{
					{OptionTypeID: "opt_control", OptionValueID: "val_left"},
					{OptionTypeID: "opt_fix", OptionValueID: "val_wall"},
				},
			}}, nil
		},
	}
	deps.Catalog = &stubCatalogRepo{
		getShadeType: func(context.Context, string) (domain.ShadeType, error) {
			return shadeType, nil
		},
		getMaterialVariant: func(context.Context, string) (domain.Material, domain.MaterialVariant, error) {
			return material, variant, nil
		},
	}
	deps.Pricing = &stubPriceQuoter{
		quote: func(context.Context, domain.PriceRequest) (domain.PriceQuote, error) {
			return domain.PriceQuote{TotalPrice: 450000}, nil
		},
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	detail, err := svc.GetDetail(context.Background(), "ord_1", domain.LanguageRussian)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.TotalPrice != 450000 {
		t.Fatalf("expected total 450000, got %d", detail.TotalPrice)
	}
	if len(detail.Windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(detail.Windows))
	}
	if detail.Windows[1].Shade != nil {
		t.Fatalf("expected bare window without shade")
	}
	shade := detail.Windows[0].Shade
	if shade == nil {
		t.Fatalf("expected shade on first window")
	}
	if shade.ShadeTypeName != "Рулонная штора" || shade.MaterialName != "Ткань" || shade.ColorName != "Белый" {
		t.Fatalf("unexpected localized labels %+v", shade)
	}
	if len(shade.Options) != 2 {
		t.Fatalf("expected 2 resolved options, got %d", len(shade.Options))
	}
	if shade.Options[0].OptionTypeID != "opt_fix" {
		t.Fatalf("expected options sorted by display order, got %+v", shade.Options)
	}
	if shade.Options[0].OptionValueName != "К стене" {
		t.Fatalf("expected resolved value label, got %q", shade.Options[0].OptionValueName)
	}
}

func TestOrderServiceListAggregatesCountsAndAssignees(t *testing.T) {
	var gotFilter repositories.OrderListFilter
	deps := defaultOrderDeps()
	deps.Orders = &stubOrderRepo{
		list: func(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			gotFilter = filter
			return domain.CursorPage[domain.Order]{
				Items: []domain.Order{
					{ID: "ord_1", Status: domain.OrderStatusNew, AssignedUserID: valuePtr("usr_inst")},
					{ID: "ord_2", Status: domain.OrderStatusNew, AssignedUserID: valuePtr("usr_gone")},
				},
				NextPageToken: "next",
			}, nil
		},
	}
	deps.Windows = &stubWindowRepo{
		countByOrder: func(_ context.Context, orderIDs []string) (map[string]int, error) {
			if len(orderIDs) != 2 {
				t.Fatalf("expected both order ids, got %v", orderIDs)
			}
			return map[string]int{"ord_1": 3}, nil
		},
	}
	deps.Users = &stubUserRepo{
		findByID: func(_ context.Context, userID string) (domain.User, error) {
			if userID == "usr_gone" {
				return domain.User{}, repoError{notFound: true}
			}
			return domain.User{ID: userID, Username: "bek", FullName: "Bek Karimov"}, nil
		},
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	page, err := svc.List(context.Background(), OrderListQuery{
		Status:   []domain.OrderStatus{domain.OrderStatusNew},
		Search:   "  anna ",
		Language: domain.LanguageRussian,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFilter.Search != "anna" {
		t.Fatalf("expected trimmed search, got %q", gotFilter.Search)
	}
	if page.NextPageToken != "next" {
		t.Fatalf("expected page token passthrough, got %q", page.NextPageToken)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(page.Items))
	}
	if page.Items[0].WindowCount != 3 || page.Items[1].WindowCount != 0 {
		t.Fatalf("unexpected window counts %+v", page.Items)
	}
	if page.Items[0].AssignedUser == nil || page.Items[0].AssignedUser.Username != "bek" {
		t.Fatalf("expected resolved assignee, got %+v", page.Items[0].AssignedUser)
	}
	if page.Items[1].AssignedUser != nil {
		t.Fatalf("removed account must resolve to nil, got %+v", page.Items[1].AssignedUser)
	}
}

func TestOrderServiceDeletePublishesEvent(t *testing.T) {
	deleted := ""
	deps := defaultOrderDeps()
	deps.Orders = &stubOrderRepo{
		findByID: func(context.Context, string) (domain.Order, error) {
			return domain.Order{ID: "ord_1", TrackingCode: "AB12CD34", Status: domain.OrderStatusNew}, nil
		},
		deleteFn: func(_ context.Context, orderID string) error {
			deleted = orderID
			return nil
		},
	}
	events := &stubEventPublisher{}
	deps.Events = events
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Delete(context.Background(), "ord_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "ord_1" {
		t.Fatalf("expected delete of ord_1, got %q", deleted)
	}
	if len(events.events) != 1 || events.events[0].Type != "order.deleted" {
		t.Fatalf("expected order.deleted event, got %#v", events.events)
	}
}

func TestOrderServiceDeleteRejectsCompletedOrder(t *testing.T) {
	deps := defaultOrderDeps()
	deps.Orders = &stubOrderRepo{
		findByID: func(context.Context, string) (domain.Order, error) {
			return domain.Order{ID: "ord_1", Status: domain.OrderStatusCompleted}, nil
		},
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(context.Background(), "ord_1"); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestNewTrackingCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		code := NewTrackingCode()
		if len(code) != 8 {
			t.Fatalf("expected 8 characters, got %q", code)
		}
		for _, r := range code {
			if !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
				t.Fatalf("unexpected character %q in code %q", r, code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected varied codes, got %v", seen)
	}
}

// Shared stubs ---------------------------------------------------------------

type repoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e repoError) Error() string       { return "repository error" }
func (e repoError) IsNotFound() bool    { return e.notFound }
func (e repoError) IsConflict() bool    { return e.conflict }
func (e repoError) IsUnavailable() bool { return e.unavailable }

var _ repositories.RepositoryError = repoError{}

type stubOrderRepo struct {
	insert             func(context.Context, domain.Order) error
	update             func(context.Context, domain.Order) error
	deleteFn           func(context.Context, string) error
	findByID           func(context.Context, string) (domain.Order, error)
	findByTrackingCode func(context.Context, string) (domain.Order, error)
	list               func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	if s.insert == nil {
		return nil
	}
	return s.insert(ctx, order)
}

func (s *stubOrderRepo) Update(ctx context.Context, order domain.Order) error {
	if s.update == nil {
		return nil
	}
	return s.update(ctx, order)
}

func (s *stubOrderRepo) Delete(ctx context.Context, orderID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, orderID)
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findByID == nil {
		return domain.Order{ID: orderID}, nil
	}
	return s.findByID(ctx, orderID)
}

func (s *stubOrderRepo) FindByTrackingCode(ctx context.Context, code string) (domain.Order, error) {
	if s.findByTrackingCode == nil {
		return domain.Order{TrackingCode: code}, nil
	}
	return s.findByTrackingCode(ctx, code)
}

func (s *stubOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.list == nil {
		return domain.CursorPage[domain.Order]{}, nil
	}
	return s.list(ctx, filter)
}

var _ repositories.OrderRepository = (*stubOrderRepo)(nil)

type stubWindowRepo struct {
	insert       func(context.Context, domain.Window) error
	update       func(context.Context, domain.Window) error
	deleteFn     func(context.Context, string) error
	findByID     func(context.Context, string) (domain.Window, error)
	listByOrder  func(context.Context, string) ([]domain.Window, error)
	countByOrder func(context.Context, []string) (map[string]int, error)
}

func (s *stubWindowRepo) Insert(ctx context.Context, window domain.Window) error {
	if s.insert == nil {
		return nil
	}
	return s.insert(ctx, window)
}

func (s *stubWindowRepo) Update(ctx context.Context, window domain.Window) error {
	if s.update == nil {
		return nil
	}
	return s.update(ctx, window)
}

func (s *stubWindowRepo) Delete(ctx context.Context, windowID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, windowID)
}

func (s *stubWindowRepo) FindByID(ctx context.Context, windowID string) (domain.Window, error) {
	if s.findByID == nil {
		return domain.Window{ID: windowID}, nil
	}
	return s.findByID(ctx, windowID)
}

func (s *stubWindowRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.Window, error) {
	if s.listByOrder == nil {
		return nil, nil
	}
	return s.listByOrder(ctx, orderID)
}

func (s *stubWindowRepo) CountByOrder(ctx context.Context, orderIDs []string) (map[string]int, error) {
	if s.countByOrder == nil {
		return map[string]int{}, nil
	}
	return s.countByOrder(ctx, orderIDs)
}

var _ repositories.WindowRepository = (*stubWindowRepo)(nil)

type stubShadeRepo struct {
	insert       func(context.Context, domain.Shade) error
	update       func(context.Context, domain.Shade) error
	deleteFn     func(context.Context, string) error
	findByID     func(context.Context, string) (domain.Shade, error)
	listByWindow func(context.Context, string) ([]domain.Shade, error)
}

func (s *stubShadeRepo) Insert(ctx context.Context, shade domain.Shade) error {
	if s.insert == nil {
		return nil
	}
	return s.insert(ctx, shade)
}

func (s *stubShadeRepo) Update(ctx context.Context, shade domain.Shade) error {
	if s.update == nil {
		return nil
	}
	return s.update(ctx, shade)
}

func (s *stubShadeRepo) Delete(ctx context.Context, shadeID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, shadeID)
}

func (s *stubShadeRepo) FindByID(ctx context.Context, shadeID string) (domain.Shade, error) {
	if s.findByID == nil {
		return domain.Shade{ID: shadeID}, nil
	}
	return s.findByID(ctx, shadeID)
}

func (s *stubShadeRepo) ListByWindow(ctx context.Context, windowID string) ([]domain.Shade, error) {
	if s.listByWindow == nil {
		return nil, nil
	}
	return s.listByWindow(ctx, windowID)
}

var _ repositories.ShadeRepository = (*stubShadeRepo)(nil)

type stubCatalogRepo struct {
	listShadeTypes         func(context.Context) ([]domain.ShadeType, error)
	getShadeType           func(context.Context, string) (domain.ShadeType, error)
	listMaterials          func(context.Context) ([]domain.Material, error)
	getMaterial            func(context.Context, string) (domain.Material, error)
	getMaterialVariant     func(context.Context, string) (domain.Material, domain.MaterialVariant, error)
	listServicePrices      func(context.Context) ([]domain.ServicePrice, error)
	listStatusTranslations func(context.Context) ([]domain.OrderStatusTranslation, error)
}

func (s *stubCatalogRepo) ListShadeTypes(ctx context.Context) ([]domain.ShadeType, error) {
	if s.listShadeTypes == nil {
		return nil, nil
	}
	return s.listShadeTypes(ctx)
}

func (s *stubCatalogRepo) GetShadeType(ctx context.Context, shadeTypeID string) (domain.ShadeType, error) {
	if s.getShadeType == nil {
		return domain.ShadeType{ID: shadeTypeID}, nil
	}
	return s.getShadeType(ctx, shadeTypeID)
}

func (s *stubCatalogRepo) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	if s.listMaterials == nil {
		return nil, nil
	}
	return s.listMaterials(ctx)
}

func (s *stubCatalogRepo) GetMaterial(ctx context.Context, materialID string) (domain.Material, error) {
	if s.getMaterial == nil {
		return domain.Material{ID: materialID}, nil
	}
	return s.getMaterial(ctx, materialID)
}

func (s *stubCatalogRepo) GetMaterialVariant(ctx context.Context, variantID string) (domain.Material, domain.MaterialVariant, error) {
	if s.getMaterialVariant == nil {
		return domain.Material{}, domain.MaterialVariant{ID: variantID}, nil
	}
	return s.getMaterialVariant(ctx, variantID)
}

func (s *stubCatalogRepo) ListServicePrices(ctx context.Context) ([]domain.ServicePrice, error) {
	if s.listServicePrices == nil {
		return nil, nil
	}
	return s.listServicePrices(ctx)
}

func (s *stubCatalogRepo) ListStatusTranslations(ctx context.Context) ([]domain.OrderStatusTranslation, error) {
	if s.listStatusTranslations == nil {
		return nil, nil
	}
	return s.listStatusTranslations(ctx)
}

var _ repositories.CatalogRepository = (*stubCatalogRepo)(nil)

type stubUserRepo struct {
	findByID       func(context.Context, string) (domain.User, error)
	findByUsername func(context.Context, string) (domain.User, error)
	listInstallers func(context.Context) ([]domain.User, error)
}

func (s *stubUserRepo) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if s.findByID == nil {
		return domain.User{ID: userID}, nil
	}
	return s.findByID(ctx, userID)
}

func (s *stubUserRepo) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	if s.findByUsername == nil {
		return domain.User{Username: username}, nil
	}
	return s.findByUsername(ctx, username)
}

func (s *stubUserRepo) ListInstallers(ctx context.Context) ([]domain.User, error) {
	if s.listInstallers == nil {
		return nil, nil
	}
	return s.listInstallers(ctx)
}

var _ repositories.UserRepository = (*stubUserRepo)(nil)

type stubPriceQuoter struct {
	quote func(context.Context, domain.PriceRequest) (domain.PriceQuote, error)
}

func (s *stubPriceQuoter) Quote(ctx context.Context, req domain.PriceRequest) (domain.PriceQuote, error) {
	if s.quote == nil {
		return domain.PriceQuote{}, nil
	}
	return s.quote(ctx, req)
}

var _ PricingService = (*stubPriceQuoter)(nil)

type stubEventPublisher struct {
	events []OrderEvent
	err    error
}

func (s *stubEventPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	s.events = append(s.events, event)
	return s.err
}

var _ OrderEventPublisher = (*stubEventPublisher)(nil)
