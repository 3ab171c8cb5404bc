package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/shades-uz/api/internal/domain"
	pfirestore "github.com/shades-uz/api/internal/platform/firestore"
	"github.com/shades-uz/api/internal/repositories"
)

const windowCollection = "windows"

const windowQueryChunkSize = 10

// WindowRepository persists windows in Firestore.
type WindowRepository struct {
	base     *pfirestore.BaseRepository[windowDocument]
	provider *pfirestore.Provider
}

var _ repositories.WindowRepository = (*WindowRepository)(nil)

// NewWindowRepository constructs a Firestore-backed window repository.
func NewWindowRepository(provider *pfirestore.Provider) (*WindowRepository, error) {
	if provider == nil {
		return nil, errors.New("window repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[windowDocument](provider, windowCollection)
	return &WindowRepository{base: base, provider: provider}, nil
}

// Insert creates the window document.
func (r *WindowRepository) Insert(ctx context.Context, window domain.Window) error {
	if r == nil || r.base == nil {
		return errors.New("window repository not initialised")
	}
	if strings.TrimSpace(window.ID) == "" {
		return errors.New("window id is required")
	}

	ref, err := r.base.DocumentRef(ctx, window.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainWindow(window)); err != nil {
		return pfirestore.WrapError("windows.insert", err)
	}
	return nil
}

// Update overwrites the stored window.
func (r *WindowRepository) Update(ctx context.Context, window domain.Window) error {
	if r == nil || r.base == nil {
		return errors.New("window repository not initialised")
	}
	if strings.TrimSpace(window.ID) == "" {
		return errors.New("window id is required")
	}

	if _, err := r.base.Get(ctx, window.ID); err != nil {
		return err
	}
	_, err := r.base.Set(ctx, window.ID, fromDomainWindow(window))
	return err
}

// Delete removes the window and any shades configured on it.
func (r *WindowRepository) Delete(ctx context.Context, windowID string) error {
	if r == nil || r.provider == nil {
		return errors.New("window repository not initialised")
	}
	windowID = strings.TrimSpace(windowID)
	if windowID == "" {
		return errors.New("window id is required")
	}

	if _, err := r.base.Get(ctx, windowID); err != nil {
		return err
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	shadeRefs, err := collectRefs(ctx, client.Collection(shadeCollection).Where("windowId", "==", windowID))
	if err != nil {
		return pfirestore.WrapError("windows.delete", err)
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, ref := range shadeRefs {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		return tx.Delete(client.Collection(windowCollection).Doc(windowID))
	})
}

// FindByID loads the window by its identifier.
func (r *WindowRepository) FindByID(ctx context.Context, windowID string) (domain.Window, error) {
	if r == nil || r.base == nil {
		return domain.Window{}, errors.New("window repository not initialised")
	}
	if strings.TrimSpace(windowID) == "" {
		return domain.Window{}, errors.New("window id is required")
	}

	doc, err := r.base.Get(ctx, windowID)
	if err != nil {
		return domain.Window{}, err
	}
	return toDomainWindow(doc.ID, doc.Data), nil
}

// ListByOrder returns the order's windows in creation order.
func (r *WindowRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Window, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("window repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("order id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", orderID).OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	windows := make([]domain.Window, 0, len(docs))
	for _, doc := range docs {
		windows = append(windows, toDomainWindow(doc.ID, doc.Data))
	}
	return windows, nil
}

// CountByOrder counts windows per order. Orders without windows are absent
// from the result.
func (r *WindowRepository) CountByOrder(ctx context.Context, orderIDs []string) (map[string]int, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("window repository not initialised")
	}

	counts := make(map[string]int)
	ids := make([]string, 0, len(orderIDs))
	for _, id := range orderIDs {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}

	for start := 0; start < len(ids); start += windowQueryChunkSize {
		end := start + windowQueryChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
			return q.Where("orderId", "in", chunk)
		})
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			counts[doc.Data.OrderID]++
		}
	}
	return counts, nil
}

type windowDocument struct {
	OrderID   string    `firestore:"orderId"`
	Name      string    `firestore:"name"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func fromDomainWindow(window domain.Window) windowDocument {
	return windowDocument{
		OrderID:   strings.TrimSpace(window.OrderID),
		Name:      strings.TrimSpace(window.Name),
		CreatedAt: window.CreatedAt.UTC(),
		UpdatedAt: window.UpdatedAt.UTC(),
	}
}

func toDomainWindow(id string, doc windowDocument) domain.Window {
	return domain.Window{
		ID:        id,
		OrderID:   doc.OrderID,
		Name:      doc.Name,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}
