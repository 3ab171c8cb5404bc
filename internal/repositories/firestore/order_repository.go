package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/shades-uz/api/internal/domain"
	pfirestore "github.com/shades-uz/api/internal/platform/firestore"
	"github.com/shades-uz/api/internal/platform/pagination"
	"github.com/shades-uz/api/internal/repositories"
)

const (
	orderCollection        = "orders"
	trackingCodeCollection = "trackingCodes"

	defaultOrderPageSize = 50
	maxOrderPageSize     = 100
)

// OrderRepository persists order headers in Firestore. Tracking codes are
// claimed through reservation documents written in the same transaction as
// the order itself.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection)
	return &OrderRepository{base: base, provider: provider}, nil
}

// Insert creates the order and its tracking code reservation atomically.
// A taken code surfaces as a conflict error so the caller can regenerate.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	if strings.TrimSpace(order.TrackingCode) == "" {
		return errors.New("order tracking code is required")
	}

	doc := fromDomainOrder(order)

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}
		codeRef := client.Collection(trackingCodeCollection).Doc(order.TrackingCode)
		orderRef := client.Collection(orderCollection).Doc(order.ID)

		if err := tx.Create(codeRef, map[string]any{
			"orderId":   order.ID,
			"createdAt": order.CreatedAt,
		}); err != nil {
			return err
		}
		return tx.Create(orderRef, doc)
	})
}

// Update overwrites the stored order. The tracking code is immutable.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}

	if _, err := r.base.Get(ctx, order.ID); err != nil {
		return err
	}
	_, err := r.base.Set(ctx, order.ID, fromDomainOrder(order))
	return err
}

// Delete removes the order, its tracking code reservation, and all windows
// and shades hanging off it.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return errors.New("order id is required")
	}

	order, err := r.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	windowRefs, err := collectRefs(ctx, client.Collection(windowCollection).Where("orderId", "==", orderID))
	if err != nil {
		return pfirestore.WrapError("orders.delete", err)
	}
	var shadeRefs []*firestore.DocumentRef
	for _, windowRef := range windowRefs {
		refs, err := collectRefs(ctx, client.Collection(shadeCollection).Where("windowId", "==", windowRef.ID))
		if err != nil {
			return pfirestore.WrapError("orders.delete", err)
		}
		shadeRefs = append(shadeRefs, refs...)
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, ref := range shadeRefs {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		for _, ref := range windowRefs {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		if code := strings.TrimSpace(order.TrackingCode); code != "" {
			if err := tx.Delete(client.Collection(trackingCodeCollection).Doc(code)); err != nil {
				return err
			}
		}
		return tx.Delete(client.Collection(orderCollection).Doc(orderID))
	})
}

// FindByID loads the order by its identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}

	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(doc.ID, doc.Data), nil
}

// FindByTrackingCode resolves a tracking code to its order.
func (r *OrderRepository) FindByTrackingCode(ctx context.Context, code string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Order{}, errors.New("tracking code is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("trackingCode", "==", code).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.findByTrackingCode",
			status.Error(codes.NotFound, "order not found"))
	}
	return toDomainOrder(docs[0].ID, docs[0].Data), nil
}

// List queries orders newest-first. Status, assignee, and visit date ranges
// are pushed to Firestore; free-text search is matched in memory against
// client name, phone, and address.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = defaultOrderPageSize
	}
	if pageSize > maxOrderPageSize {
		pageSize = maxOrderPageSize
	}

	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))

	build := func(q firestore.Query) firestore.Query {
		if len(filter.Status) > 0 {
			statuses := make([]string, 0, len(filter.Status))
			for _, s := range filter.Status {
				statuses = append(statuses, string(s))
			}
			q = q.Where("status", "in", statuses)
		}
		if filter.AssignedUserID != nil {
			q = q.Where("assignedUserId", "==", strings.TrimSpace(*filter.AssignedUserID))
		}
		if filter.VisitDate.From != nil {
			q = q.Where("visitDate", ">=", filter.VisitDate.From.UTC())
		}
		if filter.VisitDate.To != nil {
			q = q.Where("visitDate", "<=", filter.VisitDate.To.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(decodeOrderCursor(cursor.StartAfter)...)
		}
		// Over-fetch when filtering in memory so one page of matches can
		// usually be served from a single query round trip.
		limit := pageSize + 1
		if search != "" {
			limit = (pageSize + 1) * 4
		}
		return q.Limit(limit)
	}

	var (
		items    []domain.Order
		lastDoc  pfirestore.Document[orderDocument]
		haveMore bool
	)

	for !haveMore {
		docs, err := r.base.Query(ctx, build)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		if len(docs) == 0 {
			break
		}

		for _, doc := range docs {
			order := toDomainOrder(doc.ID, doc.Data)
			if search != "" && !orderMatchesSearch(order, search) {
				lastDoc = doc
				continue
			}
			if len(items) == pageSize {
				haveMore = true
				break
			}
			items = append(items, order)
			lastDoc = doc
		}

		if search == "" {
			haveMore = haveMore || len(docs) > pageSize
			break
		}
		if haveMore {
			break
		}
		if len(docs) < (pageSize+1)*4 {
			break
		}
		cursor = pagination.Cursor{StartAfter: encodeOrderCursor(lastDoc)}
	}

	page := domain.CursorPage[domain.Order]{Items: items}
	if haveMore && lastDoc.ID != "" {
		token, err := pagination.EncodeToken(pagination.Cursor{StartAfter: encodeOrderCursor(lastDoc)})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func orderMatchesSearch(order domain.Order, search string) bool {
	return strings.Contains(strings.ToLower(order.ClientName), search) ||
		strings.Contains(strings.ToLower(order.ClientPhone), search) ||
		strings.Contains(strings.ToLower(order.ClientAddress), search)
}

func encodeOrderCursor(doc pfirestore.Document[orderDocument]) []any {
	return []any{doc.Data.CreatedAt.UTC().Format(time.RFC3339Nano), doc.ID}
}

func decodeOrderCursor(values []any) []any {
	out := make([]any, 0, len(values))
	for i, value := range values {
		if i == 0 {
			if raw, ok := value.(string); ok {
				if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
					out = append(out, ts)
					continue
				}
			}
		}
		out = append(out, value)
	}
	return out
}

func collectRefs(ctx context.Context, query firestore.Query) ([]*firestore.DocumentRef, error) {
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	refs := make([]*firestore.DocumentRef, 0, len(snaps))
	for _, snap := range snaps {
		refs = append(refs, snap.Ref)
	}
	return refs, nil
}

type orderDocument struct {
	TrackingCode   string    `firestore:"trackingCode"`
	ClientName     string    `firestore:"clientName"`
	ClientPhone    string    `firestore:"clientPhone"`
	ClientAddress  string    `firestore:"clientAddress"`
	Notes          *string   `firestore:"notes,omitempty"`
	VisitDate      time.Time `firestore:"visitDate"`
	Status         string    `firestore:"status"`
	AssignedUserID *string   `firestore:"assignedUserId,omitempty"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

func fromDomainOrder(order domain.Order) orderDocument {
	return orderDocument{
		TrackingCode:   strings.TrimSpace(order.TrackingCode),
		ClientName:     strings.TrimSpace(order.ClientName),
		ClientPhone:    strings.TrimSpace(order.ClientPhone),
		ClientAddress:  strings.TrimSpace(order.ClientAddress),
		Notes:          order.Notes,
		VisitDate:      order.VisitDate.UTC(),
		Status:         string(order.Status),
		AssignedUserID: order.AssignedUserID,
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
	}
}

func toDomainOrder(id string, doc orderDocument) domain.Order {
	return domain.Order{
		ID:             id,
		TrackingCode:   doc.TrackingCode,
		ClientName:     doc.ClientName,
		ClientPhone:    doc.ClientPhone,
		ClientAddress:  doc.ClientAddress,
		Notes:          doc.Notes,
		VisitDate:      doc.VisitDate,
		Status:         domain.OrderStatus(doc.Status),
		AssignedUserID: doc.AssignedUserID,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}
