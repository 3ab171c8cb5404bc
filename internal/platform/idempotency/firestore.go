package idempotency

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultCollection      = "idempotency_keys"
	defaultTxAttempts      = 5
	defaultCleanupPageSize = 100
)

// FirestoreOption customises the Firestore-backed store.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection holding idempotency documents.
func WithCollection(name string) FirestoreOption {
	return func(s *FirestoreStore) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithMaxAttempts sets the transaction retry budget.
func WithMaxAttempts(attempts int) FirestoreOption {
	return func(s *FirestoreStore) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
	}
}

// FirestoreStore persists idempotency records in Firestore. The reserve
// path runs in a transaction so concurrent requests with the same key see
// exactly one winner.
type FirestoreStore struct {
	client      *firestore.Client
	collection  string
	maxAttempts int
}

var _ Store = (*FirestoreStore)(nil)

// NewFirestoreStore constructs a Firestore-backed store.
func NewFirestoreStore(client *firestore.Client, opts ...FirestoreOption) *FirestoreStore {
	s := &FirestoreStore{
		client:      client,
		collection:  defaultCollection,
		maxAttempts: defaultTxAttempts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(docID(key))
}

func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.doc(key)

	var result Reservation
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		if err == nil {
			var doc idempotencyDoc
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if doc.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
			live := doc.ExpiresAt.IsZero() || now.Before(doc.ExpiresAt)
			if live {
				state := ReservationStatePending
				if doc.Status == string(StatusCompleted) {
					state = ReservationStateCompleted
				}
				result = Reservation{State: state, Record: doc.toRecord()}
				return nil
			}
			// Expired document: fall through and claim the key anew.
		}

		doc := idempotencyDoc{
			Key:         key,
			Fingerprint: fingerprint,
			Status:      string(StatusPending),
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		result = Reservation{State: ReservationStateNew, Record: doc.toRecord()}
		return nil
	}, firestore.MaxAttempts(s.attempts()))

	return result, err
}

func (s *FirestoreStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.doc(key)

	headers := storableHeaders(resp.Headers)
	var body []byte
	if len(resp.Body) > 0 {
		body = append([]byte(nil), resp.Body...)
	}

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var doc idempotencyDoc
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if doc.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
			if doc.CreatedAt.IsZero() {
				doc.CreatedAt = now
			}
		case status.Code(err) == codes.NotFound:
			doc = idempotencyDoc{Key: key, Fingerprint: fingerprint, CreatedAt: now}
		default:
			return err
		}

		doc.Status = string(StatusCompleted)
		doc.ResponseStatus = resp.Status
		doc.ResponseHeaders = headers
		doc.ResponseBody = body
		doc.UpdatedAt = now
		doc.ExpiresAt = now.Add(ttl)
		return tx.Set(ref, doc)
	}, firestore.MaxAttempts(s.attempts()))
}

func (s *FirestoreStore) Release(ctx context.Context, key, _ string) error {
	_, err := s.doc(key).Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

// CleanupExpired deletes up to limit expired records in one batch. Called
// periodically from a background ticker.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	if limit <= 0 {
		limit = defaultCleanupPageSize
	}

	expired := s.client.Collection(s.collection).
		Where("expires_at", "<=", now).
		Limit(limit).
		Documents(ctx)
	docs, err := expired.GetAll()
	switch {
	case err != nil:
		return 0, err
	case len(docs) == 0:
		return 0, nil
	}

	batch := s.client.Batch()
	for _, doc := range docs {
		batch.Delete(doc.Ref)
	}
	_, err = batch.Commit(ctx)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *FirestoreStore) attempts() int {
	if s.maxAttempts <= 0 {
		return 1
	}
	return s.maxAttempts
}

// idempotencyDoc is the Firestore shape of a Record. The expires_at field
// backs the cleanup query and must stay filterable.
type idempotencyDoc struct {
	Key         string    `firestore:"key"`
	Fingerprint string    `firestore:"fingerprint"`
	Status      string    `firestore:"status"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
	ExpiresAt   time.Time `firestore:"expires_at"`

	ResponseStatus  int                 `firestore:"response_status"`
	ResponseHeaders map[string][]string `firestore:"response_headers"`
	ResponseBody    []byte              `firestore:"response_body"`
}

func (d idempotencyDoc) toRecord() Record {
	return Record{
		Key:             d.Key,
		Fingerprint:     d.Fingerprint,
		Status:          Status(d.Status),
		ResponseStatus:  d.ResponseStatus,
		ResponseHeaders: d.ResponseHeaders,
		ResponseBody:    d.ResponseBody,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		ExpiresAt:       d.ExpiresAt,
	}
}
