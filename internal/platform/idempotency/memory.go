package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Suitable for tests and
// single-instance local runs only.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

var _ Store = (*MemoryStore)(nil)

func recordExpired(record Record, now time.Time) bool {
	return !record.ExpiresAt.IsZero() && !now.Before(record.ExpiresAt)
}

func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := docID(key)
	record, ok := s.records[id]
	if !ok || recordExpired(record, now) {
		record = Record{
			Key:         key,
			Fingerprint: fingerprint,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}
		s.records[id] = record
		return Reservation{State: ReservationStateNew, Record: record}, nil
	}

	if record.Fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	state := ReservationStatePending
	if record.Status == StatusCompleted {
		state = ReservationStateCompleted
	}
	return Reservation{State: state, Record: record}, nil
}

func (s *MemoryStore) SaveResponse(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := docID(key)
	record, ok := s.records[id]
	switch {
	case !ok:
		record = Record{Key: key, Fingerprint: fingerprint, CreatedAt: now}
	case record.Fingerprint != fingerprint:
		return ErrFingerprintMismatch
	case record.CreatedAt.IsZero():
		record.CreatedAt = now
	}

	record.Status = StatusCompleted
	record.ResponseStatus = resp.Status
	record.ResponseHeaders = storableHeaders(resp.Headers)
	record.ResponseBody = nil
	if len(resp.Body) > 0 {
		record.ResponseBody = append([]byte(nil), resp.Body...)
	}
	record.UpdatedAt = now
	record.ExpiresAt = now.Add(ttl)
	s.records[id] = record
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, docID(key))
	return nil
}

func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}

	var removed int
	for id, record := range s.records {
		if !recordExpired(record, now) {
			continue
		}
		delete(s.records, id)
		if removed++; removed >= limit {
			break
		}
	}
	return removed, nil
}
