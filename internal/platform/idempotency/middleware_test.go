package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testClock = func() time.Time {
	return time.Date(2024, time.May, 10, 9, 30, 0, 0, time.UTC)
}

func newOrderRequest(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func decodeErrorCode(t *testing.T, payload []byte) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	return body.Error
}

func TestMiddlewareRequiresKeyHeader(t *testing.T) {
	handler := Middleware(NewMemoryStore(), WithClock(testClock))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler must not run without an idempotency key")
		}),
	)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newOrderRequest(`{"clientName":"Aziz"}`, ""))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if code := decodeErrorCode(t, rr.Body.Bytes()); code != "idempotency_key_required" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestMiddlewareIgnoresUnguardedMethods(t *testing.T) {
	called := false
	handler := Middleware(NewMemoryStore(), WithMethods(http.MethodPost))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		}),
	)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

	if !called {
		t.Fatal("GET request must pass through without a key")
	}
}

func TestMiddlewareReplaysStoredResponse(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore(), WithClock(testClock))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"ord_1"}`))
		}),
	)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newOrderRequest(`{"clientName":"Aziz"}`, "key-1"))
	if first.Code != http.StatusCreated {
		t.Fatalf("unexpected first status %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newOrderRequest(`{"clientName":"Aziz"}`, "key-1"))

	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed status 201, got %d", second.Code)
	}
	if second.Header().Get(replayHeaderName) != "true" {
		t.Fatal("expected replay marker header")
	}
	if second.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected stored content type, got %q", second.Header().Get("Content-Type"))
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("expected identical bodies, got %q and %q", first.Body.String(), second.Body.String())
	}
}

func TestMiddlewareRejectsKeyReuseWithDifferentBody(t *testing.T) {
	handler := Middleware(NewMemoryStore(), WithClock(testClock))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newOrderRequest(`{"clientName":"Aziz"}`, "shared"))
	if first.Code != http.StatusOK {
		t.Fatalf("unexpected first status %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newOrderRequest(`{"clientName":"Bek"}`, "shared"))

	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key, got %d", second.Code)
	}
	if code := decodeErrorCode(t, second.Body.Bytes()); code != "idempotency_key_conflict" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestMiddlewareRejectsWhileFirstRequestPending(t *testing.T) {
	store := NewMemoryStore()
	handler := Middleware(store, WithClock(testClock))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler must not run for a pending reservation")
		}),
	)

	req := newOrderRequest(`{"clientName":"Aziz"}`, "pending")
	body, err := readAndReplayBody(req)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	identity := extractRequester(req.Context())
	fingerprint := requestFingerprint(req, body, identity)
	if _, err := store.Reserve(req.Context(), scopedKey("pending", identity), fingerprint, testClock(), time.Hour); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("pending reservation status = %d, want 409", rr.Code)
	}
	if code := decodeErrorCode(t, rr.Body.Bytes()); code != "idempotency_in_progress" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestMiddlewareReleasesKeyWhenSaveFails(t *testing.T) {
	store := &failingStore{}
	handler := Middleware(store, WithClock(testClock))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("ok"))
		}),
	)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newOrderRequest(`{"clientName":"Aziz"}`, "fails"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on save failure, got %d", rr.Code)
	}
	if code := decodeErrorCode(t, rr.Body.Bytes()); code != "idempotency_store_error" {
		t.Fatalf("unexpected error code %q", code)
	}
	if !store.released {
		t.Fatal("expected reservation release after save failure")
	}
}

func TestMemoryStoreCleanupExpired(t *testing.T) {
	store := NewMemoryStore()
	now := testClock()

	if _, err := store.Reserve(context.Background(), "old", "fp1", now.Add(-48*time.Hour), time.Hour); err != nil {
		t.Fatalf("failed to seed expired record: %v", err)
	}
	if _, err := store.Reserve(context.Background(), "fresh", "fp2", now, time.Hour); err != nil {
		t.Fatalf("failed to seed live record: %v", err)
	}

	removed, err := store.CleanupExpired(context.Background(), now, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 expired record removed, got %d", removed)
	}

	reservation, err := store.Reserve(context.Background(), "fresh", "fp2", now, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reservation.State != ReservationStatePending {
		t.Fatalf("live record must survive cleanup, got state %d", reservation.State)
	}
}

type failingStore struct {
	released bool
}

var _ Store = (*failingStore)(nil)

func (s *failingStore) Reserve(context.Context, string, string, time.Time, time.Duration) (Reservation, error) {
	return Reservation{State: ReservationStateNew}, nil
}

func (s *failingStore) SaveResponse(context.Context, string, string, Response, time.Time, time.Duration) error {
	return errors.New("save failed")
}

func (s *failingStore) Release(context.Context, string, string) error {
	s.released = true
	return nil
}

func (s *failingStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}
