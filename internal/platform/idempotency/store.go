// Package idempotency makes mutating endpoints safe to retry. Clients send
// an Idempotency-Key header; the first request through reserves the key and
// its response is stored, later requests with the same key and payload get
// the stored response replayed.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL is how long completed records are kept before a key may be
// reused for a new request.
const DefaultTTL = 24 * time.Hour

// Status is the lifecycle state of a stored record.
type Status string

const (
	// StatusPending marks a key that is reserved while its first request runs.
	StatusPending Status = "pending"
	// StatusCompleted marks a key whose response has been stored for replay.
	StatusCompleted Status = "completed"
)

// ReservationState tells the middleware what to do with an incoming request.
type ReservationState int

const (
	// ReservationStateNew lets the request proceed to the handler.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted replays the stored response.
	ReservationStateCompleted
	// ReservationStatePending rejects the request while the first one runs.
	ReservationStatePending
)

// Reservation is the outcome of claiming a key, with the stored record when
// one exists.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is the persisted state for one idempotency key.
type Record struct {
	Key         string
	Fingerprint string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time

	ResponseStatus  int
	ResponseHeaders map[string][]string
	ResponseBody    []byte
}

// Response is the handler output captured for later replay.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists idempotency reservations and captured responses.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch means a key was reused with a different request
// payload, which is a client error rather than a retry.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request fingerprint")

// docID derives the storage document id from the scoped key. Hashed so
// client-chosen keys cannot produce hostile document names.
func docID(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hopByHopHeaders are stripped before storing a response; they describe the
// original connection, not the payload.
var hopByHopHeaders = map[string]struct{}{
	"Content-Length":      {},
	"Date":                {},
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailers":            {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

func storableHeaders(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}
	kept := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		if _, skip := hopByHopHeaders[canonical]; skip {
			continue
		}
		kept[canonical] = append([]string(nil), values...)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
