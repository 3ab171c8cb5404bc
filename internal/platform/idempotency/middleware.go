package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shades-uz/api/internal/platform/auth"
	"github.com/shades-uz/api/internal/platform/httpx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"
)

// Logger receives diagnostics for store failures inside the middleware.
type Logger interface {
	Printf(format string, args ...any)
}

// MiddlewareOption customises middleware behaviour.
type MiddlewareOption func(*guard)

// WithHeader overrides the header carrying the idempotency key.
func WithHeader(name string) MiddlewareOption {
	return func(g *guard) {
		if name = strings.TrimSpace(name); name != "" {
			g.header = name
		}
	}
}

// WithTTL sets how long completed records are retained.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(g *guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithMethods restricts which HTTP methods the middleware guards.
func WithMethods(methods ...string) MiddlewareOption {
	return func(g *guard) {
		if len(methods) == 0 {
			return
		}
		g.methods = make(map[string]struct{}, len(methods))
		for _, m := range methods {
			if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
				g.methods[m] = struct{}{}
			}
		}
	}
}

// WithLogger injects a logger for persistence errors.
func WithLogger(logger Logger) MiddlewareOption {
	return func(g *guard) { g.logger = logger }
}

// WithClock overrides the time source, used by tests.
func WithClock(clock func() time.Time) MiddlewareOption {
	return func(g *guard) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// guard holds the resolved middleware configuration.
type guard struct {
	store   Store
	header  string
	ttl     time.Duration
	methods map[string]struct{}
	clock   func() time.Time
	logger  Logger
}

func mutatingMethods() map[string]struct{} {
	return map[string]struct{}{
		http.MethodPost:   {},
		http.MethodPut:    {},
		http.MethodPatch:  {},
		http.MethodDelete: {},
	}
}

// Middleware returns an HTTP middleware that enforces idempotency for the
// configured methods. A nil store disables the middleware entirely.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	g := &guard{
		store:   store,
		header:  defaultHeaderName,
		ttl:     DefaultTTL,
		methods: mutatingMethods(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	if len(g.methods) == 0 {
		g.methods = mutatingMethods()
	}

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(w, r, next)
		})
	}
}

func (g *guard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if _, guarded := g.methods[r.Method]; !guarded {
		next.ServeHTTP(w, r)
		return
	}

	key := strings.TrimSpace(r.Header.Get(g.header))
	if key == "" {
		respondError(w, r, http.StatusBadRequest, "idempotency_key_required", "missing idempotency key header")
		return
	}

	body, err := readAndReplayBody(r)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "idempotency_read_body_failed", "unable to read request body")
		return
	}

	identity := extractRequester(r.Context())
	fingerprint := requestFingerprint(r, body, identity)
	scoped := scopedKey(key, identity)
	now := g.clock().UTC()

	reservation, err := g.store.Reserve(r.Context(), scoped, fingerprint, now, g.ttl)
	if err != nil {
		g.storeError(w, r, err)
		return
	}

	switch reservation.State {
	case ReservationStateCompleted:
		replayResponse(w, reservation.Record)
		return
	case ReservationStatePending:
		respondError(w, r, http.StatusConflict, "idempotency_in_progress", "another request is processing this idempotency key")
		return
	case ReservationStateNew:
	default:
		respondError(w, r, http.StatusInternalServerError, "idempotency_unknown_state", "unexpected idempotency state")
		return
	}

	// Buffer the handler response so it can be stored before reaching the
	// client. Committing after a successful save means a replay can never
	// observe a response the store does not have.
	capture := newCaptureWriter(w)
	next.ServeHTTP(capture, r)

	response := Response{
		Status:  capture.StatusCode(),
		Headers: capture.HeaderSnapshot(),
		Body:    capture.Body(),
	}

	if err := g.store.SaveResponse(r.Context(), scoped, fingerprint, response, g.clock().UTC(), g.ttl); err != nil {
		g.logf("idempotency: persist response for key %s failed: %v", key, err)
		if releaseErr := g.store.Release(r.Context(), scoped, fingerprint); releaseErr != nil {
			g.logf("idempotency: release key %s after save failure: %v", key, releaseErr)
		}
		respondError(w, r, http.StatusInternalServerError, "idempotency_store_error", "unable to persist idempotency state")
		return
	}

	if err := capture.Commit(); err != nil {
		g.logf("idempotency: flush response for key %s: %v", key, err)
	}
}

func (g *guard) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrFingerprintMismatch) {
		respondError(w, r, http.StatusConflict, "idempotency_key_conflict", "idempotency key already used for a different request")
		return
	}
	g.logf("idempotency: store error: %v", err)
	respondError(w, r, http.StatusInternalServerError, "idempotency_store_error", "unable to process idempotency key")
}

func (g *guard) logf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}

// readAndReplayBody drains the request body and reinstates it so the
// downstream handler can read it again.
func readAndReplayBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	original := r.Body
	data, err := io.ReadAll(original)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, original.Close()
}

// requestFingerprint binds a key to the exact request it was first used
// with. Reuse with a different method, path, body, or caller is a conflict.
func requestFingerprint(r *http.Request, body []byte, identity string) string {
	parts := []string{
		strings.ToUpper(r.Method),
		r.URL.Path,
		r.URL.RawQuery,
		r.Host,
		r.Header.Get("Content-Type"),
		identity,
	}
	if len(body) > 0 {
		parts = append(parts, sha256Hex(body))
	} else {
		parts = append(parts, "")
	}
	return sha256Hex([]byte(strings.Join(parts, "|")))
}

func extractRequester(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil && identity.UserID != "" {
		return identity.UserID
	}
	return "anonymous"
}

// scopedKey namespaces the client key by caller so two users reusing the
// same key value never collide.
func scopedKey(key, identity string) string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		identity = "anonymous"
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return identity
	}
	return key + "|" + identity
}

func replayResponse(w http.ResponseWriter, record Record) {
	header := w.Header()
	for name := range header {
		header.Del(name)
	}
	for name, values := range record.ResponseHeaders {
		for _, value := range values {
			header.Add(name, value)
		}
	}
	header.Set(replayHeaderName, "true")

	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if body := record.ResponseBody; len(body) > 0 {
		_, _ = w.Write(body)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	httpx.WriteError(r.Context(), w, httpx.NewError(code, message, status))
}

// captureWriter buffers the handler's response until Commit.
type captureWriter struct {
	parent http.ResponseWriter
	header http.Header
	status int
	body   bytes.Buffer
}

func newCaptureWriter(parent http.ResponseWriter) *captureWriter {
	return &captureWriter{parent: parent, header: make(http.Header)}
}

func (c *captureWriter) Header() http.Header { return c.header }

func (c *captureWriter) WriteHeader(status int) {
	if status <= 0 {
		status = http.StatusOK
	}
	c.status = status
}

func (c *captureWriter) Write(data []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	return c.body.Write(data)
}

func (c *captureWriter) StatusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *captureWriter) Body() []byte {
	if c.body.Len() == 0 {
		return nil
	}
	return c.body.Bytes()
}

func (c *captureWriter) HeaderSnapshot() http.Header {
	snapshot := make(http.Header, len(c.header))
	for name, values := range c.header {
		snapshot[name] = append([]string(nil), values...)
	}
	return snapshot
}

func (c *captureWriter) Commit() error {
	dst := c.parent.Header()
	for name := range dst {
		dst.Del(name)
	}
	for name, values := range c.header {
		for _, value := range values {
			dst.Add(name, value)
		}
	}
	c.parent.WriteHeader(c.StatusCode())
	if c.body.Len() == 0 {
		return nil
	}
	_, err := c.parent.Write(c.body.Bytes())
	return err
}
