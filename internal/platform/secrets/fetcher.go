// Package secrets resolves secret:// and sm:// references against Google
// Secret Manager. Resolved values are cached for the process lifetime and a
// local fallback file covers development machines without cloud credentials.
package secrets

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultEnvironment  = "local"
	defaultFallbackPath = ".secrets.local"
	meterName           = "github.com/shades-uz/api/internal/platform/secrets"
	latestVersion       = "latest"
)

// smClient is the slice of the Secret Manager API the fetcher needs.
// Tests substitute a fake through WithSecretManagerClient.
type smClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

// reference is a parsed secret:// URI. sm:// is accepted as an alias and
// canonicalised to secret:// so both spellings share one cache entry.
type reference struct {
	canonical string
	secret    string
	version   string // from ?version=, empty means unpinned
	project   string // from ?project=, empty means fetcher default
}

type cachedValue struct {
	value     string
	canonical string
	fetchedAt time.Time
}

// Fetcher resolves secret references with caching, version pinning, and a
// local fallback file for environments without Secret Manager access.
type Fetcher struct {
	client     smClient
	ownsClient bool
	clientOpts []option.ClientOption
	logger     *zap.Logger

	env            string
	defaultProject string
	versionPins    map[string]string

	fallbackPath string
	fallbackOnce sync.Once
	fallbackVals map[string]string
	fallbackErr  error

	mu       sync.RWMutex
	cache    map[string]cachedValue
	watchers map[string][]chan struct{}

	latency        metric.Float64Histogram
	cacheHits      metric.Int64Counter
	latencyOK      bool
	cacheCounterOK bool
}

// Option customises Fetcher construction.
type Option func(*Fetcher)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithEnvironment names the deployment environment; version pins may be
// scoped to it ("production:secret://...").
func WithEnvironment(env string) Option {
	return func(f *Fetcher) {
		f.env = strings.ToLower(strings.TrimSpace(env))
	}
}

// WithDefaultProject sets the GCP project secrets are read from when a
// reference carries no ?project override.
func WithDefaultProject(projectID string) Option {
	return func(f *Fetcher) {
		f.defaultProject = strings.TrimSpace(projectID)
	}
}

// WithFallbackFile points at the local key=value file consulted when Secret
// Manager is unreachable or unauthorised.
func WithFallbackFile(path string) Option {
	return func(f *Fetcher) {
		f.fallbackPath = strings.TrimSpace(path)
	}
}

// WithVersionPins pins references to fixed secret versions. Keys are
// canonical references, optionally prefixed "env:".
func WithVersionPins(pins map[string]string) Option {
	return func(f *Fetcher) {
		for key, value := range pins {
			f.versionPins[key] = value
		}
	}
}

// WithSecretManagerClient injects a preconstructed client, bypassing the
// default factory. Used by tests.
func WithSecretManagerClient(client smClient) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithClientOptions forwards options to the Secret Manager client
// constructor, e.g. credentials files.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(f *Fetcher) {
		f.clientOpts = append(f.clientOpts, opts...)
	}
}

// NewFetcher builds a Fetcher. A missing Secret Manager client is not fatal:
// the fetcher degrades to fallback-file-only operation so local development
// works without credentials.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		logger:       zap.NewNop(),
		env:          strings.ToLower(strings.TrimSpace(os.Getenv("API_ENVIRONMENT"))),
		fallbackPath: defaultFallbackPath,
		versionPins:  make(map[string]string),
		cache:        make(map[string]cachedValue),
		watchers:     make(map[string][]chan struct{}),
	}
	if f.env == "" {
		f.env = defaultEnvironment
	}

	for _, opt := range opts {
		opt(f)
	}

	meter := otel.GetMeterProvider().Meter(meterName)
	latency, err := meter.Float64Histogram(
		"secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency of secret fetch attempts"),
	)
	if err != nil {
		f.logger.Warn("secrets: latency metric unavailable", zap.Error(err))
	} else {
		f.latency = latency
		f.latencyOK = true
	}
	hits, err := meter.Int64Counter(
		"secrets.fetch.cache_hits",
		metric.WithDescription("Secret resolutions served from cache"),
	)
	if err != nil {
		f.logger.Warn("secrets: cache hit metric unavailable", zap.Error(err))
	} else {
		f.cacheHits = hits
		f.cacheCounterOK = true
	}

	if f.client == nil {
		client, err := secretManagerClientFactory(ctx, f.clientOpts...)
		if err != nil {
			f.logger.Warn("secrets: secret manager unavailable, using fallback file only", zap.Error(err))
			return f, nil
		}
		f.client = client
		f.ownsClient = true
	}
	return f, nil
}

// Close releases the Secret Manager client and wakes all subscribers.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	for canonical, chans := range f.watchers {
		delete(f.watchers, canonical)
		for _, ch := range chans {
			close(ch)
		}
	}
	f.mu.Unlock()

	if !f.ownsClient || f.client == nil {
		return nil
	}
	return f.client.Close()
}

// Resolve returns the value behind a secret reference. The lookup order is
// cache, Secret Manager, then the fallback file; the fallback is consulted
// only for access and availability failures, never for NotFound.
func (f *Fetcher) Resolve(ctx context.Context, raw string) (string, error) {
	start := time.Now()

	ref, err := parseReference(raw)
	if err != nil {
		return "", err
	}

	version := f.pinnedVersion(ref)
	key := ref.canonical + "#" + version

	if value, ok := f.fromCache(key); ok {
		f.countCacheHit(ctx, ref)
		f.observe(ctx, time.Since(start), "cache", nil)
		return value, nil
	}

	project := ref.project
	if project == "" {
		project = f.defaultProject
	}

	if project != "" && f.client != nil {
		value, err := f.access(ctx, project, ref.secret, version)
		if err == nil {
			f.store(key, ref.canonical, value)
			f.observe(ctx, time.Since(start), "remote", nil)
			return value, nil
		}
		if !fallbackEligible(err) {
			f.observe(ctx, time.Since(start), "error", err)
			return "", fmt.Errorf("secrets: fetch failed for %s: %w", ref.canonical, err)
		}
		f.logger.Debug("secrets: remote fetch failed, trying fallback file",
			zap.String("ref", maskReference(ref.canonical)), zap.Error(err))
	}

	value, ok := f.fromFallback(ref, version)
	if !ok {
		err := fmt.Errorf("secrets: no value for %s", ref.canonical)
		f.observe(ctx, time.Since(start), "error", err)
		return "", err
	}

	f.store(key, ref.canonical, value)
	f.observe(ctx, time.Since(start), "fallback", nil)
	return value, nil
}

// Invalidate drops cached values for a reference and signals subscribers,
// typically after a rotation event.
func (f *Fetcher) Invalidate(raw string) {
	ref, err := parseReference(raw)
	if err != nil {
		return
	}

	f.mu.Lock()
	for key, entry := range f.cache {
		if entry.canonical == ref.canonical {
			delete(f.cache, key)
		}
	}
	chans := append([]chan struct{}(nil), f.watchers[ref.canonical]...)
	f.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a channel that fires when the reference is invalidated.
// The cancel func must be called to release the subscription.
func (f *Fetcher) Subscribe(raw string) (<-chan struct{}, func()) {
	ref, err := parseReference(raw)
	if err != nil {
		closed := make(chan struct{})
		close(closed)
		return closed, func() {}
	}

	ch := make(chan struct{}, 1)
	f.mu.Lock()
	f.watchers[ref.canonical] = append(f.watchers[ref.canonical], ch)
	f.mu.Unlock()

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		chans := f.watchers[ref.canonical]
		for i, c := range chans {
			if c == ch {
				chans = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(chans) == 0 {
			delete(f.watchers, ref.canonical)
		} else {
			f.watchers[ref.canonical] = chans
		}
	}
}

func (f *Fetcher) access(ctx context.Context, project, secret, version string) (string, error) {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, secret, version)
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("secret manager returned empty payload for %s", name)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (f *Fetcher) pinnedVersion(ref reference) string {
	if ref.version != "" {
		return ref.version
	}
	if pin := strings.TrimSpace(f.versionPins[f.env+":"+ref.canonical]); pin != "" {
		return pin
	}
	if pin := strings.TrimSpace(f.versionPins[ref.canonical]); pin != "" {
		return pin
	}
	return latestVersion
}

func (f *Fetcher) fromCache(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.cache[key]
	return entry.value, ok
}

func (f *Fetcher) store(key, canonical, value string) {
	f.mu.Lock()
	f.cache[key] = cachedValue{value: value, canonical: canonical, fetchedAt: time.Now()}
	f.mu.Unlock()
}

func (f *Fetcher) fromFallback(ref reference, version string) (string, bool) {
	f.loadFallbackFile()
	if f.fallbackErr != nil {
		f.logger.Debug("secrets: fallback file unreadable", zap.Error(f.fallbackErr))
		return "", false
	}
	if value, ok := f.fallbackVals[ref.canonical+"#"+version]; ok {
		return value, true
	}
	value, ok := f.fallbackVals[ref.canonical]
	return value, ok
}

// loadFallbackFile reads the local secrets file once. Lines are
// "secret://name=value"; blank lines and # comments are skipped. A missing
// file is not an error.
func (f *Fetcher) loadFallbackFile() {
	f.fallbackOnce.Do(func() {
		f.fallbackVals = make(map[string]string)
		if f.fallbackPath == "" {
			return
		}

		file, err := os.Open(f.fallbackPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				f.fallbackErr = fmt.Errorf("secrets: open fallback file %s: %w", f.fallbackPath, err)
			}
			return
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			if key == "" {
				continue
			}
			ref, err := parseReference(key)
			if err != nil {
				f.fallbackVals[key] = value
				continue
			}
			version := ref.version
			if version == "" {
				version = latestVersion
			}
			f.fallbackVals[ref.canonical] = value
			f.fallbackVals[ref.canonical+"#"+version] = value
		}
		if err := scanner.Err(); err != nil {
			f.fallbackErr = fmt.Errorf("secrets: read fallback file %s: %w", f.fallbackPath, err)
		}
	})
}

func (f *Fetcher) observe(ctx context.Context, d time.Duration, source string, err error) {
	if !f.latencyOK {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("source", source)}
	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
	}
	f.latency.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(attrs...))
}

func (f *Fetcher) countCacheHit(ctx context.Context, ref reference) {
	if !f.cacheCounterOK {
		return
	}
	f.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("secret", maskReference(ref.canonical))))
}

func parseReference(raw string) (reference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return reference{}, errors.New("secrets: empty reference")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return reference{}, fmt.Errorf("secrets: invalid reference %q: %w", raw, err)
	}
	if u.Scheme != "secret" && u.Scheme != "sm" {
		return reference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}

	secret := strings.Trim(strings.TrimPrefix(u.Host+u.Path, "/"), "/")
	if secret == "" {
		return reference{}, fmt.Errorf("secrets: missing secret name in %q", raw)
	}

	query := u.Query()
	return reference{
		canonical: "secret://" + secret,
		secret:    secret,
		version:   strings.TrimSpace(query.Get("version")),
		project:   strings.TrimSpace(query.Get("project")),
	}, nil
}

// maskReference keeps secret names out of metric labels.
func maskReference(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:8])
}

// fallbackEligible reports whether a remote failure should be papered over
// by the local fallback file. NotFound is deliberately excluded: a missing
// secret in the configured project is a deployment mistake to surface, not
// to mask with stale local values.
func fallbackEligible(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
