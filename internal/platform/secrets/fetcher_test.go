package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const signingKeyResource = "projects/test/secrets/jwt_signing_key/versions/latest"

// fakeSecretClient answers AccessSecretVersion from in-memory maps and
// counts calls per resource name.
type fakeSecretClient struct {
	mu     sync.Mutex
	values map[string]string
	errs   map[string]error
	calls  map[string]int
}

var _ smClient = (*fakeSecretClient)(nil)

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{
		values: map[string]string{},
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

func (f *fakeSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := req.GetName()
	f.calls[name]++
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	value, ok := f.values[name]
	if !ok {
		return nil, status.Error(codes.NotFound, "not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (f *fakeSecretClient) Close() error { return nil }

func (f *fakeSecretClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func newTestFetcher(t *testing.T, client *fakeSecretClient, extra ...Option) *Fetcher {
	t.Helper()
	opts := append([]Option{
		WithSecretManagerClient(client),
		WithDefaultProject("test"),
		WithLogger(zap.NewNop()),
	}, extra...)
	fetcher, err := NewFetcher(context.Background(), opts...)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	t.Cleanup(func() { _ = fetcher.Close() })
	return fetcher
}

func writeFallbackFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fallback file: %v", err)
	}
	return path
}

func TestResolveCachesRemoteSecret(t *testing.T) {
	client := newFakeSecretClient()
	client.values[signingKeyResource] = "remote-secret"
	fetcher := newTestFetcher(t, client)

	for i := 0; i < 2; i++ {
		got, err := fetcher.Resolve(context.Background(), "secret://jwt_signing_key")
		if err != nil {
			t.Fatalf("Resolve call %d: %v", i+1, err)
		}
		if got != "remote-secret" {
			t.Fatalf("Resolve call %d: expected remote-secret, got %s", i+1, got)
		}
	}
	if calls := client.callCount(signingKeyResource); calls != 1 {
		t.Fatalf("expected one remote fetch, got %d", calls)
	}
}

func TestResolveAcceptsSMScheme(t *testing.T) {
	client := newFakeSecretClient()
	client.values[signingKeyResource] = "remote-secret"
	fetcher := newTestFetcher(t, client)

	// sm:// and secret:// are the same reference and share the cache.
	if _, err := fetcher.Resolve(context.Background(), "sm://jwt_signing_key"); err != nil {
		t.Fatalf("Resolve sm://: %v", err)
	}
	if _, err := fetcher.Resolve(context.Background(), "secret://jwt_signing_key"); err != nil {
		t.Fatalf("Resolve secret://: %v", err)
	}
	if calls := client.callCount(signingKeyResource); calls != 1 {
		t.Fatalf("expected shared cache entry, got %d fetches", calls)
	}
}

func TestResolveFallsBackWhenAccessDenied(t *testing.T) {
	client := newFakeSecretClient()
	client.errs[signingKeyResource] = status.Error(codes.PermissionDenied, "denied")
	fallback := writeFallbackFile(t, "secret://jwt_signing_key=local-secret\n")
	fetcher := newTestFetcher(t, client, WithFallbackFile(fallback))

	got, err := fetcher.Resolve(context.Background(), "secret://jwt_signing_key")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "local-secret" {
		t.Fatalf("expected fallback value local-secret, got %s", got)
	}
}

func TestResolveDoesNotFallBackOnNotFound(t *testing.T) {
	client := newFakeSecretClient()
	client.errs[signingKeyResource] = status.Error(codes.NotFound, "missing")
	fallback := writeFallbackFile(t, "secret://jwt_signing_key=local-secret\n")
	fetcher := newTestFetcher(t, client, WithFallbackFile(fallback))

	if _, err := fetcher.Resolve(context.Background(), "secret://jwt_signing_key"); err == nil {
		t.Fatal("expected error for a missing secret, not the fallback value")
	}
}

func TestResolveUsesVersionPins(t *testing.T) {
	pinned := "projects/test/secrets/jwt_signing_key/versions/5"
	client := newFakeSecretClient()
	client.values[pinned] = "version-5"
	fetcher := newTestFetcher(t, client, WithVersionPins(map[string]string{
		"secret://jwt_signing_key": "5",
	}))

	got, err := fetcher.Resolve(context.Background(), "secret://jwt_signing_key")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "version-5" {
		t.Fatalf("expected version-5, got %s", got)
	}
	if calls := client.callCount(pinned); calls != 1 {
		t.Fatalf("expected one fetch of the pinned version, got %d", calls)
	}
}

func TestInvalidateNotifiesSubscribers(t *testing.T) {
	client := newFakeSecretClient()
	client.values[signingKeyResource] = "remote-secret"
	fetcher := newTestFetcher(t, client)

	if _, err := fetcher.Resolve(context.Background(), "secret://jwt_signing_key"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	ch, cancel := fetcher.Subscribe("secret://jwt_signing_key")
	defer cancel()

	fetcher.Invalidate("secret://jwt_signing_key")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected invalidation notification")
	}

	// The cached value is gone, the next resolve goes remote again.
	if _, err := fetcher.Resolve(context.Background(), "secret://jwt_signing_key"); err != nil {
		t.Fatalf("Resolve after invalidate: %v", err)
	}
	if calls := client.callCount(signingKeyResource); calls != 2 {
		t.Fatalf("expected refetch after invalidate, got %d calls", calls)
	}
}

func TestNewFetcherWithoutCredentialsUsesFallback(t *testing.T) {
	original := secretManagerClientFactory
	secretManagerClientFactory = func(context.Context, ...option.ClientOption) (*secretmanager.Client, error) {
		return nil, errors.New("no credentials")
	}
	t.Cleanup(func() { secretManagerClientFactory = original })

	fallback := writeFallbackFile(t, "secret://jwt_signing_key=local-secret\n")
	fetcher, err := NewFetcher(context.Background(), WithFallbackFile(fallback))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer fetcher.Close()

	got, err := fetcher.Resolve(context.Background(), "secret://jwt_signing_key")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "local-secret" {
		t.Fatalf("expected local-secret, got %s", got)
	}
}

func TestParseReferenceRejectsBadInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "vault://key", "secret://"} {
		if _, err := parseReference(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
