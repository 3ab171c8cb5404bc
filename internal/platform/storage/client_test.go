package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shades-uz/api/internal/platform/auth"
)

type fakeSigner struct {
	email    string
	payloads [][]byte
	err      error
}

func (f *fakeSigner) Email() string { return f.email }

func (f *fakeSigner) SignBytes(_ context.Context, payload []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, append([]byte(nil), payload...))
	return []byte("signed"), nil
}

var _ Signer = (*fakeSigner)(nil)

var signingClock = func() time.Time {
	return time.Date(2024, time.May, 10, 9, 30, 0, 0, time.UTC)
}

func newTestClient(t *testing.T, signer *fakeSigner) *Client {
	t.Helper()
	client, err := NewClient(signer, WithClock(signingClock))
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	return client
}

func TestNewClientRequiresSigner(t *testing.T) {
	if _, err := NewClient(nil); !errors.Is(err, errNoSigner) {
		t.Fatalf("expected errNoSigner, got %v", err)
	}
	if _, err := NewClient(&fakeSigner{email: "  "}); !errors.Is(err, errNoSigner) {
		t.Fatalf("expected errNoSigner for blank email, got %v", err)
	}
}

func TestSignedURLUpload(t *testing.T) {
	signer := &fakeSigner{email: "api@shades.iam.gserviceaccount.com"}
	client := newTestClient(t, signer)

	res, err := client.SignedURL(context.Background(), "shades-photos", "orders/ord_1/windows/win_1/measurements/front.jpg", SignedURLOptions{
		Upload: &UploadOptions{
			ContentType:         "image/jpeg",
			AllowedContentTypes: []string{"image/jpeg", "image/png"},
			MaxSize:             10 << 20,
			ExpiresIn:           10 * time.Minute,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Method != "PUT" {
		t.Fatalf("expected default PUT method, got %s", res.Method)
	}
	if !res.ExpiresAt.Equal(signingClock().Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", res.ExpiresAt)
	}
	if res.Headers["Content-Type"] != "image/jpeg" {
		t.Fatalf("expected content type header, got %v", res.Headers)
	}
	if res.Headers["x-goog-content-length-range"] != "0,10485760" {
		t.Fatalf("expected size range header, got %v", res.Headers)
	}

	parsed, err := url.Parse(res.URL)
	if err != nil {
		t.Fatalf("failed to parse signed URL: %v", err)
	}
	if !strings.Contains(parsed.RawQuery, "X-Goog-Signature=") {
		t.Fatalf("expected signature in query: %s", parsed.RawQuery)
	}
	if len(signer.payloads) == 0 {
		t.Fatal("expected signer to be invoked")
	}
}

func TestSignedURLUploadValidation(t *testing.T) {
	client := newTestClient(t, &fakeSigner{email: "api@shades.iam.gserviceaccount.com"})

	cases := []struct {
		name   string
		upload UploadOptions
		want   error
	}{
		{
			name:   "missing content type",
			upload: UploadOptions{},
			want:   errContentTypeMissing,
		},
		{
			name: "disallowed content type",
			upload: UploadOptions{
				ContentType:         "application/pdf",
				AllowedContentTypes: []string{"image/*"},
			},
			want: errContentTypeDenied,
		},
		{
			name: "disallowed method",
			upload: UploadOptions{
				Method:      "DELETE",
				ContentType: "image/jpeg",
			},
			want: errMethodNotAllowed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			upload := tc.upload
			_, err := client.SignedURL(context.Background(), "bucket", "object", SignedURLOptions{Upload: &upload})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSignedURLUploadAllowsWildcardContentType(t *testing.T) {
	client := newTestClient(t, &fakeSigner{email: "api@shades.iam.gserviceaccount.com"})

	res, err := client.SignedURL(context.Background(), "bucket", "object", SignedURLOptions{
		Upload: &UploadOptions{
			ContentType:         "image/webp",
			AllowedContentTypes: []string{"image/*"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.URL == "" {
		t.Fatal("expected signed url")
	}
}

func TestSignedURLRequiresSingleIntent(t *testing.T) {
	client := newTestClient(t, &fakeSigner{email: "api@shades.iam.gserviceaccount.com"})

	if _, err := client.SignedURL(context.Background(), "bucket", "object", SignedURLOptions{}); !errors.Is(err, errNoIntent) {
		t.Fatalf("expected errNoIntent, got %v", err)
	}

	both := SignedURLOptions{
		Upload:   &UploadOptions{ContentType: "image/jpeg"},
		Download: &DownloadOptions{AllowAnonymous: true},
	}
	if _, err := client.SignedURL(context.Background(), "bucket", "object", both); !errors.Is(err, errBothIntents) {
		t.Fatalf("expected errBothIntents, got %v", err)
	}
}

func TestSignedURLDownloadAuthorization(t *testing.T) {
	client := newTestClient(t, &fakeSigner{email: "api@shades.iam.gserviceaccount.com"})

	t.Run("stranger denied", func(t *testing.T) {
		_, err := client.SignedURL(context.Background(), "bucket", "object", SignedURLOptions{
			Download: &DownloadOptions{
				OwnerID:  "usr_owner",
				Identity: &auth.Identity{UserID: "usr_other"},
			},
		})
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
	})

	t.Run("admin allowed", func(t *testing.T) {
		res, err := client.SignedURL(context.Background(), "bucket", "object", SignedURLOptions{
			Download: &DownloadOptions{
				OwnerID:   "usr_owner",
				Identity:  &auth.Identity{UserID: "usr_admin", Role: auth.RoleAdmin},
				ExpiresIn: 5 * time.Minute,
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Method != "GET" {
			t.Fatalf("expected GET method, got %s", res.Method)
		}
		if !res.ExpiresAt.Equal(signingClock().Add(5 * time.Minute)) {
			t.Fatalf("unexpected expiry %v", res.ExpiresAt)
		}
	})
}

func TestSignedURLDownloadCapsExpiry(t *testing.T) {
	client := newTestClient(t, &fakeSigner{email: "api@shades.iam.gserviceaccount.com"})

	_, err := client.SignedURL(context.Background(), "bucket", "object", SignedURLOptions{
		Download: &DownloadOptions{
			OwnerID:   "usr_owner",
			Identity:  &auth.Identity{UserID: "usr_owner"},
			ExpiresIn: 30 * time.Minute,
		},
	})
	if !errors.Is(err, errExpiryTooLong) {
		t.Fatalf("expected errExpiryTooLong, got %v", err)
	}
}
