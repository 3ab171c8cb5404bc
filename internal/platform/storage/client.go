// Package storage issues V4 signed URLs for Cloud Storage objects. The API
// never proxies photo bytes; clients upload and download directly against
// GCS using short-lived URLs minted here.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/shades-uz/api/internal/platform/auth"
)

const (
	defaultUploadExpiry   = 15 * time.Minute
	defaultDownloadExpiry = 5 * time.Minute
	maxDownloadExpiry     = 15 * time.Minute
)

var (
	errNoSigner           = errors.New("storage: signer is required")
	errNoIntent           = errors.New("storage: either upload or download options must be provided")
	errBothIntents        = errors.New("storage: upload and download options cannot be used together")
	errInvalidBucket      = errors.New("storage: bucket name is required")
	errInvalidObject      = errors.New("storage: object name is required")
	errMethodNotAllowed   = errors.New("storage: HTTP method not allowed for intent")
	errContentTypeMissing = errors.New("storage: content type is required for uploads")
	errContentTypeDenied  = errors.New("storage: content type not allowed")
	errExpiryTooLong      = errors.New("storage: expiry exceeds permitted maximum")
)

// Client mints signed URLs using the configured Signer identity.
type Client struct {
	signer Signer
	now    func() time.Time
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithClock overrides the time source, used by tests to pin expiries.
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewClient constructs a signed URL client.
func NewClient(signer Signer, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}
	c := &Client{signer: signer, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// SignedURLOptions select the signing intent. Exactly one of Upload or
// Download must be set.
type SignedURLOptions struct {
	Upload   *UploadOptions
	Download *DownloadOptions
}

// UploadOptions constrain what the signed upload URL permits.
type UploadOptions struct {
	Method              string // PUT (default) or POST
	ContentType         string
	AllowedContentTypes []string // empty allows any; supports "image/*" wildcards
	MaxSize             int64    // bytes; enforced by GCS via content-length-range
	ExpiresIn           time.Duration
}

// DownloadOptions constrain the signed download URL and carry the caller
// identity for the authorization check.
type DownloadOptions struct {
	Method         string // GET (default) or HEAD
	ExpiresIn      time.Duration
	OwnerID        string
	Identity       *auth.Identity
	AllowAnonymous bool
}

// SignedURLResult is the minted URL plus the headers the client must send
// verbatim for the signature to validate.
type SignedURLResult struct {
	URL       string
	Method    string
	ExpiresAt time.Time
	Headers   map[string]string
}

// SignedURL mints a signed URL for the object according to the options.
func (c *Client) SignedURL(ctx context.Context, bucket, object string, opts SignedURLOptions) (SignedURLResult, error) {
	if c == nil {
		return SignedURLResult{}, errNoSigner
	}
	if ctx == nil {
		return SignedURLResult{}, errors.New("storage: context is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return SignedURLResult{}, errInvalidBucket
	}
	if object = strings.TrimSpace(object); object == "" {
		return SignedURLResult{}, errInvalidObject
	}

	switch {
	case opts.Upload == nil && opts.Download == nil:
		return SignedURLResult{}, errNoIntent
	case opts.Upload != nil && opts.Download != nil:
		return SignedURLResult{}, errBothIntents
	case opts.Upload != nil:
		return c.signUpload(ctx, bucket, object, *opts.Upload)
	default:
		return c.signDownload(ctx, bucket, object, *opts.Download)
	}
}

func (c *Client) signUpload(ctx context.Context, bucket, object string, upload UploadOptions) (SignedURLResult, error) {
	method := strings.ToUpper(strings.TrimSpace(upload.Method))
	if method == "" {
		method = "PUT"
	}
	if method != "PUT" && method != "POST" {
		return SignedURLResult{}, errMethodNotAllowed
	}

	contentType := strings.TrimSpace(upload.ContentType)
	if contentType == "" {
		return SignedURLResult{}, errContentTypeMissing
	}
	if len(upload.AllowedContentTypes) > 0 && !contentTypeAllowed(contentType, upload.AllowedContentTypes) {
		return SignedURLResult{}, errContentTypeDenied
	}

	expiry := upload.ExpiresIn
	if expiry <= 0 {
		expiry = defaultUploadExpiry
	}
	expiresAt := c.now().Add(expiry)

	headers := map[string]string{"Content-Type": contentType}
	urlOpts := storage.SignedURLOptions{
		GoogleAccessID: c.signer.Email(),
		Scheme:         storage.SigningSchemeV4,
		Method:         method,
		ContentType:    contentType,
		Expires:        expiresAt,
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	}

	if upload.MaxSize > 0 {
		// GCS rejects bodies outside the range when this header is part of
		// the signature.
		sizeRange := fmt.Sprintf("0,%d", upload.MaxSize)
		urlOpts.Headers = []string{"x-goog-content-length-range:" + sizeRange}
		headers["x-goog-content-length-range"] = sizeRange
	}

	signed, err := storage.SignedURL(bucket, object, &urlOpts)
	if err != nil {
		return SignedURLResult{}, fmt.Errorf("storage: sign upload url: %w", err)
	}
	return SignedURLResult{URL: signed, Method: method, ExpiresAt: expiresAt, Headers: headers}, nil
}

func (c *Client) signDownload(ctx context.Context, bucket, object string, download DownloadOptions) (SignedURLResult, error) {
	method := strings.ToUpper(strings.TrimSpace(download.Method))
	if method == "" {
		method = "GET"
	}
	if method != "GET" && method != "HEAD" {
		return SignedURLResult{}, errMethodNotAllowed
	}

	expiry := download.ExpiresIn
	if expiry <= 0 {
		expiry = defaultDownloadExpiry
	}
	if expiry > maxDownloadExpiry {
		return SignedURLResult{}, errExpiryTooLong
	}

	if err := AuthorizeDownload(download.Identity, download.OwnerID, download.AllowAnonymous); err != nil {
		return SignedURLResult{}, err
	}

	expiresAt := c.now().Add(expiry)
	urlOpts := storage.SignedURLOptions{
		GoogleAccessID: c.signer.Email(),
		Scheme:         storage.SigningSchemeV4,
		Method:         method,
		Expires:        expiresAt,
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	}

	signed, err := storage.SignedURL(bucket, object, &urlOpts)
	if err != nil {
		return SignedURLResult{}, fmt.Errorf("storage: sign download url: %w", err)
	}
	return SignedURLResult{URL: signed, Method: method, ExpiresAt: expiresAt}, nil
}

// contentTypeAllowed matches a content type against an allowlist that may
// contain exact entries, "type/*" wildcards, or "*".
func contentTypeAllowed(contentType string, allowed []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		switch {
		case candidate == "":
		case candidate == "*":
			return true
		case strings.HasSuffix(candidate, "/*"):
			if strings.HasPrefix(normalized, strings.TrimSuffix(candidate, "*")) {
				return true
			}
		case normalized == candidate:
			return true
		}
	}
	return false
}
