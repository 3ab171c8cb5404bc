package storage

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Signer provides the identity and signing primitive behind signed URLs.
type Signer interface {
	// Email is the service account used as the GoogleAccessID.
	Email() string
	// SignBytes signs the URL string-to-sign with the account's private key.
	SignBytes(ctx context.Context, payload []byte) ([]byte, error)
}

// ServiceAccountSigner signs with an RSA key loaded from a service account
// JSON key file.
type ServiceAccountSigner struct {
	email string
	key   *rsa.PrivateKey
}

var _ Signer = (*ServiceAccountSigner)(nil)

// NewServiceAccountSignerFromJSON parses a service account key file body.
func NewServiceAccountSignerFromJSON(data []byte) (*ServiceAccountSigner, error) {
	if len(data) == 0 {
		return nil, errors.New("storage: service account JSON is empty")
	}

	var key struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("storage: decode service account json: %w", err)
	}

	email := strings.TrimSpace(key.ClientEmail)
	pemKey := strings.TrimSpace(key.PrivateKey)
	if email == "" {
		return nil, errors.New("storage: client_email missing in service account JSON")
	}
	if pemKey == "" {
		return nil, errors.New("storage: private_key missing in service account JSON")
	}

	rsaKey, err := parseRSAPrivateKey(pemKey)
	if err != nil {
		return nil, err
	}
	return &ServiceAccountSigner{email: email, key: rsaKey}, nil
}

// NewServiceAccountSignerFromFile reads the key file from disk.
func NewServiceAccountSignerFromFile(path string) (*ServiceAccountSigner, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read service account file: %w", err)
	}
	return NewServiceAccountSignerFromJSON(contents)
}

func (s *ServiceAccountSigner) Email() string {
	if s == nil {
		return ""
	}
	return s.email
}

// SignBytes signs the payload with RSA PKCS#1 v1.5 over SHA-256, the scheme
// GCS expects for V4 signed URLs.
func (s *ServiceAccountSigner) SignBytes(ctx context.Context, payload []byte) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("storage: signer not initialised")
	}
	if len(payload) == 0 {
		return nil, errors.New("storage: payload is empty")
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	digest := sha256.Sum256(payload)
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("storage: sign payload: %w", err)
	}
	return signature, nil
}

// parseRSAPrivateKey accepts PKCS#8 and PKCS#1 encoded keys; Google issues
// PKCS#8 but older exported keys may be PKCS#1.
func parseRSAPrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("storage: failed to decode PEM private key")
	}

	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("storage: private key is not RSA")
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("storage: parse RSA private key: %w", err)
	}
	return rsaKey, nil
}
