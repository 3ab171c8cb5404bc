package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const defaultTokenTTL = 7 * 24 * time.Hour

var (
	// ErrTokenExpired signals that the provided session token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the provided session token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// SessionClaims is the JWT payload carried by issued session tokens.
type SessionClaims struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	Locale   string `json:"locale,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HMAC-signed session tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenManagerOption customises TokenManager behaviour.
type TokenManagerOption func(*TokenManager)

// WithTokenTTL overrides the default session lifetime.
func WithTokenTTL(ttl time.Duration) TokenManagerOption {
	return func(m *TokenManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithTokenClock injects a custom clock primarily for tests.
func WithTokenClock(clock func() time.Time) TokenManagerOption {
	return func(m *TokenManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// NewTokenManager constructs a TokenManager from the signing secret.
func NewTokenManager(secret string, issuer string, opts ...TokenManagerOption) (*TokenManager, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}

	manager := &TokenManager{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	return manager, nil
}

// Issue signs a session token for the identity and returns it with its expiry.
func (m *TokenManager) Issue(identity Identity) (string, time.Time, error) {
	if m == nil {
		return "", time.Time{}, errors.New("auth: token manager not initialised")
	}
	if strings.TrimSpace(identity.UserID) == "" {
		return "", time.Time{}, errors.New("auth: identity user id is required")
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)

	claims := SessionClaims{
		Username: identity.Username,
		Role:     identity.Role,
		Locale:   identity.Locale,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify parses and validates a session token, returning the embedded identity.
func (m *TokenManager) Verify(tokenStr string) (Identity, error) {
	if m == nil {
		return Identity{}, ErrTokenInvalid
	}
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return Identity{}, ErrTokenInvalid
	}

	// The v4 parser validates time claims against the package-global clock,
	// so parsing skips claims validation and expiry is checked against the
	// manager's own clock below.
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrTokenInvalid, token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return Identity{}, ErrTokenInvalid
	}

	now := m.now().UTC()
	switch {
	case claims.ExpiresAt == nil:
		return Identity{}, fmt.Errorf("%w: missing expiry", ErrTokenInvalid)
	case !now.Before(claims.ExpiresAt.Time):
		return Identity{}, fmt.Errorf("%w: expired at %s", ErrTokenExpired, claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
	case claims.NotBefore != nil && now.Before(claims.NotBefore.Time):
		return Identity{}, fmt.Errorf("%w: not yet valid", ErrTokenInvalid)
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return Identity{}, fmt.Errorf("%w: issuer mismatch", ErrTokenInvalid)
	}

	return Identity{
		UserID:   claims.Subject,
		Username: claims.Username,
		Role:     strings.ToLower(strings.TrimSpace(claims.Role)),
		Locale:   claims.Locale,
	}, nil
}
