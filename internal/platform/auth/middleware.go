package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shades-uz/api/internal/platform/httpx"
)

// TokenVerifier checks a session token and returns the identity it
// carries.
type TokenVerifier interface {
	Verify(tokenStr string) (Identity, error)
}

// Authenticator turns a TokenVerifier into chi middleware.
type Authenticator struct {
	verifier TokenVerifier
}

func NewAuthenticator(verifier TokenVerifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// RequireAuth rejects requests without a valid bearer token and, when
// roles are given, without one of those roles. The verified identity is
// placed on the request context.
func (a *Authenticator) RequireAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		if role = strings.ToLower(strings.TrimSpace(role)); role != "" {
			allowed[role] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, r, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if a == nil || a.verifier == nil {
				unauthorized(w, r, "unauthenticated", "authorization service unavailable")
				return
			}

			identity, err := a.verifier.Verify(token)
			switch {
			case errors.Is(err, ErrTokenExpired):
				unauthorized(w, r, "token_expired", "session token expired")
				return
			case err != nil:
				unauthorized(w, r, "invalid_token", "session token invalid")
				return
			}

			if len(allowed) > 0 {
				if _, ok := allowed[strings.ToLower(identity.Role)]; !ok {
					unauthorized(w, r, "insufficient_role", "identity does not have required role")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), &identity)))
		})
	}
}

// extractBearerToken pulls the token out of "Bearer <token>", scheme
// matched case-insensitively.
func extractBearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, r *http.Request, code, message string) {
	httpx.WriteError(r.Context(), w, httpx.NewError(code, message, http.StatusUnauthorized))
}
