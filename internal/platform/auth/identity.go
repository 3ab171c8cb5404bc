// Package auth holds session token verification, the authenticated
// identity and the role checks used by handlers and services.
package auth

import (
	"context"
	"strings"
)

// Roles recognised by the API. Admins manage catalog, users and all
// orders; installers work the measurement and installation flow.
const (
	RoleAdmin     = "admin"
	RoleInstaller = "installer"
)

// Identity is the principal extracted from a verified session token.
type Identity struct {
	UserID   string
	Username string
	Role     string
	Locale   string
}

// HasRole reports whether the identity carries role, compared
// case-insensitively.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = strings.TrimSpace(role)
	return role != "" && strings.EqualFold(i.Role, role)
}

// HasAnyRole reports whether the identity carries at least one of roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

type identityKey struct{}

// WithIdentity attaches the identity to ctx for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored by the auth middleware,
// or false when the request is unauthenticated.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
