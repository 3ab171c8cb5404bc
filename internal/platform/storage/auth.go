package storage

import (
	"errors"

	"github.com/shades-uz/api/internal/platform/auth"
)

// ErrPermissionDenied means the caller may not receive a download URL for
// the object.
var ErrPermissionDenied = errors.New("storage: permission denied")

// AuthorizeDownload decides whether identity may read an object owned by
// ownerID. Owners see their own objects; installers and admins see all.
// Anonymous access is granted only when explicitly allowed.
func AuthorizeDownload(identity *auth.Identity, ownerID string, allowAnonymous bool) error {
	switch {
	case allowAnonymous:
		return nil
	case identity == nil:
		return ErrPermissionDenied
	case ownerID != "" && identity.UserID == ownerID:
		return nil
	case identity.HasAnyRole(auth.RoleInstaller, auth.RoleAdmin):
		return nil
	default:
		return ErrPermissionDenied
	}
}
