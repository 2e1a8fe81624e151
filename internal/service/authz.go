package service

import (
	"github.com/lms-community/lms-api/internal/models"
	appErrors "github.com/lms-community/lms-api/pkg/errors"
)

// RoleAllowed reports whether role satisfies the allowed set.
// SUPER_ADMIN satisfies any requirement; everything else is exact set
// membership. There is no partial hierarchy: FINANCE and TEACHER are
// siblings and never imply each other.
func RoleAllowed(role models.UserRole, allowed ...models.UserRole) bool {
	if role == models.RoleSuperAdmin {
		return true
	}
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// RequireRole resolves the authorization gate for a set of allowed
// roles. A nil claims value means no session (UNAUTHENTICATED); a
// role outside the set means UNAUTHORIZED.
func RequireRole(claims *models.JWTClaims, allowed ...models.UserRole) error {
	if claims == nil {
		return appErrors.ErrUnauthenticated
	}
	if !RoleAllowed(claims.Role, allowed...) {
		return appErrors.ErrUnauthorized
	}
	return nil
}

// CheckOwnership grants access when the principal owns the resource or
// holds one of the bypass roles. Bypass roles are explicit per call
// site: most endpoints pass only SUPER_ADMIN, payment-proof endpoints
// also pass FINANCE. Denial is FORBIDDEN, distinct from the role gate's
// UNAUTHORIZED.
func CheckOwnership(claims *models.JWTClaims, ownerID string, bypass ...models.UserRole) error {
	if claims == nil {
		return appErrors.ErrUnauthenticated
	}
	if claims.UserID == ownerID {
		return nil
	}
	for _, role := range bypass {
		if claims.Role == role {
			return nil
		}
	}
	return appErrors.ErrForbidden
}
