package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/lms-community/lms-api/internal/models"
	"github.com/lms-community/lms-api/internal/service"
	"github.com/lms-community/lms-api/pkg/response"
)

// RequireRoles gates a route on role membership. SUPER_ADMIN passes
// every gate; other roles must appear in the allowed set. Runs after
// Authenticate; a missing session yields UNAUTHENTICATED, a role
// outside the set yields UNAUTHORIZED.
func RequireRoles(allowed ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := service.RequireRole(ClaimsFrom(c), allowed...); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
