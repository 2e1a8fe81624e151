package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lms-community/lms-api/internal/models"
	appErrors "github.com/lms-community/lms-api/pkg/errors"
	"github.com/lms-community/lms-api/pkg/response"
)

const claimsContextKey = "auth_claims"

type tokenValidator interface {
	ValidateToken(tokenString string) (*models.JWTClaims, error)
}

// Authenticate validates the Bearer token and stores the claims on the
// request context. Requests without a valid token are rejected with
// UNAUTHENTICATED before any handler runs.
func Authenticate(auth tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthenticated)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthenticated, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the authenticated claims stored by Authenticate,
// or nil when the request carries no session.
func ClaimsFrom(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
