package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lms-community/lms-api/internal/models"
	appErrors "github.com/lms-community/lms-api/pkg/errors"
	"github.com/lms-community/lms-api/pkg/response"
)

type staticValidator struct {
	claims *models.JWTClaims
}

func (s *staticValidator) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	if s.claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthenticated, "invalid or expired token")
	}
	return s.claims, nil
}

func newGateRouter(claims *models.JWTClaims, allowed ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/gated",
		Authenticate(&staticValidator{claims: claims}),
		RequireRoles(allowed...),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
	return r
}

func request(t *testing.T, r *gin.Engine, withToken bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/gated", nil)
	if withToken {
		req.Header.Set("Authorization", "Bearer token")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	return envelope.Error.Code
}

func TestGateRequiresSession(t *testing.T) {
	r := newGateRouter(&models.JWTClaims{UserID: "u1", Role: models.RoleTeacher}, models.RoleTeacher)

	w := request(t, r, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, appErrors.ErrUnauthenticated.Code, errorCode(t, w))
}

func TestGateRejectsMalformedHeader(t *testing.T) {
	r := newGateRouter(&models.JWTClaims{UserID: "u1", Role: models.RoleTeacher}, models.RoleTeacher)

	req := httptest.NewRequest(http.MethodGet, "/gated", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateRoleMatrix(t *testing.T) {
	tests := []struct {
		name    string
		role    models.UserRole
		allowed []models.UserRole
		status  int
	}{
		{"teacher on teacher route", models.RoleTeacher, []models.UserRole{models.RoleTeacher}, http.StatusOK},
		{"student on teacher route", models.RoleStudent, []models.UserRole{models.RoleTeacher}, http.StatusForbidden},
		{"finance on teacher route", models.RoleFinance, []models.UserRole{models.RoleTeacher}, http.StatusForbidden},
		{"super admin on teacher route", models.RoleSuperAdmin, []models.UserRole{models.RoleTeacher}, http.StatusOK},
		{"super admin on finance route", models.RoleSuperAdmin, []models.UserRole{models.RoleFinance}, http.StatusOK},
		{"teacher on finance route", models.RoleTeacher, []models.UserRole{models.RoleFinance}, http.StatusForbidden},
		{"finance on mixed route", models.RoleFinance, []models.UserRole{models.RoleStudent, models.RoleFinance}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newGateRouter(&models.JWTClaims{UserID: "u1", Role: tt.role}, tt.allowed...)
			w := request(t, r, true)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusForbidden {
				assert.Equal(t, appErrors.ErrUnauthorized.Code, errorCode(t, w),
					"role denial must be UNAUTHORIZED, not FORBIDDEN")
			}
		})
	}
}

func TestClaimsFromWithoutSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, ClaimsFrom(c))
}
