package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/safevoice-app/safevoice-api/internal/models"
)

func performRequest(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func stubAuth(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		if role == "" {
			c.Next()
			return
		}
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: role})
		c.Next()
	}
}

func buildRouter(role models.UserRole, required ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", stubAuth(role), RequireRoles(required...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRequireRolesAllowsMatchingRole(t *testing.T) {
	r := buildRouter(models.RoleSuperAdmin, models.RoleSuperAdmin)

	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	resp := performRequest(r, req)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestRequireRolesAllowsAnyListedRole(t *testing.T) {
	r := buildRouter(models.RoleAdmin, models.RoleSuperAdmin, models.RoleAdmin)

	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	resp := performRequest(r, req)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestRequireRolesForbidsOtherRole(t *testing.T) {
	r := buildRouter(models.RoleAdmin, models.RoleSuperAdmin)

	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	resp := performRequest(r, req)
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestRequireRolesRejectsMissingClaims(t *testing.T) {
	r := buildRouter("", models.RoleSuperAdmin)

	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	resp := performRequest(r, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}
