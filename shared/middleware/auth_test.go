package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) *AuthMiddleware {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)

	am, err := NewAuthMiddleware()
	require.NoError(t, err)
	return am
}

func protectedRouter(am *AuthMiddleware, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	handlers := append([]gin.HandlerFunc{am.RequireAuth()}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":   c.GetString("user_id"),
			"tenant_id": c.GetString("tenant_id"),
			"role":      c.GetString("role"),
		})
	})
	router.GET("/protected", handlers...)
	return router
}

func get(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuthRoundTrip(t *testing.T) {
	am := newAuthFixture(t)
	router := protectedRouter(am)

	token, err := am.IssueToken("user-1", "owner@acme.test", "tenant-1", RoleStoreOwner, time.Hour)
	require.NoError(t, err)

	w := get(router, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tenant-1")
	assert.Contains(t, w.Body.String(), RoleStoreOwner)
}

func TestRequireAuthRejectsMissingAndGarbageTokens(t *testing.T) {
	am := newAuthFixture(t)
	router := protectedRouter(am)

	assert.Equal(t, http.StatusUnauthorized, get(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "not-a-jwt").Code)
}

func TestRequireAuthRejectsExpiredToken(t *testing.T) {
	am := newAuthFixture(t)
	router := protectedRouter(am)

	token, err := am.IssueToken("user-1", "owner@acme.test", "tenant-1", RoleStoreOwner, -time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, get(router, token).Code)
}

func TestRequireAuthRejectsWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "other-secret")
	gin.SetMode(gin.TestMode)
	other, err := NewAuthMiddleware()
	require.NoError(t, err)
	token, err := other.IssueToken("user-1", "owner@acme.test", "tenant-1", RoleStoreOwner, time.Hour)
	require.NoError(t, err)

	am := newAuthFixture(t)
	router := protectedRouter(am)
	assert.Equal(t, http.StatusUnauthorized, get(router, token).Code)
}

func TestRequireRole(t *testing.T) {
	am := newAuthFixture(t)
	router := protectedRouter(am, am.RequireRole(RolePlatformAdmin))

	ownerToken, err := am.IssueToken("user-1", "owner@acme.test", "tenant-1", RoleStoreOwner, time.Hour)
	require.NoError(t, err)
	adminToken, err := am.IssueToken("user-2", "admin@platform.test", "", RolePlatformAdmin, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, get(router, ownerToken).Code)
	assert.Equal(t, http.StatusOK, get(router, adminToken).Code)
}

func TestRequireStaffAccessMatchesResolvedTenant(t *testing.T) {
	am := newAuthFixture(t)

	router := gin.New()
	router.GET("/protected",
		func(c *gin.Context) { c.Set("resolved_tenant_id", "11111111-1111-1111-1111-111111111111") },
		am.RequireAuth(),
		am.RequireStaffAccess(),
		func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) },
	)

	matching, err := am.IssueToken("user-1", "owner@acme.test", "11111111-1111-1111-1111-111111111111", RoleStoreOwner, time.Hour)
	require.NoError(t, err)
	foreign, err := am.IssueToken("user-2", "owner@globex.test", "22222222-2222-2222-2222-222222222222", RoleStoreOwner, time.Hour)
	require.NoError(t, err)
	admin, err := am.IssueToken("user-3", "admin@platform.test", "", RolePlatformAdmin, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(router, matching).Code)
	assert.Equal(t, http.StatusForbidden, get(router, foreign).Code)
	assert.Equal(t, http.StatusOK, get(router, admin).Code)
}
