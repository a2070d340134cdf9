package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/utils"
)

// AuthMiddleware validates staff JWT tokens signed with the platform secret
type AuthMiddleware struct {
	secret []byte
}

// StaffClaims represents the claims carried by a staff token
type StaffClaims struct {
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Staff roles. Platform admins operate across tenants; store owners are
// scoped to the tenant in their token.
const (
	RolePlatformAdmin = "platform_admin"
	RoleStoreOwner    = "store_owner"
	RoleStoreStaff    = "store_staff"
)

// NewAuthMiddleware creates an authentication middleware using JWT_SECRET
func NewAuthMiddleware() (*AuthMiddleware, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return &AuthMiddleware{secret: []byte(secret)}, nil
}

// RequireAuth validates the bearer token and loads its claims into the context
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
			c.Abort()
			return
		}

		claims, err := am.parseToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.Subject)
		c.Set("email", claims.Email)
		c.Set("tenant_id", claims.TenantID)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// RequireRole validates the authenticated user's role
func (am *AuthMiddleware) RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User role not found in context"})
			c.Abort()
			return
		}

		if role != requiredRole {
			c.JSON(http.StatusForbidden, gin.H{
				"error":         "Insufficient permissions",
				"required_role": requiredRole,
				"user_role":     role,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireStoreOwnerOrAdmin allows platform admins everywhere and store owners
// on their own store only
func (am *AuthMiddleware) RequireStoreOwnerOrAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get("role")

		if role == RolePlatformAdmin {
			c.Next()
			return
		}

		if role == RoleStoreOwner {
			requestedTenantID := c.Param("id")
			userTenantID := c.GetString("tenant_id")

			if requestedTenantID == "" || requestedTenantID == userTenantID {
				c.Next()
				return
			}

			c.JSON(http.StatusForbidden, gin.H{
				"error": "Store owners can only manage their own store",
			})
			c.Abort()
			return
		}

		c.JSON(http.StatusForbidden, gin.H{
			"error":         "Insufficient permissions",
			"required_role": "store_owner or platform_admin",
			"user_role":     role,
		})
		c.Abort()
	}
}

// RequireStaffAccess allows any staff role scoped to the resolved tenant.
// Platform admins pass regardless of tenant; store staff must match the
// tenant that the request host resolved to.
func (am *AuthMiddleware) RequireStaffAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User role not found in context"})
			c.Abort()
			return
		}

		if role == RolePlatformAdmin {
			c.Next()
			return
		}

		tenantID, err := GetTenantIDFromContext(c)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to this store"})
			c.Abort()
			return
		}

		userTenantID := c.GetString("tenant_id")
		if userTenantID != tenantID.String() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to this store"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// getCacheKey generates a cache key for the token
func getCacheKey(tokenString string) string {
	hash := sha256.Sum256([]byte(tokenString))
	return "token:" + hex.EncodeToString(hash[:])
}

// extractToken extracts the JWT token from the Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return authHeader
}

// parseToken verifies the token signature and returns its claims. Verified
// claims are cached in Redis so hot tokens skip signature checks.
func (am *AuthMiddleware) parseToken(tokenString string) (*StaffClaims, error) {
	cacheKey := getCacheKey(tokenString)
	if cachedData, err := utils.CacheGet(cacheKey); err == nil {
		var claims StaffClaims
		if err := json.Unmarshal([]byte(cachedData), &claims); err == nil {
			if claims.ExpiresAt == nil || claims.ExpiresAt.After(time.Now()) {
				return &claims, nil
			}
		}
	}

	claims := &StaffClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return am.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	// Cache until the token expires, capped at 5 minutes
	ttl := 5 * time.Minute
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl > 0 {
		if cacheData, err := json.Marshal(claims); err == nil {
			_ = utils.CacheSet(cacheKey, string(cacheData), ttl)
		}
	}

	return claims, nil
}

// IssueToken signs a staff token. Used by the tenant admin service's login
// endpoint and by tests.
func (am *AuthMiddleware) IssueToken(userID, email, tenantID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &StaffClaims{
		Email:    email,
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(am.secret)
}

// GetTenantIDFromContext extracts the resolved tenant ID from the Gin context
func GetTenantIDFromContext(c *gin.Context) (uuid.UUID, error) {
	tenantIDStr, exists := c.Get("resolved_tenant_id")
	if !exists {
		return uuid.Nil, fmt.Errorf("tenant not resolved for this request")
	}

	return uuid.Parse(tenantIDStr.(string))
}
