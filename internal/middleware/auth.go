package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	jwtpkg "github.com/mx-space/identity/internal/pkg/jwt"
	"github.com/mx-space/identity/internal/pkg/response"
)

const (
	ContextKeyUserID   = "user_id"
	ContextKeyTenantID = "tenant_id"
	ContextKeyRoleID   = "role_id"
)

// Auth returns a middleware that enforces access-token authentication.
// Refresh tokens are rejected here; they are only good at /auth/refresh.
func Auth(issuer *jwtpkg.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := issuer.VerifyAccess(extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyTenantID, claims.TenantID)
		c.Set(ContextKeyRoleID, claims.RoleID)
		c.Next()
	}
}

// OptionalAuth sets the identity if a valid access token is present, but
// does not block the request.
func OptionalAuth(issuer *jwtpkg.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := issuer.VerifyAccess(extractToken(c)); err == nil && claims.UserID != "" {
			c.Set(ContextKeyUserID, claims.UserID)
			c.Set(ContextKeyTenantID, claims.TenantID)
			c.Set(ContextKeyRoleID, claims.RoleID)
		}
		c.Next()
	}
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

// CurrentTenantID extracts the authenticated tenant ID from context.
func CurrentTenantID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyTenantID)
	id, _ := v.(string)
	return id
}

// CurrentRoleID extracts the authenticated role ID from context.
func CurrentRoleID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyRoleID)
	id, _ := v.(string)
	return id
}

// IsAuthenticated returns true if the request carries a valid access token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

func extractToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips the optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
