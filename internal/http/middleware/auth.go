package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/abbasifarasat36-dev/globaldragon/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	ClaimsKey = "claims"
	UserIDKey = "user_id"
)

// Authenticator is satisfied by service.AuthService.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.Claims, error)
}

// JWT requires a Bearer token whose login session is still live.
func JWT(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, err := a.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, claims.UserID())
		c.Next()
	}
}

// RequireAdmin must run after JWT.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok || !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

func GetClaims(c *gin.Context) (*service.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*service.Claims)
	return claims, ok
}

// UserID returns the authenticated user id, or "" on public routes.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
