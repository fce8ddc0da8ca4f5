package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/finovate/expenseflow/internal/auth"
)

const claimsKey = "auth_claims"

// authMiddleware validates the bearer token and stores its claims on the
// request context
func authMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing bearer token",
			})
			return
		}

		claims, err := tokens.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "invalid token",
			})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// requirePermission gates a route on the caller's role permissions
func requirePermission(perm auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		if claims == nil || !auth.HasPermission(claims.Role, perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{
				Success: false,
				Error:   "permission denied",
			})
			return
		}
		c.Next()
	}
}

// claimsFrom returns the authenticated claims, nil on unauthenticated routes
func claimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}
