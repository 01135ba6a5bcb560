package middleware

import (
	"net/http"

	"slippers/internal/domain"

	"github.com/gin-gonic/gin"
)

// RequireRole lets the request through only for one of the allowed roles.
// It must run after AuthRequired.
func RequireRole(allowed ...string) gin.HandlerFunc {
	return requireRole("forbidden", allowed...)
}

// AdminRequired restricts a route to ADMIN callers.
func AdminRequired() gin.HandlerFunc {
	return requireRole("admin access required", domain.RoleAdmin)
}

func requireRole(denied string, allowed ...string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role := GetRole(c)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if _, ok := set[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": denied})
			return
		}
		c.Next()
	}
}
