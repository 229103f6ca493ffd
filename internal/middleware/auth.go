// internal/middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rafat/cronosflow/internal/models"
	"github.com/rafat/cronosflow/internal/utils"
)

func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, "Authentication required")
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.UnauthorizedResponse(c, "Invalid authorization header")
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(parts[1])
		if err != nil {
			utils.UnauthorizedResponse(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("identity_id", claims.IdentityID)
		c.Set("username", claims.Username)
		c.Set("roles", claims.Roles)
		c.Set("kyc_status", claims.KYCStatus)
		c.Next()
	}
}

// RoleRequired gates a route group on at least one of the given roles.
// Capability checks inside the services remain the source of truth;
// this only rejects obviously unauthorized callers early.
func RoleRequired(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		held, exists := c.Get("roles")
		if !exists {
			utils.ForbiddenResponse(c, "Access denied")
			c.Abort()
			return
		}
		heldRoles, ok := held.([]string)
		if !ok {
			utils.ForbiddenResponse(c, "Access denied")
			c.Abort()
			return
		}
		for _, have := range heldRoles {
			if have == models.RoleAdmin {
				c.Next()
				return
			}
			for _, want := range roles {
				if have == want {
					c.Next()
					return
				}
			}
		}
		utils.ForbiddenResponse(c, "Access denied")
		c.Abort()
	}
}

func AdminRequired() gin.HandlerFunc {
	return RoleRequired(models.RoleAdmin)
}

// OptionalAuth populates identity context when a valid token is present
// but never rejects the request.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.Next()
			return
		}

		claims, err := utils.ValidateJWT(parts[1])
		if err != nil {
			c.Next()
			return
		}

		c.Set("identity_id", claims.IdentityID)
		c.Set("username", claims.Username)
		c.Set("roles", claims.Roles)
		c.Set("kyc_status", claims.KYCStatus)
		c.Next()
	}
}

// SecurityHeaders sets conservative defaults for an API-only service.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Cache-Control", "no-store")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
