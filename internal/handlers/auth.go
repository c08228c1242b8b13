package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/Lyndoncatan/onlin-examination/internal/authz"
	"github.com/Lyndoncatan/onlin-examination/internal/config"
	"github.com/Lyndoncatan/onlin-examination/internal/models"
)

// AuthMiddleware authenticates requests with Casdoor and resolves the caller's
// role from the profiles table. The token proves identity only; any role or
// group claims it carries are ignored, so authorization cannot be spoofed via
// a forged or stale claim.
type AuthMiddleware struct {
	client   *casdoorsdk.Client
	resolver *authz.RoleResolver
}

func NewAuthMiddleware(cfg config.CasdoorConfig, resolver *authz.RoleResolver) *AuthMiddleware {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)

	return &AuthMiddleware{
		client:   client,
		resolver: resolver,
	}
}

// Authenticate validates the bearer token and loads identity plus resolved
// role into the request context.
func (am *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "authorization header missing",
			})
			c.Abort()
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := am.client.ParseJwtToken(tokenParts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": fmt.Sprintf("invalid token: %v", err),
			})
			c.Abort()
			return
		}

		userID := claims.Id
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "token carries no identity",
			})
			c.Abort()
			return
		}

		// Role comes from the profile row, not the token.
		role, err := am.resolver.Resolve(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "unavailable",
				"message": "role resolution failed",
			})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Set("user_role", role)
		c.Set("user_email", claims.User.Email)
		c.Set("user_name", claims.User.DisplayName)

		c.Next()
	}
}

// RequireRole rejects requests whose resolved role matches none of the given
// roles. An unresolved role (no profile row) is always rejected.
func (am *AuthMiddleware) RequireRole(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("user_role")
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "user role not found in context",
			})
			c.Abort()
			return
		}

		role, ok := userRole.(models.UserRole)
		if !ok || role == models.RoleUnknown {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "no role resolved for this identity",
			})
			c.Abort()
			return
		}

		for _, required := range requiredRoles {
			if role == required {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": fmt.Sprintf("insufficient permissions, required role: %v", requiredRoles),
		})
		c.Abort()
	}
}
