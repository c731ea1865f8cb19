package auth

import (
	"net/http"
	"strings"

	"github.com/KevinKickass/OpenBatchCore/internal/types"
	"github.com/gin-gonic/gin"
)

// RequireMaintenanceToken validates the bearer token on mutating routes
func (h *TokenHandler) RequireMaintenanceToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized,
				types.NewErrorResponse("UNAUTHORIZED", "missing authorization header", nil))
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized,
				types.NewErrorResponse("UNAUTHORIZED", "invalid authorization header format", nil))
			c.Abort()
			return
		}

		claims, err := h.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized,
				types.NewErrorResponse("UNAUTHORIZED", "invalid or expired token", nil))
			c.Abort()
			return
		}

		c.Set("subject", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}
