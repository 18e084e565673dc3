package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adamscao/certvault/internal/api/handlers"
	"github.com/adamscao/certvault/internal/auth"
)

// AdminTokenHeader carries the admin token. "Authorization: Bearer" is
// accepted as well.
const AdminTokenHeader = "X-Admin-Token"

// AdminAuth rejects requests that do not present the admin token
func AdminAuth(adminToken string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := adminTokenFrom(c)
		if token == "" {
			handlers.RespondError(c, http.StatusUnauthorized, "unauthorized", "Admin token required")
			c.Abort()
			return
		}

		if !auth.VerifyToken(token, adminToken) {
			logger.Warn("rejected admin token",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", handlers.GetClientIP(c)))
			handlers.RespondError(c, http.StatusForbidden, "forbidden", "Invalid admin token")
			c.Abort()
			return
		}

		c.Next()
	}
}

func adminTokenFrom(c *gin.Context) string {
	if token := c.GetHeader(AdminTokenHeader); token != "" {
		return token
	}
	if bearer, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(bearer)
	}
	return ""
}
