package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/blanjamart/account-service/pkg/helpers"
	"github.com/blanjamart/account-service/pkg/response"
)

const (
	CtxEmailKey = "userEmail"
	CtxLevelKey = "userLevel"
)

// Auth validates the Authorization bearer token and injects the caller's
// email and level into the Gin context.
func Auth(tokens *helpers.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			c.Abort()
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := tokens.Parse(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid access token", nil)
			c.Abort()
			return
		}
		c.Set(CtxEmailKey, claims.Email)
		c.Set(CtxLevelKey, claims.Level)
		c.Next()
	}
}

// RequireLevel restricts a route to callers whose token carries the level.
func RequireLevel(level string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxLevelKey) != level {
			response.Error[any](c, http.StatusForbidden, "insufficient level", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
