package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/simurgh/internal/pkg/errcode"
	"github.com/xxxsen/simurgh/internal/pkg/jwt"
	"github.com/xxxsen/simurgh/internal/pkg/response"
)

const (
	ContextAdminKey = "admin"
	RoleAdmin       = "admin"
)

// AdminAuth accepts bearer tokens issued by the admin login endpoint.
func AdminAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(strings.TrimSpace(parts[1]), secret)
		if err != nil {
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		if claims.Role != RoleAdmin {
			response.Error(c, errcode.ErrForbidden, "forbidden")
			c.Abort()
			return
		}
		c.Set(ContextAdminKey, claims.Subject)
		c.Next()
	}
}
