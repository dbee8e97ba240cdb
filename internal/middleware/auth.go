package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/trockboppro/v4panel/internal/panel/model"
)

// TokenResolver maps a bearer token to its user record.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*model.User, error)
}

// userKey is the gin context key the resolved caller is stored under.
const userKey = "caller"

// Authentication resolves the Authorization bearer token into a user record
// and aborts unauthenticated requests. adminToken, when non-empty, grants a
// synthetic admin for bootstrapping before any user record exists.
func Authentication(resolver TokenResolver, adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if adminToken != "" && token == adminToken {
			c.Set(userKey, &model.User{ID: "root", Name: "root", Admin: true})
			c.Next()
			return
		}
		u, err := resolver.ResolveToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

// Caller returns the authenticated user set by Authentication.
func Caller(c *gin.Context) *model.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(*model.User); ok {
			return u
		}
	}
	return nil
}

func bearerToken(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
