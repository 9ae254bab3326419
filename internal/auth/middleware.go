package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// Authenticate enforces bearer JWT tokens signed with HS256. Browsers cannot set headers
// on WebSocket upgrades, so a token query parameter is accepted on GET requests.
func Authenticate(tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearer(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing bearer token"})
			return
		}
		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func bearer(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if authz != "" && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	if c.Request.Method == http.MethodGet {
		return c.Query("token")
	}
	return ""
}

// RequireRole rejects requests whose token role is not one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := FromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing bearer token"})
			return
		}
		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": "forbidden"})
	}
}

// FromContext returns the claims stored by Authenticate.
func FromContext(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}
