package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amanazads/flashbites-sub000/models"
)

const principalCtxKey = "auth.principal"

// Middleware returns a gin middleware that validates the Bearer JWT and
// stores the Principal on the request context. Requests without a valid
// token are rejected with 401.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := ParseBearer(c.GetHeader("Authorization"), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}
		c.Set(principalCtxKey, p)
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// PrincipalFrom retrieves the authenticated principal from a gin context.
func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalCtxKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok
}

// RequireRole aborts with 403 unless the principal has one of the given
// roles, and returns it otherwise.
func RequireRole(c *gin.Context, roles ...models.Role) (*Principal, bool) {
	p, ok := PrincipalFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return nil, false
	}
	for _, r := range roles {
		if p.Role == r {
			return p, true
		}
	}
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	return nil, false
}
