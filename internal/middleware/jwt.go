package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupacket-api/internal/models"
	"github.com/noah-isme/edupacket-api/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the authenticated principal.
const ContextPrincipalKey = "principal"

// Gate authenticates bearer tokens and checks capabilities.
type Gate interface {
	Authenticate(ctx context.Context, header string) (*models.Principal, error)
	Authorize(principal *models.Principal, capability models.Capability) error
}

// Authenticated requires a valid bearer token from an account that may act.
func Authenticated(gate Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := gate.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextPrincipalKey, principal)
		c.Next()
	}
}

// Principal returns the principal stored by Authenticated or Require.
func Principal(c *gin.Context) *models.Principal {
	value, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return nil
	}
	principal, _ := value.(*models.Principal)
	return principal
}
