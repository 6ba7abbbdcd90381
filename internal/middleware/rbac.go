package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupacket-api/internal/models"
	"github.com/noah-isme/edupacket-api/pkg/response"
)

// Require authenticates the caller once and checks capability against the
// capability table. A principal already attached by an earlier middleware is
// reused.
func Require(gate Gate, capability models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := Principal(c)
		if principal == nil {
			var err error
			principal, err = gate.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
			if err != nil {
				response.Error(c, err)
				c.Abort()
				return
			}
			c.Set(ContextPrincipalKey, principal)
		}

		if err := gate.Authorize(principal, capability); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
