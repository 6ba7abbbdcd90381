package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupacket-api/internal/models"
)

// AuditOrigin attaches the caller's address and user agent to the request
// context so audit entries written by services can attribute the request.
func AuditOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := models.WithRequestOrigin(c.Request.Context(), models.RequestOrigin{
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
