package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupacket-api/internal/service"
)

const unmatchedRoute = "unmatched"

// unobserved routes are scraped or probed continuously and would dominate
// the latency histogram.
var unobserved = map[string]struct{}{
	"/metrics": {},
	"/health":  {},
	"/ready":   {},
}

// Metrics records request latency and counts labelled by route pattern.
// Requests that match no route share one label so probes for random paths
// cannot grow the series count.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if _, skip := unobserved[route]; skip {
			return
		}
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
