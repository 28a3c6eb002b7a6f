package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"blackroad.io/operator/internal/metrics"
)

// MetricsMiddleware records request count, latency, response size and
// in-flight requests, labeled by route template rather than raw path.
//
// Add it early in the chain so that timing covers the other middleware.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		metrics.ObserveHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start), c.Writer.Size())
	}
}
