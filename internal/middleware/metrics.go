package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/stars-api/internal/service"
)

// unmatchedRoute labels requests that hit no registered route so probes for
// random paths do not create new series.
const unmatchedRoute = "unmatched"

// Metrics records per-route latency, totals and the in-flight gauge.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		done := metricsSvc.TrackInFlight()
		defer done()

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
