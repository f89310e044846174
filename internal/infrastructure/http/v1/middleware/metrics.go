package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPRecorder receives one observation per request.
type HTTPRecorder interface {
	RecordHTTPRequest(method, path string, status int, elapsed time.Duration)
}

// InFlightGauge tracks concurrent requests. Optional.
type InFlightGauge interface {
	Inc()
	Dec()
}

// Metrics middleware records request counts and latency by route template.
// Unmatched routes are recorded under "unmatched" to bound label cardinality.
func Metrics(rec HTTPRecorder, inFlight InFlightGauge) gin.HandlerFunc {
	return func(c *gin.Context) {
		if inFlight != nil {
			inFlight.Inc()
			defer inFlight.Dec()
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		rec.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
