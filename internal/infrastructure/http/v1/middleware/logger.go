package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/pkg/logger"
)

// Logger injects log into the request context and writes one access line
// per request: error level for 5xx, warn for 4xx, info otherwise.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []any{
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, "query", q)
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields = append(fields, "error", errs)
		}

		entry := log.WithContext(c.Request.Context())
		switch {
		case status >= http.StatusInternalServerError:
			entry.Errorw("http request", fields...)
		case status >= http.StatusBadRequest:
			entry.Warnw("http request", fields...)
		default:
			entry.Infow("http request", fields...)
		}
	}
}
