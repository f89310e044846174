package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "stockledger/internal/core/context"
)

const (
	HeaderRequestID   = "X-Request-ID"
	HeaderTraceID     = "X-Trace-ID"
	HeaderTraceparent = "traceparent"
)

// Trace resolves the request identifiers, in order of preference: a W3C
// traceparent, an X-Trace-ID supplied by the caller, freshly generated ids.
// Each request gets its own span id; the incoming one is only the parent.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		req := resolveRequest(c)

		c.Request = c.Request.WithContext(appctx.WithTrace(c.Request.Context(), req))
		c.Set("trace_id", req.TraceID)
		c.Set("request_id", req.RequestID)

		c.Header(HeaderRequestID, req.RequestID)
		c.Header(HeaderTraceID, req.TraceID)
		if tp := req.Traceparent(); tp != "" {
			c.Header(HeaderTraceparent, tp)
		}

		c.Next()
	}
}

func resolveRequest(c *gin.Context) *appctx.Request {
	req := appctx.NewRequest()
	if parent, ok := appctx.ParseTraceparent(c.GetHeader(HeaderTraceparent)); ok {
		req.TraceID = parent.TraceID
	} else if id := c.GetHeader(HeaderTraceID); id != "" {
		req.TraceID = id
	}
	if id := c.GetHeader(HeaderRequestID); id != "" {
		req.RequestID = id
	}
	return req
}
