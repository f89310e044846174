// Package middleware holds the gin middleware chain of the ledger API.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/pkg/logger"
)

// Recovery turns a panic in a handler into a 500 INTERNAL_ERROR. The stack
// goes to the log only. A held idempotency key is released so the
// client may retry with the same key.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "handler panicked",
				"panic", rec,
				"route", c.FullPath(),
				"stack", string(debug.Stack()),
			)

			appErr := apperror.NewInternal(fmt.Errorf("panic: %v", rec))
			if id := c.GetString("request_id"); id != "" {
				appErr.WithDetail("request_id", id)
			}
			_ = c.Error(appErr)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			CompleteIdempotency(c, appErr.HTTPStatus, "", nil)
			c.AbortWithStatusJSON(appErr.HTTPStatus, errorBody(appErr))
		}()
		c.Next()
	}
}
