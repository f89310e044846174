package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/pkg/logger"
)

const jsonContentType = "application/json; charset=utf-8"

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		appErr := apperror.Normalize(err)
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error(c.Request.Context(), "request failed",
				"code", appErr.Code,
				"error", err,
			)
			if appErr.Details == nil {
				appErr = appErr.WithDetail("request_id", c.GetString("request_id"))
			}
		} else if appErr.Err != nil {
			logger.Warn(c.Request.Context(), "request rejected",
				"code", appErr.Code,
				"cause", appErr.Err,
			)
		}

		body, marshalErr := json.Marshal(errorBody(appErr))
		if marshalErr != nil {
			body = []byte(`{"code":"INTERNAL_ERROR","message":"Internal server error"}`)
		}

		CompleteIdempotency(c, appErr.HTTPStatus, jsonContentType, body)
		c.Data(appErr.HTTPStatus, jsonContentType, body)
	}
}

func errorBody(e *apperror.AppError) gin.H {
	return gin.H{"code": e.Code, "message": e.Message, "details": e.Details}
}
