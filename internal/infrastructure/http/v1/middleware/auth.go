package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
)

// JWTValidator turns a bearer token into the acting principal.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.Actor, error)
}

// Auth requires "Authorization: Bearer <jwt>" and stores the actor on the
// request context, where the ledger picks it up for audit rows.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c.GetHeader("Authorization"))
		if msg != "" {
			_ = c.Error(apperror.NewUnauthorized(msg))
			c.Abort()
			return
		}

		actor, err := validator.ValidateToken(token)
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token").WithCause(err))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(appctx.WithActor(c.Request.Context(), actor))
		c.Set("actor", actor.Subject)
		c.Next()
	}
}

// bearerToken returns the token, or a client-facing reason it is unusable.
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", "invalid authorization header format"
	}
	return token, ""
}
