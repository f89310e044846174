package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/domain/auth"
)

// RequireRole admits actors holding one of roles. Admins are always admitted.
// It must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := append([]string{auth.RoleAdmin}, roles...)
	return func(c *gin.Context) {
		actor := appctx.GetActor(c.Request.Context())
		switch {
		case actor == nil:
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
		case !slices.Contains(allowed, actor.Role):
			_ = c.Error(apperror.NewForbidden("insufficient permissions").
				WithDetail("required_roles", roles).
				WithDetail("role", actor.Role))
		default:
			c.Next()
			return
		}
		c.Abort()
	}
}
