package v1

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
)

// guard returns the role check for a route group, or a pass-through when
// auth is disabled.
func guard(authEnabled bool, roles ...string) gin.HandlerFunc {
	if !authEnabled {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RequireRole(roles...)
}

// RegisterItemRoutes registers the catalog routes.
func RegisterItemRoutes(group *gin.RouterGroup, h *handlers.ItemHandler, authEnabled bool) {
	read := guard(authEnabled, roleClerk)
	manage := guard(authEnabled, roleAdmin)

	group.GET("", read, h.List)
	group.POST("", manage, h.Create)
	group.GET("/:code", read, h.Get)
	group.PUT("/:code", manage, h.Update)
	group.DELETE("/:code", manage, h.Delete)
	group.GET("/:code/reconcile", read, h.Reconcile)
	group.GET("/:code/history", read, h.History)
}

// RegisterLedgerRoutes registers the incoming and outgoing routes.
func RegisterLedgerRoutes(rg *gin.RouterGroup, h *handlers.LedgerHandler, authEnabled bool) {
	clerk := guard(authEnabled, roleClerk)
	admin := guard(authEnabled, roleAdmin)

	incoming := rg.Group("/incoming", clerk)
	incoming.GET("", h.ListIncoming)
	incoming.POST("", h.RecordIncoming)
	incoming.GET("/:id", h.GetIncoming)
	incoming.PUT("/:id", h.EditIncoming)
	incoming.DELETE("/:id", h.ReverseIncoming)

	outgoing := rg.Group("/outgoing", clerk)
	outgoing.GET("", h.ListOutgoing)
	outgoing.POST("", h.RecordOutgoing)
	outgoing.GET("/:id", h.GetOutgoing)
	outgoing.DELETE("/:id", h.ReverseOutgoing)
	outgoing.DELETE("", admin, h.DeleteAllOutgoing)
}

// RegisterReportRoutes registers the report routes.
func RegisterReportRoutes(group *gin.RouterGroup, h *handlers.ReportsHandler, authEnabled bool) {
	read := guard(authEnabled, roleClerk)

	group.GET("/sales", read, h.Sales)
	group.GET("/dashboard", read, h.Dashboard)
}
