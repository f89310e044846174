package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/engine"
	"stockledger/internal/infrastructure/http/v1/dto"
	"stockledger/internal/infrastructure/storage/postgres"
)

const defaultHistoryLimit = 50

// ItemService is the catalog as used by the item endpoints.
type ItemService interface {
	Create(ctx context.Context, in catalog.CreateInput) (*catalog.StockItem, error)
	Get(ctx context.Context, code string) (*catalog.StockItem, error)
	List(ctx context.Context, filter catalog.ListFilter) (domain.ListResult[*catalog.StockItem], error)
	Update(ctx context.Context, code string, in catalog.UpdateInput) (*catalog.StockItem, error)
	Delete(ctx context.Context, code string) error
}

// Reconciler checks an item's cached figures against its ledgers.
type Reconciler interface {
	Reconcile(ctx context.Context, itemCode string) (*engine.Reconciliation, error)
}

// HistoryReader returns audit entries of an entity, newest first.
type HistoryReader interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]postgres.AuditEntry, error)
}

// ItemHandler serves /items.
type ItemHandler struct {
	*BaseHandler
	items   ItemService
	checker Reconciler
	history HistoryReader
}

// NewItemHandler creates a new item handler. history may be nil.
func NewItemHandler(base *BaseHandler, items ItemService, checker Reconciler, history HistoryReader) *ItemHandler {
	return &ItemHandler{BaseHandler: base, items: items, checker: checker, history: history}
}

// List handles GET /items.
func (h *ItemHandler) List(c *gin.Context) {
	var q dto.ItemListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	result, err := h.items.List(c.Request.Context(), catalog.ListFilter{
		ListFilter: q.ToFilter(),
		Category:   q.Category,
		Status:     catalog.Status(q.Status),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(result, dto.FromItem))
}

// Get handles GET /items/:code.
func (h *ItemHandler) Get(c *gin.Context) {
	item, err := h.items.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromItem(item))
}

// Create handles POST /items.
func (h *ItemHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.items.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromItem(item))
}

// Update handles PUT /items/:code.
func (h *ItemHandler) Update(c *gin.Context) {
	var req dto.UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.items.Update(c.Request.Context(), c.Param("code"), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromItem(item))
}

// Delete handles DELETE /items/:code.
func (h *ItemHandler) Delete(c *gin.Context) {
	if err := h.items.Delete(c.Request.Context(), c.Param("code")); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Reconcile handles GET /items/:code/reconcile.
func (h *ItemHandler) Reconcile(c *gin.Context) {
	r, err := h.checker.Reconcile(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}

// History handles GET /items/:code/history.
func (h *ItemHandler) History(c *gin.Context) {
	ctx := c.Request.Context()

	item, err := h.items.Get(ctx, c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}

	entries := []postgres.AuditEntry{}
	if h.history != nil {
		limit := h.ParseIntQuery(c, "limit", defaultHistoryLimit)
		entries, err = h.history.History(ctx, domain.AggregateStockItem, item.ID, limit)
		if err != nil {
			h.Error(c, err)
			return
		}
	}
	h.OK(c, gin.H{"itemCode": item.Code, "entries": entries})
}
