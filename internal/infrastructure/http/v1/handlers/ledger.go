package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/engine"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// StockEngine is the consistency engine as used by the ledger endpoints.
type StockEngine interface {
	RecordIncoming(ctx context.Context, itemCode string, qty int64, occurredAt time.Time) (*ledger.IncomingEvent, error)
	ReverseIncoming(ctx context.Context, eventID id.ID) error
	EditIncoming(ctx context.Context, eventID id.ID, in engine.EditIncomingInput) (*ledger.IncomingEvent, error)
	RecordOutgoing(ctx context.Context, itemCode string, qty int64, occurredAt time.Time) (*ledger.OutgoingEvent, error)
	ReverseOutgoing(ctx context.Context, eventID id.ID) error
	DeleteAllOutgoing(ctx context.Context) (int64, error)
}

// LedgerReader lists and reads recorded events.
type LedgerReader interface {
	ListIncoming(ctx context.Context, filter ledger.ListFilter) (domain.ListResult[*ledger.IncomingEvent], error)
	GetIncoming(ctx context.Context, eventID id.ID) (*ledger.IncomingEvent, error)
	ListOutgoing(ctx context.Context, filter ledger.ListFilter) (domain.ListResult[*ledger.OutgoingEvent], error)
	GetOutgoing(ctx context.Context, eventID id.ID) (*ledger.OutgoingEvent, error)
}

// LedgerHandler serves /incoming and /outgoing.
type LedgerHandler struct {
	*BaseHandler
	engine StockEngine
	reader LedgerReader
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(base *BaseHandler, eng StockEngine, reader LedgerReader) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, engine: eng, reader: reader}
}

func (h *LedgerHandler) bindFilter(c *gin.Context) (ledger.ListFilter, bool) {
	var q dto.LedgerListQuery
	if !h.BindQuery(c, &q) {
		return ledger.ListFilter{}, false
	}
	from, ok := h.ParseTimeParam(c, "from", q.From)
	if !ok {
		return ledger.ListFilter{}, false
	}
	to, ok := h.ParseTimeParam(c, "to", q.To)
	if !ok {
		return ledger.ListFilter{}, false
	}
	return ledger.ListFilter{
		ListFilter: q.ToFilter(),
		ItemCode:   q.ItemCode,
		From:       from,
		To:         to,
	}, true
}

func occurredAt(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// --- incoming ---

// ListIncoming handles GET /incoming.
func (h *LedgerHandler) ListIncoming(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}
	result, err := h.reader.ListIncoming(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, func(e *ledger.IncomingEvent) *ledger.IncomingEvent { return e }))
}

// GetIncoming handles GET /incoming/:id.
func (h *LedgerHandler) GetIncoming(c *gin.Context) {
	eventID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	event, err := h.reader.GetIncoming(c.Request.Context(), eventID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, event)
}

// RecordIncoming handles POST /incoming.
func (h *LedgerHandler) RecordIncoming(c *gin.Context) {
	var req dto.MovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	event, err := h.engine.RecordIncoming(c.Request.Context(), req.ItemCode, req.Qty.Int64(), occurredAt(req.OccurredAt))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, event)
}

// EditIncoming handles PUT /incoming/:id.
func (h *LedgerHandler) EditIncoming(c *gin.Context) {
	eventID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.EditIncomingRequest
	if !h.BindJSON(c, &req) {
		return
	}
	event, err := h.engine.EditIncoming(c.Request.Context(), eventID, engine.EditIncomingInput{
		Qty:        req.Qty.Int64(),
		OccurredAt: req.OccurredAt,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, event)
}

// ReverseIncoming handles DELETE /incoming/:id.
func (h *LedgerHandler) ReverseIncoming(c *gin.Context) {
	eventID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.engine.ReverseIncoming(c.Request.Context(), eventID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// --- outgoing ---

// ListOutgoing handles GET /outgoing.
func (h *LedgerHandler) ListOutgoing(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}
	result, err := h.reader.ListOutgoing(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, func(e *ledger.OutgoingEvent) *ledger.OutgoingEvent { return e }))
}

// GetOutgoing handles GET /outgoing/:id.
func (h *LedgerHandler) GetOutgoing(c *gin.Context) {
	eventID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	event, err := h.reader.GetOutgoing(c.Request.Context(), eventID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, event)
}

// RecordOutgoing handles POST /outgoing.
func (h *LedgerHandler) RecordOutgoing(c *gin.Context) {
	var req dto.MovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	event, err := h.engine.RecordOutgoing(c.Request.Context(), req.ItemCode, req.Qty.Int64(), occurredAt(req.OccurredAt))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, event)
}

// ReverseOutgoing handles DELETE /outgoing/:id.
func (h *LedgerHandler) ReverseOutgoing(c *gin.Context) {
	eventID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.engine.ReverseOutgoing(c.Request.Context(), eventID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// DeleteAllOutgoing handles DELETE /outgoing.
func (h *LedgerHandler) DeleteAllOutgoing(c *gin.Context) {
	n, err := h.engine.DeleteAllOutgoing(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.DeleteAllResponse{DeletedCount: n})
}
