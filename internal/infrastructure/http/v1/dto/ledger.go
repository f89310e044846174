package dto

import (
	"time"

	"stockledger/internal/core/types"
)

// LedgerListQuery filters GET /incoming and GET /outgoing. Dates accept
// RFC 3339 or YYYY-MM-DD; to is exclusive.
type LedgerListQuery struct {
	ListQuery
	ItemCode string `form:"itemCode"`
	From     string `form:"from"`
	To       string `form:"to"`
}

// MovementRequest is the body of POST /incoming and POST /outgoing.
// qty accepts a JSON number or a numeric string.
type MovementRequest struct {
	ItemCode   string         `json:"itemCode" binding:"required"`
	Qty        types.Quantity `json:"qty"`
	OccurredAt *time.Time     `json:"occurredAt"`
}

// EditIncomingRequest is the body of PUT /incoming/:id.
type EditIncomingRequest struct {
	Qty        types.Quantity `json:"qty"`
	OccurredAt *time.Time     `json:"occurredAt"`
}

// DeleteAllResponse is returned by DELETE /outgoing.
type DeleteAllResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}
