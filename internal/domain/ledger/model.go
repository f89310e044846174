// Package ledger holds the append-only receipt and sale logs.
package ledger

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalog"
)

// IncomingEvent records stock received for one item.
type IncomingEvent struct {
	ID         id.ID     `db:"id" json:"id"`
	ItemCode   string    `db:"item_code" json:"itemCode"`
	ItemName   string    `db:"item_name" json:"itemName"`
	Qty        int64     `db:"qty" json:"qty"`
	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// NewIncomingEvent builds a receipt for item. A zero occurredAt means now.
func NewIncomingEvent(item *catalog.StockItem, qty int64, occurredAt time.Time) *IncomingEvent {
	now := time.Now().UTC()
	if occurredAt.IsZero() {
		occurredAt = now
	}
	return &IncomingEvent{
		ID:         id.New(),
		ItemCode:   item.Code,
		ItemName:   item.Name,
		Qty:        qty,
		OccurredAt: occurredAt.UTC(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// OutgoingEvent records one sale with the prices in force at that moment.
type OutgoingEvent struct {
	ID                id.ID       `db:"id" json:"id"`
	ItemCode          string      `db:"item_code" json:"itemCode"`
	ItemName          string      `db:"item_name" json:"itemName"`
	Qty               int64       `db:"qty" json:"qty"`
	UnitPriceSnapshot types.Money `db:"unit_price_snapshot" json:"unitPriceSnapshot"`
	UnitCostSnapshot  types.Money `db:"unit_cost_snapshot" json:"unitCostSnapshot"`
	TotalAmount       types.Money `db:"total_amount" json:"totalAmount"`
	ProfitAmount      types.Money `db:"profit_amount" json:"profitAmount"`
	OccurredAt        time.Time   `db:"occurred_at" json:"occurredAt"`
	CreatedAt         time.Time   `db:"created_at" json:"createdAt"`
}

// NewOutgoingEvent snapshots the item's price and cost and derives the totals.
func NewOutgoingEvent(item *catalog.StockItem, qty int64, occurredAt time.Time) *OutgoingEvent {
	now := time.Now().UTC()
	if occurredAt.IsZero() {
		occurredAt = now
	}
	return &OutgoingEvent{
		ID:                id.New(),
		ItemCode:          item.Code,
		ItemName:          item.Name,
		Qty:               qty,
		UnitPriceSnapshot: item.UnitPrice,
		UnitCostSnapshot:  item.UnitCost,
		TotalAmount:       types.MulQty(item.UnitPrice, qty),
		ProfitAmount:      types.MulQty(item.UnitPrice.Sub(item.UnitCost), qty),
		OccurredAt:        occurredAt.UTC(),
		CreatedAt:         now,
	}
}
