// Package catalog owns stock items: identity, pricing, cached quantity and
// cumulative aggregates.
package catalog

import (
	"context"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
)

// Status is the sales status of an item.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusInactive
}

// LowStockThreshold is the exclusive upper bound of the "low stock" band.
const LowStockThreshold = 10

// StockItem is one stock-keeping unit.
//
// CurrentQty and the cumulative fields are written only through ApplyDelta and
// its reversal siblings; catalog updates never touch them.
type StockItem struct {
	entity.BaseEntity
	entity.Timestamps

	Code     string `db:"code" json:"code"`
	Name     string `db:"name" json:"name"`
	Category string `db:"category" json:"category"`
	Status   Status `db:"status" json:"status"`

	UnitCost  types.Money `db:"unit_cost" json:"unitCost"`
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`

	OpeningQty   int64       `db:"opening_qty" json:"openingQty"`
	OpeningValue types.Money `db:"opening_value" json:"openingValue"`
	CurrentQty   int64       `db:"current_qty" json:"currentQty"`

	CumulativeReceived int64       `db:"cumulative_received" json:"cumulativeReceived"`
	CumulativeSold     int64       `db:"cumulative_sold" json:"cumulativeSold"`
	CumulativeRevenue  types.Money `db:"cumulative_revenue" json:"cumulativeRevenue"`
	CumulativeProfit   types.Money `db:"cumulative_profit" json:"cumulativeProfit"`
}

// NewStockItem creates an item with currentQty = openingQty and zeroed aggregates.
func NewStockItem(code, name string, unitCost, unitPrice types.Money, openingQty int64) *StockItem {
	item := &StockItem{
		BaseEntity:        entity.NewBaseEntity(),
		Timestamps:        entity.NewTimestamps(),
		Code:              strings.TrimSpace(code),
		Name:              strings.TrimSpace(name),
		Status:            StatusActive,
		UnitCost:          unitCost,
		UnitPrice:         unitPrice,
		OpeningQty:        openingQty,
		CurrentQty:        openingQty,
		CumulativeRevenue: types.Zero(),
		CumulativeProfit:  types.Zero(),
	}
	item.OpeningValue = types.MulQty(unitCost, openingQty)
	return item
}

// Validate checks the item's own invariants.
func (i *StockItem) Validate(_ context.Context) error {
	if strings.TrimSpace(i.Code) == "" {
		return apperror.NewValidation("code is required").WithDetail("field", "code")
	}
	if strings.TrimSpace(i.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if i.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost must not be negative").
			WithDetail("field", "unitCost").
			WithDetail("value", i.UnitCost.String())
	}
	if i.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price must not be negative").
			WithDetail("field", "unitPrice").
			WithDetail("value", i.UnitPrice.String())
	}
	if i.OpeningQty < 0 {
		return apperror.NewValidation("opening quantity must not be negative").
			WithDetail("field", "openingQty").
			WithDetail("value", i.OpeningQty)
	}
	if i.CurrentQty < 0 {
		return apperror.NewValidation("current quantity must not be negative").
			WithDetail("field", "currentQty").
			WithDetail("value", i.CurrentQty)
	}
	if !i.Status.IsValid() {
		return apperror.NewValidation("status must be active or inactive").
			WithDetail("field", "status").
			WithDetail("value", i.Status)
	}
	return nil
}

// IsActive reports whether the item may be sold.
func (i *StockItem) IsActive() bool {
	return i.Status == StatusActive
}

// IsLowStock reports 0 < currentQty < LowStockThreshold.
func (i *StockItem) IsLowStock() bool {
	return i.CurrentQty > 0 && i.CurrentQty < LowStockThreshold
}

// IsOutOfStock reports currentQty <= 0.
func (i *StockItem) IsOutOfStock() bool {
	return i.CurrentQty <= 0
}

// StockValue is currentQty valued at unit cost.
func (i *StockItem) StockValue() types.Money {
	return types.MulQty(i.UnitCost, i.CurrentQty)
}
