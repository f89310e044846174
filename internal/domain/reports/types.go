// Package reports provides sales summaries and dashboard figures.
package reports

import (
	"time"

	"stockledger/internal/core/types"
)

// Granularity is the bucket size of a sales summary.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

// IsValid reports whether g is a known granularity.
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityDay, GranularityMonth, GranularityYear:
		return true
	}
	return false
}

// Truncate returns the start of the bucket holding t (UTC).
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case GranularityYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// SalesFilter selects the events summarised. From is inclusive, To exclusive;
// nil bounds are open.
type SalesFilter struct {
	Granularity Granularity
	From        *time.Time
	To          *time.Time
	ItemCode    string
}

// SalesRow is the sale side of one bucket as read from storage.
type SalesRow struct {
	Period    time.Time   `db:"period"`
	SaleCount int64       `db:"sale_count"`
	QtySold   int64       `db:"qty_sold"`
	Revenue   types.Money `db:"revenue"`
	Profit    types.Money `db:"profit"`
}

// ReceiptRow is the receipt side of one bucket.
type ReceiptRow struct {
	Period      time.Time `db:"period"`
	QtyReceived int64     `db:"qty_received"`
}

// SalesPeriod is one bucket of a summary. Revenue and profit come from the
// sale snapshots, not the items' current prices.
type SalesPeriod struct {
	Period      time.Time   `json:"period"`
	SaleCount   int64       `json:"saleCount"`
	QtySold     int64       `json:"qtySold"`
	QtyReceived int64       `json:"qtyReceived"`
	Revenue     types.Money `json:"revenue"`
	Profit      types.Money `json:"profit"`
}

// SalesSummary is the full report, periods in ascending order.
type SalesSummary struct {
	Granularity Granularity   `json:"granularity"`
	From        *time.Time    `json:"from,omitempty"`
	To          *time.Time    `json:"to,omitempty"`
	ItemCode    string        `json:"itemCode,omitempty"`
	Periods     []SalesPeriod `json:"periods"`

	TotalSaleCount   int64       `json:"totalSaleCount"`
	TotalQtySold     int64       `json:"totalQtySold"`
	TotalQtyReceived int64       `json:"totalQtyReceived"`
	TotalRevenue     types.Money `json:"totalRevenue"`
	TotalProfit      types.Money `json:"totalProfit"`
}

// Dashboard holds the headline stock figures.
type Dashboard struct {
	TotalItems   int64       `db:"total_items" json:"totalItems"`
	LowStock     int64       `db:"low_stock" json:"lowStock"`
	OutOfStock   int64       `db:"out_of_stock" json:"outOfStock"`
	TotalValue   types.Money `db:"total_value" json:"totalValue"`
	TotalRevenue types.Money `db:"total_revenue" json:"totalRevenue"`
	TotalProfit  types.Money `db:"total_profit" json:"totalProfit"`
}
