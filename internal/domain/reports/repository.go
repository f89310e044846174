package reports

import (
	"context"
)

// Repository reads aggregated ledger and catalog data.
type Repository interface {
	// SalesByPeriod groups outgoing events into buckets.
	SalesByPeriod(ctx context.Context, filter SalesFilter) ([]SalesRow, error)
	// ReceiptsByPeriod groups incoming events into buckets.
	ReceiptsByPeriod(ctx context.Context, filter SalesFilter) ([]ReceiptRow, error)
	// Dashboard computes the stock figures over all items.
	Dashboard(ctx context.Context) (*Dashboard, error)
}
