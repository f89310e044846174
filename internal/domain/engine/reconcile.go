package engine

import (
	"context"
	"fmt"

	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalog"
)

// Reconciliation compares an item's cached figures with what its ledgers imply.
type Reconciliation struct {
	ItemCode string `json:"itemCode"`

	CachedQty   int64 `json:"cachedQty"`
	ExpectedQty int64 `json:"expectedQty"`

	CachedReceived  int64 `json:"cachedReceived"`
	LedgerReceived  int64 `json:"ledgerReceived"`
	CachedSold      int64 `json:"cachedSold"`
	LedgerSold      int64 `json:"ledgerSold"`
	AggregatesMatch bool  `json:"aggregatesMatch"`
	InSync          bool  `json:"inSync"`

	ExpectedRevenue types.Money `json:"expectedRevenue"`
	ExpectedProfit  types.Money `json:"expectedProfit"`
}

// Reconcile sums both ledgers for one item and reports drift from the cached
// counters. It never writes.
func (e *Engine) Reconcile(ctx context.Context, itemCode string) (*Reconciliation, error) {
	item, err := e.items.GetByCode(ctx, itemCode)
	if err != nil {
		return nil, err
	}
	received, err := e.incoming.SumQty(ctx, itemCode)
	if err != nil {
		return nil, fmt.Errorf("sum incoming: %w", err)
	}
	sold, err := e.outgoing.SumQty(ctx, itemCode)
	if err != nil {
		return nil, fmt.Errorf("sum outgoing: %w", err)
	}

	expected := catalog.RecomputeAggregates(*item)
	r := &Reconciliation{
		ItemCode:        item.Code,
		CachedQty:       item.CurrentQty,
		ExpectedQty:     item.OpeningQty + received - sold,
		CachedReceived:  item.CumulativeReceived,
		LedgerReceived:  received,
		CachedSold:      item.CumulativeSold,
		LedgerSold:      sold,
		ExpectedRevenue: expected.CumulativeRevenue,
		ExpectedProfit:  expected.CumulativeProfit,
		AggregatesMatch: expected.CumulativeRevenue.Equal(item.CumulativeRevenue) &&
			expected.CumulativeProfit.Equal(item.CumulativeProfit),
	}
	r.InSync = r.AggregatesMatch &&
		r.CachedQty == r.ExpectedQty &&
		r.CachedReceived == r.LedgerReceived &&
		r.CachedSold == r.LedgerSold
	return r, nil
}
