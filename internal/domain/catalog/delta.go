package catalog

import (
	"math"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
)

// ApplyDelta returns a copy of item with one recorded movement applied.
//
// In adds qty to currentQty and cumulativeReceived. Out requires
// currentQty >= qty, moves qty from currentQty to cumulativeSold and
// recomputes revenue and profit from the item's current price and cost.
// The input item is never modified; persisting the result is the caller's job.
func ApplyDelta(item StockItem, qty int64, dir entity.Direction) (StockItem, error) {
	if qty <= 0 {
		return item, apperror.NewInvalidQuantity(qty)
	}

	switch dir {
	case entity.DirectionIn:
		if item.CurrentQty > math.MaxInt64-qty || item.CumulativeReceived > math.MaxInt64-qty {
			return item, apperror.NewInvalidQuantity(qty)
		}
		item.CurrentQty += qty
		item.CumulativeReceived += qty
	case entity.DirectionOut:
		if item.CurrentQty < qty {
			return item, apperror.NewInsufficientStock(item.Code, qty, item.CurrentQty)
		}
		item.CurrentQty -= qty
		item.CumulativeSold += qty
		item = RecomputeAggregates(item)
	default:
		return item, apperror.NewValidation("unknown movement direction").WithDetail("direction", dir)
	}

	return item, nil
}

// RecomputeAggregates sets revenue and profit from cumulativeSold and the
// item's current price and cost. Historical sale snapshots are not consulted.
func RecomputeAggregates(item StockItem) StockItem {
	item.CumulativeRevenue = types.MulQty(item.UnitPrice, item.CumulativeSold)
	item.CumulativeProfit = types.MulQty(item.UnitPrice.Sub(item.UnitCost), item.CumulativeSold)
	return item
}

// ReverseReceipt undoes a receipt of qty units. Both currentQty and
// cumulativeReceived are floored at zero; clamped is true when the floor cut
// the correction short (stock was already sold in between).
func ReverseReceipt(item StockItem, qty int64) (out StockItem, clamped bool) {
	var receivedClamped bool
	item.CurrentQty, clamped = floorAdd(item.CurrentQty, -qty)
	item.CumulativeReceived, receivedClamped = floorAdd(item.CumulativeReceived, -qty)
	return item, clamped || receivedClamped
}

// AdjustReceipt applies delta (positive or negative) to currentQty and
// cumulativeReceived, flooring both at zero. A positive delta that would
// overflow either counter fails with InvalidQuantity.
func AdjustReceipt(item StockItem, delta int64) (out StockItem, clamped bool, err error) {
	if delta > 0 {
		if item.CurrentQty > math.MaxInt64-delta || item.CumulativeReceived > math.MaxInt64-delta {
			return item, false, apperror.NewInvalidQuantity(delta)
		}
		item.CurrentQty += delta
		item.CumulativeReceived += delta
		return item, false, nil
	}
	out, clamped = ReverseReceipt(item, -delta)
	return out, clamped, nil
}

// ReverseSale undoes a sale of qty units: stock returns to the shelf,
// cumulativeSold drops (floored at zero) and aggregates are recomputed.
func ReverseSale(item StockItem, qty int64) (StockItem, error) {
	if item.CurrentQty > math.MaxInt64-qty {
		return item, apperror.NewInvalidQuantity(qty)
	}
	item.CurrentQty += qty
	item.CumulativeSold, _ = floorAdd(item.CumulativeSold, -qty)
	return RecomputeAggregates(item), nil
}

// floorAdd adds a non-positive delta to v, stopping at zero.
func floorAdd(v, delta int64) (int64, bool) {
	if v+delta < 0 {
		return 0, true
	}
	return v + delta, false
}
