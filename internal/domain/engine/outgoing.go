package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

// RecordOutgoing logs a sale of qty units at the item's current price.
// It fails with InsufficientStock, leaving everything unchanged, when the item
// holds fewer than qty units.
func (e *Engine) RecordOutgoing(ctx context.Context, itemCode string, qty int64, occurredAt time.Time) (*ledger.OutgoingEvent, error) {
	if qty <= 0 {
		return nil, apperror.NewInvalidQuantity(qty)
	}

	var event *ledger.OutgoingEvent
	err := e.run(ctx, "record_outgoing", func(ctx context.Context) error {
		item, before, err := e.lockItem(ctx, itemCode)
		if err != nil {
			return err
		}
		if !item.IsActive() {
			return apperror.NewValidation("item is inactive and cannot be sold").
				WithDetail("code", item.Code).
				WithDetail("status", item.Status)
		}
		next, err := catalog.ApplyDelta(before, qty, entity.DirectionOut)
		if err != nil {
			return err
		}

		event = ledger.NewOutgoingEvent(item, qty, occurredAt)
		if err := e.outgoing.Create(ctx, event); err != nil {
			return fmt.Errorf("create outgoing event: %w", err)
		}
		*item = next
		if err := e.saveItem(ctx, before, item); err != nil {
			return err
		}
		return e.events.Publish(ctx, domain.Event{
			AggregateType: domain.AggregateOutgoingEvent,
			AggregateID:   event.ID,
			EventType:     domain.EventOutgoingRecorded,
			Payload:       event,
		})
	}, attribute.String("item.code", itemCode), attribute.Int64("qty", qty))
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "outgoing recorded",
		"item_code", itemCode,
		"qty", qty,
		"total", event.TotalAmount.String(),
		"event_id", event.ID,
	)
	return event, nil
}

// ReverseOutgoing deletes a sale. Under ReversalRestore the units go back to
// the item and its aggregates are recomputed; under ReversalLedgerOnly only
// the row is removed.
func (e *Engine) ReverseOutgoing(ctx context.Context, eventID id.ID) error {
	var event *ledger.OutgoingEvent

	err := e.run(ctx, "reverse_outgoing", func(ctx context.Context) error {
		var err error
		event, err = e.outgoing.GetByIDForUpdate(ctx, eventID)
		if err != nil {
			return err
		}

		if e.policy == ReversalRestore {
			if err := e.restoreSale(ctx, event.ItemCode, event.Qty); err != nil {
				return err
			}
		}
		if err := e.outgoing.Delete(ctx, event.ID); err != nil {
			return fmt.Errorf("delete outgoing event: %w", err)
		}
		return e.events.Publish(ctx, domain.Event{
			AggregateType: domain.AggregateOutgoingEvent,
			AggregateID:   event.ID,
			EventType:     domain.EventOutgoingReversed,
			Payload:       map[string]any{"event": event, "policy": e.policy},
		})
	}, attribute.String("event.id", eventID.String()), attribute.String("policy", string(e.policy)))
	if err != nil {
		return err
	}

	logger.Info(ctx, "outgoing reversed",
		"item_code", event.ItemCode,
		"qty", event.Qty,
		"policy", e.policy,
		"event_id", eventID,
	)
	return nil
}

// DeleteAllOutgoing deletes every sale and returns how many were removed.
// Under ReversalRestore each affected item is restored once with its summed
// quantity, locking items in code order.
func (e *Engine) DeleteAllOutgoing(ctx context.Context) (int64, error) {
	var deleted int64
	var touched int

	err := e.run(ctx, "delete_all_outgoing", func(ctx context.Context) error {
		totals, count, err := e.outgoing.DeleteAll(ctx)
		if err != nil {
			return fmt.Errorf("delete outgoing events: %w", err)
		}
		deleted = count
		touched = 0

		if e.policy == ReversalRestore {
			sort.Slice(totals, func(i, j int) bool { return totals[i].ItemCode < totals[j].ItemCode })
			for _, t := range totals {
				if err := e.restoreSale(ctx, t.ItemCode, t.Qty); err != nil {
					return err
				}
				touched++
			}
		}
		if deleted == 0 {
			return nil
		}
		return e.events.Publish(ctx, domain.Event{
			AggregateType: domain.AggregateOutgoingEvent,
			AggregateID:   id.Nil(),
			EventType:     domain.EventOutgoingPurged,
			Payload:       map[string]any{"deletedCount": deleted, "policy": e.policy, "items": totals},
		})
	}, attribute.String("policy", string(e.policy)))
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "all outgoing deleted", "count", deleted, "items_restored", touched, "policy", e.policy)
	return deleted, nil
}

// restoreSale returns qty units to an item. A missing item is skipped: the
// sale row outlived it and there is nothing left to correct.
func (e *Engine) restoreSale(ctx context.Context, itemCode string, qty int64) error {
	item, before, err := e.lockItem(ctx, itemCode)
	if apperror.IsNotFound(err) {
		logger.Warn(ctx, "sale reversal skipped, item missing", "item_code", itemCode, "qty", qty)
		return nil
	}
	if err != nil {
		return err
	}
	next, err := catalog.ReverseSale(before, qty)
	if err != nil {
		return err
	}
	*item = next
	return e.saveItem(ctx, before, item)
}
