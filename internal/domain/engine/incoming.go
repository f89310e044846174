package engine

import (
	"context"
	"fmt"
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

// RecordIncoming logs a receipt of qty units and adds them to the item.
// Inactive items still accept receipts. A zero occurredAt means now.
func (e *Engine) RecordIncoming(ctx context.Context, itemCode string, qty int64, occurredAt time.Time) (*ledger.IncomingEvent, error) {
	if qty <= 0 {
		return nil, apperror.NewInvalidQuantity(qty)
	}

	var event *ledger.IncomingEvent
	err := e.run(ctx, "record_incoming", func(ctx context.Context) error {
		item, before, err := e.lockItem(ctx, itemCode)
		if err != nil {
			return err
		}
		next, err := catalog.ApplyDelta(before, qty, entity.DirectionIn)
		if err != nil {
			return err
		}

		event = ledger.NewIncomingEvent(item, qty, occurredAt)
		if err := e.incoming.Create(ctx, event); err != nil {
			return fmt.Errorf("create incoming event: %w", err)
		}
		*item = next
		if err := e.saveItem(ctx, before, item); err != nil {
			return err
		}
		return e.events.Publish(ctx, domain.Event{
			AggregateType: domain.AggregateIncomingEvent,
			AggregateID:   event.ID,
			EventType:     domain.EventIncomingRecorded,
			Payload:       event,
		})
	}, attribute.String("item.code", itemCode), attribute.Int64("qty", qty))
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "incoming recorded", "item_code", itemCode, "qty", qty, "event_id", event.ID)
	return event, nil
}

// ReverseIncoming deletes a receipt and takes its units back out of the item.
// Quantities are floored at zero; when stock was sold in between the
// correction falls short and the clamp is logged and counted.
func (e *Engine) ReverseIncoming(ctx context.Context, eventID id.ID) error {
	var clamped bool
	var event *ledger.IncomingEvent

	err := e.run(ctx, "reverse_incoming", func(ctx context.Context) error {
		var err error
		event, err = e.incoming.GetByIDForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		item, before, err := e.lockItem(ctx, event.ItemCode)
		if err != nil {
			return err
		}

		var next catalog.StockItem
		next, clamped = catalog.ReverseReceipt(before, event.Qty)
		if err := e.incoming.Delete(ctx, event.ID); err != nil {
			return fmt.Errorf("delete incoming event: %w", err)
		}
		*item = next
		if err := e.saveItem(ctx, before, item); err != nil {
			return err
		}
		return e.events.Publish(ctx, domain.Event{
			AggregateType: domain.AggregateIncomingEvent,
			AggregateID:   event.ID,
			EventType:     domain.EventIncomingReversed,
			Payload:       event,
		})
	}, attribute.String("event.id", eventID.String()))
	if err != nil {
		return err
	}

	if clamped {
		e.metrics.ReversalClamped("reverse_incoming")
		logger.Warn(ctx, "incoming reversal clamped at zero", "item_code", event.ItemCode, "qty", event.Qty, "event_id", eventID)
	}
	logger.Info(ctx, "incoming reversed", "item_code", event.ItemCode, "qty", event.Qty, "event_id", eventID)
	return nil
}

// EditIncomingInput is the new state of a receipt. A nil OccurredAt keeps the
// stored date.
type EditIncomingInput struct {
	Qty        int64
	OccurredAt *time.Time
}

// EditIncoming changes a receipt's quantity and applies the difference to the
// item, floored at zero like ReverseIncoming.
func (e *Engine) EditIncoming(ctx context.Context, eventID id.ID, in EditIncomingInput) (*ledger.IncomingEvent, error) {
	if in.Qty <= 0 {
		return nil, apperror.NewInvalidQuantity(in.Qty)
	}

	var clamped bool
	var event *ledger.IncomingEvent
	var delta int64

	err := e.run(ctx, "edit_incoming", func(ctx context.Context) error {
		var err error
		event, err = e.incoming.GetByIDForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		item, before, err := e.lockItem(ctx, event.ItemCode)
		if err != nil {
			return err
		}

		delta = in.Qty - event.Qty
		var next catalog.StockItem
		next, clamped, err = catalog.AdjustReceipt(before, delta)
		if err != nil {
			return err
		}

		event.Qty = in.Qty
		if in.OccurredAt != nil {
			event.OccurredAt = in.OccurredAt.UTC()
		}
		event.UpdatedAt = time.Now().UTC()
		if err := e.incoming.UpdateQty(ctx, event); err != nil {
			return fmt.Errorf("update incoming event: %w", err)
		}
		*item = next
		if err := e.saveItem(ctx, before, item); err != nil {
			return err
		}
		return e.events.Publish(ctx, domain.Event{
			AggregateType: domain.AggregateIncomingEvent,
			AggregateID:   event.ID,
			EventType:     domain.EventIncomingEdited,
			Payload:       map[string]any{"event": event, "delta": delta},
		})
	}, attribute.String("event.id", eventID.String()), attribute.Int64("qty", in.Qty))
	if err != nil {
		return nil, err
	}

	if clamped {
		e.metrics.ReversalClamped("edit_incoming")
		logger.Warn(ctx, "incoming edit clamped at zero", "item_code", event.ItemCode, "delta", delta, "event_id", eventID)
	}
	logger.Info(ctx, "incoming edited", "item_code", event.ItemCode, "qty", event.Qty, "delta", delta, "event_id", eventID)
	return event, nil
}
