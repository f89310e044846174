package domain

import (
	"context"

	"stockledger/internal/core/id"
)

// Aggregate types carried on domain events and audit entries.
const (
	AggregateStockItem     = "stock_item"
	AggregateIncomingEvent = "incoming_event"
	AggregateOutgoingEvent = "outgoing_event"
)

// Event types published through the outbox.
const (
	EventItemCreated      = "item.created"
	EventItemUpdated      = "item.updated"
	EventItemDeleted      = "item.deleted"
	EventIncomingRecorded = "incoming.recorded"
	EventIncomingEdited   = "incoming.edited"
	EventIncomingReversed = "incoming.reversed"
	EventOutgoingRecorded = "outgoing.recorded"
	EventOutgoingReversed = "outgoing.reversed"
	EventOutgoingPurged   = "outgoing.purged"
)

// Event is a fact about a ledger or catalog change.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// EventPublisher appends events to the current unit of work.
// Implementations must write inside the transaction carried by ctx.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// AuditAction is the kind of audited change.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
	AuditLedger AuditAction = "ledger"
)

// Auditor records before/after state of a changed record.
type Auditor interface {
	Record(ctx context.Context, entityType string, entityID id.ID, action AuditAction, before, after any) error
}

// NopPublisher drops events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// NopAuditor drops audit entries.
type NopAuditor struct{}

// Record implements Auditor.
func (NopAuditor) Record(context.Context, string, id.ID, AuditAction, any, any) error { return nil }
