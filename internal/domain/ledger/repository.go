package ledger

import (
	"context"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// ListFilter narrows ledger listings. Results are ordered by occurredAt desc.
type ListFilter struct {
	domain.ListFilter

	ItemCode string
	From     *time.Time
	To       *time.Time
}

// ItemTotal is the summed quantity of one item's events.
type ItemTotal struct {
	ItemCode string `db:"item_code" json:"itemCode"`
	Qty      int64  `db:"qty" json:"qty"`
	Events   int64  `db:"events" json:"events"`
}

// IncomingRepository persists receipts.
type IncomingRepository interface {
	Create(ctx context.Context, event *IncomingEvent) error
	GetByID(ctx context.Context, eventID id.ID) (*IncomingEvent, error)
	// GetByIDForUpdate locks the event row for the surrounding transaction.
	GetByIDForUpdate(ctx context.Context, eventID id.ID) (*IncomingEvent, error)
	UpdateQty(ctx context.Context, event *IncomingEvent) error
	Delete(ctx context.Context, eventID id.ID) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*IncomingEvent], error)
	SumQty(ctx context.Context, itemCode string) (int64, error)
}

// OutgoingRepository persists sales.
type OutgoingRepository interface {
	Create(ctx context.Context, event *OutgoingEvent) error
	GetByID(ctx context.Context, eventID id.ID) (*OutgoingEvent, error)
	GetByIDForUpdate(ctx context.Context, eventID id.ID) (*OutgoingEvent, error)
	Delete(ctx context.Context, eventID id.ID) error
	// DeleteAll removes every sale and returns the per-item quantities removed.
	DeleteAll(ctx context.Context) ([]ItemTotal, int64, error)
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*OutgoingEvent], error)
	SumQty(ctx context.Context, itemCode string) (int64, error)
}
