package ledger

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// Service answers read queries over both ledgers. Writes go through the
// consistency engine.
type Service struct {
	incoming IncomingRepository
	outgoing OutgoingRepository
}

// NewService creates the ledger query service.
func NewService(incoming IncomingRepository, outgoing OutgoingRepository) *Service {
	return &Service{incoming: incoming, outgoing: outgoing}
}

// ListIncoming returns receipts, newest first.
func (s *Service) ListIncoming(ctx context.Context, filter ListFilter) (domain.ListResult[*IncomingEvent], error) {
	if err := filter.validate(); err != nil {
		return domain.ListResult[*IncomingEvent]{}, err
	}
	return s.incoming.List(ctx, filter)
}

// GetIncoming returns one receipt.
func (s *Service) GetIncoming(ctx context.Context, eventID id.ID) (*IncomingEvent, error) {
	return s.incoming.GetByID(ctx, eventID)
}

// ListOutgoing returns sales, newest first.
func (s *Service) ListOutgoing(ctx context.Context, filter ListFilter) (domain.ListResult[*OutgoingEvent], error) {
	if err := filter.validate(); err != nil {
		return domain.ListResult[*OutgoingEvent]{}, err
	}
	return s.outgoing.List(ctx, filter)
}

// GetOutgoing returns one sale.
func (s *Service) GetOutgoing(ctx context.Context, eventID id.ID) (*OutgoingEvent, error) {
	return s.outgoing.GetByID(ctx, eventID)
}

// HasEvents reports whether either ledger references itemCode.
func (s *Service) HasEvents(ctx context.Context, itemCode string) (bool, error) {
	in, err := s.incoming.SumQty(ctx, itemCode)
	if err != nil {
		return false, err
	}
	if in > 0 {
		return true, nil
	}
	out, err := s.outgoing.SumQty(ctx, itemCode)
	if err != nil {
		return false, err
	}
	return out > 0, nil
}

func (f *ListFilter) validate() error {
	f.Normalize()
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return apperror.NewValidation("to must not be before from").
			WithDetail("from", f.From).
			WithDetail("to", f.To)
	}
	return nil
}
