package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const outgoingTable = "outgoing_events"

var _ ledger.OutgoingRepository = (*OutgoingRepo)(nil)

// OutgoingRepo implements ledger.OutgoingRepository.
type OutgoingRepo struct {
	txm  *postgres.TxManager
	cols []string
}

// NewOutgoingRepo creates the sale repository.
func NewOutgoingRepo(txm *postgres.TxManager) *OutgoingRepo {
	return &OutgoingRepo{txm: txm, cols: postgres.ExtractDBColumns[ledger.OutgoingEvent]()}
}

// Create inserts a sale.
func (r *OutgoingRepo) Create(ctx context.Context, event *ledger.OutgoingEvent) error {
	sql, args, err := postgres.Builder().
		Insert(outgoingTable).
		SetMap(postgres.StructToMap(event)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", outgoingTable, err)
	}
	return nil
}

// GetByID returns one sale.
func (r *OutgoingRepo) GetByID(ctx context.Context, eventID id.ID) (*ledger.OutgoingEvent, error) {
	return r.get(ctx, eventID, "")
}

// GetByIDForUpdate returns one sale and locks its row.
func (r *OutgoingRepo) GetByIDForUpdate(ctx context.Context, eventID id.ID) (*ledger.OutgoingEvent, error) {
	return r.get(ctx, eventID, "FOR UPDATE")
}

func (r *OutgoingRepo) get(ctx context.Context, eventID id.ID, suffix string) (*ledger.OutgoingEvent, error) {
	q := postgres.Builder().Select(r.cols...).From(outgoingTable).Where(squirrel.Eq{"id": eventID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var event ledger.OutgoingEvent
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &event, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("outgoing event", eventID.String())
		}
		return nil, fmt.Errorf("get outgoing event: %w", err)
	}
	return &event, nil
}

// Delete removes a sale.
func (r *OutgoingRepo) Delete(ctx context.Context, eventID id.ID) error {
	return deleteByID(ctx, r.txm, outgoingTable, "outgoing event", eventID)
}

// DeleteAll removes every sale in one statement and reports the quantity
// removed per item.
func (r *OutgoingRepo) DeleteAll(ctx context.Context) ([]ledger.ItemTotal, int64, error) {
	var totals []ledger.ItemTotal
	err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &totals, `
		WITH removed AS (
			DELETE FROM outgoing_events
			RETURNING item_code, qty
		)
		SELECT item_code, SUM(qty)::bigint AS qty, COUNT(*) AS events
		FROM removed
		GROUP BY item_code
		ORDER BY item_code
	`)
	if err != nil {
		return nil, 0, fmt.Errorf("delete all %s: %w", outgoingTable, err)
	}

	var count int64
	for _, t := range totals {
		count += t.Events
	}
	return totals, count, nil
}

// List returns a page of sales.
func (r *OutgoingRepo) List(ctx context.Context, filter ledger.ListFilter) (domain.ListResult[*ledger.OutgoingEvent], error) {
	result := domain.Page[*ledger.OutgoingEvent](filter.ListFilter)
	err := list(ctx, r.txm, outgoingTable, r.cols, filter, &result.TotalCount, &result.Items)
	return result, err
}

// SumQty returns the total sold quantity recorded for itemCode.
func (r *OutgoingRepo) SumQty(ctx context.Context, itemCode string) (int64, error) {
	return sum(ctx, r.txm, outgoingTable, itemCode)
}
