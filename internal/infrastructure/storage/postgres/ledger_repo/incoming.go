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

const incomingTable = "incoming_events"

var _ ledger.IncomingRepository = (*IncomingRepo)(nil)

// IncomingRepo implements ledger.IncomingRepository.
type IncomingRepo struct {
	txm  *postgres.TxManager
	cols []string
}

// NewIncomingRepo creates the receipt repository.
func NewIncomingRepo(txm *postgres.TxManager) *IncomingRepo {
	return &IncomingRepo{txm: txm, cols: postgres.ExtractDBColumns[ledger.IncomingEvent]()}
}

// Create inserts a receipt.
func (r *IncomingRepo) Create(ctx context.Context, event *ledger.IncomingEvent) error {
	sql, args, err := postgres.Builder().
		Insert(incomingTable).
		SetMap(postgres.StructToMap(event)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", incomingTable, err)
	}
	return nil
}

// GetByID returns one receipt.
func (r *IncomingRepo) GetByID(ctx context.Context, eventID id.ID) (*ledger.IncomingEvent, error) {
	return r.get(ctx, eventID, "")
}

// GetByIDForUpdate returns one receipt and locks its row.
func (r *IncomingRepo) GetByIDForUpdate(ctx context.Context, eventID id.ID) (*ledger.IncomingEvent, error) {
	return r.get(ctx, eventID, "FOR UPDATE")
}

func (r *IncomingRepo) get(ctx context.Context, eventID id.ID, suffix string) (*ledger.IncomingEvent, error) {
	q := postgres.Builder().Select(r.cols...).From(incomingTable).Where(squirrel.Eq{"id": eventID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var event ledger.IncomingEvent
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &event, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("incoming event", eventID.String())
		}
		return nil, fmt.Errorf("get incoming event: %w", err)
	}
	return &event, nil
}

// UpdateQty stores the edited quantity and occurrence date.
func (r *IncomingRepo) UpdateQty(ctx context.Context, event *ledger.IncomingEvent) error {
	sql, args, err := postgres.Builder().
		Update(incomingTable).
		Set("qty", event.Qty).
		Set("occurred_at", event.OccurredAt).
		Set("updated_at", event.UpdatedAt).
		Where(squirrel.Eq{"id": event.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", incomingTable, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("incoming event", event.ID.String())
	}
	return nil
}

// Delete removes a receipt.
func (r *IncomingRepo) Delete(ctx context.Context, eventID id.ID) error {
	return deleteByID(ctx, r.txm, incomingTable, "incoming event", eventID)
}

// List returns a page of receipts.
func (r *IncomingRepo) List(ctx context.Context, filter ledger.ListFilter) (domain.ListResult[*ledger.IncomingEvent], error) {
	result := domain.Page[*ledger.IncomingEvent](filter.ListFilter)
	err := list(ctx, r.txm, incomingTable, r.cols, filter, &result.TotalCount, &result.Items)
	return result, err
}

// SumQty returns the total received quantity recorded for itemCode.
func (r *IncomingRepo) SumQty(ctx context.Context, itemCode string) (int64, error) {
	return sum(ctx, r.txm, incomingTable, itemCode)
}

func deleteByID(ctx context.Context, txm *postgres.TxManager, table, entity string, eventID id.ID) error {
	sql, args, err := postgres.Builder().Delete(table).Where(squirrel.Eq{"id": eventID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	result, err := txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(entity, eventID.String())
	}
	return nil
}

func list[T any](ctx context.Context, txm *postgres.TxManager, table string, cols []string, filter ledger.ListFilter, total *int64, items *[]T) error {
	q, err := listQuery(table, cols, filter)
	if err != nil {
		return err
	}
	querier := txm.GetQuerier(ctx)

	countSQL, countArgs, err := countQuery(table, filter).ToSql()
	if err != nil {
		return fmt.Errorf("build count query: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(total); err != nil {
		return fmt.Errorf("count %s: %w", table, err)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, items, sql, args...); err != nil {
		return fmt.Errorf("list %s: %w", table, err)
	}
	return nil
}

func sum(ctx context.Context, txm *postgres.TxManager, table, itemCode string) (int64, error) {
	sql, args, err := sumQuery(table, itemCode).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sum query: %w", err)
	}
	var total int64
	if err := txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum %s: %w", table, err)
	}
	return total, nil
}
