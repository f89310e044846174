// Package catalog_repo stores stock items in PostgreSQL.
package catalog_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/infrastructure/storage/postgres"
)

const tableName = "stock_items"

var _ catalog.Repository = (*ItemRepo)(nil)

// ItemRepo implements catalog.Repository.
type ItemRepo struct {
	txm  *postgres.TxManager
	cols []string
}

// NewItemRepo creates the item repository.
func NewItemRepo(txm *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		txm:  txm,
		cols: postgres.ExtractDBColumns[catalog.StockItem](),
	}
}

func (r *ItemRepo) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().Select(r.cols...).From(tableName)
}

// Create inserts a new item.
func (r *ItemRepo) Create(ctx context.Context, item *catalog.StockItem) error {
	sql, args, err := r.insertQuery(item).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("stock item", "code", item.Code).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", tableName, err)
	}
	return nil
}

func (r *ItemRepo) insertQuery(item *catalog.StockItem) squirrel.InsertBuilder {
	return postgres.Builder().
		Insert(tableName).
		SetMap(postgres.StructToMap(item))
}

// GetByCode returns one item.
func (r *ItemRepo) GetByCode(ctx context.Context, code string) (*catalog.StockItem, error) {
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"code": code}).Limit(1), code)
}

// GetByCodeForUpdate returns one item and locks its row.
func (r *ItemRepo) GetByCodeForUpdate(ctx context.Context, code string) (*catalog.StockItem, error) {
	if r.txm.GetTx(ctx) == nil {
		return nil, fmt.Errorf("GetByCodeForUpdate requires transaction context")
	}
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"code": code}).Suffix("FOR UPDATE"), code)
}

func (r *ItemRepo) get(ctx context.Context, q squirrel.SelectBuilder, code string) (*catalog.StockItem, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var item catalog.StockItem
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock item", code)
		}
		return nil, fmt.Errorf("get stock item: %w", err)
	}
	return &item, nil
}

// Update writes every mutable column under an optimistic lock and bumps
// item.Version on success.
func (r *ItemRepo) Update(ctx context.Context, item *catalog.StockItem) error {
	sql, args, err := r.updateQuery(item).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("stock item", item.Code).
			WithDetail("version", item.Version)
	}

	item.Version++
	return nil
}

func (r *ItemRepo) updateQuery(item *catalog.StockItem) squirrel.UpdateBuilder {
	data := postgres.StructToMap(item)
	// id, code and created_at never change; version is bumped below.
	for _, col := range []string{"id", "code", "version", "created_at"} {
		delete(data, col)
	}

	return postgres.Builder().
		Update(tableName).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": item.ID}).
		Where(squirrel.Eq{"version": item.Version})
}

// Delete removes the item row.
func (r *ItemRepo) Delete(ctx context.Context, code string) error {
	sql, args, err := postgres.Builder().
		Delete(tableName).
		Where(squirrel.Eq{"code": code}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("stock item", code)
	}
	return nil
}

// ExistsByCode checks if an item with the code exists.
func (r *ItemRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	sql, args, err := postgres.Builder().
		Select("1").
		From(tableName).
		Where(squirrel.Eq{"code": code}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists by code: %w", err)
	}
	return true, nil
}

// List returns a filtered, ordered page of items.
func (r *ItemRepo) List(ctx context.Context, filter catalog.ListFilter) (domain.ListResult[*catalog.StockItem], error) {
	result := domain.Page[*catalog.StockItem](filter.ListFilter)

	q, err := r.listQuery(filter)
	if err != nil {
		return result, err
	}
	querier := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := postgres.Builder().
		Select("COUNT(*)").
		FromSelect(r.applyFilter(r.baseSelect(), filter), "sub").
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list stock items: %w", err)
	}
	return result, nil
}

func (r *ItemRepo) listQuery(filter catalog.ListFilter) (squirrel.SelectBuilder, error) {
	orderBy, err := postgres.OrderBy(filter.OrderBy, "code ASC", r.cols...)
	if err != nil {
		return squirrel.SelectBuilder{}, err
	}

	q := r.applyFilter(r.baseSelect(), filter).OrderBy(orderBy)
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q, nil
}

func (r *ItemRepo) applyFilter(q squirrel.SelectBuilder, filter catalog.ListFilter) squirrel.SelectBuilder {
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
		})
	}
	if filter.Category != "" {
		q = q.Where(squirrel.Eq{"category": filter.Category})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	return q
}
