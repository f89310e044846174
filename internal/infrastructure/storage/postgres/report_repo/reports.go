// Package report_repo reads report aggregates from PostgreSQL.
package report_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/reports"
	"stockledger/internal/infrastructure/storage/postgres"
)

var _ reports.Repository = (*ReportRepo)(nil)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txm *postgres.TxManager
}

// NewReportRepo creates a new report repository.
func NewReportRepo(txm *postgres.TxManager) *ReportRepo {
	return &ReportRepo{txm: txm}
}

// SalesByPeriod sums sale snapshots per bucket.
func (r *ReportRepo) SalesByPeriod(ctx context.Context, filter reports.SalesFilter) ([]reports.SalesRow, error) {
	sql, args, err := salesQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sales query: %w", err)
	}

	var rows []reports.SalesRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("sales by period: %w", err)
	}
	return rows, nil
}

// ReceiptsByPeriod sums received quantities per bucket.
func (r *ReportRepo) ReceiptsByPeriod(ctx context.Context, filter reports.SalesFilter) ([]reports.ReceiptRow, error) {
	sql, args, err := receiptsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build receipts query: %w", err)
	}

	var rows []reports.ReceiptRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("receipts by period: %w", err)
	}
	return rows, nil
}

// Dashboard computes stock figures over all items in one pass.
func (r *ReportRepo) Dashboard(ctx context.Context) (*reports.Dashboard, error) {
	sql, args, err := dashboardQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build dashboard query: %w", err)
	}

	var d reports.Dashboard
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &d, sql, args...); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	return &d, nil
}

func period(g reports.Granularity) squirrel.Sqlizer {
	return squirrel.Expr("date_trunc(?, occurred_at AT TIME ZONE 'UTC') AS period", string(g))
}

func applyRange(q squirrel.SelectBuilder, filter reports.SalesFilter) squirrel.SelectBuilder {
	if filter.ItemCode != "" {
		q = q.Where(squirrel.Eq{"item_code": filter.ItemCode})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"occurred_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"occurred_at": *filter.To})
	}
	return q
}

func salesQuery(filter reports.SalesFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select().
		Column(period(filter.Granularity)).
		Columns(
			"COUNT(*) AS sale_count",
			"COALESCE(SUM(qty), 0)::bigint AS qty_sold",
			"COALESCE(SUM(total_amount), 0) AS revenue",
			"COALESCE(SUM(profit_amount), 0) AS profit",
		).
		From("outgoing_events")
	return applyRange(q, filter).GroupBy("1").OrderBy("1")
}

func receiptsQuery(filter reports.SalesFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select().
		Column(period(filter.Granularity)).
		Column("COALESCE(SUM(qty), 0)::bigint AS qty_received").
		From("incoming_events")
	return applyRange(q, filter).GroupBy("1").OrderBy("1")
}

func dashboardQuery() squirrel.SelectBuilder {
	return postgres.Builder().
		Select("COUNT(*) AS total_items").
		Column(squirrel.Expr("COUNT(*) FILTER (WHERE current_qty > 0 AND current_qty < ?) AS low_stock", catalog.LowStockThreshold)).
		Columns(
			"COUNT(*) FILTER (WHERE current_qty <= 0) AS out_of_stock",
			"COALESCE(SUM(current_qty * unit_cost), 0) AS total_value",
			"COALESCE(SUM(cumulative_revenue), 0) AS total_revenue",
			"COALESCE(SUM(cumulative_profit), 0) AS total_profit",
		).
		From("stock_items")
}
