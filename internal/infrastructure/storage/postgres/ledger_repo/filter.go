// Package ledger_repo stores incoming and outgoing ledger events in PostgreSQL.
package ledger_repo

import (
	"github.com/Masterminds/squirrel"

	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

// applyFilter adds item and occurred_at range conditions. From is inclusive,
// To exclusive.
func applyFilter(q squirrel.SelectBuilder, filter ledger.ListFilter) squirrel.SelectBuilder {
	if filter.ItemCode != "" {
		q = q.Where(squirrel.Eq{"item_code": filter.ItemCode})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"item_code": pattern},
			squirrel.ILike{"item_name": pattern},
		})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"occurred_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"occurred_at": *filter.To})
	}
	return q
}

// listQuery returns the page query for table, newest occurrence first.
func listQuery(table string, cols []string, filter ledger.ListFilter) (squirrel.SelectBuilder, error) {
	orderBy, err := postgres.OrderBy(filter.OrderBy, "occurred_at DESC", "occurred_at", "created_at", "item_code", "qty")
	if err != nil {
		return squirrel.SelectBuilder{}, err
	}

	q := applyFilter(postgres.Builder().Select(cols...).From(table), filter).
		OrderBy(orderBy, "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q, nil
}

func countQuery(table string, filter ledger.ListFilter) squirrel.SelectBuilder {
	return applyFilter(postgres.Builder().Select("COUNT(*)").From(table), filter)
}

func sumQuery(table, itemCode string) squirrel.SelectBuilder {
	return postgres.Builder().
		Select("COALESCE(SUM(qty), 0)").
		From(table).
		Where(squirrel.Eq{"item_code": itemCode})
}
