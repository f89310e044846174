package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchInserter bulk-loads records with COPY inside the caller's transaction.
// cmd/seed uses it to load an item catalogue in one round trip.
type BatchInserter struct {
	txm *TxManager
}

func NewBatchInserter(txm *TxManager) *BatchInserter {
	return &BatchInserter{txm: txm}
}

// CopyStructs copies records into table, one column per db tag of T.
func CopyStructs[T any](ctx context.Context, b *BatchInserter, table string, records []T) (int64, error) {
	t := b.txm.GetTx(ctx)
	if t == nil {
		return 0, errors.New("copy requires a transaction")
	}
	columns := ExtractDBColumns[T]()
	src := pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		m := StructToMap(records[i])
		row := make([]any, len(columns))
		for j, col := range columns {
			row[j] = m[col]
		}
		return row, nil
	})
	n, err := t.CopyFrom(ctx, pgx.Identifier{table}, columns, src)
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}
