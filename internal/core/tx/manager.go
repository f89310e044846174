// Package tx defines the unit-of-work contract used by domain services.
// The Postgres implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager runs fn inside one database transaction.
// If fn returns an error the transaction is rolled back, otherwise committed.
// Nested calls reuse the transaction already carried by ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transactions for
// multi-statement reads that need one consistent snapshot.
type ReadOnlyManager interface {
	Manager

	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
