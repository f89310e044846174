package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockledger/internal/core/tx"
	"stockledger/pkg/logger"
)

var tracer = otel.Tracer("stockledger/tx")

var _ tx.ReadOnlyManager = (*TxManager)(nil)

// statementTimeout bounds every statement of a unit of work; the engine's
// row locks must not be held by a runaway query.
const statementTimeout = 30 * time.Second

// Querier is what repositories need from either a pool or a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager implements tx.Manager. The open transaction rides on the context;
// repositories fetch it with GetQuerier, so a service composes several
// repository calls into one atomic unit.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *Pool) *TxManager {
	return &TxManager{pool: pool.Pool}
}

type txKey struct{}

// RunInTransaction runs fn in a read-committed transaction, or inside the one
// ctx already carries. Ledger writes rely on SELECT ... FOR UPDATE, not on
// the isolation level.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.within(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}, fn)
}

// ReadOnly gives fn one repeatable-read snapshot, so multi-query reports and
// reconciliations see consistent totals.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.within(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (m *TxManager) within(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "db.tx", trace.WithAttributes(
		attribute.String("db.tx.isolation", string(opts.IsoLevel)),
		attribute.Bool("db.tx.read_only", opts.AccessMode == pgx.ReadOnly),
	))
	defer span.End()

	if err := m.execute(ctx, opts, fn); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (m *TxManager) execute(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) (err error) {
	t, err := m.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		// The caller's ctx may already be cancelled.
		if rbErr := t.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logger.Error(ctx, "rollback failed", "error", rbErr, "cause", err)
		}
	}()

	timeout := fmt.Sprintf("SET LOCAL statement_timeout = %d", statementTimeout.Milliseconds())
	if _, err = t.Exec(ctx, timeout); err != nil {
		return fmt.Errorf("set statement_timeout: %w", err)
	}

	if err = fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	if err = t.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetTx returns the transaction on ctx, or nil outside one.
func (m *TxManager) GetTx(ctx context.Context) pgx.Tx {
	t, _ := ctx.Value(txKey{}).(pgx.Tx)
	return t
}

// GetQuerier prefers the transaction on ctx and falls back to the pool.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t
	}
	return m.pool
}
