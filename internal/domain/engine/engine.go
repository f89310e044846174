// Package engine keeps cached item quantities and sales aggregates consistent
// with the incoming and outgoing ledgers.
//
// Every mutating operation runs as one unit of work: the item row is locked,
// the movement validated, the ledger row written, and the item persisted with
// a version check. Outbox events and audit entries join the same transaction.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

var tracer = otel.Tracer("stockledger/engine")

// ReversalPolicy decides what deleting a sale does to the item.
type ReversalPolicy string

const (
	// ReversalRestore puts the units back on the shelf and recomputes aggregates.
	ReversalRestore ReversalPolicy = "restore"
	// ReversalLedgerOnly removes the sale row and leaves the item untouched.
	ReversalLedgerOnly ReversalPolicy = "ledger_only"
)

// IsValid reports whether p is a known policy.
func (p ReversalPolicy) IsValid() bool {
	return p == ReversalRestore || p == ReversalLedgerOnly
}

const defaultMaxAttempts = 3

// Metrics receives engine measurements. A nil Metrics in Config disables them.
type Metrics interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
	ReversalClamped(op string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, string, time.Duration) {}
func (nopMetrics) ReversalClamped(string)                         {}

// Config wires the engine.
type Config struct {
	Items     catalog.Repository
	Incoming  ledger.IncomingRepository
	Outgoing  ledger.OutgoingRepository
	TxManager tx.Manager

	Events  domain.EventPublisher // optional
	Audit   domain.Auditor        // optional
	Metrics Metrics               // optional

	// ReversalPolicy defaults to ReversalRestore.
	ReversalPolicy ReversalPolicy
	// MaxAttempts bounds retries on ConcurrentModification (default 3).
	MaxAttempts int
}

// Engine is the inventory ledger consistency engine.
type Engine struct {
	items    catalog.Repository
	incoming ledger.IncomingRepository
	outgoing ledger.OutgoingRepository
	txm      tx.Manager
	events   domain.EventPublisher
	audit    domain.Auditor
	metrics  Metrics

	policy      ReversalPolicy
	maxAttempts int
}

// New creates an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Items == nil || cfg.Incoming == nil || cfg.Outgoing == nil || cfg.TxManager == nil {
		return nil, fmt.Errorf("engine: repositories and transaction manager are required")
	}
	if cfg.ReversalPolicy == "" {
		cfg.ReversalPolicy = ReversalRestore
	}
	if !cfg.ReversalPolicy.IsValid() {
		return nil, fmt.Errorf("engine: unknown reversal policy %q", cfg.ReversalPolicy)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	e := &Engine{
		items:       cfg.Items,
		incoming:    cfg.Incoming,
		outgoing:    cfg.Outgoing,
		txm:         cfg.TxManager,
		events:      cfg.Events,
		audit:       cfg.Audit,
		metrics:     cfg.Metrics,
		policy:      cfg.ReversalPolicy,
		maxAttempts: cfg.MaxAttempts,
	}
	if e.events == nil {
		e.events = domain.NopPublisher{}
	}
	if e.audit == nil {
		e.audit = domain.NopAuditor{}
	}
	if e.metrics == nil {
		e.metrics = nopMetrics{}
	}
	return e, nil
}

// Policy returns the configured reversal policy.
func (e *Engine) Policy() ReversalPolicy {
	return e.policy
}

// ListItems returns every item in code order.
func (e *Engine) ListItems(ctx context.Context) ([]*catalog.StockItem, error) {
	filter := catalog.ListFilter{ListFilter: domain.DefaultListFilter()}
	filter.Limit = 500

	var all []*catalog.StockItem
	for {
		page, err := e.items.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		all = append(all, page.Items...)
		if len(page.Items) < filter.Limit {
			return all, nil
		}
		filter.Offset += len(page.Items)
	}
}

// run executes fn as one transaction, retrying the whole unit when a
// version check loses a race. Errors that are not AppErrors are logged and
// returned as Internal.
func (e *Engine) run(ctx context.Context, op string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := tracer.Start(ctx, "engine."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	var err error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err = e.txm.RunInTransaction(ctx, fn)
		if err == nil || !apperror.IsConcurrentModification(err) {
			break
		}
		logger.Warn(ctx, "concurrent modification, retrying", "op", op, "attempt", attempt)
	}

	e.metrics.ObserveOperation(op, outcome(err), time.Since(start))
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if _, ok := apperror.AsAppError(err); !ok {
		logger.Error(ctx, "ledger operation failed", "op", op, "error", err)
		return apperror.NewInternal(err)
	}
	return err
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Code
	}
	return apperror.CodeInternal
}

// saveItem persists the locked item after a quantity change and audits it.
func (e *Engine) saveItem(ctx context.Context, before catalog.StockItem, after *catalog.StockItem) error {
	after.Touch()
	if err := e.items.Update(ctx, after); err != nil {
		return err
	}
	return e.audit.Record(ctx, domain.AggregateStockItem, after.ID, domain.AuditLedger, before, after)
}

// lockItem reads the item row under lock and snapshots its pre-image.
func (e *Engine) lockItem(ctx context.Context, code string) (*catalog.StockItem, catalog.StockItem, error) {
	item, err := e.items.GetByCodeForUpdate(ctx, code)
	if err != nil {
		return nil, catalog.StockItem{}, err
	}
	return item, *item, nil
}
