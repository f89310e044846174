package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/pkg/logger"
)

const (
	outboxTable    = "sys_outbox"
	outboxDLQTable = "sys_outbox_dlq"
)

// OutboxStatus is the delivery state of a sys_outbox row.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxPublished OutboxStatus = "published"
	OutboxFailed    OutboxStatus = "failed"
)

// MaxOutboxAttempts failed deliveries park a message as failed; the worker
// then moves it to sys_outbox_dlq.
const MaxOutboxAttempts = 5

// OutboxMessage is a ledger event waiting for (or past) delivery to the broker.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	TraceID       *string      `db:"trace_id"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

var outboxColumns = ExtractDBColumns[OutboxMessage]()

var errNoTransaction = errors.New("outbox publish requires a transaction")

var _ domain.EventPublisher = (*OutboxPublisher)(nil)

// OutboxPublisher implements domain.EventPublisher on sys_outbox. The row is
// written in the caller's transaction, so an event exists iff the ledger
// change that raised it committed.
type OutboxPublisher struct {
	txm *TxManager
}

func NewOutboxPublisher(txm *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txm: txm}
}

func (p *OutboxPublisher) Publish(ctx context.Context, event domain.Event) error {
	t := p.txm.GetTx(ctx)
	if t == nil {
		return errNoTransaction
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event.EventType, err)
	}

	msg := OutboxMessage{
		ID:            id.New(),
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		Status:        OutboxPending,
		CreatedAt:     time.Now().UTC(),
	}
	if tid := appctx.GetTraceID(ctx); tid != "" {
		msg.TraceID = &tid
	}

	sql, args, err := Builder().Insert(outboxTable).SetMap(StructToMap(msg)).ToSql()
	if err != nil {
		return fmt.Errorf("build outbox insert: %w", err)
	}
	if _, err := t.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// OutboxHandler delivers one message; an error schedules a retry.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxRelay moves due messages from sys_outbox to an OutboxHandler.
// Relays in several worker processes share the table through SKIP LOCKED.
type OutboxRelay struct {
	txm       *TxManager
	handler   OutboxHandler
	batchSize uint64
	backoff   func(attempt int) time.Duration
}

func NewOutboxRelay(txm *TxManager, batchSize int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		txm:       txm,
		handler:   handler,
		batchSize: uint64(batchSize),
		backoff:   exponentialBackoff,
	}
}

// exponentialBackoff waits 30s, 1m, 2m, 4m ... capped at one hour.
func exponentialBackoff(attempt int) time.Duration {
	d := 30 * time.Second << min(max(attempt-1, 0), 7)
	return min(d, time.Hour)
}

// BatchResult is the outcome of one ProcessBatch.
type BatchResult struct {
	Published int
	Failed    int
}

// ProcessBatch claims up to batchSize due messages, delivers them in
// creation order and records each outcome in the same transaction.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (BatchResult, error) {
	var res BatchResult
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		res = BatchResult{}
		q := r.txm.GetQuerier(ctx)

		sql, args, err := Builder().
			Select(outboxColumns...).
			From(outboxTable).
			Where(squirrel.Eq{"status": OutboxPending}).
			Where(squirrel.Or{
				squirrel.Eq{"next_retry_at": nil},
				squirrel.Expr("next_retry_at <= now()"),
			}).
			OrderBy("created_at").
			Limit(r.batchSize).
			Suffix("FOR UPDATE SKIP LOCKED").
			ToSql()
		if err != nil {
			return fmt.Errorf("build outbox claim: %w", err)
		}

		var due []*OutboxMessage
		if err := pgxscan.Select(ctx, q, &due, sql, args...); err != nil {
			return fmt.Errorf("claim outbox messages: %w", err)
		}
		for _, msg := range due {
			if err := r.deliver(ctx, q, msg); err != nil {
				return err
			}
			if msg.Status == OutboxPublished {
				res.Published++
			} else {
				res.Failed++
			}
		}
		return nil
	})
	return res, err
}

// deliver hands msg to the handler and persists the outcome. Only storage
// errors are returned; a handler error turns into a scheduled retry.
func (r *OutboxRelay) deliver(ctx context.Context, q Querier, msg *OutboxMessage) error {
	set := r.outcome(ctx, msg, r.handler.Handle(ctx, msg))

	sql, args, err := Builder().Update(outboxTable).SetMap(set).Where(squirrel.Eq{"id": msg.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build outbox update: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("record outbox outcome %s: %w", msg.ID, err)
	}
	return nil
}

// outcome applies a delivery result to msg and returns the changed columns.
func (r *OutboxRelay) outcome(ctx context.Context, msg *OutboxMessage, handleErr error) map[string]any {
	now := time.Now().UTC()
	if handleErr == nil {
		msg.Status = OutboxPublished
		msg.PublishedAt = &now
		return map[string]any{"status": msg.Status, "published_at": now}
	}

	msg.RetryCount++
	reason := handleErr.Error()
	next := now.Add(r.backoff(msg.RetryCount))
	msg.LastError, msg.NextRetryAt = &reason, &next
	if msg.RetryCount >= MaxOutboxAttempts {
		msg.Status = OutboxFailed
	}

	logger.Warn(ctx, "outbox delivery failed",
		"message_id", msg.ID,
		"event_type", msg.EventType,
		"attempt", msg.RetryCount,
		"next_retry_at", next,
		"error", handleErr,
	)
	return map[string]any{
		"status":        msg.Status,
		"retry_count":   msg.RetryCount,
		"last_error":    reason,
		"next_retry_at": next,
	}
}

// MoveToDLQ parks every failed message in sys_outbox_dlq.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		WITH failed AS (
			DELETE FROM `+outboxTable+` WHERE status = $1
			RETURNING id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at
		)
		INSERT INTO `+outboxDLQTable+`
			(id, aggregate_type, aggregate_id, event_type, payload, retry_count, failure_reason, created_at, failed_at)
		SELECT id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at, now()
		FROM failed`, OutboxFailed)
	if err != nil {
		return 0, fmt.Errorf("move failed outbox messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PendingCount feeds the outbox backlog gauge.
func (r *OutboxRelay) PendingCount(ctx context.Context) (int64, error) {
	sql, args, err := Builder().Select("count(*)").From(outboxTable).
		Where(squirrel.Eq{"status": OutboxPending}).ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending outbox: %w", err)
	}
	return n, nil
}

// PurgePublished drops delivered messages published more than age ago.
func (r *OutboxRelay) PurgePublished(ctx context.Context, age time.Duration) (int64, error) {
	sql, args, err := Builder().Delete(outboxTable).
		Where(squirrel.Eq{"status": OutboxPublished}).
		Where(squirrel.Lt{"published_at": time.Now().UTC().Add(-age)}).
		ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("purge published outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}
