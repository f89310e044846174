package main

import (
	"context"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

// Relay is the outbox side of the worker.
type Relay interface {
	ProcessBatch(ctx context.Context) (postgres.BatchResult, error)
	MoveToDLQ(ctx context.Context) (int64, error)
	PendingCount(ctx context.Context) (int64, error)
	PurgePublished(ctx context.Context, age time.Duration) (int64, error)
}

// Recorder receives worker metrics.
type Recorder interface {
	RecordOutboxBatch(published, failed int)
	SetOutboxPending(n int64)
	RecordDeadLettered(n int64)
}

// Worker drains the outbox on a poll interval and does periodic upkeep.
type Worker struct {
	relay    Relay
	recorder Recorder
	log      *logger.Logger

	pollInterval  time.Duration
	upkeepEvery   time.Duration
	purgeInterval time.Duration
	purgeAfter    time.Duration
}

// NewWorker creates a worker.
func NewWorker(relay Relay, recorder Recorder, cfg config.WorkerConfig, log *logger.Logger) *Worker {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &Worker{
		relay:         relay,
		recorder:      recorder,
		log:           log.WithComponent("outbox-worker"),
		pollInterval:  poll,
		upkeepEvery:   time.Minute,
		purgeInterval: time.Hour,
		purgeAfter:    cfg.PurgeAfter,
	}
}

// Run loops until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()
	upkeep := time.NewTicker(w.upkeepEvery)
	defer upkeep.Stop()
	purge := time.NewTicker(w.purgeInterval)
	defer purge.Stop()

	w.upkeep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			w.drain(ctx)
		case <-upkeep.C:
			w.upkeep(ctx)
		case <-purge.C:
			w.purge(ctx)
		}
	}
}

// drain processes batches until one comes back short of work.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		res, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.log.Errorw("outbox batch failed", "error", err)
			}
			return
		}
		w.recorder.RecordOutboxBatch(res.Published, res.Failed)
		if res.Published+res.Failed > 0 {
			w.log.Debugw("processed outbox batch", "published", res.Published, "failed", res.Failed)
		}
		// A batch with failures stops the drain; those rows wait for their backoff.
		if res.Published == 0 || res.Failed > 0 {
			return
		}
	}
}

func (w *Worker) upkeep(ctx context.Context) {
	moved, err := w.relay.MoveToDLQ(ctx)
	if err != nil {
		w.log.Errorw("dead-lettering failed", "error", err)
	} else if moved > 0 {
		w.recorder.RecordDeadLettered(moved)
		w.log.Warnw("moved outbox messages to DLQ", "count", moved)
	}

	pending, err := w.relay.PendingCount(ctx)
	if err != nil {
		w.log.Errorw("pending count failed", "error", err)
		return
	}
	w.recorder.SetOutboxPending(pending)
}

func (w *Worker) purge(ctx context.Context) {
	if w.purgeAfter <= 0 {
		return
	}
	n, err := w.relay.PurgePublished(ctx, w.purgeAfter)
	if err != nil {
		w.log.Errorw("purge failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("purged published outbox messages", "count", n)
	}
}
