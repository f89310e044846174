package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalog"
)

type fixture struct {
	engine  *Engine
	store   *memStore
	metrics *countingMetrics
}

func newFixture(t *testing.T, policy ReversalPolicy) *fixture {
	t.Helper()

	store := newMemStore()
	metrics := newCountingMetrics()
	e, err := New(Config{
		Items:          memItems{store},
		Incoming:       memIncoming{store},
		Outgoing:       memOutgoing{store},
		TxManager:      memTx{store},
		Events:         memPublisher{store},
		Metrics:        metrics,
		ReversalPolicy: policy,
	})
	require.NoError(t, err)
	return &fixture{engine: e, store: store, metrics: metrics}
}

// seed adds an item with the A1 numbers: qty 10, price 100, cost 60.
func (f *fixture) seed(code string, qty int64) {
	item := catalog.NewStockItem(code, "Item "+code, types.MustMoney("60"), types.MustMoney("100"), qty)
	f.store.items[code] = *item
}

func TestNew_RejectsUnknownPolicy(t *testing.T) {
	store := newMemStore()
	_, err := New(Config{
		Items: memItems{store}, Incoming: memIncoming{store}, Outgoing: memOutgoing{store}, TxManager: memTx{store},
		ReversalPolicy: "refund",
	})
	require.Error(t, err)

	_, err = New(Config{})
	require.Error(t, err)
}

func TestNew_DefaultsToRestore(t *testing.T) {
	f := newFixture(t, "")
	assert.Equal(t, ReversalRestore, f.engine.Policy())
}

func TestScenarioA1(t *testing.T) {
	f := newFixture(t, ReversalRestore)
	f.seed("A1", 10)
	ctx := context.Background()

	sale, err := f.engine.RecordOutgoing(ctx, "A1", 4, time.Time{})
	require.NoError(t, err)
	assert.True(t, sale.TotalAmount.Equal(types.MustMoney("400")))
	assert.True(t, sale.ProfitAmount.Equal(types.MustMoney("160")))
	assert.True(t, sale.UnitCostSnapshot.Equal(types.MustMoney("60")))

	item := f.store.item("A1")
	assert.Equal(t, int64(6), item.CurrentQty)
	assert.Equal(t, int64(4), item.CumulativeSold)
	assert.True(t, item.CumulativeRevenue.Equal(types.MustMoney("400")))
	assert.True(t, item.CumulativeProfit.Equal(types.MustMoney("160")))

	_, err = f.engine.RecordOutgoing(ctx, "A1", 10, time.Time{})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
	assert.Equal(t, int64(6), f.store.item("A1").CurrentQty)
	assert.Len(t, f.store.outgoing, 1)

	receipt, err := f.engine.RecordIncoming(ctx, "A1", 5, time.Time{})
	require.NoError(t, err)
	item = f.store.item("A1")
	assert.Equal(t, int64(11), item.CurrentQty)
	assert.Equal(t, int64(5), item.CumulativeReceived)

	require.NoError(t, f.engine.ReverseIncoming(ctx, receipt.ID))
	item = f.store.item("A1")
	assert.Equal(t, int64(6), item.CurrentQty)
	assert.Equal(t, int64(0), item.CumulativeReceived)
	assert.Empty(t, f.store.incoming)
	assert.Zero(t, f.metrics.clamped["reverse_incoming"])
}

func TestRecord_Rejects(t *testing.T) {
	f := newFixture(t, ReversalRestore)
	f.seed("A1", 10)
	ctx := context.Background()

	_, err := f.engine.RecordIncoming(ctx, "A1", 0, time.Time{})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuantity))

	_, err = f.engine.RecordOutgoing(ctx, "A1", -2, time.Time{})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuantity))

	_, err = f.engine.RecordIncoming(ctx, "nope", 1, time.Time{})
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.engine.RecordOutgoing(ctx, "nope", 1, time.Time{})
	assert.True(t, apperror.IsNotFound(err))

	assert.Empty(t, f.store.incoming)
	assert.Empty(t, f.store.outgoing)
	assert.Empty(t, f.store.events)
}

func TestRecordIncoming_RejectsOverflow(t *testing.T) {
	f := newFixture(t, ReversalRestore)
	f.seed("A1", 10)

	_, err := f.engine.RecordIncoming(context.Background(), "A1", math.MaxInt64, time.Time{})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuantity))

	item := f.store.item("A1")
	assert.Equal(t, int64(10), item.CurrentQty)
	assert.Zero(t, item.CumulativeReceived)
	assert.Empty(t, f.store.incoming)
}

func TestRun_StorageFailureIsInternal(t *testing.T) {
	storageErr := errors.New("connection reset by peer")

	t.Run("create fails", func(t *testing.T) {
		store := newMemStore()
		e, err := New(Config{
			Items:     memItems{store},
			Incoming:  failingIncoming{memIncoming: memIncoming{store}, err: storageErr},
			Outgoing:  memOutgoing{store},
			TxManager: memTx{store},
		})
		require.NoError(t, err)
		store.items["A1"] = *catalog.NewStockItem("A1", "Item A1", types.MustMoney("60"), types.MustMoney("100"), 10)

		_, err = e.RecordIncoming(context.Background(), "A1", 5, time.Time{})
		require.Error(t, err)
		assert.True(t, apperror.HasCode(err, apperror.CodeInternal))
		assert.ErrorIs(t, err, storageErr)
		assert.Equal(t, int64(10), store.item("A1").CurrentQty)
	})

	t.Run("publish fails after writes", func(t *testing.T) {
		store := newMemStore()
		e, err := New(Config{
			Items:     memItems{store},
			Incoming:  memIncoming{store},
			Outgoing:  memOutgoing{store},
			TxManager: memTx{store},
			Events:    failingPublisher{err: storageErr},
		})
		require.NoError(t, err)
		store.items["A1"] = *catalog.NewStockItem("A1", "Item A1", types.MustMoney("60"), types.MustMoney("100"), 10)

		_, err = e.RecordOutgoing(context.Background(), "A1", 4, time.Time{})
		assert.True(t, apperror.HasCode(err, apperror.CodeInternal))

		item := store.item("A1")
		assert.Equal(t, int64(10), item.CurrentQty)
		assert.Zero(t, item.CumulativeSold)
		assert.Equal(t, 1, item.Version)
		assert.Empty(t, store.outgoing)
	})
}

func TestRecordOutgoing_InactiveItem(t *testing.T) {
	f := newFixture(t, ReversalRestore)
	f.seed("A1", 10)
	item := f.store.items["A1"]
	item.Status = catalog.StatusInactive
	f.store.items["A1"] = item
	ctx := context.Background()

	_, err := f.engine.RecordOutgoing(ctx, "A1", 1, time.Time{})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.engine.RecordIncoming(ctx, "A1", 1, time.Time{})
	assert.NoError(t, err)
	assert.Equal(t, int64(11), f.store.item("A1").CurrentQty)
}

func TestRecordIncoming_KeepsOccurredAtAndSnapshot(t *testing.T) {
	f := newFixture(t, ReversalRestore)
	f.seed("A1", 0)
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	event, err := f.engine.RecordIncoming(context.Background(), "A1", 3, at)
	require.NoError(t, err)
	assert.Equal(t, at, event.OccurredAt)
	assert.Equal(t, "Item A1", event.ItemName)
	require.Len(t, f.store.events, 1)
	assert.Equal(t, domain.EventIncomingRecorded, f.store.events[0].EventType)
}

func TestEditIncoming_AppliesDelta(t *testing.T) {
	f := newFixture(t, ReversalRestore)
	f.seed("A1", 10)
	ctx := context.Background()

	receipt, err := f.engine.RecordIncoming(ctx, "A1", 5, time.Time{})
	require.NoError(t, err)
	require.Equal(t, int64(15), f.store.item("A1").CurrentQty)

	newDate := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	edited, err := f.engine.EditIncoming(ctx, receipt.ID, EditIncomingInput{Qty: 2, OccurredAt: &newDate})
	require.NoError(t, err)
	assert.Equal(t, int64(2), edited.Qty)
	assert.Equal(t, newDate, edited.OccurredAt)

	item := f.store.item("A1")
	assert.Equal(t, int64(12), item.CurrentQty)
	assert.Equal(t, int64(2), item.CumulativeReceived)
	assert.Equal(t, int64(2), f.store.incoming[receipt.ID].Qty)
}

func TestEditIncoming_Rejects(t *testing.T) {
	f := newFixture(t, ReversalRestore)
	f.seed("A1", 10)
	ctx := context.Background()

	receipt, err := f.engine.RecordIncoming(ctx, "A1", 5, time.Time{})
	require.NoError(t, err)

	_, err = f.engine.EditIncoming(ctx, receipt.ID, EditIncomingInput{Qty: 0})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuantity))

	_, err = f.engine.EditIncoming(ctx, id.New(), EditIncomingInput{Qty: 3})
	assert.True(t, apperror.IsNotFound(err))
	assert.Equal(t, int64(15), f.store.item("A1").CurrentQty)
}

func TestReverseIncoming_ClampsAfterSale(t *testing.T) {
	f := newFixture(t, ReversalRestore)
	f.seed("A1", 0)
	ctx := context.Background()

	receipt, err := f.engine.RecordIncoming(ctx, "A1", 5, time.Time{})
	require.NoError(t, err)
	_, err = f.engine.RecordOutgoing(ctx, "A1", 4, time.Time{})
	require.NoError(t, err)

	require.NoError(t, f.engine.ReverseIncoming(ctx, receipt.ID))
	item := f.store.item("A1")
	assert.Equal(t, int64(0), item.CurrentQty)
	assert.Equal(t, int64(0), item.CumulativeReceived)
	assert.Equal(t, 1, f.metrics.clamped["reverse_incoming"])

	rec, err := f.engine.Reconcile(ctx, "A1")
	require.NoError(t, err)
	assert.False(t, rec.InSync)
	assert.Equal(t, int64(-4), rec.ExpectedQty)

	err = f.engine.ReverseIncoming(ctx, receipt.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestReverseOutgoing_Restore(t *testing.T) {
	f := newFixture(t, ReversalRestore)
	f.seed("A1", 10)
	ctx := context.Background()
	original := f.store.item("A1")

	sale, err := f.engine.RecordOutgoing(ctx, "A1", 4, time.Time{})
	require.NoError(t, err)
	require.NoError(t, f.engine.ReverseOutgoing(ctx, sale.ID))

	item := f.store.item("A1")
	assert.Equal(t, original.CurrentQty, item.CurrentQty)
	assert.Equal(t, original.CumulativeSold, item.CumulativeSold)
	assert.True(t, item.CumulativeRevenue.IsZero())
	assert.True(t, item.CumulativeProfit.IsZero())
	assert.Empty(t, f.store.outgoing)

	err = f.engine.ReverseOutgoing(ctx, sale.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestReverseOutgoing_LedgerOnly(t *testing.T) {
	f := newFixture(t, ReversalLedgerOnly)
	f.seed("A1", 10)
	ctx := context.Background()

	sale, err := f.engine.RecordOutgoing(ctx, "A1", 4, time.Time{})
	require.NoError(t, err)
	before := f.store.item("A1")

	require.NoError(t, f.engine.ReverseOutgoing(ctx, sale.ID))
	after := f.store.item("A1")
	assert.Equal(t, before, after)
	assert.Empty(t, f.store.outgoing)
}

func TestDeleteAllOutgoing(t *testing.T) {
	for _, policy := range []ReversalPolicy{ReversalRestore, ReversalLedgerOnly} {
		t.Run(string(policy), func(t *testing.T) {
			f := newFixture(t, policy)
			f.seed("A1", 10)
			f.seed("B2", 5)
			ctx := context.Background()

			for _, sale := range []struct {
				code string
				qty  int64
			}{{"A1", 2}, {"A1", 3}, {"B2", 1}} {
				_, err := f.engine.RecordOutgoing(ctx, sale.code, sale.qty, time.Time{})
				require.NoError(t, err)
			}

			count, err := f.engine.DeleteAllOutgoing(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(3), count)
			assert.Empty(t, f.store.outgoing)

			a1, b2 := f.store.item("A1"), f.store.item("B2")
			if policy == ReversalRestore {
				assert.Equal(t, int64(10), a1.CurrentQty)
				assert.Equal(t, int64(0), a1.CumulativeSold)
				assert.Equal(t, int64(5), b2.CurrentQty)
			} else {
				assert.Equal(t, int64(5), a1.CurrentQty)
				assert.Equal(t, int64(5), a1.CumulativeSold)
				assert.Equal(t, int64(4), b2.CurrentQty)
			}

			count, err = f.engine.DeleteAllOutgoing(ctx)
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestRecordOutgoing_ConcurrentNeverOversells(t *testing.T) {
	f := newFixture(t, ReversalRestore)
	f.seed("A1", 10)
	ctx := context.Background()

	const buyers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		rejected  int
		unexpects []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.RecordOutgoing(ctx, "A1", 1, time.Time{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperror.HasCode(err, apperror.CodeInsufficientStock):
				rejected++
			default:
				unexpects = append(unexpects, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, unexpects)
	assert.Equal(t, 10, ok)
	assert.Equal(t, buyers-10, rejected)
	assert.Equal(t, int64(0), f.store.item("A1").CurrentQty)
	assert.Equal(t, int64(10), f.store.item("A1").CumulativeSold)
}

func TestRun_RetriesConcurrentModification(t *testing.T) {
	f := newFixture(t, ReversalRestore)
	f.seed("A1", 10)
	ctx := context.Background()

	attempts := 0
	err := f.engine.run(ctx, "retry_check", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return apperror.NewConcurrentModification("stock item", "A1")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = f.engine.run(ctx, "retry_check", func(ctx context.Context) error {
		attempts++
		return apperror.NewConcurrentModification("stock item", "A1")
	})
	assert.True(t, apperror.IsConcurrentModification(err))
	assert.Equal(t, defaultMaxAttempts, attempts)
	assert.Equal(t, 1, f.metrics.ops["retry_check:"+apperror.CodeConcurrentModification])
}

func TestReconcile_InSyncAfterRoundTrips(t *testing.T) {
	f := newFixture(t, ReversalRestore)
	f.seed("A1", 10)
	ctx := context.Background()

	_, err := f.engine.RecordIncoming(ctx, "A1", 7, time.Time{})
	require.NoError(t, err)
	_, err = f.engine.RecordOutgoing(ctx, "A1", 3, time.Time{})
	require.NoError(t, err)

	rec, err := f.engine.Reconcile(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, rec.InSync)
	assert.Equal(t, int64(14), rec.ExpectedQty)
	assert.Equal(t, int64(14), rec.CachedQty)
}

func TestListItems_Pages(t *testing.T) {
	f := newFixture(t, ReversalRestore)
	for _, code := range []string{"C3", "A1", "B2"} {
		f.seed(code, 1)
	}

	items, err := f.engine.ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "A1", items[0].Code)
	assert.Equal(t, "C3", items[2].Code)
}
