package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/ledger"
)

// memStore backs every fake repository. memTx serializes units of work on mu
// and restores a snapshot when fn fails.
type memStore struct {
	mu       sync.Mutex
	items    map[string]catalog.StockItem
	incoming map[id.ID]ledger.IncomingEvent
	outgoing map[id.ID]ledger.OutgoingEvent
	events   []domain.Event
}

func newMemStore() *memStore {
	return &memStore{
		items:    map[string]catalog.StockItem{},
		incoming: map[id.ID]ledger.IncomingEvent{},
		outgoing: map[id.ID]ledger.OutgoingEvent{},
	}
}

type snapshot struct {
	items    map[string]catalog.StockItem
	incoming map[id.ID]ledger.IncomingEvent
	outgoing map[id.ID]ledger.OutgoingEvent
	events   int
}

func (s *memStore) snapshot() snapshot {
	snap := snapshot{
		items:    make(map[string]catalog.StockItem, len(s.items)),
		incoming: make(map[id.ID]ledger.IncomingEvent, len(s.incoming)),
		outgoing: make(map[id.ID]ledger.OutgoingEvent, len(s.outgoing)),
		events:   len(s.events),
	}
	for k, v := range s.items {
		snap.items[k] = v
	}
	for k, v := range s.incoming {
		snap.incoming[k] = v
	}
	for k, v := range s.outgoing {
		snap.outgoing[k] = v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.items = snap.items
	s.incoming = snap.incoming
	s.outgoing = snap.outgoing
	s.events = s.events[:snap.events]
}

func (s *memStore) item(code string) catalog.StockItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[code]
}

type inTxKey struct{}

type memTx struct{ store *memStore }

func (m memTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// --- items ---

type memItems struct{ store *memStore }

func (r memItems) Create(_ context.Context, item *catalog.StockItem) error {
	r.store.items[item.Code] = *item
	return nil
}

func (r memItems) GetByCode(_ context.Context, code string) (*catalog.StockItem, error) {
	item, ok := r.store.items[code]
	if !ok {
		return nil, apperror.NewNotFound("stock item", code)
	}
	return &item, nil
}

func (r memItems) GetByCodeForUpdate(ctx context.Context, code string) (*catalog.StockItem, error) {
	return r.GetByCode(ctx, code)
}

func (r memItems) Update(_ context.Context, item *catalog.StockItem) error {
	stored, ok := r.store.items[item.Code]
	if !ok || stored.Version != item.Version {
		return apperror.NewConcurrentModification("stock item", item.Code)
	}
	item.Version++
	r.store.items[item.Code] = *item
	return nil
}

func (r memItems) Delete(_ context.Context, code string) error {
	delete(r.store.items, code)
	return nil
}

func (r memItems) ExistsByCode(_ context.Context, code string) (bool, error) {
	_, ok := r.store.items[code]
	return ok, nil
}

func (r memItems) List(_ context.Context, filter catalog.ListFilter) (domain.ListResult[*catalog.StockItem], error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	codes := make([]string, 0, len(r.store.items))
	for code := range r.store.items {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var out []*catalog.StockItem
	for i := filter.Offset; i < len(codes) && len(out) < filter.Limit; i++ {
		item := r.store.items[codes[i]]
		out = append(out, &item)
	}
	return domain.ListResult[*catalog.StockItem]{Items: out, TotalCount: int64(len(codes))}, nil
}

// --- incoming ---

type memIncoming struct{ store *memStore }

func (r memIncoming) Create(_ context.Context, e *ledger.IncomingEvent) error {
	r.store.incoming[e.ID] = *e
	return nil
}

func (r memIncoming) GetByID(_ context.Context, eventID id.ID) (*ledger.IncomingEvent, error) {
	e, ok := r.store.incoming[eventID]
	if !ok {
		return nil, apperror.NewNotFound("incoming event", eventID)
	}
	return &e, nil
}

func (r memIncoming) GetByIDForUpdate(ctx context.Context, eventID id.ID) (*ledger.IncomingEvent, error) {
	return r.GetByID(ctx, eventID)
}

func (r memIncoming) UpdateQty(_ context.Context, e *ledger.IncomingEvent) error {
	r.store.incoming[e.ID] = *e
	return nil
}

func (r memIncoming) Delete(_ context.Context, eventID id.ID) error {
	delete(r.store.incoming, eventID)
	return nil
}

func (r memIncoming) List(context.Context, ledger.ListFilter) (domain.ListResult[*ledger.IncomingEvent], error) {
	return domain.ListResult[*ledger.IncomingEvent]{}, nil
}

func (r memIncoming) SumQty(_ context.Context, code string) (int64, error) {
	var sum int64
	for _, e := range r.store.incoming {
		if e.ItemCode == code {
			sum += e.Qty
		}
	}
	return sum, nil
}

// --- outgoing ---

type memOutgoing struct{ store *memStore }

func (r memOutgoing) Create(_ context.Context, e *ledger.OutgoingEvent) error {
	r.store.outgoing[e.ID] = *e
	return nil
}

func (r memOutgoing) GetByID(_ context.Context, eventID id.ID) (*ledger.OutgoingEvent, error) {
	e, ok := r.store.outgoing[eventID]
	if !ok {
		return nil, apperror.NewNotFound("outgoing event", eventID)
	}
	return &e, nil
}

func (r memOutgoing) GetByIDForUpdate(ctx context.Context, eventID id.ID) (*ledger.OutgoingEvent, error) {
	return r.GetByID(ctx, eventID)
}

func (r memOutgoing) Delete(_ context.Context, eventID id.ID) error {
	delete(r.store.outgoing, eventID)
	return nil
}

func (r memOutgoing) DeleteAll(context.Context) ([]ledger.ItemTotal, int64, error) {
	sums := map[string]int64{}
	for _, e := range r.store.outgoing {
		sums[e.ItemCode] += e.Qty
	}
	count := int64(len(r.store.outgoing))
	r.store.outgoing = map[id.ID]ledger.OutgoingEvent{}

	totals := make([]ledger.ItemTotal, 0, len(sums))
	for code, qty := range sums {
		totals = append(totals, ledger.ItemTotal{ItemCode: code, Qty: qty})
	}
	return totals, count, nil
}

func (r memOutgoing) List(context.Context, ledger.ListFilter) (domain.ListResult[*ledger.OutgoingEvent], error) {
	return domain.ListResult[*ledger.OutgoingEvent]{}, nil
}

func (r memOutgoing) SumQty(_ context.Context, code string) (int64, error) {
	var sum int64
	for _, e := range r.store.outgoing {
		if e.ItemCode == code {
			sum += e.Qty
		}
	}
	return sum, nil
}

// --- side effects ---

type memPublisher struct{ store *memStore }

func (p memPublisher) Publish(_ context.Context, e domain.Event) error {
	p.store.events = append(p.store.events, e)
	return nil
}

type countingMetrics struct {
	mu      sync.Mutex
	clamped map[string]int
	ops     map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{clamped: map[string]int{}, ops: map[string]int{}}
}

func (m *countingMetrics) ObserveOperation(op, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op+":"+outcome]++
}

func (m *countingMetrics) ReversalClamped(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clamped[op]++
}

// --- failure injection ---

type failingIncoming struct {
	memIncoming
	err error
}

func (r failingIncoming) Create(context.Context, *ledger.IncomingEvent) error {
	return r.err
}

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(context.Context, domain.Event) error {
	return p.err
}
