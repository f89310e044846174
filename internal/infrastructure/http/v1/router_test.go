package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/engine"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/reports"
	"stockledger/internal/infrastructure/cache"
	"stockledger/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- fakes ---

type fakeItems struct {
	items map[string]*catalog.StockItem
}

func newFakeItems() *fakeItems {
	a1 := catalog.NewStockItem("A1", "Nasi goreng", types.MustMoney("60"), types.MustMoney("100"), 10)
	return &fakeItems{items: map[string]*catalog.StockItem{"A1": a1}}
}

func (f *fakeItems) Create(ctx context.Context, in catalog.CreateInput) (*catalog.StockItem, error) {
	item := catalog.NewStockItem(in.Code, in.Name, in.UnitCost, in.UnitPrice, in.OpeningQty)
	if err := item.Validate(ctx); err != nil {
		return nil, err
	}
	f.items[item.Code] = item
	return item, nil
}

func (f *fakeItems) Get(_ context.Context, code string) (*catalog.StockItem, error) {
	if item, ok := f.items[code]; ok {
		return item, nil
	}
	return nil, apperror.NewNotFound("stock item", code)
}

func (f *fakeItems) List(_ context.Context, filter catalog.ListFilter) (domain.ListResult[*catalog.StockItem], error) {
	out := domain.ListResult[*catalog.StockItem]{Limit: filter.Limit, Offset: filter.Offset}
	for _, item := range f.items {
		out.Items = append(out.Items, item)
	}
	out.TotalCount = int64(len(out.Items))
	return out, nil
}

func (f *fakeItems) Update(ctx context.Context, code string, in catalog.UpdateInput) (*catalog.StockItem, error) {
	item, err := f.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		item.Name = *in.Name
	}
	return item, nil
}

func (f *fakeItems) Delete(ctx context.Context, code string) error {
	if _, err := f.Get(ctx, code); err != nil {
		return err
	}
	delete(f.items, code)
	return nil
}

type fakeEngine struct {
	mu        sync.Mutex
	stock     int64
	calls     map[string]int
	lastQty   int64
	lastActor string
	panics    bool
}

func newFakeEngine(stock int64) *fakeEngine {
	return &fakeEngine{stock: stock, calls: map[string]int{}}
}

func (f *fakeEngine) hit(ctx context.Context, op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	f.lastActor = appctx.GetActorSubject(ctx)
}

func (f *fakeEngine) RecordIncoming(ctx context.Context, code string, qty int64, at time.Time) (*ledger.IncomingEvent, error) {
	f.hit(ctx, "record_incoming")
	f.lastQty = qty
	if qty <= 0 {
		return nil, apperror.NewInvalidQuantity(qty)
	}
	return &ledger.IncomingEvent{ID: id.New(), ItemCode: code, Qty: qty, OccurredAt: at}, nil
}

func (f *fakeEngine) ReverseIncoming(ctx context.Context, eventID id.ID) error {
	f.hit(ctx, "reverse_incoming")
	return apperror.NewNotFound("incoming event", eventID)
}

func (f *fakeEngine) EditIncoming(ctx context.Context, eventID id.ID, in engine.EditIncomingInput) (*ledger.IncomingEvent, error) {
	f.hit(ctx, "edit_incoming")
	f.lastQty = in.Qty
	return &ledger.IncomingEvent{ID: eventID, Qty: in.Qty}, nil
}

func (f *fakeEngine) RecordOutgoing(ctx context.Context, code string, qty int64, _ time.Time) (*ledger.OutgoingEvent, error) {
	f.hit(ctx, "record_outgoing")
	if f.panics {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if qty > f.stock {
		return nil, apperror.NewInsufficientStock(code, qty, f.stock)
	}
	f.stock -= qty
	return &ledger.OutgoingEvent{ID: id.New(), ItemCode: code, Qty: qty}, nil
}

func (f *fakeEngine) ReverseOutgoing(ctx context.Context, _ id.ID) error {
	f.hit(ctx, "reverse_outgoing")
	return nil
}

func (f *fakeEngine) DeleteAllOutgoing(ctx context.Context) (int64, error) {
	f.hit(ctx, "delete_all_outgoing")
	return 3, nil
}

func (f *fakeEngine) Reconcile(ctx context.Context, code string) (*engine.Reconciliation, error) {
	f.hit(ctx, "reconcile")
	return &engine.Reconciliation{ItemCode: code, CachedQty: 6, ExpectedQty: 6, InSync: true}, nil
}

type fakeLedger struct {
	lastFilter ledger.ListFilter
}

func (f *fakeLedger) ListIncoming(_ context.Context, filter ledger.ListFilter) (domain.ListResult[*ledger.IncomingEvent], error) {
	f.lastFilter = filter
	return domain.ListResult[*ledger.IncomingEvent]{Items: []*ledger.IncomingEvent{}, Limit: filter.Limit}, nil
}

func (f *fakeLedger) GetIncoming(_ context.Context, eventID id.ID) (*ledger.IncomingEvent, error) {
	return nil, apperror.NewNotFound("incoming event", eventID)
}

func (f *fakeLedger) ListOutgoing(_ context.Context, filter ledger.ListFilter) (domain.ListResult[*ledger.OutgoingEvent], error) {
	f.lastFilter = filter
	return domain.ListResult[*ledger.OutgoingEvent]{Items: []*ledger.OutgoingEvent{}, Limit: filter.Limit}, nil
}

func (f *fakeLedger) GetOutgoing(_ context.Context, eventID id.ID) (*ledger.OutgoingEvent, error) {
	return &ledger.OutgoingEvent{ID: eventID, ItemCode: "A1", Qty: 4}, nil
}

type fakeReports struct {
	lastFilter reports.SalesFilter
}

func (f *fakeReports) SalesSummary(_ context.Context, filter reports.SalesFilter) (*reports.SalesSummary, error) {
	f.lastFilter = filter
	return &reports.SalesSummary{Granularity: filter.Granularity, Periods: []reports.SalesPeriod{}}, nil
}

func (f *fakeReports) Dashboard(context.Context) (*reports.Dashboard, error) {
	return &reports.Dashboard{TotalItems: 1, LowStock: 1}, nil
}

// memIdempotency mimics the Redis store in memory.
type memIdempotency struct {
	mu      sync.Mutex
	records map[string]*cache.IdempotencyRecord
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{records: map[string]*cache.IdempotencyRecord{}}
}

func (m *memIdempotency) AcquireKey(_ context.Context, key, subject, operation, hash string) (*cache.IdempotencyReplay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		m.records[key] = &cache.IdempotencyRecord{Subject: subject, Operation: operation, RequestHash: hash, Status: cache.IdempotencyStatusPending}
		return nil, nil
	}
	if rec.RequestHash != hash || rec.Operation != operation {
		return nil, apperror.NewIdempotencyMismatch(key)
	}
	if rec.Status == cache.IdempotencyStatusPending {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	return &cache.IdempotencyReplay{StatusCode: rec.StatusCode, ContentType: rec.ContentType, Body: rec.Body}, nil
}

func (m *memIdempotency) CompleteKey(_ context.Context, key string, status int, ct string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status >= 500 {
		delete(m.records, key)
		return nil
	}
	rec := m.records[key]
	rec.Status = cache.IdempotencyStatusSuccess
	rec.StatusCode, rec.ContentType, rec.Body = status, ct, body
	return nil
}

type staticValidator map[string]*appctx.Actor

func (v staticValidator) ValidateToken(token string) (*appctx.Actor, error) {
	if a, ok := v[token]; ok {
		return a, nil
	}
	return nil, errors.New("unknown token")
}

// --- harness ---

type harness struct {
	router  *gin.Engine
	items   *fakeItems
	engine  *fakeEngine
	ledger  *fakeLedger
	reports *fakeReports
}

func newHarness(t *testing.T, mutate func(*RouterConfig)) *harness {
	t.Helper()
	h := &harness{
		items:   newFakeItems(),
		engine:  newFakeEngine(10),
		ledger:  &fakeLedger{},
		reports: &fakeReports{},
	}
	cfg := RouterConfig{
		Logger:  logger.NewNop(),
		Items:   h.items,
		Engine:  h.engine,
		Ledger:  h.ledger,
		Reports: h.reports,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.router = NewRouter(cfg)
	return h
}

func (h *harness) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// --- tests ---

func TestRecordOutgoing_InsufficientStock(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/api/v1/outgoing", `{"itemCode":"A1","qty":4}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/outgoing", `{"itemCode":"A1","qty":10}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, apperror.CodeInsufficientStock, body["code"])
}

func TestRecordIncoming_QuantityParsing(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/api/v1/incoming", `{"itemCode":"A1","qty":"5"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(5), h.engine.lastQty)

	rec = h.do(http.MethodPost, "/api/v1/incoming", `{"itemCode":"A1","qty":"five"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.CodeInvalidQuantity, decode(t, rec)["code"])

	rec = h.do(http.MethodPost, "/api/v1/incoming", `{"itemCode":"A1","qty":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.CodeInvalidQuantity, decode(t, rec)["code"])
}

func TestRecordIncoming_ValidationFields(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/api/v1/incoming", `{"qty":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, apperror.CodeValidation, body["code"])
	fields := body["details"].(map[string]any)["fields"].(map[string]any)
	assert.Equal(t, "is required", fields["itemCode"])

	rec = h.do(http.MethodPost, "/api/v1/incoming", `{"itemCode":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAllOutgoing_ReturnsCount(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodDelete, "/api/v1/outgoing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deletedCount":3}`, rec.Body.String())
}

func TestItems_CRUD(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/v1/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["totalCount"])
	first := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "A1", first["code"])
	assert.EqualValues(t, 10, first["currentQty"])
	assert.Equal(t, false, first["lowStock"])

	rec = h.do(http.MethodPost, "/api/v1/items", `{"code":"B2","name":"Es teh","unitCost":"2","unitPrice":"5","openingQty":"3"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["lowStock"])

	rec = h.do(http.MethodPost, "/api/v1/items", `{"code":"B3"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPut, "/api/v1/items/B2", `{"name":"Es teh manis"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Es teh manis", decode(t, rec)["name"])

	rec = h.do(http.MethodDelete, "/api/v1/items/B2", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/items/B2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/items/A1/reconcile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["inSync"])
}

func TestLedgerList_ParsesFilter(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/v1/outgoing?itemCode=A1&from=2026-01-01&to=2026-02-01T00:00:00Z&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	f := h.ledger.lastFilter
	assert.Equal(t, "A1", f.ItemCode)
	assert.Equal(t, 10, f.Limit)
	require.NotNil(t, f.From)
	require.NotNil(t, f.To)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *f.From)

	rec = h.do(http.MethodGet, "/api/v1/incoming?from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/incoming/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReports(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/v1/reports/sales?granularity=month&itemCode=A1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reports.GranularityMonth, h.reports.lastFilter.Granularity)
	assert.Equal(t, "A1", h.reports.lastFilter.ItemCode)

	rec = h.do(http.MethodGet, "/api/v1/reports/sales?granularity=week", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/reports/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["lowStock"])
}

func TestAuth_RolesAndActor(t *testing.T) {
	validator := staticValidator{
		"clerk-token": {Subject: "cashier-7", Role: roleClerk},
		"admin-token": {Subject: "owner", Role: roleAdmin},
	}
	h := newHarness(t, func(cfg *RouterConfig) { cfg.JWTValidator = validator })

	rec := h.do(http.MethodGet, "/api/v1/items", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/items", "", "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/outgoing", `{"itemCode":"A1","qty":1}`, "Authorization", "Bearer clerk-token")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "cashier-7", h.engine.lastActor)

	rec = h.do(http.MethodDelete, "/api/v1/outgoing", "", "Authorization", "Bearer clerk-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodDelete, "/api/v1/outgoing", "", "Authorization", "Bearer admin-token")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIdempotency_ReplaysResponse(t *testing.T) {
	store := newMemIdempotency()
	h := newHarness(t, func(cfg *RouterConfig) { cfg.Idempotency = store })
	body := `{"itemCode":"A1","qty":4}`

	first := h.do(http.MethodPost, "/api/v1/outgoing", body, "X-Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code)

	second := h.do(http.MethodPost, "/api/v1/outgoing", body, "X-Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, h.engine.calls["record_outgoing"])

	// Same key, different body.
	rec := h.do(http.MethodPost, "/api/v1/outgoing", `{"itemCode":"A1","qty":5}`, "X-Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Failures replay too.
	rec = h.do(http.MethodPost, "/api/v1/outgoing", `{"itemCode":"A1","qty":99}`, "X-Idempotency-Key", "k-2")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = h.do(http.MethodPost, "/api/v1/outgoing", `{"itemCode":"A1","qty":99}`, "X-Idempotency-Key", "k-2")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, 2, h.engine.calls["record_outgoing"])
}

func TestRecovery_RendersInternalError(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.panics = true

	rec := h.do(http.MethodPost, "/api/v1/outgoing", `{"itemCode":"A1","qty":1}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperror.CodeInternal, decode(t, rec)["code"])
}

func TestTrace_EchoesRequestID(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/v1/items", "", "X-Request-ID", "req-42")
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
}

func TestTrace_JoinsIncomingTraceparent(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/v1/items", "",
		"traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec.Header().Get("X-Trace-ID"))

	out := rec.Header().Get("traceparent")
	require.Len(t, out, 55)
	assert.Contains(t, out, "-4bf92f3577b34da6a3ce929d0e0e4736-")
	assert.NotContains(t, out, "00f067aa0ba902b7")
}

func TestIdempotency_KeyBoundToTarget(t *testing.T) {
	store := newMemIdempotency()
	h := newHarness(t, func(cfg *RouterConfig) { cfg.Idempotency = store })
	body := `{"itemCode":"A1","qty":2}`

	rec := h.do(http.MethodPost, "/api/v1/incoming", body, "X-Idempotency-Key", "k-3")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/outgoing", body, "X-Idempotency-Key", "k-3")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperror.CodeIdempotency, decode(t, rec)["code"])
	assert.Zero(t, h.engine.calls["record_outgoing"])
}
