package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineMetrics(t *testing.T) {
	m := New()

	m.ObserveOperation("record_outgoing", "ok", 3*time.Millisecond)
	m.ObserveOperation("record_outgoing", "INSUFFICIENT_STOCK", time.Millisecond)
	m.ObserveOperation("record_outgoing", "ok", time.Millisecond)
	m.ReversalClamped("reverse_incoming")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EngineOperations.WithLabelValues("record_outgoing", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineOperations.WithLabelValues("record_outgoing", "INSUFFICIENT_STOCK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReversalClampedTotal.WithLabelValues("reverse_incoming")))
}

func TestOutboxAndBreakerMetrics(t *testing.T) {
	m := New()

	m.RecordOutboxBatch(5, 2)
	m.RecordOutboxBatch(1, 0)
	m.SetCircuitBreakerState("kafka-producer", 2)
	m.SetOutboxPending(9)
	m.SetOutboxPending(4)
	m.RecordDeadLettered(3)

	assert.Equal(t, 6.0, testutil.ToFloat64(m.OutboxPublished))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxFailed))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.OutboxPending))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OutboxDeadLettered))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("kafka-producer")))
}

func TestHandler_ExposesNamespace(t *testing.T) {
	m := New()
	m.RecordHTTPRequest(http.MethodGet, "/api/v1/items", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `stockledger_http_requests_total{method="GET",path="/api/v1/items",status="200"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
