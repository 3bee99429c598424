package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollector_RecordHTTPRequest(t *testing.T) {
	c := NewCollector("ethos_test_http", zap.NewNop())

	c.RecordHTTPRequest("GET", "/health", 200, 5*time.Millisecond)
	c.RecordHTTPRequest("GET", "/health", 500, 5*time.Millisecond)

	require.InDelta(t, 1, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/health", "2xx")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/health", "5xx")), 0)
}

func TestCollector_RecordDecaySweep(t *testing.T) {
	c := NewCollector("ethos_test_decay", zap.NewNop())

	c.RecordDecaySweep("vectors", 3)
	c.RecordDecaySweep("vectors", 2)

	require.InDelta(t, 2, testutil.ToFloat64(c.decaySweeps.WithLabelValues("vectors")), 0)
	require.InDelta(t, 5, testutil.ToFloat64(c.decayPruned.WithLabelValues("vectors")), 0)
}

func TestCollector_SetEmbedderQueueLength(t *testing.T) {
	c := NewCollector("ethos_test_embedder", zap.NewNop())

	c.SetEmbedderQueueLength(42)
	require.InDelta(t, 42, testutil.ToFloat64(c.embedderQueueLen), 0)

	c.SetEmbedderQueueLength(0)
	require.InDelta(t, 0, testutil.ToFloat64(c.embedderQueueLen), 0)
}

func TestStatusClass(t *testing.T) {
	require.Equal(t, "2xx", statusClass(200))
	require.Equal(t, "3xx", statusClass(301))
	require.Equal(t, "4xx", statusClass(404))
	require.Equal(t, "5xx", statusClass(503))
	require.Equal(t, "unknown", statusClass(99))
}
