package prometheus

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/testutil"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, nil)
	require.NoError(t, err)
	return c
}

func scrapeMetrics(t *testing.T, c MetricsCollector) string {
	t.Helper()
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfiguration))
}

func TestNewMetricsCollector_RuntimeCollectors(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", EnableGoMetrics: true}, nil)
	require.NoError(t, err)
	assert.Contains(t, scrapeMetrics(t, c), "go_goroutines")
}

func TestRegisterCounter_Exposed(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("things_total", "Things", "kind").WithLabelValues("a").Add(2)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_things_total{kind="a"} 2`)
}

func TestRegisterCounter_DuplicateReturnsSameFamily(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("dup_total", "Dup", "k").WithLabelValues("x").Inc()
	c.RegisterCounter("dup_total", "Dup", "k").WithLabelValues("x").Inc()

	n, err := promtestutil.GatherAndCount(c.Gatherer(), "test_unit_dup_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, scrapeMetrics(t, c), `test_unit_dup_total{k="x"} 2`)
}

func TestRegister_TypeMismatchFallsBackToNoop(t *testing.T) {
	logger := testutil.NewMockLogger()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test"}, logger)
	require.NoError(t, err)

	c.RegisterCounter("shared", "Shared")
	g := c.RegisterGauge("shared", "Shared")
	assert.NotPanics(t, func() { g.WithLabelValues().Set(3) })
	assert.True(t, logger.HasMessage("warn", "metric type mismatch"))
}

func TestRegister_InvalidNameFallsBackToNoop(t *testing.T) {
	logger := testutil.NewMockLogger()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test"}, logger)
	require.NoError(t, err)

	h := c.RegisterHistogram("bad name", "Bad", nil)
	assert.NotPanics(t, func() { h.WithLabelValues().Observe(1) })
	assert.True(t, logger.HasMessage("error", "failed to register histogram"))
}

func TestRegisterGaugeAndHistogram(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterGauge("level", "Level").WithLabelValues().Set(4)
	c.RegisterHistogram("latency_seconds", "Latency", nil, "op").WithLabelValues("read").Observe(0.02)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, "test_unit_level 4")
	assert.Contains(t, out, `test_unit_latency_seconds_count{op="read"} 1`)
}

func TestTimer_ObservesDuration(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("timer_seconds", "Timer", nil)
	timer := NewTimer(h.WithLabelValues())
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.ObserveDuration(), 5*time.Millisecond)
	assert.Contains(t, scrapeMetrics(t, c), "test_unit_timer_seconds_count 1")

	assert.NotPanics(t, func() { NewTimer(nil).ObserveDuration() })
}

func TestConcurrentRegistration(t *testing.T) {
	c := newTestCollector(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RegisterCounter("concurrent_total", "Concurrent").WithLabelValues().Inc()
		}()
	}
	wg.Wait()
	assert.Contains(t, scrapeMetrics(t, c), "test_unit_concurrent_total 20")
}
