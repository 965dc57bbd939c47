package prometheus

import (
	"strings"
	"sync"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppMetrics_FamiliesExposed(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	m.RecordHTTPRequest("GET", "/api/v1/behaviors", 200, 3*time.Millisecond)
	m.RecordAssessment("reaction_time", "Medium", 0.45, 20*time.Microsecond)
	m.RecordAssessmentFailure("NRI_001")
	m.RecordKnowledgeReload("success", 3, 4)
	m.RecordEventPublished("success")
	m.RecordMeasurementIngested("ok")
	m.RecordSyncEvent("notice", "success")
	m.HTTPActiveRequests.WithLabelValues("GET").Inc()

	out := scrapeMetrics(t, c)
	for _, name := range []string{
		"test_unit_http_requests_total",
		"test_unit_http_request_duration_seconds",
		"test_unit_http_active_requests",
		"test_unit_assessments_total",
		"test_unit_assessment_failures_total",
		"test_unit_assessment_duration_seconds",
		"test_unit_aggregate_impact",
		"test_unit_knowledge_reloads_total",
		"test_unit_knowledge_profiles",
		"test_unit_knowledge_regions",
		"test_unit_events_published_total",
		"test_unit_measurements_ingested_total",
		"test_unit_knowledge_sync_events_total",
	} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, `test_unit_http_requests_total{method="GET",path="/api/v1/behaviors",status_code="200"} 1`)
	assert.Contains(t, out, `test_unit_knowledge_sync_events_total{kind="notice",status="success"} 1`)
}

func TestRecordAssessment(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	m.RecordAssessment("memory_test", "Low", 0.27, time.Microsecond)
	m.RecordAssessment("memory_test", "Low", 0.27, time.Microsecond)

	expected := `
# HELP test_unit_assessments_total Completed assessments
# TYPE test_unit_assessments_total counter
test_unit_assessments_total{behavior="memory_test",risk_level="Low"} 2
`
	require.NoError(t, promtestutil.GatherAndCompare(c.Gatherer(), strings.NewReader(expected), "test_unit_assessments_total"))
	assert.Contains(t, scrapeMetrics(t, c), `test_unit_aggregate_impact_bucket{behavior="memory_test",le="0.3"} 2`)
}

func TestRecordKnowledgeReload_FailureKeepsGauges(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	m.RecordKnowledgeReload("success", 3, 4)
	m.RecordKnowledgeReload("failure", 0, 0)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, "test_unit_knowledge_profiles 3")
	assert.Contains(t, out, "test_unit_knowledge_regions 4")
	assert.Contains(t, out, `test_unit_knowledge_reloads_total{status="failure"} 1`)
	assert.Contains(t, out, `test_unit_knowledge_reloads_total{status="success"} 1`)
}

func TestTrackActiveRequest(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	done := m.TrackActiveRequest("POST")
	m.TrackActiveRequest("POST")
	assert.Contains(t, scrapeMetrics(t, c), `test_unit_http_active_requests{method="POST"} 2`)

	done()
	assert.Contains(t, scrapeMetrics(t, c), `test_unit_http_active_requests{method="POST"} 1`)
}

func TestAggregateImpactBuckets_Ascending(t *testing.T) {
	for i := 1; i < len(AggregateImpactBuckets); i++ {
		assert.Greater(t, AggregateImpactBuckets[i], AggregateImpactBuckets[i-1])
	}
	assert.Equal(t, 1.0, AggregateImpactBuckets[len(AggregateImpactBuckets)-1])
}

func TestConcurrentMetricRecording(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordEventPublished("failure")
		}()
	}
	wg.Wait()
	assert.Contains(t, scrapeMetrics(t, c), `test_unit_events_published_total{status="failure"} 50`)
}
