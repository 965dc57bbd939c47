package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds the service's metric families. It satisfies the metrics
// interface of the assessment service.
type AppMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	AssessmentsTotal        CounterVec
	AssessmentFailuresTotal CounterVec
	AssessmentDuration      HistogramVec
	AggregateImpact         HistogramVec

	KnowledgeReloadsTotal CounterVec
	KnowledgeProfiles     GaugeVec
	KnowledgeRegions      GaugeVec

	EventsPublishedTotal      CounterVec
	MeasurementsIngestedTotal CounterVec
	KnowledgeSyncEventsTotal  CounterVec
}

var (
	DefaultHTTPDurationBuckets       = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}
	DefaultAssessmentDurationBuckets = []float64{.00001, .00005, .0001, .0005, .001, .005, .01}
	// Aggregate impact is bounded to [0, 1]; the edges match the risk tiers.
	AggregateImpactBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}
)

// NewAppMetrics registers all metric families on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method")

	m.AssessmentsTotal = collector.RegisterCounter("assessments_total", "Completed assessments", "behavior", "risk_level")
	m.AssessmentFailuresTotal = collector.RegisterCounter("assessment_failures_total", "Failed assessments by error code", "code")
	m.AssessmentDuration = collector.RegisterHistogram("assessment_duration_seconds", "Time to compute and report one assessment", DefaultAssessmentDurationBuckets)
	m.AggregateImpact = collector.RegisterHistogram("aggregate_impact", "Distribution of aggregate impact scores", AggregateImpactBuckets, "behavior")

	m.KnowledgeReloadsTotal = collector.RegisterCounter("knowledge_reloads_total", "Knowledge snapshot loads", "status")
	m.KnowledgeProfiles = collector.RegisterGauge("knowledge_profiles", "Behavior profiles in the active snapshot")
	m.KnowledgeRegions = collector.RegisterGauge("knowledge_regions", "Brain regions in the active snapshot")

	m.EventsPublishedTotal = collector.RegisterCounter("events_published_total", "Assessment events published", "status")
	m.MeasurementsIngestedTotal = collector.RegisterCounter("measurements_ingested_total", "Measurements consumed from the message bus", "status")
	m.KnowledgeSyncEventsTotal = collector.RegisterCounter("knowledge_sync_events_total", "Cross-replica reload triggers, announcements and peer notices", "kind", "status")

	return m
}

// RecordHTTPRequest records one finished request.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackActiveRequest increments the in-flight gauge for method and returns
// the matching decrement.
func (m *AppMetrics) TrackActiveRequest(method string) func() {
	g := m.HTTPActiveRequests.WithLabelValues(method)
	g.Inc()
	return g.Dec
}

func (m *AppMetrics) RecordAssessment(behavior, level string, aggregate float64, duration time.Duration) {
	m.AssessmentsTotal.WithLabelValues(behavior, level).Inc()
	m.AssessmentDuration.WithLabelValues().Observe(duration.Seconds())
	m.AggregateImpact.WithLabelValues(behavior).Observe(aggregate)
}

func (m *AppMetrics) RecordAssessmentFailure(code string) {
	m.AssessmentFailuresTotal.WithLabelValues(code).Inc()
}

// RecordKnowledgeReload counts a load attempt. The size gauges are only
// updated on success, so they keep describing the snapshot in use.
func (m *AppMetrics) RecordKnowledgeReload(status string, profiles, regions int) {
	m.KnowledgeReloadsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.KnowledgeProfiles.WithLabelValues().Set(float64(profiles))
		m.KnowledgeRegions.WithLabelValues().Set(float64(regions))
	}
}

func (m *AppMetrics) RecordEventPublished(status string) {
	m.EventsPublishedTotal.WithLabelValues(status).Inc()
}

func (m *AppMetrics) RecordMeasurementIngested(status string) {
	m.MeasurementsIngestedTotal.WithLabelValues(status).Inc()
}

func (m *AppMetrics) RecordSyncEvent(kind, status string) {
	m.KnowledgeSyncEventsTotal.WithLabelValues(kind, status).Inc()
}
