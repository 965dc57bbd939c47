package assessment

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/impact"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/knowledge"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/risk"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/testutil"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Mocks
// ─────────────────────────────────────────────────────────────────────────────

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, key, eventType string, payload interface{}) error {
	args := m.Called(ctx, key, eventType, payload)
	return args.Error(0)
}

type recordingMetrics struct {
	mu          sync.Mutex
	assessments map[string]int
	failures    map[string]int
	reloads     map[string]int
	published   map[string]int
	profiles    int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		assessments: map[string]int{},
		failures:    map[string]int{},
		reloads:     map[string]int{},
		published:   map[string]int{},
	}
}

func (r *recordingMetrics) RecordAssessment(behavior, level string, _ float64, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assessments[behavior+"/"+level]++
}

func (r *recordingMetrics) RecordAssessmentFailure(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[code]++
}

func (r *recordingMetrics) RecordKnowledgeReload(status string, profiles, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloads[status]++
	if status == "success" {
		r.profiles = profiles
	}
}

func (r *recordingMetrics) RecordEventPublished(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published[status]++
}

type loaderFunc func(ctx context.Context) (*knowledge.Base, error)

func (f loaderFunc) Load(ctx context.Context) (*knowledge.Base, error) { return f(ctx) }

// ─────────────────────────────────────────────────────────────────────────────
// Suite
// ─────────────────────────────────────────────────────────────────────────────

type ServiceSuite struct {
	suite.Suite
	publisher *mockPublisher
	metrics   *recordingMetrics
	logger    *testutil.MockLogger
	svc       *Service
	now       time.Time
}

func (s *ServiceSuite) SetupTest() {
	s.publisher = &mockPublisher{}
	s.metrics = newRecordingMetrics()
	s.logger = testutil.NewMockLogger()
	s.now = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	s.svc = NewService(
		WithPublisher(s.publisher),
		WithMetrics(s.metrics),
		WithLogger(s.logger),
		WithClock(func() time.Time { return s.now }),
		WithBatchConcurrency(4),
		WithMaxBatchSize(10),
	)
	s.Require().NoError(s.svc.Reload(testutil.SampleBase(s.T())))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func reaction(v float64) impact.Measurement {
	return impact.Measurement{BehaviorID: "reaction_time", Value: v, Unit: impact.UnitMilliseconds}
}

func (s *ServiceSuite) TestAssess_PublishesAndRecords() {
	s.publisher.On("Publish", mock.Anything, "reaction_time", EventTypeAssessmentCompleted,
		mock.MatchedBy(func(p interface{}) bool {
			ev, ok := p.(AssessmentEvent)
			return ok && ev.RiskLevel == "high" && len(ev.HighImpactRegions) == 2
		})).Return(nil).Once()

	a, err := s.svc.Assess(context.Background(), reaction(350))
	s.Require().NoError(err)

	s.NotEmpty(a.ID)
	s.Equal(s.now, a.AssessedAt)
	s.Equal(s.now, a.Result.Input.Timestamp)
	s.Equal(s.svc.Snapshot().Version, a.KnowledgeVersion)
	s.Equal(risk.High, a.Report.RiskLevel)
	s.Equal([]string{"prefrontal_cortex", "parietal_lobe"}, a.Report.HighImpactRegions)

	history := s.svc.History(HistoryFilter{})
	s.Require().Len(history, 1)
	s.Equal(a.ID, history[0].AssessmentID)
	s.Same(a.Result, history[0].Result)

	s.Equal(1, s.metrics.assessments["reaction_time/high"])
	s.Equal(1, s.metrics.published["success"])
	s.publisher.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestAssess_PublishFailureIsNotReturned() {
	s.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(stderrors.New("broker down")).Once()

	a, err := s.svc.Assess(context.Background(), reaction(300))
	s.Require().NoError(err)
	s.Equal(risk.Low, a.Report.RiskLevel)
	s.Equal(1, s.metrics.published["failure"])
	s.True(s.logger.HasMessage("warn", "assessment event not published"))
}

func (s *ServiceSuite) TestAssess_UnknownBehavior() {
	a, err := s.svc.Assess(context.Background(), impact.Measurement{BehaviorID: "gait_speed", Unit: impact.UnitScore})
	s.Nil(a)
	s.True(errors.IsCode(err, errors.ErrCodeProfileNotFound))
	s.Equal(1, s.metrics.failures["NRI_001"])
	s.Empty(s.svc.History(HistoryFilter{}))
	s.publisher.AssertNotCalled(s.T(), "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestAssess_CancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.svc.Assess(ctx, reaction(350))
	s.ErrorIs(err, context.Canceled)
}

func (s *ServiceSuite) TestCompute_RecordsHistoryWithoutPublishing() {
	res, err := s.svc.Compute(context.Background(), impact.Measurement{
		BehaviorID: "memory_test", Value: 80, Unit: impact.UnitScore,
	})
	s.Require().NoError(err)
	s.InDelta(0.72, res.AggregateImpact, 1e-12)
	s.Len(s.svc.History(HistoryFilter{BehaviorID: "memory_test"}), 1)
	s.publisher.AssertNotCalled(s.T(), "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestBuildReport_UsesActiveCatalog() {
	res, err := s.svc.Compute(context.Background(), impact.Measurement{
		BehaviorID: "memory_test", Value: 80, Unit: impact.UnitScore,
	})
	s.Require().NoError(err)
	report := s.svc.BuildReport(res)
	s.Equal([]string{"memory formation"}, report.AffectedFunctions)
	s.Require().Len(report.RegionAdvisories, 1)
	s.Equal("elevated", report.RegionAdvisories[0].Level)
}

func (s *ServiceSuite) TestAssessBatch_PerItemOutcomesInOrder() {
	s.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	batch := []impact.Measurement{
		reaction(350),
		{BehaviorID: "unknown", Value: 1, Unit: impact.UnitScore},
		{BehaviorID: "memory_test", Value: 10, Unit: impact.UnitScore},
		{BehaviorID: "memory_test", Value: 1, Unit: "parsecs"},
	}
	items, err := s.svc.AssessBatch(context.Background(), batch)
	s.Require().NoError(err)
	s.Require().Len(items, 4)

	for i, item := range items {
		s.Equal(i, item.Index)
	}
	s.Require().NotNil(items[0].Assessment)
	s.Equal(risk.High, items[0].Assessment.Result.RiskLevel)
	s.Nil(items[0].Error)

	s.Nil(items[1].Assessment)
	s.Require().NotNil(items[1].Error)
	s.Equal("NRI_001", items[1].Error.Code)

	s.Require().NotNil(items[2].Assessment)
	s.Equal(risk.Low, items[2].Assessment.Result.RiskLevel)

	s.Require().NotNil(items[3].Error)
	s.Equal("NRI_004", items[3].Error.Code)

	s.Equal(2, s.svc.history.Len())
	s.publisher.AssertNumberOfCalls(s.T(), "Publish", 2)
}

func (s *ServiceSuite) TestAssessBatch_TooLarge() {
	batch := make([]impact.Measurement, 11)
	_, err := s.svc.AssessBatch(context.Background(), batch)
	s.True(errors.IsCode(err, errors.ErrCodeBadRequest))
}

func (s *ServiceSuite) TestAssessBatch_Empty() {
	items, err := s.svc.AssessBatch(context.Background(), nil)
	s.NoError(err)
	s.Empty(items)
}

func (s *ServiceSuite) TestAssessBatch_Cancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.svc.AssessBatch(ctx, []impact.Measurement{reaction(350)})
	s.ErrorIs(err, context.Canceled)
}

func (s *ServiceSuite) TestReloadFrom_SwapsSnapshot() {
	before := s.svc.Snapshot()

	base, err := knowledge.NewBase([]knowledge.BehaviorProfile{{
		BehaviorID:    "gait_speed",
		RegionWeights: []knowledge.RegionWeight{{Region: "cerebellum", Weight: 1}},
	}}, nil)
	s.Require().NoError(err)

	err = s.svc.ReloadFrom(context.Background(), loaderFunc(func(context.Context) (*knowledge.Base, error) {
		return base, nil
	}))
	s.Require().NoError(err)

	after := s.svc.Snapshot()
	s.NotEqual(before.Version, after.Version)
	behaviors, err := s.svc.Behaviors()
	s.Require().NoError(err)
	s.Equal([]string{"gait_speed"}, behaviors)
	s.Equal(2, s.metrics.reloads["success"])
	s.Equal(1, s.metrics.profiles)
}

func (s *ServiceSuite) TestReloadFrom_FailureKeepsSnapshot() {
	before := s.svc.Snapshot()

	err := s.svc.ReloadFrom(context.Background(), loaderFunc(func(context.Context) (*knowledge.Base, error) {
		return nil, errors.SourceLoad(stderrors.New("bad json"), "decode profiles")
	}))
	s.True(errors.IsCode(err, errors.ErrCodeSourceLoad))
	s.Same(before, s.svc.Snapshot())
	s.Equal(1, s.metrics.reloads["failure"])

	msg, ok := s.logger.Find("warn", "knowledge reload failed")
	s.Require().True(ok)
	kept, _ := msg.Field("kept_version")
	s.Equal(before.Version, kept)
}

func (s *ServiceSuite) TestReloadFrom_NilBase() {
	err := s.svc.ReloadFrom(context.Background(), loaderFunc(func(context.Context) (*knowledge.Base, error) {
		return nil, nil
	}))
	s.True(errors.IsCode(err, errors.ErrCodeInvalidConfiguration))
	s.True(s.svc.Ready())
}

func (s *ServiceSuite) TestRegionDetail() {
	detail, err := s.svc.RegionDetail("prefrontal_cortex")
	s.Require().NoError(err)
	s.Equal([]string{"reaction_time", "screen_time"}, detail.Behaviors)
	s.Require().NotNil(detail.Catalog)
	s.Len(detail.Catalog.Thresholds, 2)

	detail, err = s.svc.RegionDetail("occipital_lobe")
	s.Require().NoError(err)
	s.Nil(detail.Catalog)

	_, err = s.svc.RegionDetail("cerebellum")
	s.True(errors.IsCode(err, errors.ErrCodeRegionNotFound))
}

func (s *ServiceSuite) TestInfo() {
	info, err := s.svc.Info()
	s.Require().NoError(err)
	s.Equal(3, info.Profiles)
	s.Equal(4, info.Regions)
	s.Equal(s.now, info.LoadedAt)
}

// ─────────────────────────────────────────────────────────────────────────────
// Before the first load
// ─────────────────────────────────────────────────────────────────────────────

func TestService_NotReady(t *testing.T) {
	svc := NewService()
	assert.False(t, svc.Ready())
	assert.Nil(t, svc.Snapshot())

	_, err := svc.Compute(context.Background(), reaction(1))
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
	_, err = svc.Behaviors()
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
	_, err = svc.Info()
	assert.Error(t, err)

	report := svc.BuildReport(resultWith(risk.High, 0.7, ri("prefrontal_cortex", 0.9)))
	assert.Equal(t, []string{"prefrontal_cortex"}, report.HighImpactRegions)
	assert.Empty(t, report.AffectedFunctions)

	require.Error(t, svc.Reload(nil))
}

func TestService_ConcurrentAssessAndReload(t *testing.T) {
	base := testutil.SampleBase(t)
	svc := NewService()
	require.NoError(t, svc.Reload(base))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			a, err := svc.Assess(context.Background(), reaction(350))
			if assert.NoError(t, err) {
				assert.Equal(t, risk.High, a.Result.RiskLevel)
			}
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.Reload(base))
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, len(svc.History(HistoryFilter{})))
}
