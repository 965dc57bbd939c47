package assessment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/impact"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/knowledge"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// EventTypeAssessmentCompleted is the event type of published assessments.
const EventTypeAssessmentCompleted = "assessment.completed"

// Defaults applied when the corresponding option is not given.
const (
	DefaultBatchConcurrency = 8
	DefaultMaxBatchSize     = 1000
	DefaultPublishTimeout   = 5 * time.Second
)

// KnowledgeLoader produces a fresh knowledge base, e.g. from files or an
// object store.
type KnowledgeLoader interface {
	Load(ctx context.Context) (*knowledge.Base, error)
}

// EventPublisher delivers assessment events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, key, eventType string, payload interface{}) error
}

// Metrics receives service-level observations.
type Metrics interface {
	RecordAssessment(behavior, level string, aggregate float64, duration time.Duration)
	RecordAssessmentFailure(code string)
	RecordKnowledgeReload(status string, profiles, regions int)
	RecordEventPublished(status string)
}

type noopMetrics struct{}

func (noopMetrics) RecordAssessment(string, string, float64, time.Duration) {}
func (noopMetrics) RecordAssessmentFailure(string)                         {}
func (noopMetrics) RecordKnowledgeReload(string, int, int)                 {}
func (noopMetrics) RecordEventPublished(string)                            {}

// Snapshot is one immutable generation of knowledge together with the engine
// and reporter built on it.
type Snapshot struct {
	Version  string
	LoadedAt time.Time
	Base     *knowledge.Base
	Engine   *impact.Engine
	Reporter *Reporter
}

// KnowledgeInfo describes the active snapshot.
type KnowledgeInfo struct {
	Version  string    `json:"version"`
	LoadedAt time.Time `json:"loaded_at"`
	Profiles int       `json:"profiles"`
	Regions  int       `json:"regions"`
}

// Assessment is a scored measurement with its report.
type Assessment struct {
	ID               string         `json:"id"`
	AssessedAt       time.Time      `json:"assessed_at"`
	KnowledgeVersion string         `json:"knowledge_version"`
	Result           *impact.Result `json:"result"`
	Report           *Report        `json:"report"`
}

// AssessmentEvent is the payload published for each assessment.
type AssessmentEvent struct {
	AssessmentID      string    `json:"assessment_id"`
	BehaviorID        string    `json:"behavior_id"`
	Value             float64   `json:"value"`
	Unit              string    `json:"unit"`
	MeasuredAt        time.Time `json:"measured_at"`
	AssessedAt        time.Time `json:"assessed_at"`
	KnowledgeVersion  string    `json:"knowledge_version"`
	RiskLevel         string    `json:"risk_level"`
	AggregateImpact   float64   `json:"aggregate_impact"`
	HighImpactRegions []string  `json:"high_impact_regions"`
}

// ItemError is the per-item failure of a batch.
type ItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchItem is the outcome for one measurement of a batch, in input order.
type BatchItem struct {
	Index      int         `json:"index"`
	Assessment *Assessment `json:"assessment,omitempty"`
	Error      *ItemError  `json:"error,omitempty"`
}

// RegionDetail combines a region's catalog entry with the behaviors that
// reference it.
type RegionDetail struct {
	Region    string                        `json:"region"`
	Behaviors []string                      `json:"behaviors"`
	Catalog   *knowledge.RegionCatalogEntry `json:"catalog,omitempty"`
}

// Service scores measurements against the current knowledge snapshot. A
// reload swaps the whole snapshot atomically, so every call computes and
// reports against a single generation.
type Service struct {
	snap     atomic.Pointer[Snapshot]
	reloadMu sync.Mutex

	history          *History
	publisher        EventPublisher
	metrics          Metrics
	logger           logging.Logger
	now              func() time.Time
	batchConcurrency int
	maxBatchSize     int
	publishTimeout   time.Duration
}

// Option configures a Service.
type Option func(*Service)

func WithHistory(h *History) Option { return func(s *Service) { s.history = h } }

// WithPublisher enables event publication. Publish failures are logged and
// counted but never fail an assessment.
func WithPublisher(p EventPublisher) Option { return func(s *Service) { s.publisher = p } }

func WithMetrics(m Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l logging.Logger) Option { return func(s *Service) { s.logger = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithBatchConcurrency(n int) Option { return func(s *Service) { s.batchConcurrency = n } }

func WithMaxBatchSize(n int) Option { return func(s *Service) { s.maxBatchSize = n } }

func WithPublishTimeout(d time.Duration) Option { return func(s *Service) { s.publishTimeout = d } }

// NewService returns a Service with no knowledge loaded. Call Reload or
// ReloadFrom before scoring.
func NewService(opts ...Option) *Service {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	if s.history == nil {
		s.history = NewHistory(0)
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.batchConcurrency <= 0 {
		s.batchConcurrency = DefaultBatchConcurrency
	}
	if s.maxBatchSize <= 0 {
		s.maxBatchSize = DefaultMaxBatchSize
	}
	if s.publishTimeout <= 0 {
		s.publishTimeout = DefaultPublishTimeout
	}
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Knowledge snapshot
// ─────────────────────────────────────────────────────────────────────────────

// Reload installs base as the active knowledge.
func (s *Service) Reload(base *knowledge.Base) error {
	if base == nil {
		return errors.InvalidConfiguration("knowledge base must not be nil")
	}
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	s.install(base)
	return nil
}

// ReloadFrom loads a new base from loader and installs it. On failure the
// previous snapshot stays active.
func (s *Service) ReloadFrom(ctx context.Context, loader KnowledgeLoader) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	base, err := loader.Load(ctx)
	if err == nil && base == nil {
		err = errors.InvalidConfiguration("loader returned no knowledge base")
	}
	if err != nil {
		s.metrics.RecordKnowledgeReload("failure", 0, 0)
		fields := []logging.Field{logging.Err(err), logging.String("code", errors.GetCode(err).String())}
		if prev := s.snap.Load(); prev != nil {
			fields = append(fields, logging.String("kept_version", prev.Version))
		}
		s.logger.Warn("knowledge reload failed", fields...)
		return err
	}
	s.install(base)
	return nil
}

func (s *Service) install(base *knowledge.Base) {
	snap := &Snapshot{
		Version:  uuid.NewString(),
		LoadedAt: s.now(),
		Base:     base,
		Engine:   impact.NewEngine(base, impact.WithClock(s.now)),
		Reporter: NewReporter(base),
	}
	s.snap.Store(snap)
	s.metrics.RecordKnowledgeReload("success", base.ProfileCount(), base.RegionCount())
	s.logger.Info("knowledge snapshot installed",
		logging.String("version", snap.Version),
		logging.Int("profiles", base.ProfileCount()),
		logging.Int("regions", base.RegionCount()))
}

// Snapshot returns the active snapshot, or nil before the first load.
func (s *Service) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Ready reports whether knowledge has been loaded.
func (s *Service) Ready() bool {
	return s.snap.Load() != nil
}

// Info describes the active snapshot.
func (s *Service) Info() (KnowledgeInfo, error) {
	snap, err := s.current()
	if err != nil {
		return KnowledgeInfo{}, err
	}
	return KnowledgeInfo{
		Version:  snap.Version,
		LoadedAt: snap.LoadedAt,
		Profiles: snap.Base.ProfileCount(),
		Regions:  snap.Base.RegionCount(),
	}, nil
}

func (s *Service) current() (*Snapshot, error) {
	snap := s.snap.Load()
	if snap == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "knowledge base not loaded")
	}
	return snap, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Knowledge queries
// ─────────────────────────────────────────────────────────────────────────────

// Behaviors lists behavior ids in load order.
func (s *Service) Behaviors() ([]string, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return snap.Base.ListBehaviors(), nil
}

// Regions lists the regions referenced by any profile.
func (s *Service) Regions() ([]string, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return snap.Base.ListRegions(), nil
}

// RegionDetail describes region or fails with ErrCodeRegionNotFound.
func (s *Service) RegionDetail(region string) (*RegionDetail, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	if !snap.Base.HasRegion(region) {
		return nil, errors.New(errors.ErrCodeRegionNotFound, fmt.Sprintf("unknown region %q", region))
	}
	detail := &RegionDetail{Region: region, Behaviors: snap.Base.BehaviorsForRegion(region)}
	if entry, ok := snap.Base.CatalogEntry(region); ok {
		detail.Catalog = &entry
	}
	return detail, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scoring
// ─────────────────────────────────────────────────────────────────────────────

// Compute scores m and records the result in the history log.
func (s *Service) Compute(ctx context.Context, m impact.Measurement) (*impact.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := snap.Engine.Compute(m)
	if err != nil {
		s.recordFailure(m, err)
		return nil, err
	}
	s.history.Append(HistoryEntry{AssessmentID: uuid.NewString(), RecordedAt: s.now(), Result: res})
	s.metrics.RecordAssessment(m.BehaviorID, res.RiskLevel.String(), res.AggregateImpact, time.Since(start))
	return res, nil
}

// BuildReport reports on result with the active catalog. Before the first
// load the catalog is empty, so only level-derived fields are filled.
func (s *Service) BuildReport(result *impact.Result) *Report {
	snap := s.snap.Load()
	if snap == nil {
		return NewReporter(emptyCatalog{}).BuildReport(result)
	}
	return snap.Reporter.BuildReport(result)
}

// Assess computes, reports, records and publishes one measurement.
func (s *Service) Assess(ctx context.Context, m impact.Measurement) (*Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.assess(ctx, snap, m)
}

// AssessBatch assesses every measurement against one snapshot. Per-item
// failures are reported in the item; only cancellation or an oversized
// batch fail the whole call.
func (s *Service) AssessBatch(ctx context.Context, ms []impact.Measurement) ([]BatchItem, error) {
	if len(ms) > s.maxBatchSize {
		return nil, errors.InvalidParam(
			fmt.Sprintf("batch of %d exceeds the maximum of %d measurements", len(ms), s.maxBatchSize))
	}
	snap, err := s.current()
	if err != nil {
		return nil, err
	}

	items := make([]BatchItem, len(ms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)
	for i := range ms {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items[i].Index = i
			a, err := s.assess(gctx, snap, ms[i])
			if err != nil {
				items[i].Error = &ItemError{Code: errors.GetCode(err).String(), Message: err.Error()}
				return nil
			}
			items[i].Assessment = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.logger.Debug("batch assessed", logging.Int("size", len(ms)), logging.String("version", snap.Version))
	return items, nil
}

func (s *Service) assess(ctx context.Context, snap *Snapshot, m impact.Measurement) (*Assessment, error) {
	start := time.Now()
	res, err := snap.Engine.Compute(m)
	if err != nil {
		s.recordFailure(m, err)
		return nil, err
	}
	a := &Assessment{
		ID:               uuid.NewString(),
		AssessedAt:       s.now(),
		KnowledgeVersion: snap.Version,
		Result:           res,
		Report:           snap.Reporter.BuildReport(res),
	}
	s.history.Append(HistoryEntry{AssessmentID: a.ID, RecordedAt: a.AssessedAt, Result: res})
	s.metrics.RecordAssessment(m.BehaviorID, res.RiskLevel.String(), res.AggregateImpact, time.Since(start))
	s.logger.Debug("assessment completed",
		logging.String("assessment_id", a.ID),
		logging.String("behavior", m.BehaviorID),
		logging.Float64("aggregate_impact", res.AggregateImpact),
		logging.String("risk_level", res.RiskLevel.String()))

	s.publish(ctx, a)
	return a, nil
}

func (s *Service) publish(ctx context.Context, a *Assessment) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	err := s.publisher.Publish(pctx, a.Result.Input.BehaviorID, EventTypeAssessmentCompleted, NewAssessmentEvent(a))
	if err != nil {
		s.metrics.RecordEventPublished("failure")
		s.logger.Warn("assessment event not published",
			logging.String("assessment_id", a.ID), logging.Err(err))
		return
	}
	s.metrics.RecordEventPublished("success")
}

func (s *Service) recordFailure(m impact.Measurement, err error) {
	code := errors.GetCode(err).String()
	s.metrics.RecordAssessmentFailure(code)
	s.logger.Warn("assessment failed",
		logging.String("behavior", m.BehaviorID),
		logging.String("code", code),
		logging.Err(err))
}

// History returns recorded results matching f.
func (s *Service) History(f HistoryFilter) []HistoryEntry {
	return s.history.List(f)
}

// NewAssessmentEvent flattens a into its published form.
func NewAssessmentEvent(a *Assessment) AssessmentEvent {
	in := a.Result.Input
	return AssessmentEvent{
		AssessmentID:      a.ID,
		BehaviorID:        in.BehaviorID,
		Value:             in.Value,
		Unit:              string(in.Unit),
		MeasuredAt:        in.Timestamp,
		AssessedAt:        a.AssessedAt,
		KnowledgeVersion:  a.KnowledgeVersion,
		RiskLevel:         a.Result.RiskLevel.String(),
		AggregateImpact:   a.Result.AggregateImpact,
		HighImpactRegions: a.Report.HighImpactRegions,
	}
}

type emptyCatalog struct{}

func (emptyCatalog) CatalogEntry(string) (knowledge.RegionCatalogEntry, bool) {
	return knowledge.RegionCatalogEntry{}, false
}
