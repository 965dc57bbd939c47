package impact

import (
	"fmt"
	"math"
	"time"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/knowledge"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/risk"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// DefaultScale divides raw values of profiles without normalization.
const DefaultScale = 100.0

// ProfileFinder is the slice of the knowledge base the engine reads.
type ProfileFinder interface {
	FindProfile(behaviorID string) (knowledge.BehaviorProfile, bool)
}

// Engine scores measurements against a fixed set of profiles. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	profiles ProfileFinder
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to stamp measurements without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine returns an Engine reading profiles from finder.
func NewEngine(finder ProfileFinder, opts ...Option) *Engine {
	e := &Engine{profiles: finder, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute scores m. The profile lookup comes first, so an unknown or empty
// behavior id always fails with ErrCodeProfileNotFound. Other failures:
// ErrCodeInvalidMeasurement for a malformed value or unit, and
// ErrCodeInvalidConfiguration when the profile's normalization has a
// non-positive standard deviation.
func (e *Engine) Compute(m Measurement) (*Result, error) {
	profile, ok := e.profiles.FindProfile(m.BehaviorID)
	if !ok {
		return nil, errors.ProfileNotFound(m.BehaviorID)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	normalized, err := normalize(profile, m.Value)
	if err != nil {
		return nil, err
	}

	impacts := make([]RegionImpact, len(profile.RegionWeights))
	magnitude := math.Abs(normalized)
	var sum float64
	for i, rw := range profile.RegionWeights {
		score := 0.0
		if rw.Weight != 0 {
			score = rw.Weight * magnitude
		}
		score = saturate(score)
		impacts[i] = RegionImpact{
			Region:          rw.Region,
			ImpactScore:     score,
			NormalizedInput: normalized,
			Weight:          rw.Weight,
		}
		sum += score
	}

	aggregate := Clamp(sum/float64(len(impacts)), 0, 1)

	if m.Timestamp.IsZero() {
		m.Timestamp = e.now()
	}
	return &Result{
		Input:           m,
		RegionImpacts:   impacts,
		AggregateImpact: aggregate,
		RiskLevel:       risk.Classify(aggregate),
	}, nil
}

func normalize(p knowledge.BehaviorProfile, value float64) (float64, error) {
	n := p.Normalization
	if n == nil {
		return value / DefaultScale, nil
	}
	if !n.Usable() {
		return 0, errors.InvalidConfiguration(
			fmt.Sprintf("behavior %q has non-positive std_dev %v", p.BehaviorID, n.StdDev))
	}
	return saturate((value - n.Mean) / n.StdDev), nil
}

// saturate replaces an overflow to ±Inf with the largest finite float of the
// same sign. The aggregate still clamps to 1 and the result stays encodable.
func saturate(v float64) float64 {
	if math.IsInf(v, 0) {
		return math.Copysign(math.MaxFloat64, v)
	}
	return v
}

// Clamp limits v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v), v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
