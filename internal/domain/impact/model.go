// Package impact converts behavior measurements into per-region impact scores
// and an aggregate impact classified by the global risk scheme.
package impact

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/risk"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// Unit is the unit a behavior value was measured in.
type Unit string

const (
	UnitCount        Unit = "count"
	UnitSeconds      Unit = "seconds"
	UnitMilliseconds Unit = "milliseconds"
	UnitRatio        Unit = "ratio"
	UnitScore        Unit = "score"
)

// Units lists the accepted units.
func Units() []Unit {
	return []Unit{UnitCount, UnitSeconds, UnitMilliseconds, UnitRatio, UnitScore}
}

// ParseUnit accepts a unit name case-insensitively.
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	if !u.Valid() {
		return "", errors.InvalidMeasurement(fmt.Sprintf("unknown unit %q", s))
	}
	return u, nil
}

func (u Unit) Valid() bool {
	switch u {
	case UnitCount, UnitSeconds, UnitMilliseconds, UnitRatio, UnitScore:
		return true
	}
	return false
}

// Measurement is one observed behavior value. Treat it as immutable.
type Measurement struct {
	BehaviorID string    `json:"behavior_id"`
	Value      float64   `json:"value"`
	Unit       Unit      `json:"unit"`
	Timestamp  time.Time `json:"timestamp"`
}

// Validate checks the measurement's own fields. It does not consult any
// knowledge base.
func (m Measurement) Validate() error {
	if strings.TrimSpace(m.BehaviorID) == "" {
		return errors.InvalidMeasurement("behavior id must not be empty")
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return errors.InvalidMeasurement(fmt.Sprintf("value for %q must be finite", m.BehaviorID))
	}
	if !m.Unit.Valid() {
		return errors.InvalidMeasurement(fmt.Sprintf("unknown unit %q", m.Unit))
	}
	return nil
}

// RegionImpact is the scored contribution of one region weight.
type RegionImpact struct {
	Region          string  `json:"region"`
	ImpactScore     float64 `json:"impact_score"`
	NormalizedInput float64 `json:"normalized_input"`
	Weight          float64 `json:"weight"`
}

// Result is the outcome of scoring one measurement. RegionImpacts follows the
// profile's region order.
type Result struct {
	Input           Measurement    `json:"input"`
	RegionImpacts   []RegionImpact `json:"region_impacts"`
	AggregateImpact float64        `json:"aggregate_impact"`
	RiskLevel       risk.Level     `json:"risk_level"`
}
