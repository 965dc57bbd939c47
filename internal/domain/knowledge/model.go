// Package knowledge holds the static behavior→brain-region knowledge used by
// the impact engine and the risk reporter: behavior profiles with their
// weighted region maps and optional normalization, and the region catalog
// of functions, diseases and per-region threshold bands.
package knowledge

// RegionWeight is the contribution of one brain region to a behavior profile.
type RegionWeight struct {
	Region      string  `json:"region"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description,omitempty"`
}

// NormalizationParams standardizes raw values as (value-Mean)/StdDev.
// StdDev must be positive for the parameters to be usable.
type NormalizationParams struct {
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	SampleSize *int    `json:"sample_size,omitempty"`
}

// Usable reports whether the parameters can normalize a value.
func (n NormalizationParams) Usable() bool {
	return n.StdDev > 0
}

// BehaviorProfile maps one behavior onto the regions it affects.
type BehaviorProfile struct {
	BehaviorID    string               `json:"behavior"`
	RegionWeights []RegionWeight       `json:"brain_regions"`
	Normalization *NormalizationParams `json:"normalization_params,omitempty"`
}

func (p BehaviorProfile) clone() BehaviorProfile {
	out := BehaviorProfile{BehaviorID: p.BehaviorID}
	out.RegionWeights = append([]RegionWeight(nil), p.RegionWeights...)
	if p.Normalization != nil {
		n := *p.Normalization
		if n.SampleSize != nil {
			size := *n.SampleSize
			n.SampleSize = &size
		}
		out.Normalization = &n
	}
	return out
}

// ThresholdBand is one entry of a region's own threshold scheme. Bands of a
// catalog entry are kept in strictly descending Min order.
type ThresholdBand struct {
	Level   string  `json:"level"`
	Min     float64 `json:"min"`
	Message string  `json:"message"`
}

// RegionCatalogEntry describes what a region does and what can go wrong with it.
type RegionCatalogEntry struct {
	Region     string          `json:"region"`
	Functions  []string        `json:"functions"`
	Diseases   []string        `json:"diseases"`
	Thresholds []ThresholdBand `json:"thresholds,omitempty"`
}

// MatchBand returns the first band whose Min is at or below score. Bands are
// pre-sorted descending, so this is the highest band the score reaches.
func (e RegionCatalogEntry) MatchBand(score float64) (ThresholdBand, bool) {
	for _, b := range e.Thresholds {
		if score >= b.Min {
			return b, true
		}
	}
	return ThresholdBand{}, false
}

func (e RegionCatalogEntry) clone() RegionCatalogEntry {
	return RegionCatalogEntry{
		Region:     e.Region,
		Functions:  append([]string(nil), e.Functions...),
		Diseases:   append([]string(nil), e.Diseases...),
		Thresholds: append([]ThresholdBand(nil), e.Thresholds...),
	}
}
