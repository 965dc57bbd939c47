package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/knowledge"
)

// SampleProfiles returns a small profile set: reaction_time (normalized),
// memory_test (default scale) and screen_time (shares prefrontal_cortex).
func SampleProfiles() []knowledge.BehaviorProfile {
	sample := 120
	return []knowledge.BehaviorProfile{
		{
			BehaviorID: "reaction_time",
			RegionWeights: []knowledge.RegionWeight{
				{Region: "prefrontal_cortex", Weight: 0.8, Description: "attention and response selection"},
				{Region: "parietal_lobe", Weight: 0.6},
			},
			Normalization: &knowledge.NormalizationParams{Mean: 300, StdDev: 50, SampleSize: &sample},
		},
		{
			BehaviorID: "memory_test",
			RegionWeights: []knowledge.RegionWeight{
				{Region: "hippocampus", Weight: 0.9},
			},
		},
		{
			BehaviorID: "screen_time",
			RegionWeights: []knowledge.RegionWeight{
				{Region: "prefrontal_cortex", Weight: 0.7},
				{Region: "occipital_lobe", Weight: 0.5},
			},
			Normalization: &knowledge.NormalizationParams{Mean: 4, StdDev: 2},
		},
	}
}

// SampleCatalog describes the regions used by SampleProfiles. The two
// cortical entries share "attention" so reports exercise deduplication.
func SampleCatalog() []knowledge.RegionCatalogEntry {
	return []knowledge.RegionCatalogEntry{
		{
			Region:    "prefrontal_cortex",
			Functions: []string{"decision making", "attention", "working memory"},
			Diseases:  []string{"ADHD", "depression"},
			Thresholds: []knowledge.ThresholdBand{
				{Level: "severe", Min: 0.75, Message: "executive function strongly affected"},
				{Level: "moderate", Min: 0.5, Message: "executive function moderately affected"},
			},
		},
		{
			Region:    "parietal_lobe",
			Functions: []string{"spatial processing", "attention"},
			Diseases:  []string{"neglect syndrome", "depression"},
		},
		{
			Region:    "hippocampus",
			Functions: []string{"memory formation"},
			Diseases:  []string{"Alzheimer's disease"},
			Thresholds: []knowledge.ThresholdBand{
				{Level: "elevated", Min: 0.6, Message: "memory consolidation at risk"},
			},
		},
	}
}

// SampleBase builds a knowledge.Base from the sample fixtures.
func SampleBase(t testing.TB) *knowledge.Base {
	t.Helper()
	base, err := knowledge.NewBase(SampleProfiles(), SampleCatalog())
	require.NoError(t, err)
	return base
}

// SampleProfilesJSON and SampleCatalogJSON are the on-disk forms of the
// fixtures above.
const SampleProfilesJSON = `[
  {
    "behavior": "reaction_time",
    "brain_regions": [
      {"region": "prefrontal_cortex", "weight": 0.8, "description": "attention and response selection"},
      {"region": "parietal_lobe", "weight": 0.6}
    ],
    "normalization_params": {"mean": 300, "std_dev": 50, "sample_size": 120}
  },
  {
    "behavior": "memory_test",
    "brain_regions": [{"region": "hippocampus", "weight": 0.9}]
  },
  {
    "behavior": "screen_time",
    "brain_regions": [
      {"region": "prefrontal_cortex", "weight": 0.7},
      {"region": "occipital_lobe", "weight": 0.5}
    ],
    "normalization_params": {"mean": 4, "std_dev": 2}
  }
]`

const SampleCatalogJSON = `{
  "prefrontal_cortex": {
    "functions": ["decision making", "attention", "working memory"],
    "diseases": ["ADHD", "depression"],
    "thresholds": [
      {"level": "moderate", "min": 0.5, "message": "executive function moderately affected"},
      {"level": "severe", "min": 0.75, "message": "executive function strongly affected"}
    ]
  },
  "parietal_lobe": {
    "functions": ["spatial processing", "attention"],
    "diseases": ["neglect syndrome", "depression"]
  },
  "hippocampus": {
    "functions": ["memory formation"],
    "diseases": ["Alzheimer's disease"],
    "thresholds": [{"level": "elevated", "min": 0.6, "message": "memory consolidation at risk"}]
  }
}`
