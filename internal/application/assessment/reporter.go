// Package assessment turns impact results into risk reports and orchestrates
// scoring, reporting, history and event publication on top of a hot-swappable
// knowledge snapshot.
package assessment

import (
	"sort"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/impact"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/knowledge"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/risk"
)

// HighImpactThreshold is the exclusive lower bound for a region to be
// reported as high impact.
const HighImpactThreshold = 0.5

// CatalogReader is the part of the knowledge base the reporter needs.
type CatalogReader interface {
	CatalogEntry(region string) (knowledge.RegionCatalogEntry, bool)
}

// RegionAdvisory is the message of a region's own threshold band. It is
// informational and never changes the report's global RiskLevel.
type RegionAdvisory struct {
	Region      string  `json:"region"`
	ImpactScore float64 `json:"impact_score"`
	Level       string  `json:"level"`
	Min         float64 `json:"min"`
	Message     string  `json:"message"`
}

// Report summarizes one impact result.
type Report struct {
	RiskLevel         risk.Level       `json:"risk_level"`
	AggregateImpact   float64          `json:"aggregate_impact"`
	HighImpactRegions []string         `json:"high_impact_regions"`
	AffectedFunctions []string         `json:"affected_functions"`
	PotentialDiseases []string         `json:"potential_diseases"`
	Recommendations   []string         `json:"recommendations"`
	RegionAdvisories  []RegionAdvisory `json:"region_advisories"`
}

// Reporter builds reports from a region catalog. It is stateless beyond the
// catalog it reads and safe for concurrent use.
type Reporter struct {
	catalog CatalogReader
}

func NewReporter(catalog CatalogReader) *Reporter {
	return &Reporter{catalog: catalog}
}

// BuildReport never fails. Regions missing from the catalog contribute
// nothing; a nil result yields an empty Low report.
func (r *Reporter) BuildReport(result *impact.Result) *Report {
	report := &Report{
		HighImpactRegions: []string{},
		AffectedFunctions: []string{},
		PotentialDiseases: []string{},
		RegionAdvisories:  []RegionAdvisory{},
	}
	if result == nil {
		report.Recommendations = risk.Recommendations(risk.Low)
		return report
	}
	report.RiskLevel = result.RiskLevel
	report.AggregateImpact = result.AggregateImpact
	report.Recommendations = risk.Recommendations(result.RiskLevel)

	var functions, diseases []string
	for _, ri := range result.RegionImpacts {
		if ri.ImpactScore <= HighImpactThreshold {
			continue
		}
		report.HighImpactRegions = append(report.HighImpactRegions, ri.Region)

		entry, ok := r.catalog.CatalogEntry(ri.Region)
		if !ok {
			continue
		}
		functions = append(functions, entry.Functions...)
		diseases = append(diseases, entry.Diseases...)

		if band, ok := entry.MatchBand(ri.ImpactScore); ok {
			report.RegionAdvisories = append(report.RegionAdvisories, RegionAdvisory{
				Region:      ri.Region,
				ImpactScore: ri.ImpactScore,
				Level:       band.Level,
				Min:         band.Min,
				Message:     band.Message,
			})
		}
	}
	report.AffectedFunctions = sortedUnique(functions)
	report.PotentialDiseases = sortedUnique(diseases)
	return report
}

func sortedUnique(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
