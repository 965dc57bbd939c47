package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/impact"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/risk"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/client"
)

// Views adapt results to the three output formats: String for text,
// TableHeaders/TableRows for table and JSONValue for json.

func score(f float64) string { return strconv.FormatFloat(f, 'f', 3, 64) }

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

type assessmentView struct {
	a *assessment.Assessment
}

func (v assessmentView) JSONValue() interface{} { return v.a }

func (v assessmentView) TableHeaders() []string {
	return []string{"REGION", "WEIGHT", "NORMALIZED", "IMPACT"}
}

func (v assessmentView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.a.Result.RegionImpacts))
	for _, ri := range v.a.Result.RegionImpacts {
		rows = append(rows, []string{ri.Region, score(ri.Weight), score(ri.NormalizedInput), score(ri.ImpactScore)})
	}
	return rows
}

func (v assessmentView) String() string {
	res, rep := v.a.Result, v.a.Report
	in := res.Input

	var sb strings.Builder
	fmt.Fprintf(&sb, "Assessment:          %s\n", v.a.ID)
	fmt.Fprintf(&sb, "Behavior:            %s = %s %s\n", in.BehaviorID, strconv.FormatFloat(in.Value, 'g', -1, 64), in.Unit)
	fmt.Fprintf(&sb, "Risk level:          %s (aggregate impact %s)\n", strings.ToUpper(res.RiskLevel.String()), score(res.AggregateImpact))
	sb.WriteString("Region impacts:\n")
	for _, ri := range res.RegionImpacts {
		fmt.Fprintf(&sb, "  %-24s %s\n", ri.Region, score(ri.ImpactScore))
	}
	if rep == nil {
		return sb.String()
	}
	fmt.Fprintf(&sb, "High-impact regions: %s\n", joinOrNone(rep.HighImpactRegions))
	fmt.Fprintf(&sb, "Affected functions:  %s\n", joinOrNone(rep.AffectedFunctions))
	fmt.Fprintf(&sb, "Potential diseases:  %s\n", joinOrNone(rep.PotentialDiseases))
	sb.WriteString("Recommendations:\n")
	for _, r := range rep.Recommendations {
		fmt.Fprintf(&sb, "  - %s\n", r)
	}
	if len(rep.RegionAdvisories) > 0 {
		sb.WriteString("Region advisories:\n")
		for _, adv := range rep.RegionAdvisories {
			fmt.Fprintf(&sb, "  - %s [%s, impact %s]: %s\n", adv.Region, adv.Level, score(adv.ImpactScore), adv.Message)
		}
	}
	return sb.String()
}

type batchView struct {
	inputs []impact.Measurement
	res    *client.BatchResult
}

func (v batchView) JSONValue() interface{} { return v.res }

func (v batchView) TableHeaders() []string {
	return []string{"#", "BEHAVIOR", "RISK", "AGGREGATE", "ERROR"}
}

func (v batchView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.res.Items))
	for _, it := range v.res.Items {
		behavior := ""
		if it.Index >= 0 && it.Index < len(v.inputs) {
			behavior = v.inputs[it.Index].BehaviorID
		}
		row := []string{strconv.Itoa(it.Index), behavior, "", "", ""}
		if it.Error != nil {
			row[4] = it.Error.Code + ": " + it.Error.Message
		} else if it.Assessment != nil {
			row[2] = it.Assessment.Result.RiskLevel.String()
			row[3] = score(it.Assessment.Result.AggregateImpact)
		}
		rows = append(rows, row)
	}
	return rows
}

func (v batchView) String() string {
	return fmt.Sprintf("%d measurements: %d assessed, %d failed\n\n", v.res.Total, v.res.Succeeded, v.res.Failed) +
		RenderTable(v.TableHeaders(), v.TableRows())
}

type listView struct {
	header string
	items  []string
}

func (v listView) JSONValue() interface{} {
	if v.items == nil {
		return []string{}
	}
	return v.items
}

func (v listView) TableHeaders() []string { return []string{v.header} }

func (v listView) TableRows() [][]string {
	rows := make([][]string, len(v.items))
	for i, it := range v.items {
		rows[i] = []string{it}
	}
	return rows
}

func (v listView) String() string {
	if len(v.items) == 0 {
		return ""
	}
	return strings.Join(v.items, "\n") + "\n"
}

type regionView struct {
	d *assessment.RegionDetail
}

func (v regionView) JSONValue() interface{} { return v.d }

func (v regionView) TableHeaders() []string { return []string{"FIELD", "VALUE"} }

func (v regionView) TableRows() [][]string {
	rows := [][]string{
		{"region", v.d.Region},
		{"behaviors", joinOrNone(v.d.Behaviors)},
	}
	if c := v.d.Catalog; c != nil {
		rows = append(rows,
			[]string{"functions", joinOrNone(c.Functions)},
			[]string{"diseases", joinOrNone(c.Diseases)})
		for _, b := range c.Thresholds {
			rows = append(rows, []string{"band " + b.Level, ">= " + score(b.Min) + " " + b.Message})
		}
	}
	return rows
}

func (v regionView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Region:      %s\n", v.d.Region)
	fmt.Fprintf(&sb, "Behaviors:   %s\n", joinOrNone(v.d.Behaviors))
	c := v.d.Catalog
	if c == nil {
		sb.WriteString("Catalog:     no entry\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Functions:   %s\n", joinOrNone(c.Functions))
	fmt.Fprintf(&sb, "Diseases:    %s\n", joinOrNone(c.Diseases))
	if len(c.Thresholds) > 0 {
		sb.WriteString("Bands:\n")
		for _, b := range c.Thresholds {
			fmt.Fprintf(&sb, "  %-10s >= %s  %s\n", b.Level, score(b.Min), b.Message)
		}
	}
	return sb.String()
}

type levelsView struct {
	levels []risk.Info
}

func (v levelsView) JSONValue() interface{} { return v.levels }

func (v levelsView) TableHeaders() []string {
	return []string{"LEVEL", "MIN SCORE", "COLOR", "DESCRIPTION"}
}

func (v levelsView) TableRows() [][]string {
	rows := make([][]string, len(v.levels))
	for i, l := range v.levels {
		rows[i] = []string{l.Level.String(), score(l.MinScore), l.ColorHex, l.Description}
	}
	return rows
}

func (v levelsView) String() string {
	var sb strings.Builder
	for _, l := range v.levels {
		fmt.Fprintf(&sb, "%s (score >= %s, %s): %s\n", strings.ToUpper(l.Level.String()), score(l.MinScore), l.ColorHex, l.Description)
		for _, r := range l.Recommendations {
			fmt.Fprintf(&sb, "  - %s\n", r)
		}
	}
	return sb.String()
}

type infoView struct {
	info assessment.KnowledgeInfo
}

func (v infoView) JSONValue() interface{} { return v.info }

func (v infoView) TableHeaders() []string { return []string{"VERSION", "LOADED AT", "PROFILES", "REGIONS"} }

func (v infoView) TableRows() [][]string {
	return [][]string{{
		v.info.Version,
		v.info.LoadedAt.Format("2006-01-02T15:04:05Z07:00"),
		strconv.Itoa(v.info.Profiles),
		strconv.Itoa(v.info.Regions),
	}}
}

func (v infoView) String() string {
	return fmt.Sprintf("Knowledge version: %s\nLoaded at:         %s\nProfiles:          %d\nRegions:           %d\n",
		v.info.Version, v.info.LoadedAt.Format("2006-01-02T15:04:05Z07:00"), v.info.Profiles, v.info.Regions)
}
