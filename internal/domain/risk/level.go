// Package risk implements the global four-tier risk classification applied to
// aggregate impact scores, together with the static per-level presentation
// tables (color, description, recommendations).
package risk

import (
	"fmt"
	"math"
	"strings"
)

// ─────────────────────────────────────────────────────────────────────────────
// Level
// ─────────────────────────────────────────────────────────────────────────────

// Level is the ordinal risk classification. The numeric order is the risk
// order: Low < Medium < High < Critical.
type Level int

const (
	Low Level = iota
	Medium
	High
	Critical
)

// Inclusive lower bounds of the upper three bands.
const (
	MediumThreshold   = 0.3
	HighThreshold     = 0.6
	CriticalThreshold = 0.8
)

// Levels lists every level in ascending order.
func Levels() []Level {
	return []Level{Low, Medium, High, Critical}
}

// Classify maps any real score to a Level. It does not assume a clamped
// input: negatives and NaN are Low, anything at or above 0.8 is Critical.
func Classify(score float64) Level {
	switch {
	case math.IsNaN(score):
		return Low
	case score >= CriticalThreshold:
		return Critical
	case score >= HighThreshold:
		return High
	case score >= MediumThreshold:
		return Medium
	default:
		return Low
	}
}

var levelNames = [...]string{"low", "medium", "high", "critical"}

// Valid reports whether l is one of the four defined levels.
func (l Level) Valid() bool {
	return l >= Low && l <= Critical
}

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel accepts the lower-case wire name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return Low, fmt.Errorf("risk: unknown level %q", s)
}

// MarshalText encodes the level as its lower-case name. JSON uses it too.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("risk: cannot marshal invalid level %d", int(l))
	}
	return []byte(levelNames[l]), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Static level tables
// ─────────────────────────────────────────────────────────────────────────────

// Color is an 8-bit RGB triple.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

type levelInfo struct {
	color           Color
	description     string
	recommendations [4]string
}

var levelTable = [...]levelInfo{
	Low: {
		color:       Color{R: 102, G: 204, B: 255},
		description: "Low risk: the measured behavior shows minimal deviation and little expected impact on brain function.",
		recommendations: [4]string{
			"Maintain current healthy habits and routines",
			"Keep a regular sleep schedule",
			"Stay physically active with moderate exercise",
			"Re-assess periodically to track changes over time",
		},
	},
	Medium: {
		color:       Color{R: 255, G: 170, B: 0},
		description: "Medium risk: the behavior shows a noticeable deviation that may affect some cognitive functions.",
		recommendations: [4]string{
			"Reduce exposure to the behavior that triggered this assessment",
			"Add structured cognitive exercises to the daily routine",
			"Review sleep, stress and screen-time patterns",
			"Schedule a follow-up assessment within the next month",
		},
	},
	High: {
		color:       Color{R: 255, G: 85, B: 85},
		description: "High risk: the behavior shows a strong deviation with likely impact on several brain functions.",
		recommendations: [4]string{
			"Consult a healthcare professional about the observed changes",
			"Limit the behavior substantially and track progress daily",
			"Ask family or close contacts to help monitor symptoms",
			"Repeat the assessment weekly until scores improve",
		},
	},
	Critical: {
		color:       Color{R: 139, G: 0, B: 0},
		description: "Critical risk: the behavior shows a severe deviation with serious expected impact; prompt professional attention is advised.",
		recommendations: [4]string{
			"Seek medical evaluation from a neurologist as soon as possible",
			"Stop or strictly restrict the behavior immediately",
			"Arrange supervision or support for daily activities",
			"Bring this report and prior assessment history to the consultation",
		},
	},
}

func (l Level) info() levelInfo {
	if !l.Valid() {
		return levelTable[Low]
	}
	return levelTable[l]
}

// Color returns the fixed display color for l. Invalid levels render as Low.
func (l Level) Color() Color {
	return l.info().color
}

// Description returns the fixed human-readable summary for l.
func (l Level) Description() string {
	return l.info().description
}

// Recommendations returns a fresh copy of the four action items for l.
func (l Level) Recommendations() []string {
	recs := l.info().recommendations
	out := make([]string, len(recs))
	copy(out, recs[:])
	return out
}

// Recommendations is the package-level form of Level.Recommendations.
func Recommendations(l Level) []string {
	return l.Recommendations()
}

// Info is the serializable view of one level's static table row.
type Info struct {
	Level           Level    `json:"level"`
	MinScore        float64  `json:"min_score"`
	Color           Color    `json:"color"`
	ColorHex        string   `json:"color_hex"`
	Description     string   `json:"description"`
	Recommendations []string `json:"recommendations"`
}

// MinScore is the inclusive lower bound of l's band.
func (l Level) MinScore() float64 {
	switch l {
	case Critical:
		return CriticalThreshold
	case High:
		return HighThreshold
	case Medium:
		return MediumThreshold
	default:
		return 0
	}
}

// Table returns the full level table in ascending order.
func Table() []Info {
	out := make([]Info, 0, len(levelNames))
	for _, l := range Levels() {
		c := l.Color()
		out = append(out, Info{
			Level:           l,
			MinScore:        l.MinScore(),
			Color:           c,
			ColorHex:        c.Hex(),
			Description:     l.Description(),
			Recommendations: l.Recommendations(),
		})
	}
	return out
}
