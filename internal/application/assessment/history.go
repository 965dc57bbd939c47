package assessment

import (
	"sync"
	"time"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/impact"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/risk"
)

// HistoryEntry is one recorded impact result.
type HistoryEntry struct {
	AssessmentID string         `json:"assessment_id"`
	RecordedAt   time.Time      `json:"recorded_at"`
	Result       *impact.Result `json:"result"`
}

// HistoryFilter narrows History.List. Zero values match everything.
type HistoryFilter struct {
	BehaviorID string
	// Level, when set, keeps only results classified at exactly that level.
	Level *risk.Level
	// Limit keeps only the most recent entries; 0 means all.
	Limit int
}

// History is an append-only in-memory log of impact results. When a capacity
// is set the oldest entries are discarded first.
type History struct {
	mu       sync.RWMutex
	entries  []HistoryEntry
	capacity int
}

// NewHistory returns a log retaining at most capacity entries (0 = unbounded).
func NewHistory(capacity int) *History {
	if capacity < 0 {
		capacity = 0
	}
	return &History{capacity: capacity}
}

// Append records e. Nil results are ignored.
func (h *History) Append(e HistoryEntry) {
	if e.Result == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, e)
	if h.capacity > 0 && len(h.entries) > h.capacity {
		drop := len(h.entries) - h.capacity
		// Copy so the backing array does not grow without bound.
		h.entries = append([]HistoryEntry(nil), h.entries[drop:]...)
	}
}

// List returns matching entries, oldest first.
func (h *History) List(f HistoryFilter) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HistoryEntry, 0, len(h.entries))
	for _, e := range h.entries {
		if f.BehaviorID != "" && e.Result.Input.BehaviorID != f.BehaviorID {
			continue
		}
		if f.Level != nil && e.Result.RiskLevel != *f.Level {
			continue
		}
		out = append(out, e)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
