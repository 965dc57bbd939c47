package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/impact"
)

type (
	Measurement   = impact.Measurement
	ImpactResult  = impact.Result
	Report        = assessment.Report
	Assessment    = assessment.Assessment
	BatchItem     = assessment.BatchItem
	HistoryEntry  = assessment.HistoryEntry
	HistoryFilter = assessment.HistoryFilter
)

// BatchResult is the outcome of AssessBatch. Items are in input order.
type BatchResult struct {
	Items     []BatchItem `json:"items"`
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

type measurementRequest struct {
	BehaviorID string     `json:"behavior_id"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

func toRequest(m Measurement) measurementRequest {
	r := measurementRequest{BehaviorID: m.BehaviorID, Value: m.Value, Unit: string(m.Unit)}
	if !m.Timestamp.IsZero() {
		ts := m.Timestamp
		r.Timestamp = &ts
	}
	return r
}

// ComputeImpact scores m. The server records the result in its history
// but publishes no event.
func (c *Client) ComputeImpact(ctx context.Context, m Measurement) (*ImpactResult, error) {
	var res ImpactResult
	if err := c.post(ctx, apiPrefix+"/impact", toRequest(m), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// BuildReport turns a result into a report using the server's catalog.
func (c *Client) BuildReport(ctx context.Context, res *ImpactResult) (*Report, error) {
	var rep Report
	if err := c.post(ctx, apiPrefix+"/reports", res, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// Assess scores m, records it in the server history and returns the result
// with its report.
func (c *Client) Assess(ctx context.Context, m Measurement) (*Assessment, error) {
	var a Assessment
	if err := c.post(ctx, apiPrefix+"/assessments", toRequest(m), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// AssessBatch scores ms in one request. Per-item failures are reported in
// the items, not as an error.
func (c *Client) AssessBatch(ctx context.Context, ms []Measurement) (*BatchResult, error) {
	req := struct {
		Measurements []measurementRequest `json:"measurements"`
	}{Measurements: make([]measurementRequest, len(ms))}
	for i, m := range ms {
		req.Measurements[i] = toRequest(m)
	}

	var res BatchResult
	if err := c.post(ctx, apiPrefix+"/assessments/batch", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// History lists recorded results, oldest first, optionally narrowed to a
// behavior or a risk level. Limit keeps the most recent entries.
func (c *Client) History(ctx context.Context, f HistoryFilter) ([]HistoryEntry, error) {
	q := url.Values{}
	if f.BehaviorID != "" {
		q.Set("behavior_id", f.BehaviorID)
	}
	if f.Level != nil {
		q.Set("level", f.Level.String())
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	path := apiPrefix + "/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Entries []HistoryEntry `json:"entries"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}
