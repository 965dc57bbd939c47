package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/impact"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/risk"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// AssessmentService scores measurements and builds reports.
type AssessmentService interface {
	Compute(ctx context.Context, m impact.Measurement) (*impact.Result, error)
	BuildReport(result *impact.Result) *assessment.Report
	Assess(ctx context.Context, m impact.Measurement) (*assessment.Assessment, error)
	AssessBatch(ctx context.Context, ms []impact.Measurement) ([]assessment.BatchItem, error)
	History(f assessment.HistoryFilter) []assessment.HistoryEntry
}

// AssessmentHandler serves scoring, reporting and history endpoints.
type AssessmentHandler struct {
	svc AssessmentService
}

func NewAssessmentHandler(svc AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{svc: svc}
}

// BatchRequest is the body of POST /assessments/batch.
type BatchRequest struct {
	Measurements []MeasurementRequest `json:"measurements" binding:"required,min=1,dive"`
}

// BatchResponse lists per-item outcomes in request order.
type BatchResponse struct {
	Items     []assessment.BatchItem `json:"items"`
	Total     int                    `json:"total"`
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
}

// HistoryResponse is the body of GET /history.
type HistoryResponse struct {
	Entries []assessment.HistoryEntry `json:"entries"`
	Count   int                       `json:"count"`
}

type historyQuery struct {
	BehaviorID string `form:"behavior_id"`
	Level      string `form:"level"`
	Limit      int    `form:"limit" binding:"omitempty,gte=0"`
}

// ComputeImpact handles POST /api/v1/impact.
func (h *AssessmentHandler) ComputeImpact(c *gin.Context) {
	var req MeasurementRequest
	if !bindJSON(c, &req, errors.ErrCodeInvalidMeasurement) {
		return
	}
	res, err := h.svc.Compute(c.Request.Context(), req.toMeasurement())
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// BuildReport handles POST /api/v1/reports. The body is an impact result as
// returned by ComputeImpact.
func (h *AssessmentHandler) BuildReport(c *gin.Context) {
	var res impact.Result
	if !bindJSON(c, &res, errors.ErrCodeValidation) {
		return
	}
	c.JSON(http.StatusOK, h.svc.BuildReport(&res))
}

// Assess handles POST /api/v1/assessments.
func (h *AssessmentHandler) Assess(c *gin.Context) {
	var req MeasurementRequest
	if !bindJSON(c, &req, errors.ErrCodeInvalidMeasurement) {
		return
	}
	a, err := h.svc.Assess(c.Request.Context(), req.toMeasurement())
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// AssessBatch handles POST /api/v1/assessments/batch. Item failures do not
// fail the request.
func (h *AssessmentHandler) AssessBatch(c *gin.Context) {
	var req BatchRequest
	if !bindJSON(c, &req, errors.ErrCodeInvalidMeasurement) {
		return
	}
	ms := make([]impact.Measurement, len(req.Measurements))
	for i, r := range req.Measurements {
		ms[i] = r.toMeasurement()
	}

	items, err := h.svc.AssessBatch(c.Request.Context(), ms)
	if err != nil {
		writeAppError(c, err)
		return
	}
	resp := BatchResponse{Items: items, Total: len(items)}
	for _, it := range items {
		if it.Error != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	c.JSON(http.StatusOK, resp)
}

// History handles GET /api/v1/history?behavior_id=&limit=.
func (h *AssessmentHandler) History(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeAppError(c, errors.New(errors.ErrCodeBadRequest, "invalid history query").WithDetail(err.Error()))
		return
	}
	filter := assessment.HistoryFilter{BehaviorID: q.BehaviorID, Limit: q.Limit}
	if q.Level != "" {
		level, err := risk.ParseLevel(q.Level)
		if err != nil {
			writeAppError(c, errors.New(errors.ErrCodeBadRequest, "invalid history query").WithDetail(err.Error()))
			return
		}
		filter.Level = &level
	}
	entries := h.svc.History(filter)
	if entries == nil {
		entries = []assessment.HistoryEntry{}
	}
	c.JSON(http.StatusOK, HistoryResponse{Entries: entries, Count: len(entries)})
}
