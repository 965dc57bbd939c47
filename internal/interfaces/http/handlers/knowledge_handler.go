package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/risk"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// KnowledgeService is the read side of the active knowledge snapshot.
type KnowledgeService interface {
	Behaviors() ([]string, error)
	Regions() ([]string, error)
	RegionDetail(region string) (*assessment.RegionDetail, error)
	Info() (assessment.KnowledgeInfo, error)
	Ready() bool
}

// KnowledgeHandler serves knowledge base lookups and the risk level table.
type KnowledgeHandler struct {
	svc KnowledgeService
}

func NewKnowledgeHandler(svc KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

// ListResponse wraps a list of identifiers.
type ListResponse struct {
	Items []string `json:"items"`
	Count int      `json:"count"`
}

// RiskLevelsResponse is the body of GET /risk-levels.
type RiskLevelsResponse struct {
	Levels []risk.Info `json:"levels"`
}

// Info handles GET /api/v1/knowledge.
func (h *KnowledgeHandler) Info(c *gin.Context) {
	info, err := h.svc.Info()
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// ListBehaviors handles GET /api/v1/behaviors.
func (h *KnowledgeHandler) ListBehaviors(c *gin.Context) {
	ids, err := h.svc.Behaviors()
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: ids, Count: len(ids)})
}

// ListRegions handles GET /api/v1/regions.
func (h *KnowledgeHandler) ListRegions(c *gin.Context) {
	regions, err := h.svc.Regions()
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: regions, Count: len(regions)})
}

// GetRegion handles GET /api/v1/regions/:region.
func (h *KnowledgeHandler) GetRegion(c *gin.Context) {
	detail, err := h.svc.RegionDetail(c.Param("region"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// RiskLevels handles GET /api/v1/risk-levels. The table is static and
// available before knowledge is loaded.
func (h *KnowledgeHandler) RiskLevels(c *gin.Context) {
	c.JSON(http.StatusOK, RiskLevelsResponse{Levels: risk.Table()})
}

// ReadinessChecker reports the knowledge snapshot as a readiness component.
func (h *KnowledgeHandler) ReadinessChecker() HealthChecker {
	return CheckerFunc{
		ComponentName: "knowledge",
		Fn: func(context.Context) error {
			if !h.svc.Ready() {
				return errors.New(errors.ErrCodeServiceUnavailable, "knowledge base not loaded")
			}
			return nil
		},
	}
}
