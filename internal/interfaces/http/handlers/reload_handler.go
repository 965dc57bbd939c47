package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// ReloadTrigger runs a coordinated knowledge reload.
type ReloadTrigger interface {
	Trigger(ctx context.Context, reason string) (assessment.KnowledgeInfo, error)
}

// ReloadHandler exposes the admin reload operation.
type ReloadHandler struct {
	trigger ReloadTrigger
}

func NewReloadHandler(t ReloadTrigger) *ReloadHandler {
	return &ReloadHandler{trigger: t}
}

// ReloadRequest is the optional body of POST /knowledge/reload.
type ReloadRequest struct {
	Reason string `json:"reason" binding:"max=256"`
}

// Reload handles POST /api/v1/knowledge/reload. The body may be empty.
func (h *ReloadHandler) Reload(c *gin.Context) {
	var req ReloadRequest
	if c.Request.ContentLength != 0 {
		if !bindJSON(c, &req, errors.ErrCodeValidation) {
			return
		}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "api"
	}

	info, err := h.trigger.Trigger(c.Request.Context(), reason)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}
