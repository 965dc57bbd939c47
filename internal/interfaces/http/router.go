// Package http exposes the assessment service over a gin HTTP API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// DefaultMetricsPath is where the Prometheus handler is mounted when
// RouterConfig.MetricsPath is empty.
const DefaultMetricsPath = "/metrics"

// RouterConfig aggregates the handlers and middleware dependencies of the
// route tree. Nil handlers leave their routes unregistered.
type RouterConfig struct {
	// Handlers
	KnowledgeHandler  *handlers.KnowledgeHandler
	AssessmentHandler *handlers.AssessmentHandler
	HealthHandler     *handlers.HealthHandler
	ReloadHandler     *handlers.ReloadHandler

	// Middleware
	Logging     middleware.LoggingConfig
	CORS        *middleware.CORSConfig
	MaxBodySize int64
	// AdminToken guards admin routes when set.
	AdminToken string
	// RateLimit applies per client IP to /api/v1. Zero rate disables it.
	RateLimit middleware.RateLimitConfig

	// Infrastructure
	Logger         logging.Logger
	Metrics        middleware.HTTPMetrics
	MetricsHandler http.Handler
	MetricsPath    string
}

// NewRouter builds the complete route tree.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Global middleware, outermost first.
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogging(logger, cfg.Logging))
	r.Use(middleware.Recovery(logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	r.Use(middleware.BodyLimit(cfg.MaxBodySize))

	if h := cfg.HealthHandler; h != nil {
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
	}

	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = DefaultMetricsPath
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	api := r.Group("/api/v1")
	if cfg.RateLimit.RequestsPerSecond > 0 {
		api.Use(middleware.NewRateLimiter(cfg.RateLimit, logger).Handler())
	}
	if h := cfg.KnowledgeHandler; h != nil {
		api.GET("/knowledge", h.Info)
		api.GET("/behaviors", h.ListBehaviors)
		api.GET("/regions", h.ListRegions)
		api.GET("/regions/:region", h.GetRegion)
		api.GET("/risk-levels", h.RiskLevels)
	}
	if h := cfg.ReloadHandler; h != nil {
		api.POST("/knowledge/reload", middleware.AdminToken(cfg.AdminToken, logger), h.Reload)
	}
	if h := cfg.AssessmentHandler; h != nil {
		api.POST("/impact", h.ComputeImpact)
		api.POST("/reports", h.BuildReport)
		api.POST("/assessments", h.Assess)
		api.POST("/assessments/batch", h.AssessBatch)
		api.GET("/history", h.History)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Code: errors.ErrCodeNotFound.String(), Message: "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, handlers.ErrorResponse{Code: errors.ErrCodeBadRequest.String(), Message: "method not allowed"})
	})
	return r
}
