// Package http assembles the REST API: routes, middleware and the server
// lifecycle around them.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/FairPlay-Intelligence/internal/application/assessment"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/FairPlay-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/FairPlay-Intelligence/internal/interfaces/http/middleware"
	apperrors "github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// RouterConfig aggregates everything the route tree needs.
type RouterConfig struct {
	// Service runs analyses and answers queries. Required.
	Service *assessment.Service

	// Logger receives request logs. Required.
	Logger logging.Logger

	// Collector exposes /metrics when set.
	Collector prometheus.MetricsCollector

	// Version is reported by the health endpoints.
	Version string

	// Checkers are probed by /readyz.
	Checkers []handlers.HealthChecker

	// RateLimiter guards the API when set. The caller owns its lifecycle.
	RateLimiter *middleware.RateLimiter

	// CORS overrides the default CORS policy when set.
	CORS *middleware.CORSConfig

	// Logging overrides the default request-logging policy when set.
	Logging *middleware.LoggingConfig

	// Mode selects the gin mode: "debug", "release" or "test". Empty means
	// release.
	Mode string

	// MaxBodySize caps request bodies in bytes. Zero disables the cap.
	MaxBodySize int64
}

// NewRouter builds the complete route tree.
func NewRouter(cfg RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Request ID first so every later stage, recovery included, can tag its
	// output.  Logging sits before the rate limiter so rejected requests
	// still leave a trace.
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger))

	corsCfg := middleware.DefaultCORSConfig()
	if cfg.CORS != nil {
		corsCfg = *cfg.CORS
	}
	r.Use(middleware.CORS(corsCfg))

	logCfg := middleware.DefaultLoggingConfig()
	if cfg.Logging != nil {
		logCfg = *cfg.Logging
	}
	r.Use(middleware.RequestLogging(cfg.Logger, logCfg))

	if cfg.MaxBodySize > 0 {
		r.Use(bodySizeLimit(cfg.MaxBodySize))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Handler())
	}

	r.NoRoute(notFound)
	r.NoMethod(methodNotAllowed)

	health := handlers.NewHealthHandler(cfg.Version, cfg.Checkers...)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)

	if cfg.Collector != nil {
		r.GET("/metrics", gin.WrapH(cfg.Collector.Handler()))
	}

	games := handlers.NewGameHandler(cfg.Service, cfg.Logger)
	assessments := handlers.NewAssessmentHandler(cfg.Service, cfg.Logger)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/games/analyze", games.Analyze)
		v1.GET("/games", games.List)
		v1.GET("/games/:id", games.Get)
		v1.GET("/games/:id/pgn", games.DownloadPGN)

		v1.GET("/assessments", assessments.List)
		v1.GET("/assessments/:id", assessments.Get)
	}

	return r
}

func bodySizeLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}

func notFound(c *gin.Context) {
	resp := common.NewErrorResponse(string(apperrors.ErrCodeNotFound), "route not found")
	resp.RequestID = middleware.RequestIDFrom(c)
	c.JSON(http.StatusNotFound, resp)
}

func methodNotAllowed(c *gin.Context) {
	resp := common.NewErrorResponse(string(apperrors.ErrCodeBadRequest), "method not allowed")
	resp.RequestID = middleware.RequestIDFrom(c)
	c.JSON(http.StatusMethodNotAllowed, resp)
}
