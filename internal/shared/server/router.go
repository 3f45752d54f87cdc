package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"row-analyzer/internal/batches"
	"row-analyzer/internal/shared/config"
	"row-analyzer/internal/shared/metrics"
	"row-analyzer/internal/shared/server/middleware"
	"row-analyzer/internal/shared/server/respond"
)

const (
	apiPrefix   = "/api/v1"
	healthPath  = apiPrefix + "/health"
	metricsPath = apiPrefix + "/metrics"
)

// RouterDeps holds handler dependencies for routing.
type RouterDeps struct {
	Config       config.Config
	BatchHandler *batches.Handler
	// RateLimiter is optional; tests inject one with a fake clock.
	RateLimiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.APIKeys, healthPath, metricsPath),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    middleware.DefaultRules(deps.Config.RateLimitPerMin),
			GroupFor: rateGroup,
			Limiter:  deps.RateLimiter,
		}),
	)

	api := r.Group(apiPrefix)
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())
	registerMeRoutes(api)
	if deps.BatchHandler != nil {
		deps.BatchHandler.RegisterRoutes(api)
	}

	return r
}

// rateGroup puts work-starting routes under the analyze budget and batch
// reads under the polling budget.
func rateGroup(c *gin.Context) string {
	path := c.FullPath()
	switch {
	case c.Request.Method == http.MethodPost && (strings.HasPrefix(path, apiPrefix+"/analyze") || path == apiPrefix+"/batches"):
		return middleware.RateGroupAnalyze
	case c.Request.Method == http.MethodGet && strings.HasPrefix(path, apiPrefix+"/batches"):
		return middleware.RateGroupPolling
	default:
		return ""
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
