package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jobtracker-backend/internal/applications"
	googleauth "jobtracker-backend/internal/auth"
	"jobtracker-backend/internal/services/health"
	"jobtracker-backend/internal/shared/config"
	"jobtracker-backend/internal/shared/metrics"
	"jobtracker-backend/internal/shared/server/middleware"
	"jobtracker-backend/internal/shared/server/respond"
	"jobtracker-backend/internal/stats"
	"jobtracker-backend/internal/users"
)

const apiPrefix = "/api/v1"

// RouterDeps carries the handlers mounted under /api/v1. Nil handlers are skipped.
type RouterDeps struct {
	Config             config.Config
	Health             *health.Service
	ApplicationHandler *applications.Handler
	StatsHandler       *stats.Handler
	UserHandler        *users.Handler
	GoogleAuth         *googleauth.GoogleService
	RateLimits         map[string]middleware.RateLimitRule
}

// DefaultRateLimits are per-principal token buckets by route group.
func DefaultRateLimits() map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		"AUTH":  {Rate: 0.2, Burst: 10},
		"READ":  {Rate: 10, Burst: 60},
		"WRITE": {Rate: 2, Burst: 20},
	}
}

// PublicPrefixes are reachable without a bearer token.
func PublicPrefixes() []string {
	return []string{
		apiPrefix + "/health",
		apiPrefix + "/auth/register",
		apiPrefix + "/auth/login",
		apiPrefix + "/auth/google/",
		"/metrics",
	}
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	limits := deps.RateLimits
	if limits == nil {
		limits = DefaultRateLimits()
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		metrics.Middleware(),
		middleware.Auth(PublicPrefixes()...),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    limits,
			GroupFor: rateLimitGroup,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}

	api := r.Group(apiPrefix)
	api.GET("/health", func(c *gin.Context) {
		report := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})

	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.StatsHandler != nil {
		deps.StatsHandler.RegisterRoutes(api)
	}
	if deps.ApplicationHandler != nil {
		deps.ApplicationHandler.RegisterRoutes(api)
	}

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "Route not found", nil)
	})

	return r
}

func rateLimitGroup(c *gin.Context) string {
	path := c.Request.URL.Path
	switch {
	case strings.HasPrefix(path, apiPrefix+"/auth/register"), strings.HasPrefix(path, apiPrefix+"/auth/login"):
		return "AUTH"
	case strings.HasPrefix(path, apiPrefix+"/health"), path == "/metrics":
		return ""
	case c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead:
		return "READ"
	default:
		return "WRITE"
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
