// Package api provides the REST API implementation for the Operator control plane.
//
// This package wires the gin router, middleware and handlers for every API
// endpoint, and runs the HTTP server with graceful shutdown.
package api

import (
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"blackroad.io/operator/internal/api/handlers"
	"blackroad.io/operator/internal/api/middleware"
	"blackroad.io/operator/internal/ledger"
	"blackroad.io/operator/internal/metrics"
	"blackroad.io/operator/internal/policy"
	"blackroad.io/operator/internal/ratelimit"
	"blackroad.io/operator/internal/routing"
	"blackroad.io/operator/internal/service"
)

// RouterConfig holds configuration for setting up the HTTP router.
type RouterConfig struct {
	// DB is the database connection, used for readiness checks.
	DB *sql.DB

	// Logger is the Zap logger for request logging.
	Logger *zap.Logger

	Matrix   *routing.Matrix
	Policies *policy.Engine
	Tasks    *service.TaskService
	Ledger   *ledger.Ledger

	// HMACSecret is the secret the admin token digest was computed with.
	HMACSecret string

	// AdminTokenDigest is the HMAC digest of the admin token. When empty,
	// every admin route answers 401.
	AdminTokenDigest string

	// InstanceID is this operator instance's UUID.
	InstanceID string

	// Version is reported by the liveness probe.
	Version string

	// AllowOrigins is the list of allowed CORS origins.
	// Use []string{"*"} to allow all origins.
	AllowOrigins []string

	// Limits applies per-IP rate limits. The caller owns it and stops it on
	// shutdown. When nil, limits with ratelimit.DefaultConfig are created.
	Limits *middleware.RateLimits
}

// SetupRouter creates and configures the Gin HTTP router with all routes and middleware.
//
// This function sets up:
// - Global middleware (recovery, metrics, logging, CORS, per-IP rate limiting)
// - Health check and metrics endpoints (no auth required)
// - Routing matrix and registry lookups (no auth required)
// - Policy evaluation (per-IP evaluation limit)
// - Policy administration and task mutations (admin token)
// - Ledger reads and verification (no auth required)
//
// Parameters:
//   - config: Router configuration
//
// Returns:
//   - Configured Gin engine ready to serve requests
func SetupRouter(config *RouterConfig) *gin.Engine {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limits := config.Limits
	if limits == nil {
		limits = middleware.NewRateLimits(ratelimit.DefaultConfig(), 0, 0)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	if len(config.AllowOrigins) > 0 {
		router.Use(middleware.CORS(config.AllowOrigins))
	}
	router.Use(limits.Global())

	requireAdmin := middleware.RequireAdminToken(&middleware.AuthConfig{
		Secret:      config.HMACSecret,
		TokenDigest: config.AdminTokenDigest,
		Limits:      limits,
	})

	healthHandler := handlers.NewHealthHandler(config.DB, config.InstanceID, config.Version)
	routingHandler := handlers.NewRoutingHandler(config.Matrix)
	policyHandler := handlers.NewPolicyHandler(config.Policies)
	taskHandler := handlers.NewTaskHandler(config.Tasks)
	ledgerHandler := handlers.NewLedgerHandler(config.Ledger)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		metrics.Registry,
		promhttp.HandlerOpts{},
	)))

	health := router.Group("/health")
	health.Use(limits.Limit(ratelimit.LimitTypeHealthCheck))
	{
		health.GET("/live", healthHandler.Liveness)
		health.GET("/ready", healthHandler.Readiness)
	}

	v1 := router.Group("/api/v1")

	// Routing matrix
	{
		v1.POST("/route", routingHandler.Route)
		v1.GET("/organizations", routingHandler.ListOrganizations)
		v1.GET("/organizations/:name", routingHandler.GetOrganization)
		v1.GET("/organizations/:name/domains", routingHandler.OrganizationDomains)
		v1.GET("/domains", routingHandler.ListDomains)
		v1.GET("/strategies", routingHandler.ListStrategies)
		v1.GET("/strategies/:provider", routingHandler.GetStrategy)
	}

	// Policy administration
	policies := v1.Group("/policies")
	{
		policies.GET("", policyHandler.ListRules)
		policies.GET("/:id", policyHandler.GetRule)
		policies.POST("", requireAdmin, policyHandler.CreateRule)
		policies.PATCH("/:id", requireAdmin, policyHandler.UpdateRule)
		policies.DELETE("/:id", requireAdmin, policyHandler.DeleteRule)
		policies.POST("/:id/exemptions", requireAdmin, policyHandler.AddExemption)
	}

	// Policy evaluation
	evaluate := v1.Group("/evaluate")
	evaluate.Use(limits.Limit(ratelimit.LimitTypeEvaluation))
	{
		evaluate.POST("", policyHandler.Evaluate)
		evaluate.POST("/batch", policyHandler.EvaluateBatch)
	}
	v1.GET("/violations", policyHandler.ListViolations)

	// Scaffold tasks
	tasks := v1.Group("/tasks")
	{
		mutate := []gin.HandlerFunc{requireAdmin, limits.Limit(ratelimit.LimitTypeTaskMutation)}

		tasks.GET("", taskHandler.ListTasks)
		tasks.GET("/:id", taskHandler.GetTask)
		tasks.POST("", append(mutate, taskHandler.CreateTask)...)
		tasks.POST("/:id/advance", append(mutate, taskHandler.Advance)...)
		tasks.POST("/:id/fail", append(mutate, taskHandler.Fail)...)
		tasks.POST("/:id/approve", append(mutate, taskHandler.Approve)...)
	}
	v1.GET("/steps", taskHandler.ListSteps)

	// Witnessing ledger
	ledgerGroup := v1.Group("/ledger")
	{
		ledgerGroup.GET("", ledgerHandler.List)
		ledgerGroup.GET("/head", ledgerHandler.Head)
		ledgerGroup.GET("/verify", ledgerHandler.Verify)
	}

	return router
}
