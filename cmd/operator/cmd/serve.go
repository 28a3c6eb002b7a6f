package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"blackroad.io/operator/internal/api"
	"blackroad.io/operator/internal/api/middleware"
	"blackroad.io/operator/internal/approval"
	"blackroad.io/operator/internal/config"
	"blackroad.io/operator/internal/database"
	"blackroad.io/operator/internal/ledger"
	"blackroad.io/operator/internal/logging"
	"blackroad.io/operator/internal/metrics"
	"blackroad.io/operator/internal/policy"
	"blackroad.io/operator/internal/ratelimit"
	"blackroad.io/operator/internal/routing"
	"blackroad.io/operator/internal/scaffold"
	"blackroad.io/operator/internal/service"
)

// poolStatsInterval is how often connection pool gauges are refreshed.
const poolStatsInterval = 15 * time.Second

var serveCfg = config.Load()

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the operator HTTP API server",
	Long: `Run the operator HTTP API server.

Configuration comes from OPERATOR_* environment variables; flags override
them. The server migrates the database on start, reloads the routing catalog
on SIGHUP and drains in-flight requests on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveCfg.ListenAddr, "listen", serveCfg.ListenAddr, "Address to listen on")
	f.StringVar(&serveCfg.DatabasePath, "db", serveCfg.DatabasePath, "Path to SQLite database file")
	f.StringVar(&serveCfg.HMACSecret, "secret", serveCfg.HMACSecret, "HMAC secret for the admin token digest (min 32 bytes)")
	f.StringVar(&serveCfg.AdminTokenDigest, "admin-token-digest", serveCfg.AdminTokenDigest, "HMAC digest of the admin token")
	f.StringVar(&serveCfg.ApprovalKey, "approval-key", serveCfg.ApprovalKey, "Key signing approval tokens (min 32 bytes)")
	f.DurationVar(&serveCfg.ApprovalTTL, "approval-ttl", serveCfg.ApprovalTTL, "Approval token lifetime")
	f.StringVar(&serveCfg.InstanceID, "instance-id", serveCfg.InstanceID, "Instance UUID (generated if empty)")
	f.StringVar(&serveCfg.LogLevel, "log-level", serveCfg.LogLevel, "Log level (debug, info, warn, error)")
	f.StringVar(&serveCfg.LogFormat, "log-format", serveCfg.LogFormat, "Log format (json, console)")
	f.StringVar(&serveCfg.AllowOrigins, "cors-origins", serveCfg.AllowOrigins, "Comma-separated allowed CORS origins (* for all)")
	f.StringVar(&serveCfg.CatalogPath, "catalog", serveCfg.CatalogPath, "YAML routing catalog overlay")
	f.Float64Var(&serveCfg.RequestsPerSecond, "rps", serveCfg.RequestsPerSecond, "Per-IP request rate")
	f.IntVar(&serveCfg.Burst, "burst", serveCfg.Burst, "Per-IP request burst")
	f.IntVar(&serveCfg.EvalConcurrency, "eval-concurrency", serveCfg.EvalConcurrency, "Parallel evaluations per batch request")
	f.DurationVar(&serveCfg.ShutdownTimeout, "shutdown-timeout", serveCfg.ShutdownTimeout, "Graceful shutdown timeout")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := serveCfg
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("starting operator",
		zap.String("version", Version),
		zap.String(logging.FieldInstanceID, cfg.InstanceID),
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabasePath, database.DefaultOptions(), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	if err := metrics.Init(); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	catalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	matrix, err := routing.NewMatrix(catalog, logger)
	if err != nil {
		return fmt.Errorf("invalid routing catalog: %w", err)
	}

	approvals, err := approval.NewManager(approval.Config{
		Key: []byte(cfg.ApprovalKey),
		TTL: cfg.ApprovalTTL,
	})
	if err != nil {
		return err
	}

	policies := policy.NewEngine(db, logger, cfg.EvalConcurrency)
	witness := ledger.New(db, logger)
	tasks := service.NewTaskService(scaffold.NewEngine(logger), matrix, policies, witness, approvals, logger)

	if report, err := witness.Verify(ctx); err != nil {
		logger.Error("witnessing ledger failed verification", zap.Error(err))
	} else {
		logger.Info("witnessing ledger verified",
			zap.Int64("entries", report.Checked),
			zap.String("head_hash", report.HeadHash),
		)
	}

	limits := middleware.NewRateLimits(ratelimit.DefaultConfig(), cfg.RequestsPerSecond, cfg.Burst)
	defer limits.Stop()

	router := api.SetupRouter(&api.RouterConfig{
		DB:               db,
		Logger:           logger,
		Matrix:           matrix,
		Policies:         policies,
		Tasks:            tasks,
		Ledger:           witness,
		HMACSecret:       cfg.HMACSecret,
		AdminTokenDigest: cfg.AdminTokenDigest,
		InstanceID:       cfg.InstanceID,
		Version:          Version,
		AllowOrigins:     cfg.CORSOrigins(),
		Limits:           limits,
	})

	go reportPoolStats(ctx, db.Stats)
	if cfg.CatalogPath != "" {
		go reloadCatalogOnHUP(ctx, matrix, cfg.CatalogPath, logger)
	}

	return api.NewServer(cfg.ListenAddr, router, cfg.ShutdownTimeout, logger).Run(ctx)
}

// loadCatalog returns the built-in catalog merged with the overlay at path.
func loadCatalog(path string) (*routing.Catalog, error) {
	if path == "" {
		return routing.DefaultCatalog(), nil
	}
	return routing.LoadCatalog(path)
}

func reloadCatalogOnHUP(ctx context.Context, matrix *routing.Matrix, path string, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cat, err := routing.LoadCatalog(path)
			if err == nil {
				err = matrix.Replace(cat)
			}
			if err != nil {
				logger.Error("catalog reload failed, keeping current catalog",
					zap.String("path", path), zap.Error(err))
				continue
			}
			logger.Info("routing catalog reloaded", zap.String("path", path))
		}
	}
}

func reportPoolStats(ctx context.Context, stats func() sql.DBStats) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()

	metrics.RecordPoolStats(stats())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.RecordPoolStats(stats())
		}
	}
}
