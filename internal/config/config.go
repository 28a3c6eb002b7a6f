// Package config holds the Operator server configuration.
//
// Values come from OPERATOR_* environment variables and are overridden by
// command-line flags bound in cmd/operator.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"blackroad.io/operator/internal/logging"
	"blackroad.io/operator/internal/util"
	"blackroad.io/operator/pkg/token"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "OPERATOR_"

// MinSecretLength is the minimum length of the HMAC secret and approval key.
const MinSecretLength = 32

// Config holds server configuration from flags and environment variables.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080").
	ListenAddr string

	// DatabasePath is the path to the SQLite database file.
	DatabasePath string

	// HMACSecret keys the digest of the admin token.
	HMACSecret string

	// AdminToken is the plaintext admin token. Ignored when AdminTokenDigest is set.
	AdminToken string

	// AdminTokenDigest is token.Digest(adminToken, HMACSecret), so the
	// plaintext token never has to be configured on the server.
	AdminTokenDigest string

	// InstanceID is this server's UUID.
	InstanceID string

	LogLevel  string
	LogFormat string

	// AllowOrigins is a comma-separated list of allowed CORS origins.
	AllowOrigins string

	// ApprovalKey signs manual-approval tokens.
	ApprovalKey string

	// ApprovalTTL is how long an approval token stays valid.
	ApprovalTTL time.Duration

	// CatalogPath is an optional YAML routing catalog overlay.
	CatalogPath string

	// RequestsPerSecond and Burst size the per-IP request limiter.
	RequestsPerSecond float64
	Burst             int

	// EvalConcurrency bounds parallel evaluations in a batch request.
	EvalConcurrency int

	ShutdownTimeout time.Duration
}

// Load returns a Config populated from the environment with defaults.
func Load() *Config {
	return &Config{
		ListenAddr:        getEnv("LISTEN_ADDR", ":8080"),
		DatabasePath:      getEnv("DB_PATH", "./operator.db"),
		HMACSecret:        getEnv("HMAC_SECRET", ""),
		AdminToken:        getEnv("ADMIN_TOKEN", ""),
		AdminTokenDigest:  getEnv("ADMIN_TOKEN_DIGEST", ""),
		InstanceID:        getEnv("INSTANCE_ID", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
		AllowOrigins:      getEnv("CORS_ORIGINS", ""),
		ApprovalKey:       getEnv("APPROVAL_KEY", ""),
		ApprovalTTL:       getEnvDuration("APPROVAL_TTL", 24*time.Hour),
		CatalogPath:       getEnv("CATALOG", ""),
		RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 100),
		Burst:             getEnvInt("RATE_LIMIT_BURST", 200),
		EvalConcurrency:   getEnvInt("EVAL_CONCURRENCY", 8),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

// Validate checks the configuration and fills derived values: a generated
// instance ID when none is set, and the admin token digest when only the
// plaintext token is given.
func (c *Config) Validate() error {
	if err := util.ValidateListenAddr(c.ListenAddr); err != nil {
		return err
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}

	if c.HMACSecret == "" {
		return fmt.Errorf("HMAC secret is required (set %sHMAC_SECRET or use --secret)", EnvPrefix)
	}
	if len(c.HMACSecret) < MinSecretLength {
		return fmt.Errorf("HMAC secret must be at least %d bytes (got %d)", MinSecretLength, len(c.HMACSecret))
	}

	if c.AdminTokenDigest == "" {
		if c.AdminToken == "" {
			return fmt.Errorf("admin token is required (set %sADMIN_TOKEN_DIGEST or %sADMIN_TOKEN)", EnvPrefix, EnvPrefix)
		}
		if err := token.CheckFormat(c.AdminToken); err != nil {
			return fmt.Errorf("invalid admin token: %w", err)
		}
		c.AdminTokenDigest = token.Digest(c.AdminToken, c.HMACSecret)
	}
	c.AdminToken = ""

	if c.ApprovalKey == "" {
		return fmt.Errorf("approval key is required (set %sAPPROVAL_KEY or use --approval-key)", EnvPrefix)
	}
	if len(c.ApprovalKey) < MinSecretLength {
		return fmt.Errorf("approval key must be at least %d bytes (got %d)", MinSecretLength, len(c.ApprovalKey))
	}
	if c.ApprovalTTL <= 0 {
		return fmt.Errorf("approval TTL must be positive")
	}

	if c.InstanceID == "" {
		c.InstanceID = uuid.New().String()
	}
	if err := util.ValidateUUID(c.InstanceID); err != nil {
		return fmt.Errorf("invalid instance ID: %w", err)
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		return err
	}

	if c.RequestsPerSecond <= 0 || c.Burst <= 0 {
		return fmt.Errorf("rate limit must be positive (rps=%v burst=%d)", c.RequestsPerSecond, c.Burst)
	}
	if c.EvalConcurrency < 1 {
		return fmt.Errorf("eval concurrency must be at least 1")
	}
	return nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Format = logging.Format(c.LogFormat)
	return cfg
}

// CORSOrigins splits AllowOrigins on commas, dropping blanks.
func (c *Config) CORSOrigins() []string {
	if c.AllowOrigins == "" {
		return nil
	}
	var result []string
	for _, origin := range strings.Split(c.AllowOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			result = append(result, origin)
		}
	}
	return result
}

// getEnv retrieves an OPERATOR_ environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}
