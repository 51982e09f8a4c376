// Package config provides configuration management for the Premium Freight
// approval service.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like DATABASE_URL, SERVER_PORT)
// 3. Default values
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	Log      LogConfig      `mapstructure:"log"`
	River    RiverConfig    `mapstructure:"river"`
	Security SecurityConfig `mapstructure:"security"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Approval ApprovalConfig `mapstructure:"approval"`
	Mail     MailConfig     `mapstructure:"mail"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// AllowedOrigins is the browser origin allowlist. A literal "*" entry
	// is stripped unless UnsafeAllowAllOrigins is set; credentials and a
	// wildcard never combine.
	AllowedOrigins        []string `mapstructure:"allowed_origins"`
	AllowCredentials      bool     `mapstructure:"allow_credentials"`
	UnsafeAllowAllOrigins bool     `mapstructure:"unsafe_allow_all_origins"`
}

// DatabaseConfig contains PostgreSQL connection settings.
// One shared pgxpool serves repositories, the atomic writer and River.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// SessionConfig contains UI session settings.
type SessionConfig struct {
	Lifetime time.Duration `mapstructure:"lifetime"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// RiverConfig contains River Queue settings.
type RiverConfig struct {
	MaxWorkers                  int           `mapstructure:"max_workers"`
	CompletedJobRetentionPeriod time.Duration `mapstructure:"completed_job_retention_period"`
}

// SecurityConfig contains security-related settings.
// Secrets are auto-generated on first boot if missing.
type SecurityConfig struct {
	SessionSecret string `mapstructure:"session_secret"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	GeneralPoolSize int `mapstructure:"general_pool_size"`
	MailPoolSize    int `mapstructure:"mail_pool_size"`
}

// ApprovalConfig drives the approval workflow.
type ApprovalConfig struct {
	// CostBands maps a required approval level to the lowest order cost
	// (EUR cents, inclusive) that demands it. Levels without an explicit
	// band inherit from the band below.
	CostBands map[int]int64 `mapstructure:"cost_bands"`

	// TokenTTL is the lifetime of individual action tokens. Zero disables
	// expiry; used and expired tokens are purged by the cleanup job.
	TokenTTL time.Duration `mapstructure:"token_ttl"`

	// BulkTokenTTL is the lifetime of weekly-digest bulk tokens.
	BulkTokenTTL time.Duration `mapstructure:"bulk_token_ttl"`

	// DigestInterval is the period of the weekly summary job.
	DigestInterval time.Duration `mapstructure:"digest_interval"`

	// TokenRetention is how long consumed/expired tokens stay queryable
	// before the cleanup job removes them.
	TokenRetention time.Duration `mapstructure:"token_retention"`
}

// RequiredLevelForCost derives the approval level an order of the given
// cost needs. The highest band whose threshold the cost meets wins; the
// minimum is level 1.
func (c ApprovalConfig) RequiredLevelForCost(costEUR int64) int {
	levels := make([]int, 0, len(c.CostBands))
	for lvl := range c.CostBands {
		levels = append(levels, lvl)
	}
	sort.Ints(levels)

	required := 1
	for _, lvl := range levels {
		if costEUR >= c.CostBands[lvl] {
			required = lvl
		}
	}
	return required
}

// MailConfig configures outbound mail rendering. Delivery itself is an
// external collaborator; the core only fills the outbox.
type MailConfig struct {
	FromAddress string `mapstructure:"from_address"`
	// BaseURL is the externally reachable root used when building the
	// email action links (e.g. https://freight.example.com).
	BaseURL string `mapstructure:"base_url"`
}

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger     *zap.Logger
)

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/premium-freight")

	// Standard env names without prefix: DATABASE_URL, SERVER_PORT,
	// LOG_LEVEL. Nested keys map dots to underscores.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.ensureSecrets(); err != nil {
		return nil, fmt.Errorf("ensure secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if c.Security.SessionSecret == "" {
		return fmt.Errorf("security.session_secret must not be empty")
	}
	if len(c.Security.SessionSecret) < 32 {
		return fmt.Errorf("security.session_secret must be at least 32 characters")
	}
	for lvl := range c.Approval.CostBands {
		if lvl < 1 || lvl > 5 {
			return fmt.Errorf("approval.cost_bands: level %d outside [1,5]", lvl)
		}
	}
	return nil
}

// ensureSecrets auto-generates missing secrets.
func (c *Config) ensureSecrets() error {
	if c.Security.SessionSecret == "" {
		secret, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate session secret: %w", err)
		}
		c.Security.SessionSecret = secret
		logBootstrapWarn(
			"auto-generated session_secret; set SECURITY_SESSION_SECRET env var for persistence",
			zap.Int("length", len(secret)),
		)
	}
	return nil
}

func logBootstrapWarn(msg string, fields ...zap.Field) {
	bootstrapLoggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		l, err := cfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})

	bootstrapLogger.Warn(msg, fields...)
}

// generateSecureRandomHex produces a hex-encoded string of n random bytes.
func generateSecureRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.allow_credentials", true)
	v.SetDefault("server.unsafe_allow_all_origins", false)

	// Database (shared pool)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "freight")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "freight")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", false)

	// Session
	v.SetDefault("session.lifetime", "24h")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// River
	v.SetDefault("river.max_workers", 20)
	v.SetDefault("river.completed_job_retention_period", "72h")

	// Worker pools
	v.SetDefault("worker.general_pool_size", 100)
	v.SetDefault("worker.mail_pool_size", 20)

	// Approval workflow. Bands mirror the historical plant escalation:
	// every order needs level 1; bigger orders climb higher.
	v.SetDefault("approval.cost_bands", map[string]int64{
		"1": 0,
		"2": 150000,   // 1,500 EUR
		"3": 500000,   // 5,000 EUR
		"4": 2500000,  // 25,000 EUR
		"5": 10000000, // 100,000 EUR
	})
	v.SetDefault("approval.token_ttl", "336h")      // 14 days
	v.SetDefault("approval.bulk_token_ttl", "168h") // 7 days
	v.SetDefault("approval.digest_interval", "168h")
	v.SetDefault("approval.token_retention", "720h") // 30 days

	// Mail
	v.SetDefault("mail.from_address", "premium-freight@grammer.com")
	v.SetDefault("mail.base_url", "http://localhost:8080")
}
