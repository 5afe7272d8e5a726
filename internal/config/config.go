package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"3002"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// AllowedOrigins is the CORS allow-list; the /clusters/*/runs* path is
	// exempt from this restriction (see internal/server).
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// Database settings (matches the NestJS POSTGRES_* vars)
	Database DatabaseConfig

	// Storage configuration (S3-compatible backend settings)
	Storage StorageConfig

	// Model capability configuration (Anthropic structured-output calls)
	Model ModelConfig

	// Queue tuning for the job dispatch engine
	Queue QueueConfig

	// Scheduler cron cadence for background loops
	Scheduler SchedulerConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"120s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"agentcp"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"agentcp"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// StorageConfig holds blob storage (S3-compatible) configuration
type StorageConfig struct {
	Endpoint        string `env:"STORAGE_ENDPOINT" envDefault:"localhost:9000"`
	AccessKeyID     string `env:"STORAGE_ACCESS_KEY" envDefault:""`
	SecretAccessKey string `env:"STORAGE_SECRET_KEY" envDefault:""`
	Bucket          string `env:"STORAGE_BUCKET" envDefault:"agentcp-blobs"`
	UseSSL          bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
	Region          string `env:"STORAGE_REGION" envDefault:"us-east-1"`

	// InlineThresholdBytes is parsed from the environment, but nothing reads
	// it: no code stores Blob payloads in the storage backend.
	InlineThresholdBytes int `env:"BLOB_INLINE_THRESHOLD_BYTES" envDefault:"262144"`
}

// IsConfigured returns true if storage is configured
func (s *StorageConfig) IsConfigured() bool {
	return s.Endpoint != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// ModelConfig holds the Anthropic-backed Model capability configuration
type ModelConfig struct {
	APIKey          string        `env:"ANTHROPIC_API_KEY" envDefault:""`
	Model           string        `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-5"`
	MaxOutputTokens int           `env:"MODEL_MAX_OUTPUT_TOKENS" envDefault:"8192"`
	Timeout         time.Duration `env:"MODEL_TIMEOUT" envDefault:"120s"`
	ContextWindow   int           `env:"MODEL_CONTEXT_WINDOW" envDefault:"200000"`
}

// IsConfigured returns true if a real Model provider is usable.
func (m *ModelConfig) IsConfigured() bool {
	return m.APIKey != ""
}

// QueueConfig holds job dispatch tuning values. They are parsed from the
// environment, but nothing reads them: domain/job and domain/machine use
// their own built-in timeout, throttle and liveness values.
type QueueConfig struct {
	DefaultTimeoutSeconds int           `env:"JOB_DEFAULT_TIMEOUT_SECONDS" envDefault:"30"`
	MachineThrottle       time.Duration `env:"MACHINE_PING_THROTTLE" envDefault:"60s"`
	ToolLivenessWindow    time.Duration `env:"TOOL_LIVENESS_WINDOW" envDefault:"60s"`
	LongPollFallback      time.Duration `env:"QUEUE_LONGPOLL_FALLBACK" envDefault:"1s"`
}

// SchedulerConfig holds cron expressions for the stall reaper and the
// status-change dispatcher. They are parsed from the environment, but
// nothing reads them: both loops run on internal/jobs.Worker's default 5s
// poll interval.
type SchedulerConfig struct {
	StallReaperCron       string `env:"STALL_REAPER_CRON" envDefault:"*/5 * * * * *"`
	StatusDispatcherCron  string `env:"STATUS_DISPATCHER_CRON" envDefault:"*/2 * * * * *"`
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
	)

	return cfg, nil
}
