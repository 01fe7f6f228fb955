package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// start.gg GraphQL API
	StartggAPIURL     string        `envconfig:"STARTGG_API_URL" default:"https://api.start.gg/gql/alpha"`
	StartggAPIKey     string        `envconfig:"STARTGG_API_KEY" required:"true"`
	StartggTimeout    time.Duration `envconfig:"STARTGG_TIMEOUT" default:"60s"`
	StartggMaxRetries int           `envconfig:"STARTGG_MAX_RETRIES" default:"5"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"fgcrank"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"fgcrank_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" required:"true"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Sync defaults (worker-scheduled runs)
	SyncCountry        string `envconfig:"SYNC_COUNTRY" default:""`
	SyncState          string `envconfig:"SYNC_STATE" default:""`
	SyncPerPage        int    `envconfig:"SYNC_PER_PAGE" default:"50"`
	SyncLastUpdatedKey string `envconfig:"SYNC_LAST_UPDATED_KEY" default:"tournaments_endAt"`

	// Scheduler
	EnableScheduler bool   `envconfig:"ENABLE_SCHEDULER" default:"true"`
	SyncCron        string `envconfig:"SYNC_CRON" default:"0 3 * * *"`

	// Discriminator enrichment cache TTL (in seconds)
	CacheTTLDiscriminator int `envconfig:"CACHE_TTL_DISCRIMINATOR" default:"604800"` // 7 days

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.StartggAPIKey == "" {
		return fmt.Errorf("STARTGG_API_KEY is required")
	}

	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if c.SyncPerPage < 1 {
		return fmt.Errorf("SYNC_PER_PAGE must be at least 1")
	}

	if c.StartggTimeout < 5*time.Second {
		return fmt.Errorf("STARTGG_TIMEOUT must be at least 5s")
	}

	return nil
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
