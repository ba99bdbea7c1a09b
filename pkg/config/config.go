package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/scribe/pkg/observability"
	"github.com/platinummonkey/scribe/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Auth configuration
	Auth AuthConfig

	// Observability configuration
	Observability ObservabilityConfig

	// File is the YAML file the configuration was overlaid from, if any
	File string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds credential and token settings
type AuthConfig struct {
	BcryptCost int

	// Cron expression for deleting expired access tokens
	TokenCleanupSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
	OTelExportInterval time.Duration
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
		},
		Storage: storage.DefaultConfig(),
		Auth: AuthConfig{
			BcryptCost:           bcrypt.DefaultCost,
			TokenCleanupSchedule: "@hourly",
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.InfoLevel,
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "scribe",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
			OTelExportInterval: 10 * time.Second,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by SCRIBE_CONFIG_FILE, and SCRIBE_* environment variables, in that
// order of precedence from lowest to highest.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := getEnv("SCRIBE_CONFIG_FILE", ""); path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := fc.Apply(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
		cfg.File = path
	}

	loadServerConfig(&cfg.Server)
	loadStorageConfig(&cfg.Storage)
	loadAuthConfig(&cfg.Auth)
	loadObservabilityConfig(&cfg.Observability)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig overrides server configuration from environment
func loadServerConfig(cfg *ServerConfig) {
	cfg.Host = getEnv("SCRIBE_HOST", cfg.Host)
	cfg.Port = getEnv("SCRIBE_PORT", cfg.Port)
	cfg.ReadTimeout = getEnvDuration("SCRIBE_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvDuration("SCRIBE_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvDuration("SCRIBE_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = getEnvDuration("SCRIBE_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.MaxBodyBytes = getEnvInt64("SCRIBE_MAX_BODY_BYTES", cfg.MaxBodyBytes)
	cfg.HealthPort = getEnv("SCRIBE_HEALTH_PORT", cfg.HealthPort)
}

// loadStorageConfig overrides storage configuration from environment
func loadStorageConfig(cfg *storage.Config) {
	cfg.Driver = getEnv("SCRIBE_DB_DRIVER", cfg.Driver)
	cfg.URL = getEnv("SCRIBE_DB_URL", cfg.URL)
	if maxConns := getEnvInt("SCRIBE_DB_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("SCRIBE_DB_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("SCRIBE_DB_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}

	// Redis config
	cfg.RedisURL = getEnv("SCRIBE_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("SCRIBE_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("SCRIBE_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("SCRIBE_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("SCRIBE_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Token cache config
	if size := getEnvInt("SCRIBE_TOKEN_CACHE_SIZE", 0); size > 0 {
		cfg.TokenCacheSize = size
	}
	cfg.TokenCacheTTL = getEnvDuration("SCRIBE_TOKEN_CACHE_TTL", cfg.TokenCacheTTL)
}

// loadAuthConfig overrides auth configuration from environment
func loadAuthConfig(cfg *AuthConfig) {
	cfg.BcryptCost = getEnvInt("SCRIBE_BCRYPT_COST", cfg.BcryptCost)
	cfg.TokenCleanupSchedule = getEnv("SCRIBE_TOKEN_CLEANUP_SCHEDULE", cfg.TokenCleanupSchedule)
}

// loadObservabilityConfig overrides observability configuration from environment
func loadObservabilityConfig(cfg *ObservabilityConfig) {
	if level := getEnv("SCRIBE_LOG_LEVEL", ""); level != "" {
		cfg.LogLevel = observability.ParseLogLevel(level)
	}
	cfg.MetricsEnabled = getEnvBool("SCRIBE_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.OTelEnabled = getEnvBool("SCRIBE_OTEL_ENABLED", cfg.OTelEnabled)
	cfg.OTelEndpoint = getEnv("SCRIBE_OTEL_ENDPOINT", cfg.OTelEndpoint)
	cfg.OTelServiceName = getEnv("SCRIBE_OTEL_SERVICE_NAME", cfg.OTelServiceName)
	cfg.OTelServiceVersion = getEnv("SCRIBE_OTEL_SERVICE_VERSION", cfg.OTelServiceVersion)
	cfg.OTelInsecure = getEnvBool("SCRIBE_OTEL_INSECURE", cfg.OTelInsecure)
	cfg.OTelSampleRatio = getEnvFloat("SCRIBE_OTEL_SAMPLE_RATIO", cfg.OTelSampleRatio)
	cfg.OTelExportInterval = getEnvDuration("SCRIBE_OTEL_EXPORT_INTERVAL", cfg.OTelExportInterval)
}

// OTel describes this deployment to the OTLP exporters: collector settings,
// sampling, and the storage and token cache backends as resource attributes
func (c *Config) OTel() observability.OTelConfig {
	dialect, _ := storage.ParseDialect(c.Storage.Driver)
	tokenCache := "lru"
	if c.Storage.RedisURL != "" {
		tokenCache = "redis"
	}
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		Insecure:       c.Observability.OTelInsecure,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Dialect:        string(dialect),
		TokenCache:     tokenCache,
		SampleRatio:    c.Observability.OTelSampleRatio,
		ExportInterval: c.Observability.OTelExportInterval,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate storage config
	if _, err := storage.ParseDialect(c.Storage.Driver); err != nil {
		return err
	}
	if c.Storage.URL == "" {
		return fmt.Errorf("database URL is required")
	}
	if c.Storage.TokenCacheSize <= 0 {
		return fmt.Errorf("token cache size must be positive")
	}

	// Validate auth config
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.TokenCleanupSchedule != "" {
		if _, err := cron.ParseStandard(c.Auth.TokenCleanupSchedule); err != nil {
			return fmt.Errorf("invalid token cleanup schedule %q: %w", c.Auth.TokenCleanupSchedule, err)
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1, got %v", r)
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvFloat returns an environment variable as a float or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
