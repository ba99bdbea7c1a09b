package config

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/scribe/pkg/observability"
	"github.com/platinummonkey/scribe/pkg/storage"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("SCRIBE_TEST_STRING", "custom")
	t.Setenv("SCRIBE_TEST_BOOL", "1")
	t.Setenv("SCRIBE_TEST_BOOL_FALSE", "no")
	t.Setenv("SCRIBE_TEST_INT", "42")
	t.Setenv("SCRIBE_TEST_BAD_INT", "forty-two")
	t.Setenv("SCRIBE_TEST_INT64", "9000000000")
	t.Setenv("SCRIBE_TEST_DURATION", "90s")
	t.Setenv("SCRIBE_TEST_BAD_DURATION", "soon")

	assert.Equal(t, "custom", getEnv("SCRIBE_TEST_STRING", "default"))
	assert.Equal(t, "default", getEnv("SCRIBE_TEST_UNSET", "default"))

	assert.True(t, getEnvBool("SCRIBE_TEST_BOOL", false))
	assert.False(t, getEnvBool("SCRIBE_TEST_BOOL_FALSE", true))
	assert.True(t, getEnvBool("SCRIBE_TEST_UNSET", true))

	assert.Equal(t, 42, getEnvInt("SCRIBE_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("SCRIBE_TEST_BAD_INT", 1))
	assert.Equal(t, int64(9000000000), getEnvInt64("SCRIBE_TEST_INT64", 0))

	assert.Equal(t, 90*time.Second, getEnvDuration("SCRIBE_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("SCRIBE_TEST_BAD_DURATION", time.Second))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, string(storage.DialectSQLite), cfg.Storage.Driver)
	assert.Equal(t, "@hourly", cfg.Auth.TokenCleanupSchedule)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.OTelEnabled)
	assert.Empty(t, cfg.File)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SCRIBE_PORT", "8000")
	t.Setenv("SCRIBE_HEALTH_PORT", "8001")
	t.Setenv("SCRIBE_READ_TIMEOUT", "5s")
	t.Setenv("SCRIBE_DB_DRIVER", "postgres")
	t.Setenv("SCRIBE_DB_URL", "postgres://scribe@localhost/scribe")
	t.Setenv("SCRIBE_DB_MAX_CONNS", "50")
	t.Setenv("SCRIBE_REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("SCRIBE_REDIS_DB", "3")
	t.Setenv("SCRIBE_BCRYPT_COST", "12")
	t.Setenv("SCRIBE_TOKEN_CLEANUP_SCHEDULE", "*/15 * * * *")
	t.Setenv("SCRIBE_LOG_LEVEL", "debug")
	t.Setenv("SCRIBE_OTEL_ENABLED", "true")
	t.Setenv("SCRIBE_OTEL_SAMPLE_RATIO", "0.25")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "8001", cfg.Server.HealthPort)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://scribe@localhost/scribe", cfg.Storage.URL)
	assert.Equal(t, 50, cfg.Storage.MaxConns)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Storage.RedisURL)
	assert.Equal(t, 3, cfg.Storage.RedisDB)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, "*/15 * * * *", cfg.Auth.TokenCleanupSchedule)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.OTelEnabled)
	assert.Equal(t, 0.25, cfg.Observability.OTelSampleRatio)
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

const sampleFile = `
server:
  port: "7000"
  health_port: "7001"
  shutdown_timeout: 10s
database:
  driver: postgres
  url: postgres://file@db/scribe
redis:
  db: 0
auth:
  bcrypt_cost: 11
logging:
  level: warn
otel:
  enabled: false
  insecure: false
  sample_ratio: 0.5
`

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.yaml")
	writeFile(t, path, sampleFile)

	t.Setenv("SCRIBE_CONFIG_FILE", path)
	t.Setenv("SCRIBE_PORT", "7100")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "7100", cfg.Server.Port, "env wins over file")
	assert.Equal(t, "7001", cfg.Server.HealthPort)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "postgres://file@db/scribe", cfg.Storage.URL)
	assert.Equal(t, 0, cfg.Storage.RedisDB)
	assert.Equal(t, 11, cfg.Auth.BcryptCost)
	assert.Equal(t, observability.WarnLevel, cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.OTelInsecure)
	assert.Equal(t, 0.5, cfg.Observability.OTelSampleRatio)
}

func TestOTelConfig(t *testing.T) {
	cfg := Default()
	cfg.Observability.OTelEnabled = true
	cfg.Observability.OTelSampleRatio = 0.1

	otelCfg := cfg.OTel()
	assert.True(t, otelCfg.Enabled)
	assert.Equal(t, "localhost:4317", otelCfg.Endpoint)
	assert.Equal(t, "sqlite3", otelCfg.Dialect)
	assert.Equal(t, "lru", otelCfg.TokenCache)
	assert.Equal(t, 0.1, otelCfg.SampleRatio)
	assert.Equal(t, 10*time.Second, otelCfg.ExportInterval)

	cfg.Storage.Driver = "postgresql"
	cfg.Storage.RedisURL = "redis://cache:6379/0"
	otelCfg = cfg.OTel()
	assert.Equal(t, "postgres", otelCfg.Dialect)
	assert.Equal(t, "redis", otelCfg.TokenCache)
}

func TestLoadConfigFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("SCRIBE_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		writeFile(t, path, "server: [unterminated")
		t.Setenv("SCRIBE_CONFIG_FILE", path)
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "failed to parse config file")
	})

	t.Run("bad duration", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dur.yaml")
		writeFile(t, path, "server:\n  read_timeout: soon\n")
		t.Setenv("SCRIBE_CONFIG_FILE", path)
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "invalid duration")
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"missing health port", func(c *Config) { c.Server.HealthPort = "" }, "health port is required"},
		{"same ports", func(c *Config) { c.Server.HealthPort = c.Server.Port }, "must be different"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "mysql" }, "unsupported database driver"},
		{"missing url", func(c *Config) { c.Storage.URL = "" }, "database URL is required"},
		{"cache size", func(c *Config) { c.Storage.TokenCacheSize = 0 }, "token cache size"},
		{"bcrypt too low", func(c *Config) { c.Auth.BcryptCost = 2 }, "bcrypt cost"},
		{"bcrypt too high", func(c *Config) { c.Auth.BcryptCost = 40 }, "bcrypt cost"},
		{"bad schedule", func(c *Config) { c.Auth.TokenCleanupSchedule = "every now and then" }, "invalid token cleanup schedule"},
		{"no schedule", func(c *Config) { c.Auth.TokenCleanupSchedule = "" }, ""},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}, "endpoint is required"},
		{"otel without service name", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelServiceName = ""
		}, "service name is required"},
		{"sample ratio above one", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelSampleRatio = 1.5
		}, "sample ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestWatchReloadsLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.yaml")
	writeFile(t, path, "logging:\n  level: info\n")

	logger := observability.NewLogger(observability.InfoLevel, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan observability.LogLevel, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, logger, func(fc *FileConfig) {
			if level, ok := fc.LogLevel(); ok {
				logger.SetLevel(level)
				reloaded <- level
			}
		})
	}()

	// fsnotify registers asynchronously; keep rewriting until a change lands
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case level := <-reloaded:
			if level != observability.DebugLevel {
				continue
			}
			assert.Equal(t, observability.DebugLevel, logger.Level())
			cancel()
			assert.NoError(t, <-done)
			return
		case <-tick.C:
			writeFile(t, path, "logging:\n  level: debug\n")
		case <-deadline:
			t.Fatal("config change was not observed")
		}
	}
}
