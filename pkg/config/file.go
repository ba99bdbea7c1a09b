package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/scribe/pkg/observability"
)

// FileConfig is the YAML file layout. Zero values leave the current setting
// untouched.
type FileConfig struct {
	Server struct {
		Host            string `yaml:"host"`
		Port            string `yaml:"port"`
		HealthPort      string `yaml:"health_port"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		IdleTimeout     string `yaml:"idle_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"`
		URL      string `yaml:"url"`
		MaxConns int    `yaml:"max_conns"`
		MinConns int    `yaml:"min_conns"`
	} `yaml:"database"`

	Redis struct {
		URL      string `yaml:"url"`
		Password string `yaml:"password"`
		DB       *int   `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		BcryptCost           int    `yaml:"bcrypt_cost"`
		TokenCleanupSchedule string `yaml:"token_cleanup_schedule"`
	} `yaml:"auth"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	OTel struct {
		Enabled     *bool    `yaml:"enabled"`
		Endpoint    string   `yaml:"endpoint"`
		ServiceName string   `yaml:"service_name"`
		Insecure    *bool    `yaml:"insecure"`
		SampleRatio *float64 `yaml:"sample_ratio"`
	} `yaml:"otel"`
}

// LoadFile reads and parses a YAML config file
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	fc := &FileConfig{}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return fc, nil
}

// LogLevel returns the file's log level, or ok=false when it sets none
func (fc *FileConfig) LogLevel() (observability.LogLevel, bool) {
	if fc.Logging.Level == "" {
		return observability.InfoLevel, false
	}
	return observability.ParseLogLevel(fc.Logging.Level), true
}

// Apply overlays the file's settings onto cfg
func (fc *FileConfig) Apply(cfg *Config) error {
	setString(&cfg.Server.Host, fc.Server.Host)
	setString(&cfg.Server.Port, fc.Server.Port)
	setString(&cfg.Server.HealthPort, fc.Server.HealthPort)
	for _, d := range []struct {
		dst *time.Duration
		src string
	}{
		{&cfg.Server.ReadTimeout, fc.Server.ReadTimeout},
		{&cfg.Server.WriteTimeout, fc.Server.WriteTimeout},
		{&cfg.Server.IdleTimeout, fc.Server.IdleTimeout},
		{&cfg.Server.ShutdownTimeout, fc.Server.ShutdownTimeout},
	} {
		if d.src == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.src)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", d.src, err)
		}
		*d.dst = parsed
	}

	setString(&cfg.Storage.Driver, fc.Database.Driver)
	setString(&cfg.Storage.URL, fc.Database.URL)
	if fc.Database.MaxConns > 0 {
		cfg.Storage.MaxConns = fc.Database.MaxConns
	}
	if fc.Database.MinConns > 0 {
		cfg.Storage.MinConns = fc.Database.MinConns
	}

	setString(&cfg.Storage.RedisURL, fc.Redis.URL)
	setString(&cfg.Storage.RedisPassword, fc.Redis.Password)
	if fc.Redis.DB != nil {
		cfg.Storage.RedisDB = *fc.Redis.DB
	}
	if fc.Redis.PoolSize > 0 {
		cfg.Storage.RedisPoolSize = fc.Redis.PoolSize
	}

	if fc.Auth.BcryptCost > 0 {
		cfg.Auth.BcryptCost = fc.Auth.BcryptCost
	}
	setString(&cfg.Auth.TokenCleanupSchedule, fc.Auth.TokenCleanupSchedule)

	if level, ok := fc.LogLevel(); ok {
		cfg.Observability.LogLevel = level
	}
	if fc.OTel.Enabled != nil {
		cfg.Observability.OTelEnabled = *fc.OTel.Enabled
	}
	setString(&cfg.Observability.OTelEndpoint, fc.OTel.Endpoint)
	setString(&cfg.Observability.OTelServiceName, fc.OTel.ServiceName)
	if fc.OTel.Insecure != nil {
		cfg.Observability.OTelInsecure = *fc.OTel.Insecure
	}
	if fc.OTel.SampleRatio != nil {
		cfg.Observability.OTelSampleRatio = *fc.OTel.SampleRatio
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Watch reloads the config file whenever it changes and hands the result to
// onChange. Parse failures are logged and the previous settings stay in
// effect. Watch blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file so that editors and
// config-map updates that replace the file by rename are picked up.
func Watch(ctx context.Context, path string, logger *observability.Logger, onChange func(*FileConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			fc, err := LoadFile(target)
			if err != nil {
				logger.WithError(err).WithField("path", target).Warn("Ignoring unreadable config file change")
				continue
			}
			logger.WithField("path", target).Info("Config file reloaded")
			onChange(fc)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("Config watcher error")
		}
	}
}
