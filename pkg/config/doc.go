// Package config provides application configuration management from
// environment variables and an optional YAML file.
//
// # Overview
//
// Settings start from Default(), are overlaid by the YAML file named in
// SCRIBE_CONFIG_FILE, and finally by SCRIBE_* environment variables.
//
// # Configuration Structure
//
// Server settings:
//
//	SCRIBE_HOST="0.0.0.0"
//	SCRIBE_PORT="8080"
//	SCRIBE_HEALTH_PORT="9090"
//	SCRIBE_READ_TIMEOUT="15s"
//	SCRIBE_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	SCRIBE_DB_DRIVER="postgres"  # postgres or sqlite3
//	SCRIBE_DB_URL="postgres://localhost/scribe?sslmode=disable"
//	SCRIBE_DB_MAX_CONNS="25"
//
// Token cache settings:
//
//	SCRIBE_REDIS_URL="redis://localhost:6379"  # empty uses the in-process LRU
//	SCRIBE_TOKEN_CACHE_SIZE="10000"
//	SCRIBE_TOKEN_CACHE_TTL="5m"
//
// Auth settings:
//
//	SCRIBE_BCRYPT_COST="10"
//	SCRIBE_TOKEN_CLEANUP_SCHEDULE="@hourly"
//
// Observability settings:
//
//	SCRIBE_LOG_LEVEL="info"  # debug, info, warn, error
//	SCRIBE_METRICS_ENABLED="true"
//	SCRIBE_OTEL_ENABLED="true"
//	SCRIBE_OTEL_ENDPOINT="otel-collector:4317"
//
// # Config File
//
//	server:
//	  port: "8080"
//	database:
//	  driver: postgres
//	  url: postgres://scribe@db/scribe
//	logging:
//	  level: debug
//
// Watch follows the file and reports each successful reload; the server uses
// it to change the log level without a restart.
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Database: %s\n", cfg.Storage.Driver)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
