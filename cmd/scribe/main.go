package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/scribe/pkg/accounts"
	"github.com/platinummonkey/scribe/pkg/api"
	"github.com/platinummonkey/scribe/pkg/async"
	"github.com/platinummonkey/scribe/pkg/audit"
	"github.com/platinummonkey/scribe/pkg/auth"
	"github.com/platinummonkey/scribe/pkg/authz"
	"github.com/platinummonkey/scribe/pkg/config"
	"github.com/platinummonkey/scribe/pkg/content"
	"github.com/platinummonkey/scribe/pkg/observability"
	"github.com/platinummonkey/scribe/pkg/rbac"
	"github.com/platinummonkey/scribe/pkg/storage"
	"github.com/platinummonkey/scribe/pkg/users"
)

var version = "dev"

// cleanupTimeout bounds one run of the expired token cleanup
const cleanupTimeout = 2 * time.Minute

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("scribe exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	// Tracing
	providers, err := observability.InitOTel(ctx, cfg.OTel(), logger)
	if err != nil {
		return err
	}
	if providers != nil {
		shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	// Database
	db, dialect, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	shutdown.RegisterShutdownFunc("database", func(context.Context) error { return db.Close() })

	if err := storage.Migrate(ctx, db, dialect); err != nil {
		return err
	}

	roles := rbac.NewStore(db, dialect)
	if err := roles.Seed(ctx); err != nil {
		return err
	}
	if err := roles.RequireSeededRoles(ctx); err != nil {
		return err
	}
	logger.WithField("driver", string(dialect)).Info("Database ready")

	// Token cache
	var cache auth.TokenCache
	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		redisCache, err := auth.NewRedisTokenCache(ctx, auth.RedisOptions{
			URL:        cfg.Storage.RedisURL,
			Password:   cfg.Storage.RedisPassword,
			DB:         cfg.Storage.RedisDB,
			MaxRetries: cfg.Storage.RedisMaxRetries,
			PoolSize:   cfg.Storage.RedisPoolSize,
			MaxTTL:     cfg.Storage.TokenCacheTTL,
		})
		if err != nil {
			return err
		}
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error { return redisCache.Close() })
		cache = redisCache
		redisClient = redisCache.Client()
		logger.Info("Using redis token cache")
	} else {
		cache = auth.NewLRUTokenCache(cfg.Storage.TokenCacheSize, cfg.Storage.TokenCacheTTL)
		logger.WithField("size", cfg.Storage.TokenCacheSize).Info("Using in-process token cache")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry, func() (int, int) {
			stats := db.Stats()
			return stats.OpenConnections, stats.InUse
		})
	}

	tokens := auth.NewTokenManager(db, cache)
	tokens.ObserveCacheLookups(metrics.RecordTokenCacheLookup)

	auditLogger := audit.NewLogrusLogger(os.Stdout)
	shutdown.RegisterShutdownFunc("audit", func(context.Context) error { return auditLogger.Close() })

	userStore := users.NewStore(db)
	guard := accounts.NewGuard(db, userStore, roles, tokens, auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		accounts.WithMetrics(metrics),
		accounts.WithAuditLogger(auditLogger),
	)

	server := api.NewServer(api.Dependencies{
		Users:        userStore,
		Roles:        roles,
		Content:      content.NewStore(db),
		Tokens:       tokens,
		Guard:        guard,
		Engine:       authz.NewEngine(metrics, auditLogger),
		Audit:        auditLogger,
		Metrics:      metrics,
		Logger:       logger,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(server, "scribe-api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	opsMux := http.NewServeMux()
	observability.RegisterHealthRoutes(opsMux, observability.NewHealthChecker(db, redisClient, version))
	if metrics != nil {
		observability.RegisterMetricsEndpoint(opsMux, registry)
	}
	opsServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: opsMux,
	}

	shutdown.RegisterServer(apiServer)
	shutdown.RegisterServer(opsServer)

	// Scheduled token cleanup, plus one run at startup
	cleanup := func(ctx context.Context) error {
		return cleanupTokens(ctx, tokens, metrics, logger)
	}
	async.Go(ctx, cleanupTimeout, "token cleanup", logger, cleanup)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Auth.TokenCleanupSchedule, func() {
		_ = async.Run(ctx, cleanupTimeout, "token cleanup", logger, cleanup)
	}); err != nil {
		return fmt.Errorf("failed to schedule token cleanup: %w", err)
	}
	scheduler.Start()
	shutdown.RegisterShutdownFunc("scheduler", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("Starting API server")
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.WithField("addr", opsServer.Addr).Info("Starting health and metrics server")
		return serve(opsServer)
	})

	if cfg.File != "" {
		g.Go(func() error {
			err := config.Watch(gctx, cfg.File, logger, func(fc *config.FileConfig) {
				if level, ok := fc.LogLevel(); ok && level != logger.Level() {
					logger.SetLevel(level)
					logger.WithField("level", level.String()).Info("Log level changed")
				}
			})
			if err != nil {
				// Serving continues without reload
				logger.WithError(err).Warn("Config file watch stopped")
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}

func serve(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server %s failed: %w", server.Addr, err)
	}
	return nil
}

func cleanupTokens(ctx context.Context, tokens *auth.TokenManager, metrics *observability.Metrics, logger *observability.Logger) error {
	deleted, err := tokens.CleanupExpiredTokens(ctx)
	if err != nil {
		return err
	}
	metrics.RecordExpiredTokensDeleted(deleted)

	live, err := tokens.CountLiveTokens(ctx)
	if err != nil {
		return err
	}
	metrics.SetActiveTokens(live)

	logger.WithFields(map[string]interface{}{"deleted": deleted, "live": live}).Info("Expired tokens cleaned up")
	return nil
}
