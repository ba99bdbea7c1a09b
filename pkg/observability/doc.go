// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health checks and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("port", 8080).Info("Server started")
//
// Request-scoped loggers carry the request and user ids:
//
//	observability.FromContext(r.Context()).WithError(err).Warn("cache eviction failed")
//
// The level lives in a slog.LevelVar, so SetLevel on the root logger changes
// every derived logger. The config watcher uses this for hot reload.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry, nil)
//	metrics.RecordAuthzDecision("post", "update", false)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(opsMux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg.OTel(), logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// Exported spans carry the storage dialect and token cache backend as
// resource attributes. New root traces are sampled at SampleRatio.
//
// Operation spans tag the same outcome label as their Prometheus counter:
//
//	ctx, span := observability.StartSpan(ctx, "accounts.Disable",
//		observability.AttrTargetUserID.Int64(id))
//	defer span.End()
//	observability.RecordOutcome(span, "conflict", nil)
package observability
