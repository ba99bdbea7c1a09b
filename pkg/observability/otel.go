package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// TracerName is the instrumentation scope used for scribe spans
const TracerName = "github.com/platinummonkey/scribe"

// Resource attributes describing the deployment
const (
	AttrStorageDialect = attribute.Key("scribe.storage.dialect")
	AttrTokenCache     = attribute.Key("scribe.token_cache")
)

// Span attributes shared by the authz and accounts spans
const (
	AttrActorUserID  = attribute.Key("scribe.actor_user_id")
	AttrTargetUserID = attribute.Key("scribe.target_user_id")
	AttrOutcome      = attribute.Key("scribe.outcome")
)

// OTelConfig selects the OTLP collector and describes this deployment on
// every exported span and metric
type OTelConfig struct {
	Enabled        bool
	Endpoint       string
	Insecure       bool
	ServiceName    string
	ServiceVersion string

	// Dialect is the storage backend (postgres or sqlite3)
	Dialect string
	// TokenCache is the token cache backend (redis or lru)
	TokenCache string

	// SampleRatio is the share of new traces kept, from 0 to 1. Spans with a
	// sampled remote parent are always kept.
	SampleRatio float64
	// ExportInterval is both the metric push period and the span batch timeout
	ExportInterval time.Duration
	// ExportTimeout bounds each export call
	ExportTimeout time.Duration
}

// OTelProviders holds the installed providers for shutdown
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

// Tracer returns the scribe tracer from the global provider. Until InitOTel
// installs a real provider the returned tracer records nothing.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartSpan starts a span on the scribe tracer
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordOutcome tags span with the outcome label that the matching
// Prometheus counter uses. A non-nil err also marks the span failed; expected
// rejections such as a denial or a validation failure pass nil.
func RecordOutcome(span trace.Span, outcome string, err error) {
	span.SetAttributes(AttrOutcome.String(outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// InitOTel installs global tracer and meter providers exporting to the
// collector at cfg.Endpoint. The meter provider also collects the otelhttp
// server metrics. It returns nil providers when OTel is disabled.
func InitOTel(ctx context.Context, cfg OTelConfig, logger *Logger) (*OTelProviders, error) {
	if !cfg.Enabled {
		logger.Info("OpenTelemetry is disabled")
		return nil, nil
	}
	cfg = cfg.withDefaults()

	logger.WithFields(map[string]interface{}{
		"endpoint":     cfg.Endpoint,
		"sample_ratio": cfg.SampleRatio,
		"dialect":      cfg.Dialect,
	}).Info("Initializing OpenTelemetry")

	res, err := cfg.resource(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ExportTimeout)
	defer cancel()

	spanExporter, err := otlptracegrpc.New(dialCtx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(cfg.ExportTimeout),
		otlptracegrpc.WithDialOption(cfg.dialOptions()...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(dialCtx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithTimeout(cfg.ExportTimeout),
		otlpmetricgrpc.WithDialOption(cfg.dialOptions()...),
	)
	if err != nil {
		if shutdownErr := spanExporter.Shutdown(ctx); shutdownErr != nil {
			logger.WithError(shutdownErr).Warn("Failed to close trace exporter")
		}
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	providers := &OTelProviders{
		TracerProvider: cfg.tracerProvider(res, sdktrace.WithBatcher(spanExporter,
			sdktrace.WithBatchTimeout(cfg.ExportInterval),
			sdktrace.WithExportTimeout(cfg.ExportTimeout),
		)),
		MeterProvider: metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(metricExporter,
				metric.WithInterval(cfg.ExportInterval),
				metric.WithTimeout(cfg.ExportTimeout),
			)),
		),
	}

	otel.SetTracerProvider(providers.TracerProvider)
	otel.SetMeterProvider(providers.MeterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("OpenTelemetry initialized")
	return providers, nil
}

func (c OTelConfig) withDefaults() OTelConfig {
	if c.ServiceName == "" {
		c.ServiceName = "scribe"
	}
	if c.ExportInterval <= 0 {
		c.ExportInterval = 10 * time.Second
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = 10 * time.Second
	}
	return c
}

// sampler keeps the parent's decision for propagated traces and samples new
// root traces at SampleRatio
func (c OTelConfig) sampler() sdktrace.Sampler {
	switch {
	case c.SampleRatio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case c.SampleRatio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
	}
}

func (c OTelConfig) resource(ctx context.Context) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(c.ServiceName),
		semconv.ServiceVersion(c.ServiceVersion),
	}
	switch c.Dialect {
	case "postgres":
		attrs = append(attrs, semconv.DBSystemPostgreSQL, AttrStorageDialect.String(c.Dialect))
	case "sqlite3":
		attrs = append(attrs, semconv.DBSystemSqlite, AttrStorageDialect.String(c.Dialect))
	}
	if c.TokenCache != "" {
		attrs = append(attrs, AttrTokenCache.String(c.TokenCache))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
	)
	// A detector that cannot read process or host details still leaves the
	// scribe attributes in place
	if errors.Is(err, resource.ErrPartialResource) {
		return res, nil
	}
	return res, err
}

func (c OTelConfig) dialOptions() []grpc.DialOption {
	opts := []grpc.DialOption{grpc.WithUserAgent(c.ServiceName + "/" + c.ServiceVersion)}
	if c.Insecure {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	return opts
}

func (c OTelConfig) tracerProvider(res *resource.Resource, processor sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(c.sampler()),
		processor,
	)
}

// ShutdownOTel flushes and stops the providers returned by InitOTel
func ShutdownOTel(ctx context.Context, providers *OTelProviders, logger *Logger) error {
	if providers == nil {
		return nil
	}

	var errs []error
	if providers.TracerProvider != nil {
		if err := providers.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if providers.MeterProvider != nil {
		if err := providers.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		logger.WithError(err).Error("OpenTelemetry shutdown failed")
		return err
	}
	logger.Info("OpenTelemetry shutdown complete")
	return nil
}

// UpdateLoggerWithTraceContext adds the trace and span ids of the recording
// span in ctx to logger
func UpdateLoggerWithTraceContext(ctx context.Context, logger *Logger) *Logger {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return logger
	}

	spanCtx := span.SpanContext()
	return logger.WithFields(map[string]interface{}{
		"trace_id": spanCtx.TraceID().String(),
		"span_id":  spanCtx.SpanID().String(),
	})
}
