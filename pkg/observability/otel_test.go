package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

func TestInitOTel_Disabled(t *testing.T) {
	logger := NewLogger(ErrorLevel, io.Discard)

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, logger)
	require.NoError(t, err)
	assert.Nil(t, providers)

	assert.NoError(t, ShutdownOTel(context.Background(), nil, logger))
}

func TestShutdownOTel_WithProviders(t *testing.T) {
	logger := NewLogger(ErrorLevel, io.Discard)
	providers := &OTelProviders{TracerProvider: sdktrace.NewTracerProvider()}

	assert.NoError(t, ShutdownOTel(context.Background(), providers, logger))
}

func TestUpdateLoggerWithTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	// No span: logger unchanged
	assert.Same(t, logger, UpdateLoggerWithTraceContext(context.Background(), logger))

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer(TracerName).Start(context.Background(), "test")
	defer span.End()

	UpdateLoggerWithTraceContext(ctx, logger).Info("traced")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}

func TestOTelConfig_Defaults(t *testing.T) {
	cfg := OTelConfig{}.withDefaults()
	assert.Equal(t, "scribe", cfg.ServiceName)
	assert.Equal(t, 10*time.Second, cfg.ExportInterval)
	assert.Equal(t, 10*time.Second, cfg.ExportTimeout)

	cfg = OTelConfig{ServiceName: "blog", ExportInterval: time.Second}.withDefaults()
	assert.Equal(t, "blog", cfg.ServiceName)
	assert.Equal(t, time.Second, cfg.ExportInterval)
}

func TestOTelConfig_Sampler(t *testing.T) {
	remoteParent := trace.ContextWithRemoteSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))

	tests := []struct {
		name    string
		ratio   float64
		ctx     context.Context
		sampled bool
		ended   int
	}{
		{"all new traces", 1, context.Background(), true, 1},
		{"no new traces", 0, context.Background(), false, 0},
		{"sampled parent wins over ratio", 0, remoteParent, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			tp := OTelConfig{SampleRatio: tt.ratio}.tracerProvider(resource.Empty(), sdktrace.WithSpanProcessor(recorder))
			defer tp.Shutdown(context.Background())

			_, span := tp.Tracer(TracerName).Start(tt.ctx, "op")
			span.End()
			assert.Equal(t, tt.sampled, span.SpanContext().IsSampled())
			assert.Len(t, recorder.Ended(), tt.ended)
		})
	}
}

func TestOTelConfig_Resource(t *testing.T) {
	cfg := OTelConfig{
		ServiceName:    "scribe",
		ServiceVersion: "2.1.0",
		Dialect:        "postgres",
		TokenCache:     "redis",
	}
	res, err := cfg.resource(context.Background())
	require.NoError(t, err)

	attrs := res.Set()
	for _, want := range []attribute.KeyValue{
		semconv.ServiceName("scribe"),
		semconv.ServiceVersion("2.1.0"),
		semconv.DBSystemPostgreSQL,
		AttrStorageDialect.String("postgres"),
		AttrTokenCache.String("redis"),
	} {
		got, ok := attrs.Value(want.Key)
		assert.True(t, ok, string(want.Key))
		assert.Equal(t, want.Value.Emit(), got.Emit(), string(want.Key))
	}

	res, err = OTelConfig{ServiceName: "scribe", Dialect: "sqlite3"}.resource(context.Background())
	require.NoError(t, err)
	got, ok := res.Set().Value(semconv.DBSystemKey)
	require.True(t, ok)
	assert.Equal(t, "sqlite", got.AsString())
	_, ok = res.Set().Value(AttrTokenCache)
	assert.False(t, ok)
}

func TestOTelConfig_DialOptions(t *testing.T) {
	assert.Len(t, OTelConfig{ServiceName: "scribe"}.dialOptions(), 1)
	assert.Len(t, OTelConfig{ServiceName: "scribe", Insecure: true}.dialOptions(), 2)
}

// useRecorder installs a recording global tracer provider for one test
func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartSpanAndRecordOutcome(t *testing.T) {
	recorder := useRecorder(t)

	_, span := StartSpan(context.Background(), "accounts.Disable", AttrTargetUserID.Int64(7))
	RecordOutcome(span, "conflict", nil)
	span.End()

	_, failed := StartSpan(context.Background(), "accounts.Signup")
	RecordOutcome(failed, "error", errors.New("database is locked"))
	failed.End()

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	assert.Equal(t, "accounts.Disable", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), AttrTargetUserID.Int64(7))
	assert.Contains(t, ended[0].Attributes(), AttrOutcome.String("conflict"))
	assert.Equal(t, codes.Unset, ended[0].Status().Code)

	assert.Contains(t, ended[1].Attributes(), AttrOutcome.String("error"))
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "database is locked", ended[1].Status().Description)
	require.Len(t, ended[1].Events(), 1)
	assert.Equal(t, "exception", ended[1].Events()[0].Name)
}
