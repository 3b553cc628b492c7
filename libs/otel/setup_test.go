package otelx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")

	cfg := ConfigFromEnv("booking-service")
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
	assert.Equal(t, 0.25, cfg.SampleRatio)

	t.Setenv("OTEL_ENABLED", "0")
	t.Setenv("OTEL_SAMPLING_RATIO", "7")
	cfg = ConfigFromEnv("booking-service")
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1.0, cfg.SampleRatio)
}

func TestTraceContextRoundTrip(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	parent, state := TraceContextStrings(ctx)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", parent)
	assert.Empty(t, state)

	restored := trace.SpanContextFromContext(ContextWithTraceContext(context.Background(), parent, state))
	assert.Equal(t, traceID, restored.TraceID())
	assert.True(t, restored.IsRemote())

	assert.Equal(t, context.Background(), ContextWithTraceContext(context.Background(), "", ""))
}
