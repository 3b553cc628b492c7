package kafkax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092,, b:9092 "))
	assert.Nil(t, SplitBrokers(""))
}

func TestNewEventMessageCarriesTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	msg := NewEventMessage("evt-1", "booking.created.v1", "booking-1", []byte(`{}`))
	msg.Headers = InjectTraceHeaders(ctx, msg.Headers)

	assert.Equal(t, "booking.created.v1", msg.Topic)
	assert.Equal(t, "booking-1", string(msg.Key))
	assert.Equal(t, "evt-1", HeaderValue(msg.Headers, HeaderEventID))
	assert.NotEmpty(t, HeaderValue(msg.Headers, "traceparent"))

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), msg))
	assert.Equal(t, traceID, got.TraceID())
}
