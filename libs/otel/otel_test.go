package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg := ConfigFromEnv("booking-service")
	if !cfg.Enabled || cfg.SampleRatio != 0.25 || cfg.OTLPEndpoint != "collector:4317" || cfg.Environment != "local" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	t.Setenv("OTEL_SAMPLING_RATIO", "7")
	if got := ConfigFromEnv("x").SampleRatio; got != 1 {
		t.Fatalf("out of range ratio should fall back to 1, got %v", got)
	}

	t.Setenv("OTEL_SAMPLING_RATIO", "half")
	cfg = ConfigFromEnv("x")
	if cfg.Enabled || cfg.SampleRatio != 1 || cfg.ServiceName != "x" {
		t.Fatalf("unparsable env should fall back to defaults, got %+v", cfg)
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := TraceHeaders(ctx)
	if headers["traceparent"] == "" {
		t.Fatal("expected traceparent header")
	}
	got := trace.SpanContextFromContext(ContextWithTraceHeaders(context.Background(), headers))
	if got.TraceID() != traceID {
		t.Fatalf("trace id mismatch: %s", got.TraceID())
	}
}
