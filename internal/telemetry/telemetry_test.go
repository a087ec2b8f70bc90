package telemetry

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), Config{}, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	_, span := p.Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("disabled provider should produce invalid span contexts")
	}
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNewTracerProvider_RecordsSpans(t *testing.T) {
	t.Parallel()

	rec := tracetest.NewSpanRecorder()
	tp := NewTracerProvider(Config{ServiceName: "chatmem-test", Version: "v1"}, sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("memory").Start(context.Background(), "memory.AddMessage")
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	if ended[0].Name() != "memory.AddMessage" {
		t.Errorf("span name = %q", ended[0].Name())
	}
	found := false
	for _, kv := range ended[0].Resource().Attributes() {
		if string(kv.Key) == "service.name" && kv.Value.AsString() == "chatmem-test" {
			found = true
		}
	}
	if !found {
		t.Error("service.name resource attribute missing")
	}
}

func TestSampleRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want float64
	}{
		{0, 1},
		{-1, 1},
		{1.5, 1},
		{0.25, 0.25},
		{1, 1},
	}
	for _, tt := range tests {
		if got := sampleRatio(tt.in); got != tt.want {
			t.Errorf("sampleRatio(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
