package logger

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestInit_ReturnsNonNilLogger(t *testing.T) {
	l := Init("engine-test", slog.LevelInfo)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestTraceID_AbsentByDefault(t *testing.T) {
	if tid := TraceID(context.Background()); tid != "" {
		t.Errorf("expected empty trace id on bare context, got %q", tid)
	}
}

func TestTraceID_RoundTripsThroughContext(t *testing.T) {
	ctx := WithTraceID(context.Background(), "order-42")
	if tid := TraceID(ctx); tid != "order-42" {
		t.Errorf("expected %q, got %q", "order-42", tid)
	}
}

func TestNewTraceID_CarriesTagAndNanos(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 555000000, time.UTC)
	tid := NewTraceID("BTCUSDT", at)

	if !strings.HasPrefix(tid, "BTCUSDT-") {
		t.Errorf("expected trace id to start with %q, got %q", "BTCUSDT-", tid)
	}
	if !strings.Contains(tid, "555000000") {
		t.Errorf("expected trace id to embed the nanosecond timestamp, got %q", tid)
	}
}

func TestAttrs_NilWithoutTraceID(t *testing.T) {
	if attrs := Attrs(context.Background()); attrs != nil {
		t.Errorf("expected nil attrs with no trace id set, got %v", attrs)
	}
}

func TestAttrs_PopulatedWithTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-xyz")
	attrs := Attrs(ctx)
	if len(attrs) == 0 {
		t.Fatal("expected non-empty attrs once a trace id is set")
	}
}
