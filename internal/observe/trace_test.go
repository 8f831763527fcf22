package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

func useGlobalTracer(t *testing.T, tp *sdktrace.TracerProvider) {
	t.Helper()
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })
}

func TestTraceID(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID(background) = %q, want empty", got)
	}

	tp, _ := newTestTracerProvider(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	id := TraceID(ctx)
	if len(id) != 32 {
		t.Fatalf("TraceID length = %d, want 32", len(id))
	}
	if strings.Trim(id, "0123456789abcdef") != "" {
		t.Errorf("TraceID %q is not lower-case hex", id)
	}
}

func TestStartSpan_UsesGlobalProvider(t *testing.T) {
	tp, exp := newTestTracerProvider(t)
	useGlobalTracer(t, tp)

	ctx, span := StartSpan(context.Background(), "realtime.connect")
	if TraceID(ctx) == "" {
		t.Error("StartSpan did not start a recording span")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "realtime.connect" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "realtime.connect")
	}
	if got := spans[0].InstrumentationScope.Name; got != tracerName {
		t.Errorf("scope = %q, want %q", got, tracerName)
	}
}

func TestLoggerFrom(t *testing.T) {
	tp, _ := newTestTracerProvider(t)

	tests := []struct {
		name      string
		withSpan  bool
		wantTrace bool
	}{
		{name: "active span", withSpan: true, wantTrace: true},
		{name: "no span", withSpan: false, wantTrace: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			base := slog.New(slog.NewTextHandler(&buf, nil)).With("session_id", "s1")

			ctx := context.Background()
			if tc.withSpan {
				c, sp := tp.Tracer("test").Start(ctx, "log")
				defer sp.End()
				ctx = c
			}

			LoggerFrom(ctx, base).Info("hello")
			out := buf.String()

			if !strings.Contains(out, "session_id=s1") {
				t.Errorf("base attributes lost: %s", out)
			}
			if got := strings.Contains(out, "trace_id="); got != tc.wantTrace {
				t.Errorf("trace_id present = %v, want %v: %s", got, tc.wantTrace, out)
			}
			if got := strings.Contains(out, "span_id="); got != tc.wantTrace {
				t.Errorf("span_id present = %v, want %v: %s", got, tc.wantTrace, out)
			}
		})
	}
}

func TestLogger_UsesDefault(t *testing.T) {
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	Logger(context.Background()).Info("via default")
	if !strings.Contains(buf.String(), "via default") {
		t.Errorf("Logger did not write through the default logger: %q", buf.String())
	}
}
