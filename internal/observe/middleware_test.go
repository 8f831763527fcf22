package observe

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testSetup(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	m, reader := newTestMetrics(t)
	tp, exp := newTestTracerProvider(t)
	useGlobalTracer(t, tp)
	return m, reader, exp
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_TraceHeader(t *testing.T) {
	m, _, _ := testSetup(t)

	var seen string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if len(seen) != 32 {
		t.Fatalf("handler trace id = %q, want 32 hex chars", seen)
	}
	if got := rec.Header().Get("X-Trace-ID"); got != seen {
		t.Errorf("X-Trace-ID = %q, want %q", got, seen)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	m, _, _ := testSetup(t)
	const want = "4bf92f3577b34da6a3ce929d0e0e4736"

	var seen string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("traceparent", "00-"+want+"-00f067aa0ba902b7-01")
	rec := serve(h, req)

	if seen != want {
		t.Errorf("trace id = %q, want %q", seen, want)
	}
	if got := rec.Header().Get("X-Trace-ID"); got != want {
		t.Errorf("X-Trace-ID = %q, want %q", got, want)
	}
}

func TestMiddleware_SpanAndStatus(t *testing.T) {
	m, _, exp := testSetup(t)
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "HTTP GET /readyz" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	var found bool
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" && a.Value.AsInt64() == 503 {
			found = true
		}
	}
	if !found {
		t.Error("span missing http.response.status_code=503")
	}
}

func TestMiddleware_RecordsDuration(t *testing.T) {
	m, reader, _ := testSetup(t)
	h := Middleware(m)(http.NotFoundHandler())

	serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	met := findMetric(rm, "realtalk.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 {
		t.Fatalf("unexpected histogram data: %#v", met.Data)
	}
	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("count = %d, want 1", dp.Count)
	}
	if v, ok := dp.Attributes.Value("path"); !ok || v.AsString() != "/metrics" {
		t.Errorf("path attribute = %v, want /metrics", v)
	}
	if v, ok := dp.Attributes.Value("method"); !ok || v.AsString() != http.MethodGet {
		t.Errorf("method attribute = %v, want GET", v)
	}
}

func TestMiddleware_LogLevelByPath(t *testing.T) {
	tests := []struct {
		path    string
		wantLog bool
	}{
		{path: "/healthz", wantLog: false},
		{path: "/readyz", wantLog: false},
		{path: "/metrics", wantLog: false},
		{path: "/debug/state", wantLog: true},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			m, _, _ := testSetup(t)

			orig := slog.Default()
			t.Cleanup(func() { slog.SetDefault(orig) })
			var buf bytes.Buffer
			slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

			h := Middleware(m)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
			serve(h, httptest.NewRequest(http.MethodGet, tc.path, nil))

			if got := strings.Contains(buf.String(), "ops request"); got != tc.wantLog {
				t.Errorf("logged at info = %v, want %v: %q", got, tc.wantLog, buf.String())
			}
		})
	}
}
