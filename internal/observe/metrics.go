// Package observe provides application-wide observability primitives for
// realtalk: OpenTelemetry metrics, tracing helpers, structured logging, and
// HTTP middleware for the ops endpoints.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all realtalk metrics.
const meterName = "github.com/MrWong99/realtalk"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ConnectDuration tracks the time from issuing a connect to the
	// transport reporting connected.
	ConnectDuration metric.Float64Histogram

	// PlaybackDuration tracks the length in seconds of each flushed
	// response buffer handed to the player.
	PlaybackDuration metric.Float64Histogram

	// --- Inbound counters ---

	// EventsReceived counts parsed inbound events. Use with attribute:
	//   attribute.String("type", ...)
	EventsReceived metric.Int64Counter

	// EventsIgnored counts inbound events with an unrecognised type.
	EventsIgnored metric.Int64Counter

	// ParseErrors counts inbound payloads that could not be parsed.
	ParseErrors metric.Int64Counter

	// ServerErrors counts explicit error events from the service.
	ServerErrors metric.Int64Counter

	// TransportErrors counts errors reported by the transport.
	TransportErrors metric.Int64Counter

	// --- Capture / outbound counters ---

	// AudioChunksSent counts input_audio_buffer.append events handed to
	// the transport.
	AudioChunksSent metric.Int64Counter

	// AudioBytesSent counts PCM bytes handed to the transport.
	AudioBytesSent metric.Int64Counter

	// AudioChunksSuppressed counts chunks discarded because the session
	// was not connected.
	AudioChunksSuppressed metric.Int64Counter

	// CaptureSamplesDropped counts samples skipped on buffer wraparound.
	CaptureSamplesDropped metric.Int64Counter

	// --- Playback ---

	// Playbacks counts playback starts. Use with attribute:
	//   attribute.String("status", ...)
	Playbacks metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of running pipelines.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// connection setup.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// playbackBuckets defines histogram bucket boundaries (in seconds) for the
// length of played responses.
var playbackBuckets = []float64{
	0.25, 0.5, 1, 2, 4, 8, 16, 32, 64,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ConnectDuration, err = m.Float64Histogram("realtalk.connect.duration",
		metric.WithDescription("Time from issuing a connect until the transport is connected."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("realtalk.playback.duration",
		metric.WithDescription("Length of each response buffer handed to the player."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(playbackBuckets...),
	); err != nil {
		return nil, err
	}

	// Inbound counters.
	if met.EventsReceived, err = m.Int64Counter("realtalk.events.received",
		metric.WithDescription("Total inbound protocol events by type."),
	); err != nil {
		return nil, err
	}
	if met.EventsIgnored, err = m.Int64Counter("realtalk.events.ignored",
		metric.WithDescription("Total inbound events with an unrecognised type."),
	); err != nil {
		return nil, err
	}
	if met.ParseErrors, err = m.Int64Counter("realtalk.events.parse_errors",
		metric.WithDescription("Total inbound payloads that failed to parse."),
	); err != nil {
		return nil, err
	}
	if met.ServerErrors, err = m.Int64Counter("realtalk.server.errors",
		metric.WithDescription("Total error events reported by the service."),
	); err != nil {
		return nil, err
	}
	if met.TransportErrors, err = m.Int64Counter("realtalk.transport.errors",
		metric.WithDescription("Total errors reported by the transport."),
	); err != nil {
		return nil, err
	}

	// Capture counters.
	if met.AudioChunksSent, err = m.Int64Counter("realtalk.audio.chunks_sent",
		metric.WithDescription("Total captured audio chunks handed to the transport."),
	); err != nil {
		return nil, err
	}
	if met.AudioBytesSent, err = m.Int64Counter("realtalk.audio.bytes_sent",
		metric.WithDescription("Total PCM bytes handed to the transport."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.AudioChunksSuppressed, err = m.Int64Counter("realtalk.audio.chunks_suppressed",
		metric.WithDescription("Total captured chunks discarded while not connected."),
	); err != nil {
		return nil, err
	}
	if met.CaptureSamplesDropped, err = m.Int64Counter("realtalk.capture.samples_dropped",
		metric.WithDescription("Total samples skipped when the recording buffer wrapped."),
	); err != nil {
		return nil, err
	}

	// Playback.
	if met.Playbacks, err = m.Int64Counter("realtalk.playbacks",
		metric.WithDescription("Total playback starts by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("realtalk.active_sessions",
		metric.WithDescription("Number of running pipelines."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("realtalk.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordEvent records one parsed inbound event of the given type.
func (m *Metrics) RecordEvent(ctx context.Context, eventType string) {
	m.EventsReceived.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", eventType)),
	)
}

// RecordIgnoredEvent records one inbound event of an unknown type.
func (m *Metrics) RecordIgnoredEvent(ctx context.Context, eventType string) {
	m.EventsIgnored.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", eventType)),
	)
}

// RecordAudioSent records one chunk of n PCM bytes handed to the transport.
func (m *Metrics) RecordAudioSent(ctx context.Context, n int) {
	m.AudioChunksSent.Add(ctx, 1)
	m.AudioBytesSent.Add(ctx, int64(n))
}

// RecordPlayback records a playback start of seconds length with status
// "ok" or "error".
func (m *Metrics) RecordPlayback(ctx context.Context, seconds float64, status string) {
	m.Playbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	if status == "ok" {
		m.PlaybackDuration.Record(ctx, seconds)
	}
}
