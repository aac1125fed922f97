// Package observe provides application-wide observability primitives for
// Routevox: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
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

// meterName is the instrumentation scope name used for all Routevox metrics.
const meterName = "github.com/routevox/routevox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// PredictDuration tracks transcript-to-prediction latency.
	PredictDuration metric.Float64Histogram

	// ConfirmDuration tracks the time from entering confirmation to commit
	// or abort.
	ConfirmDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// Predictions counts predict calls. Use with attribute:
	//   attribute.String("source", ...)
	Predictions metric.Int64Counter

	// Commits counts committed package records.
	Commits metric.Int64Counter

	// CommitAborts counts commits aborted on a stale stop reference.
	CommitAborts metric.Int64Counter

	// Undos counts voice-initiated package removals.
	Undos metric.Int64Counter

	// AliasesLearned counts durable alias writes.
	AliasesLearned metric.Int64Counter

	// SpeechErrors counts recognition errors by code.
	SpeechErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Predict is
// sub-millisecond in the common case; confirmation spans whole seconds.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.25, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.PredictDuration, err = m.Float64Histogram("routevox.predict.duration",
		metric.WithDescription("Latency of transcript-to-stop prediction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ConfirmDuration, err = m.Float64Histogram("routevox.confirm.duration",
		metric.WithDescription("Time from entering confirmation to commit or abort."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("routevox.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Predictions, err = m.Int64Counter("routevox.predictions",
		metric.WithDescription("Total predictions by resolution source."),
	); err != nil {
		return nil, err
	}
	if met.Commits, err = m.Int64Counter("routevox.commits",
		metric.WithDescription("Total committed package records."),
	); err != nil {
		return nil, err
	}
	if met.CommitAborts, err = m.Int64Counter("routevox.commit_aborts",
		metric.WithDescription("Total commits aborted on a stale stop reference."),
	); err != nil {
		return nil, err
	}
	if met.Undos, err = m.Int64Counter("routevox.undos",
		metric.WithDescription("Total voice-initiated package removals."),
	); err != nil {
		return nil, err
	}
	if met.AliasesLearned, err = m.Int64Counter("routevox.aliases_learned",
		metric.WithDescription("Total durable alias writes."),
	); err != nil {
		return nil, err
	}
	if met.SpeechErrors, err = m.Int64Counter("routevox.speech_errors",
		metric.WithDescription("Total recognition errors by code."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("routevox.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
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

// RecordPrediction records a prediction counter increment with the resolution
// source attribute.
func (m *Metrics) RecordPrediction(ctx context.Context, source string) {
	m.Predictions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordSpeechError records a recognition error counter increment.
func (m *Metrics) RecordSpeechError(ctx context.Context, code string) {
	m.SpeechErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("code", code)),
	)
}
