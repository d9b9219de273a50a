// Package observe provides Gaia's observability: OpenTelemetry metrics and
// tracing, session-aware structured logging and the HTTP middleware that ties
// them together.
//
// [InitProvider] bridges metrics into a Prometheus registry that
// [Telemetry.Handler] serves on /metrics. [DefaultMetrics] binds to whatever
// global provider is installed; tests use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Gaia metrics.
const meterName = "github.com/MrWong99/gaia"

// Analysis outcomes recorded on [Metrics.Analyses].
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
	OutcomeInvalid     = "invalid"
	OutcomeTimeout     = "timeout"
)

// Card lifecycle events recorded on [Metrics.Cards].
const (
	CardAppended  = "appended"
	CardDismissed = "dismissed"
	CardEvicted   = "evicted"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency ---

	// AnalysisDuration tracks end-to-end opportunity analysis latency,
	// including prompt construction and validation.
	AnalysisDuration metric.Float64Histogram

	// LLMDuration tracks raw LLM completion latency.
	LLMDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, route (the matched pattern) and status.
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// Analyses counts analysis cycles by outcome.
	Analyses metric.Int64Counter

	// ProviderRequests counts provider API calls. Attributes:
	//   provider, kind, status
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Attributes: provider, kind
	ProviderErrors metric.Int64Counter

	// Utterances counts finalized utterances appended to transcripts.
	Utterances metric.Int64Counter

	// Cards counts card lifecycle events. Attributes: event, type
	Cards metric.Int64Counter

	// CaptureRestarts counts automatic recognizer restarts.
	CaptureRestarts metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of connected assistant sessions.
	ActiveSessions metric.Int64UpDownCounter

	// AnalysesInFlight tracks analyses that have started but not settled.
	AnalysesInFlight metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// LLM round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AnalysisDuration, err = m.Float64Histogram("gaia.analysis.duration",
		metric.WithDescription("Latency of opportunity analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("gaia.llm.duration",
		metric.WithDescription("Latency of LLM completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("gaia.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Analyses, err = m.Int64Counter("gaia.analyses",
		metric.WithDescription("Total analysis cycles by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("gaia.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("gaia.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("gaia.utterances",
		metric.WithDescription("Total finalized utterances."),
	); err != nil {
		return nil, err
	}
	if met.Cards, err = m.Int64Counter("gaia.cards",
		metric.WithDescription("Opportunity card lifecycle events by event and type."),
	); err != nil {
		return nil, err
	}
	if met.CaptureRestarts, err = m.Int64Counter("gaia.capture.restarts",
		metric.WithDescription("Automatic speech recognizer restarts."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.ActiveSessions, err = m.Int64UpDownCounter("gaia.active_sessions",
		metric.WithDescription("Number of connected assistant sessions."),
	); err != nil {
		return nil, err
	}
	if met.AnalysesInFlight, err = m.Int64UpDownCounter("gaia.analyses.in_flight",
		metric.WithDescription("Analyses started but not yet settled."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAnalysis records one settled analysis with its outcome and latency.
func (m *Metrics) RecordAnalysis(ctx context.Context, source, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	)
	m.Analyses.Add(ctx, 1, attrs)
	m.AnalysisDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordProviderRequest records a provider request with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordCard records a card lifecycle event.
func (m *Metrics) RecordCard(ctx context.Context, event, cardType string) {
	m.Cards.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("event", event),
			attribute.String("type", cardType),
		),
	)
}
