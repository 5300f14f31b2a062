// Package observe provides application-wide observability primitives for
// ipomatch: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via the /metrics endpoint. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all ipomatch metrics.
const meterName = "github.com/MrWong99/ipomatch"

// Entity outcomes recorded by [Metrics.RecordEntityOutcome].
const (
	OutcomeMatched        = "matched"
	OutcomeBelowThreshold = "below_threshold"
	OutcomeClaimed        = "claimed"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// MatchDuration tracks one matcher batch (similarity, scoring, selection).
	MatchDuration metric.Float64Histogram

	// RerankDuration tracks one relevance rerank pass.
	RerankDuration metric.Float64Histogram

	// UpstreamDuration tracks calls to the NER extractor and the finance
	// classifier. Use with attribute.String("upstream", ...).
	UpstreamDuration metric.Float64Histogram

	// CatalogFetchDuration tracks catalog source fetches.
	CatalogFetchDuration metric.Float64Histogram

	// --- Counters ---

	// EntityOutcomes counts processed entity candidates by outcome. Use with
	// attribute.String("outcome", ...).
	EntityOutcomes metric.Int64Counter

	// CatalogRefreshes counts refresh attempts. Use with
	// attribute.String("status", ...).
	CatalogRefreshes metric.Int64Counter

	// UpstreamRequests counts collaborator calls. Use with attributes:
	//   attribute.String("upstream", ...), attribute.String("backend", ...), attribute.String("status", ...)
	UpstreamRequests metric.Int64Counter

	// UpstreamErrors counts failed collaborator calls. Use with attributes:
	//   attribute.String("upstream", ...), attribute.String("backend", ...)
	UpstreamErrors metric.Int64Counter

	// --- Gauges ---

	// CatalogRecords reports the record count of the snapshot in use.
	CatalogRecords metric.Int64Gauge

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Scoring
// runs in milliseconds; upstream model calls take seconds.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.MatchDuration, err = m.Float64Histogram("ipomatch.match.duration",
		metric.WithDescription("Latency of one entity matching batch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RerankDuration, err = m.Float64Histogram("ipomatch.rerank.duration",
		metric.WithDescription("Latency of one relevance rerank pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UpstreamDuration, err = m.Float64Histogram("ipomatch.upstream.duration",
		metric.WithDescription("Latency of NER extractor and finance classifier calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CatalogFetchDuration, err = m.Float64Histogram("ipomatch.catalog.fetch.duration",
		metric.WithDescription("Latency of catalog source fetches."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.EntityOutcomes, err = m.Int64Counter("ipomatch.entity.outcomes",
		metric.WithDescription("Entity candidates processed by outcome."),
	); err != nil {
		return nil, err
	}
	if met.CatalogRefreshes, err = m.Int64Counter("ipomatch.catalog.refreshes",
		metric.WithDescription("Catalog refresh attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.UpstreamRequests, err = m.Int64Counter("ipomatch.upstream.requests",
		metric.WithDescription("Collaborator requests by upstream, backend, and status."),
	); err != nil {
		return nil, err
	}
	if met.UpstreamErrors, err = m.Int64Counter("ipomatch.upstream.errors",
		metric.WithDescription("Collaborator errors by upstream and backend."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.CatalogRecords, err = m.Int64Gauge("ipomatch.catalog.records",
		metric.WithDescription("Number of matchable records in the current catalog snapshot."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("ipomatch.http.request.duration",
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

// RecordEntityOutcome increments the entity outcome counter.
func (m *Metrics) RecordEntityOutcome(ctx context.Context, outcome string) {
	m.EntityOutcomes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordCatalogRefresh increments the refresh counter with status "ok" or
// "error".
func (m *Metrics) RecordCatalogRefresh(ctx context.Context, status string) {
	m.CatalogRefreshes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordUpstreamRequest records a collaborator request counter increment with
// the standard attribute set.
func (m *Metrics) RecordUpstreamRequest(ctx context.Context, upstream, backend, status string) {
	m.UpstreamRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("upstream", upstream),
			attribute.String("backend", backend),
			attribute.String("status", status),
		),
	)
}

// RecordUpstreamError records a collaborator error counter increment.
func (m *Metrics) RecordUpstreamError(ctx context.Context, upstream, backend string) {
	m.UpstreamErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("upstream", upstream),
			attribute.String("backend", backend),
		),
	)
}

// ObserveUpstream records the latency and outcome of one collaborator call
// that started at start and returned err.
func (m *Metrics) ObserveUpstream(ctx context.Context, upstream, backend string, start time.Time, err error) {
	RecordSince(ctx, m.UpstreamDuration, start,
		attribute.String("upstream", upstream),
		attribute.String("backend", backend),
	)
	status := "ok"
	if err != nil {
		status = "error"
		m.RecordUpstreamError(ctx, upstream, backend)
	}
	m.RecordUpstreamRequest(ctx, upstream, backend, status)
}
