package search

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const searchInstrumentationName = "github.com/fathomlabs/fathomd/internal/search"

// Metrics holds all search-related metrics.
type Metrics struct {
	meter     metric.Meter
	logger    *zap.Logger
	duration  metric.Float64Histogram
	requests  metric.Int64Counter
	errors    metric.Int64Counter
	cacheHits metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for the search engine.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(searchInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"fathomd.search.duration_seconds",
		metric.WithDescription("End-to-end search latency in seconds, labeled by cache outcome"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.requests, err = m.meter.Int64Counter(
		"fathomd.search.requests_total",
		metric.WithDescription("Total search requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create requests counter", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"fathomd.search.errors_total",
		metric.WithDescription("Total search failures by error kind (invalid_query, embedding, store, dimension, timeout)"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}

	m.cacheHits, err = m.meter.Int64Counter(
		"fathomd.search.cache_hits_total",
		metric.WithDescription("Search responses served from the result cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		m.logger.Warn("failed to create cache hits counter", zap.Error(err))
	}
}

// RecordSearch records the outcome of one search request.
func (m *Metrics) RecordSearch(ctx context.Context, duration time.Duration, cached bool, errKind string) {
	attrs := []attribute.KeyValue{attribute.Bool("cached", cached)}

	if m.requests != nil {
		m.requests.Add(ctx, 1)
	}
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if cached && m.cacheHits != nil {
		m.cacheHits.Add(ctx, 1)
	}
	if errKind != "" && m.errors != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", errKind)))
	}
}
