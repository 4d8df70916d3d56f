package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of relgen's own instruments.
const MeterName = "relgen"

func meterFrom(provider metric.MeterProvider) metric.Meter {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	return provider.Meter(MeterName)
}

// GeneratorMetrics counts generator cache activity per entity.
type GeneratorMetrics struct {
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
	buildErrors metric.Int64Counter
}

// InitGeneratorMetrics creates the generator cache instruments. A nil
// provider uses the global one.
func InitGeneratorMetrics(provider metric.MeterProvider) (*GeneratorMetrics, error) {
	meter := meterFrom(provider)

	cacheHits, err := meter.Int64Counter(
		"relgen.generator.cache.hits",
		metric.WithDescription("Generator lookups served from the cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hit counter: %w", err)
	}

	cacheMisses, err := meter.Int64Counter(
		"relgen.generator.cache.misses",
		metric.WithDescription("Generator lookups that built a new generator"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache miss counter: %w", err)
	}

	buildErrors, err := meter.Int64Counter(
		"relgen.generator.build.errors",
		metric.WithDescription("Generator builds that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create build error counter: %w", err)
	}

	return &GeneratorMetrics{
		cacheHits:   cacheHits,
		cacheMisses: cacheMisses,
		buildErrors: buildErrors,
	}, nil
}

func entityAttr(entity string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("entity", entity))
}

// RecordCacheHit counts a cached generator lookup.
func (m *GeneratorMetrics) RecordCacheHit(ctx context.Context, entity string) {
	m.cacheHits.Add(ctx, 1, entityAttr(entity))
}

// RecordCacheMiss counts a generator build.
func (m *GeneratorMetrics) RecordCacheMiss(ctx context.Context, entity string) {
	m.cacheMisses.Add(ctx, 1, entityAttr(entity))
}

// RecordBuildError counts a failed generator build.
func (m *GeneratorMetrics) RecordBuildError(ctx context.Context, entity string) {
	m.buildErrors.Add(ctx, 1, entityAttr(entity))
}

// CatalogMetrics holds the catalog service's request instruments.
type CatalogMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	statements      metric.Int64Counter
}

// InitCatalogMetrics creates the catalog instruments. A nil provider uses the
// global one.
func InitCatalogMetrics(provider metric.MeterProvider) (*CatalogMetrics, error) {
	meter := meterFrom(provider)

	requestDuration, err := meter.Float64Histogram(
		"relgen.catalog.request.duration",
		metric.WithDescription("Duration of catalog requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"relgen.catalog.requests.total",
		metric.WithDescription("Total number of catalog requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	statements, err := meter.Int64Counter(
		"relgen.catalog.statements.rendered",
		metric.WithDescription("SQL statements rendered for catalog responses"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create statement counter: %w", err)
	}

	return &CatalogMetrics{
		requestDuration: requestDuration,
		requestCounter:  requestCounter,
		statements:      statements,
	}, nil
}

// RecordRequest records one served request.
func (m *CatalogMetrics) RecordRequest(ctx context.Context, route string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	m.requestCounter.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordStatements counts statements rendered for entity.
func (m *CatalogMetrics) RecordStatements(ctx context.Context, entity string, count int) {
	m.statements.Add(ctx, int64(count), entityAttr(entity))
}
