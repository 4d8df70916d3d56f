package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newManualProvider(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		assert.Equal(t, MeterName, sm.Scope.Name)
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumByAttr(t *testing.T, data metricdata.Aggregation, key, value string) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestGeneratorMetrics(t *testing.T) {
	provider, reader := newManualProvider(t)
	m, err := InitGeneratorMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordCacheMiss(ctx, "Customer")
	m.RecordCacheHit(ctx, "Customer")
	m.RecordCacheHit(ctx, "Customer")
	m.RecordCacheHit(ctx, "Order")
	m.RecordBuildError(ctx, "Missing")

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumByAttr(t, data["relgen.generator.cache.hits"], "entity", "Customer"))
	assert.Equal(t, int64(1), sumByAttr(t, data["relgen.generator.cache.hits"], "entity", "Order"))
	assert.Equal(t, int64(1), sumByAttr(t, data["relgen.generator.cache.misses"], "entity", "Customer"))
	assert.Equal(t, int64(1), sumByAttr(t, data["relgen.generator.build.errors"], "entity", "Missing"))
}

func TestCatalogMetrics(t *testing.T) {
	provider, reader := newManualProvider(t)
	m, err := InitCatalogMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordRequest(ctx, "/entities", 200, 3*time.Millisecond)
	m.RecordRequest(ctx, "/entities/{name}/sql", 404, time.Millisecond)
	m.RecordStatements(ctx, "Customer", 21)

	data := collect(t, reader)
	assert.Equal(t, int64(1), sumByAttr(t, data["relgen.catalog.requests.total"], "status", "404"))
	assert.Equal(t, int64(1), sumByAttr(t, data["relgen.catalog.requests.total"], "route", "/entities"))
	assert.Equal(t, int64(21), sumByAttr(t, data["relgen.catalog.statements.rendered"], "entity", "Customer"))

	hist, ok := data["relgen.catalog.request.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}
