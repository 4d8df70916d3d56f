package sqlgen

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relgen/internal/dialect"
	"relgen/internal/mapping"
	"relgen/internal/sqlrender"
)

type countingMetrics struct {
	mu     sync.Mutex
	hits   map[string]int
	misses map[string]int
	errors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{hits: map[string]int{}, misses: map[string]int{}, errors: map[string]int{}}
}

func (m *countingMetrics) RecordCacheHit(_ context.Context, entity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[entity]++
}

func (m *countingMetrics) RecordCacheMiss(_ context.Context, entity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses[entity]++
}

func (m *countingMetrics) RecordBuildError(_ context.Context, entity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[entity]++
}

func TestSource_CachesOneGeneratorPerEntity(t *testing.T) {
	metrics := newCountingMetrics()
	src := NewSource(newMappingContext(t, nil, DummyEntity{}), dialect.Postgres(), WithMetrics(metrics))
	ctx := context.Background()

	first, err := src.Generator(ctx, "DummyEntity")
	require.NoError(t, err)
	second, err := src.Generator(ctx, "DummyEntity")
	require.NoError(t, err)
	assert.Same(t, first, second)

	byType, err := src.GeneratorFor(ctx, reflect.TypeOf(&DummyEntity{}))
	require.NoError(t, err)
	assert.Same(t, first, byType)

	assert.Equal(t, 1, metrics.misses["DummyEntity"])
	assert.Equal(t, 2, metrics.hits["DummyEntity"])
	assert.Equal(t, dialect.NamePostgres, src.Dialect().Name)
	assert.Same(t, src.Dialect(), first.Dialect())
}

func TestSource_ConcurrentFirstRequests(t *testing.T) {
	src := NewSource(newMappingContext(t, nil, DummyEntity{}), dialect.ANSI())
	ctx := context.Background()

	const workers = 32
	results := make([]*Generator, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, err := src.Generator(ctx, "Element")
			if err == nil {
				results[i] = g
			}
		}(i)
	}
	wg.Wait()

	for _, g := range results {
		require.NotNil(t, g)
		assert.Same(t, results[0], g)
	}
	sql, err := results[0].FindAll()
	require.NoError(t, err)
	assert.Equal(t, "SELECT element.id AS id, element.content AS content FROM element", sql)
}

func TestSource_UnknownEntity(t *testing.T) {
	metrics := newCountingMetrics()
	src := NewSource(newMappingContext(t, nil, OnlyID{}), dialect.ANSI(), WithMetrics(metrics))

	_, err := src.Generator(context.Background(), "Missing")
	assert.ErrorIs(t, err, mapping.ErrEntityNotFound)
	assert.Equal(t, 1, metrics.errors["Missing"])

	_, err = src.GeneratorFor(context.Background(), reflect.TypeOf(Foo{}))
	assert.ErrorIs(t, err, mapping.ErrEntityNotFound)
}

func TestSource_NamingStrategy(t *testing.T) {
	src := NewSource(newMappingContext(t, nil, DummyEntity{}), dialect.ANSI(), WithSourceNaming(sqlrender.ToUpper()))

	g, err := src.Generator(context.Background(), "DummyEntity")
	require.NoError(t, err)
	sql, err := g.DeleteByList()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM DUMMY_ENTITY WHERE DUMMY_ENTITY.ID1 IN (:ids)", sql)
}
