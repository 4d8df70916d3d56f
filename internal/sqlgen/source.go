package sqlgen

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"

	"relgen/internal/dialect"
	"relgen/internal/mapping"
	"relgen/internal/sqlrender"
)

// CacheMetrics receives generator cache events. observability.GeneratorMetrics
// implements it.
type CacheMetrics interface {
	RecordCacheHit(ctx context.Context, entity string)
	RecordCacheMiss(ctx context.Context, entity string)
	RecordBuildError(ctx context.Context, entity string)
}

// Source hands out one Generator per entity and caches it. Concurrent first
// requests for the same entity build the generator once.
type Source struct {
	mapping *mapping.Context
	dialect *dialect.Dialect
	naming  sqlrender.NamingStrategy
	metrics CacheMetrics
	logger  *slog.Logger

	generators sync.Map // entity name -> *Generator
	group      singleflight.Group
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithSourceNaming sets the naming strategy of every generator.
func WithSourceNaming(n sqlrender.NamingStrategy) SourceOption {
	return func(s *Source) {
		s.naming = n
	}
}

// WithMetrics records cache hits and misses.
func WithMetrics(m CacheMetrics) SourceOption {
	return func(s *Source) {
		s.metrics = m
	}
}

// WithSourceLogger sets the logger.
func WithSourceLogger(logger *slog.Logger) SourceOption {
	return func(s *Source) {
		s.logger = logger
	}
}

// NewSource creates a generator source for a mapping context and dialect.
func NewSource(ctx *mapping.Context, d *dialect.Dialect, opts ...SourceOption) *Source {
	s := &Source{mapping: ctx, dialect: d, naming: sqlrender.AsIs()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Dialect returns the dialect of every generator.
func (s *Source) Dialect() *dialect.Dialect {
	return s.dialect
}

// Mapping returns the mapping context.
func (s *Source) Mapping() *mapping.Context {
	return s.mapping
}

// Generator returns the cached generator of an entity, creating it on first
// use. Unknown entities fail with mapping.ErrEntityNotFound.
func (s *Source) Generator(ctx context.Context, entityName string) (*Generator, error) {
	if cached, ok := s.generators.Load(entityName); ok {
		s.recordHit(ctx, entityName)
		return cached.(*Generator), nil
	}

	v, err, _ := s.group.Do(entityName, func() (any, error) {
		if cached, ok := s.generators.Load(entityName); ok {
			return cached, nil
		}
		s.recordMiss(ctx, entityName)
		g, err := New(s.mapping, s.dialect, entityName, WithNamingStrategy(s.naming))
		if err != nil {
			return nil, err
		}
		actual, _ := s.generators.LoadOrStore(entityName, g)
		s.logger.Debug("created SQL generator",
			slog.String("entity", entityName),
			slog.String("dialect", s.dialect.Name),
		)
		return actual, nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordBuildError(ctx, entityName)
		}
		return nil, fmt.Errorf("failed to create SQL generator for %s: %w", entityName, err)
	}
	return v.(*Generator), nil
}

// GeneratorFor returns the generator of the entity mapped to a Go type.
func (s *Source) GeneratorFor(ctx context.Context, t reflect.Type) (*Generator, error) {
	e, err := s.mapping.EntityFor(t)
	if err != nil {
		return nil, err
	}
	return s.Generator(ctx, e.Name)
}

func (s *Source) recordHit(ctx context.Context, entity string) {
	if s.metrics != nil {
		s.metrics.RecordCacheHit(ctx, entity)
	}
}

func (s *Source) recordMiss(ctx context.Context, entity string) {
	if s.metrics != nil {
		s.metrics.RecordCacheMiss(ctx, entity)
	}
}
