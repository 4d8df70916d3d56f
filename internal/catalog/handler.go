package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"relgen/internal/logging"
	"relgen/internal/mapping"
	"relgen/internal/middleware"
	"relgen/internal/observability"
	"relgen/internal/sqlgen"
)

// Pinger reports database reachability for /health. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler serves the statement catalog of a generator source.
type Handler struct {
	source        *sqlgen.Source
	metrics       *observability.CatalogMetrics
	params        ParameterLister
	pinger        Pinger
	healthTimeout time.Duration
	mux           *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics records request and statement counts.
func WithMetrics(m *observability.CatalogMetrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithParameterNames annotates statements with their parameter names.
func WithParameterNames(p ParameterLister) Option {
	return func(h *Handler) {
		h.params = p
	}
}

// WithHealthCheck makes /health ping the database within timeout.
func WithHealthCheck(p Pinger, timeout time.Duration) Option {
	return func(h *Handler) {
		h.pinger = p
		h.healthTimeout = timeout
	}
}

// NewHandler builds the catalog routes:
//
//	GET /entities              entity summaries
//	GET /entities/{name}/sql   statement set, ?format=yaml for YAML
//	GET /health                liveness, with a database ping when configured
func NewHandler(src *sqlgen.Source, opts ...Option) *Handler {
	h := &Handler{source: src, healthTimeout: 2 * time.Second}
	for _, opt := range opts {
		opt(h)
	}

	h.mux = http.NewServeMux()
	h.route("GET /entities", http.HandlerFunc(h.listEntities))
	h.route("GET /entities/{name}/sql", http.HandlerFunc(h.entitySQL))
	h.route("GET /health", http.HandlerFunc(h.health))
	return h
}

func (h *Handler) route(pattern string, handler http.Handler) {
	if h.metrics != nil {
		handler = middleware.RequestMetrics(h.metrics, pattern)(handler)
	}
	h.mux.Handle(pattern, handler)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) listEntities(w http.ResponseWriter, r *http.Request) {
	writeEncoded(w, r, http.StatusOK, Summaries(h.source.Mapping()))
}

func (h *Handler) entitySQL(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	reqLogger := logging.FromContext(r.Context())

	rendered, err := Render(r.Context(), h.source, name, h.params)
	if err != nil {
		if errors.Is(err, mapping.ErrEntityNotFound) {
			writeError(w, http.StatusNotFound, "entity not found: "+name)
			return
		}
		reqLogger.Error("failed to render entity",
			slog.String("entity", name),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to render entity")
		return
	}

	if h.metrics != nil {
		h.metrics.RecordStatements(r.Context(), rendered.Entity, len(rendered.Statements))
	}
	reqLogger.Debug("rendered entity",
		slog.String("entity", rendered.Entity),
		slog.Int("statements", len(rendered.Statements)),
		slog.Int("failed", rendered.Failed()),
	)
	writeEncoded(w, r, http.StatusOK, rendered)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	reqLogger := logging.FromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")

	if h.pinger == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","database":"none"}`))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.healthTimeout)
	defer cancel()
	if err := h.pinger.PingContext(ctx); err != nil {
		reqLogger.Error("health check failed",
			slog.String("error", err.Error()),
			slog.String("check", "database"),
		)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy","database":"failed"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","database":"ok"}`))
}

func writeEncoded(w http.ResponseWriter, r *http.Request, status int, v any) {
	if r.URL.Query().Get("format") == "yaml" {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(status)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		_ = enc.Encode(v)
		_ = enc.Close()
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
