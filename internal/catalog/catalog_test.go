package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"gopkg.in/yaml.v3"

	"relgen/internal/dbexec"
	"relgen/internal/dialect"
	"relgen/internal/mapping"
	"relgen/internal/observability"
	"relgen/internal/sqlgen"
)

const shopModel = `
entities:
  - name: Customer
    properties:
      - {name: id, id: true}
      - {name: version, version: true}
      - {name: name}
      - {name: orders, kind: list, target: PurchaseOrder, key_column: position}
  - name: PurchaseOrder
    properties:
      - {name: id, id: true}
      - {name: total}
  - name: Tag
    properties:
      - {name: label}
`

func newSource(t *testing.T) *sqlgen.Source {
	t.Helper()
	m, err := mapping.ParseModel([]byte(shopModel))
	require.NoError(t, err)
	ctx := mapping.NewContext()
	require.NoError(t, ctx.RegisterModel(m))
	return sqlgen.NewSource(ctx, dialect.ANSI())
}

func byName(statements []Statement) map[string]Statement {
	out := make(map[string]Statement, len(statements))
	for _, s := range statements {
		out[s.Name] = s
	}
	return out
}

func TestRender_EntityWithCollection(t *testing.T) {
	rendered, err := Render(context.Background(), newSource(t), "Customer", nil)
	require.NoError(t, err)

	assert.Equal(t, "Customer", rendered.Entity)
	assert.Equal(t, "customer", rendered.Table)
	assert.Equal(t, dialect.NameANSI, rendered.Dialect)
	assert.Zero(t, rendered.Failed())

	stmts := byName(rendered.Statements)
	assert.Equal(t, "SELECT COUNT(*) FROM customer", stmts["count"].SQL)
	assert.Contains(t, stmts["find_one"].SQL, "WHERE customer.id = :id")
	assert.Contains(t, stmts["delete_by_id_and_version"].SQL, ":___oldOptimisticLockingVersion")
	assert.Contains(t, stmts["lock_by_id"].SQL, "FOR UPDATE")

	child := stmts["find_all_by_path[orders]"]
	require.Empty(t, child.Error)
	assert.Contains(t, child.SQL, "FROM purchase_order")
	assert.Contains(t, child.SQL, "WHERE purchase_order.customer = :customer")
	assert.Contains(t, child.SQL, "ORDER BY position")

	assert.Contains(t, stmts["delete_by_path[orders]"].SQL, "DELETE FROM purchase_order WHERE purchase_order.customer = :rootId")
	assert.Contains(t, stmts["delete_in_by_path[orders]"].SQL, "IN (:ids)")
	assert.Contains(t, stmts["delete_all_by_path[orders]"].SQL, "DELETE FROM purchase_order")
}

func TestRender_EntityWithoutID(t *testing.T) {
	rendered, err := Render(context.Background(), newSource(t), "Tag", nil)
	require.NoError(t, err)

	stmts := byName(rendered.Statements)
	assert.Contains(t, stmts["find_one"].Error, sqlgen.ErrIllegalArgument.Error())
	assert.Empty(t, stmts["find_one"].SQL)
	assert.Equal(t, "SELECT COUNT(*) FROM tag", stmts["count"].SQL)
	assert.NotContains(t, stmts, "delete_by_id_and_version")
	assert.Positive(t, rendered.Failed())
}

func TestRender_UnknownEntity(t *testing.T) {
	_, err := Render(context.Background(), newSource(t), "Missing", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mapping.ErrEntityNotFound))
}

func TestRenderAll(t *testing.T) {
	all, err := RenderAll(context.Background(), newSource(t), nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Customer", "PurchaseOrder", "Tag"}, []string{all[0].Entity, all[1].Entity, all[2].Entity})

	some, err := RenderAll(context.Background(), newSource(t), []string{"Tag"}, nil)
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "Tag", some[0].Entity)

	_, err = RenderAll(context.Background(), newSource(t), []string{"Missing"}, nil)
	assert.ErrorIs(t, err, mapping.ErrEntityNotFound)
}

func TestRender_ParameterNames(t *testing.T) {
	runner, err := dbexec.NewRunner(nil, dialect.ANSI(), dbexec.WithStatementCacheSize(8))
	require.NoError(t, err)

	rendered, err := Render(context.Background(), newSource(t), "Customer", runner)
	require.NoError(t, err)
	stmts := byName(rendered.Statements)
	assert.Equal(t, []string{"id"}, stmts["find_one"].Parameters)
	assert.Equal(t, []string{"ids"}, stmts["find_all_in_list"].Parameters)
	assert.Empty(t, stmts["count"].Parameters)
	assert.Equal(t, []string{"id", "___oldOptimisticLockingVersion"}, stmts["delete_by_id_and_version"].Parameters)
}

func TestSummaries(t *testing.T) {
	summaries := Summaries(newSource(t).Mapping())
	require.Len(t, summaries, 3)

	customer := summaries[0]
	assert.Equal(t, "Customer", customer.Name)
	assert.Equal(t, "id", customer.ID)
	assert.Equal(t, "version", customer.Version)
	assert.Equal(t, []string{"id", "version", "name", "orders"}, customer.Properties)
	assert.Contains(t, customer.Paths, "orders")
	assert.Empty(t, summaries[2].ID)
}

type fakePinger struct {
	err error
}

func (f fakePinger) PingContext(context.Context) error {
	return f.err
}

func TestHandler_Routes(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		method     string
		wantStatus int
		wantBody   string
	}{
		{"entities", "/entities", http.MethodGet, http.StatusOK, `"name":"PurchaseOrder"`},
		{"entity sql", "/entities/Customer/sql", http.MethodGet, http.StatusOK, `"name":"find_all_by_path[orders]"`},
		{"unknown entity", "/entities/Missing/sql", http.MethodGet, http.StatusNotFound, "entity not found: Missing"},
		{"health", "/health", http.MethodGet, http.StatusOK, `"database":"none"`},
		{"wrong method", "/entities", http.MethodPost, http.StatusMethodNotAllowed, ""},
		{"unknown route", "/nope", http.MethodGet, http.StatusNotFound, ""},
	}

	handler := NewHandler(newSource(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHandler_EntitySQLFormats(t *testing.T) {
	handler := NewHandler(newSource(t))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/entities/Tag/sql", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var asJSON EntitySQL
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &asJSON))
	assert.Equal(t, "tag", asJSON.Table)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/entities/Tag/sql?format=yaml", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/yaml", rr.Header().Get("Content-Type"))
	var asYAML EntitySQL
	require.NoError(t, yaml.Unmarshal(rr.Body.Bytes(), &asYAML))
	assert.Equal(t, asJSON, asYAML)
}

func TestHandler_HealthCheck(t *testing.T) {
	healthy := NewHandler(newSource(t), WithHealthCheck(fakePinger{}, 0))
	rr := httptest.NewRecorder()
	healthy.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy","database":"ok"}`, rr.Body.String())

	unhealthy := NewHandler(newSource(t), WithHealthCheck(fakePinger{err: errors.New("connection refused")}, 0))
	rr = httptest.NewRecorder()
	unhealthy.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestHandler_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics, err := observability.InitCatalogMetrics(provider)
	require.NoError(t, err)

	handler := NewHandler(newSource(t), WithMetrics(metrics))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/entities/Customer/sql", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/entities/Missing/sql", nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	routes := map[string]int64{}
	var rendered int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				switch m.Name {
				case "relgen.catalog.requests.total":
					route, _ := dp.Attributes.Value("route")
					status, _ := dp.Attributes.Value("status")
					routes[route.AsString()+" "+status.AsString()] += dp.Value
				case "relgen.catalog.statements.rendered":
					rendered += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(1), routes["GET /entities/{name}/sql 200"])
	assert.Equal(t, int64(1), routes["GET /entities/{name}/sql 404"])
	assert.Positive(t, rendered)
	assert.False(t, strings.Contains(strings.Join(keys(routes), ","), "Missing"))
}

func keys(m map[string]int64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
