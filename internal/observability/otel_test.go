package observability

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func testConfig() Config {
	return Config{
		ServiceName:    "relgen-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitMeterProvider(t *testing.T) {
	mp, err := InitMeterProvider(testConfig())
	require.NoError(t, err)
	require.NotNil(t, mp.provider)
	require.NotNil(t, mp.exporter)

	metrics, err := InitGeneratorMetrics(mp.Provider())
	require.NoError(t, err)
	metrics.RecordCacheMiss(context.Background(), "Customer")

	rec := httptest.NewRecorder()
	mp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "relgen_generator_cache_misses")
	assert.Contains(t, body, `entity="Customer"`)
	assert.Contains(t, body, "go_goroutines")

	assert.NoError(t, mp.Shutdown(context.Background(), discardLogger()))
}

func TestInitMeterProvider_Twice(t *testing.T) {
	first, err := InitMeterProvider(testConfig())
	require.NoError(t, err)
	second, err := InitMeterProvider(testConfig())
	require.NoError(t, err, "each provider owns its registry")

	assert.NoError(t, first.Shutdown(context.Background(), discardLogger()))
	assert.NoError(t, second.Shutdown(context.Background(), discardLogger()))
}

func TestInitTracerProvider(t *testing.T) {
	for _, protocol := range []string{"grpc", "http/protobuf"} {
		t.Run(protocol, func(t *testing.T) {
			cfg := testConfig()
			cfg.TraceSampleRatio = 1
			cfg.OTLPConfig = OTLPExporterConfig{Endpoint: "localhost:4317", Protocol: protocol, Insecure: true}

			tp, err := InitTracerProvider(cfg)
			require.NoError(t, err)
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx, discardLogger())
		})
	}

	cfg := testConfig()
	cfg.OTLPConfig.Protocol = "thrift"
	_, err := InitTracerProvider(cfg)
	assert.ErrorContains(t, err, "unsupported OTLP protocol")
}

func TestInitLoggerProvider(t *testing.T) {
	cfg := testConfig()
	cfg.OTLPConfig = OTLPExporterConfig{Endpoint: "http://localhost:4318", Protocol: "http", Insecure: true}

	lp, err := InitLoggerProvider(cfg)
	require.NoError(t, err)
	require.NotNil(t, lp.Provider())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = lp.Shutdown(ctx, discardLogger())
}

func TestParseOTLPProtocol(t *testing.T) {
	tests := map[string]otlpProtocol{
		"":              otlpProtocolGRPC,
		"GRPC":          otlpProtocolGRPC,
		"http":          otlpProtocolHTTP,
		"http/protobuf": otlpProtocolHTTP,
	}
	for in, want := range tests {
		got, err := parseOTLPProtocol(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestExporterOptions(t *testing.T) {
	cfg := OTLPExporterConfig{
		Endpoint:         "collector:4317",
		Insecure:         true,
		Headers:          map[string]string{"x-api-key": "k"},
		Timeout:          time.Second,
		Compression:      "gzip",
		RetryEnabled:     true,
		RetryMaxAttempts: 3,
	}

	grpcOpts, err := buildTracerExporterOptions(cfg)
	require.NoError(t, err)
	assert.Len(t, grpcOpts, 6)

	logOpts, err := buildHTTPLoggerExporterOptions(cfg)
	require.NoError(t, err)
	assert.Len(t, logOpts, 6)

	cfg.RetryEnabled = false
	cfg.Headers = nil
	httpOpts, err := buildHTTPTracerExporterOptions(cfg)
	require.NoError(t, err)
	assert.Len(t, httpOpts, 4)

	_, _, maxElapsed := OTLPExporterConfig{RetryMaxAttempts: 3}.retryBudget()
	assert.Equal(t, 15*time.Second, maxElapsed)

	cfg.Insecure = false
	cfg.TLSCertFile = "/nonexistent/ca.pem"
	_, err = buildLoggerExporterOptions(cfg)
	assert.ErrorContains(t, err, "failed to read OTLP TLS CA file")
}

func TestBuildTLSConfig_FileNotFound(t *testing.T) {
	// Missing CA file should surface a clear error.
	_, err := buildTLSConfig(OTLPExporterConfig{
		TLSCertFile: "/nonexistent/ca.pem",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read OTLP TLS CA file")
}

func TestBuildTLSConfig_InvalidCertFormat(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/ca.pem"

	// Write a non-PEM payload to trigger parse failure.
	require.NoError(t, os.WriteFile(path, []byte("not-a-cert"), 0600))

	_, err := buildTLSConfig(OTLPExporterConfig{
		TLSCertFile: path,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse OTLP TLS CA file")
}

func TestBuildTLSConfig_MissingClientKeyPair(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/client.crt"

	// Only set the cert path to ensure missing key is rejected.
	require.NoError(t, os.WriteFile(path, []byte("not-a-cert"), 0600))

	_, err := buildTLSConfig(OTLPExporterConfig{
		TLSClientCertFile: path,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTLP TLS client cert and key must both be set")
}

func TestTraceSamplerForRatio_Boundaries(t *testing.T) {
	never := traceSamplerForRatio(0)
	always := traceSamplerForRatio(1)

	decisionNever := never.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{1},
		Name:          "test",
	}).Decision
	assert.Equal(t, sdktrace.Drop, decisionNever)

	decisionAlways := always.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{2},
		Name:          "test",
	}).Decision
	assert.Equal(t, sdktrace.RecordAndSample, decisionAlways)
}

func TestTraceSamplerForRatio_ParentAwareMidRange(t *testing.T) {
	sampler := traceSamplerForRatio(0.5)

	parentSampled := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{3},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))
	decisionSampledParent := sampler.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: parentSampled,
		TraceID:       trace.TraceID{4},
		Name:          "child",
	}).Decision
	assert.Equal(t, sdktrace.RecordAndSample, decisionSampledParent)

	parentNotSampled := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{5},
		SpanID:  trace.SpanID{2},
		Remote:  true,
	}))
	decisionUnsampledParent := sampler.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: parentNotSampled,
		TraceID:       trace.TraceID{6},
		Name:          "child",
	}).Decision
	assert.Equal(t, sdktrace.Drop, decisionUnsampledParent)
}
