package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/storefront/internal/config"
)

func TestPrometheusExporterServesMeterReadings(t *testing.T) {
	ctx := context.Background()
	mgr, err := newManager(ctx, config.Observability{
		ServiceName:     "storefront",
		EnableMetrics:   true,
		MetricsExporter: "prometheus",
		PrometheusPath:  "/metrics",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Shutdown(ctx) })

	assert.False(t, mgr.TracingEnabled())
	require.True(t, mgr.MetricsEnabled())
	require.NotNil(t, mgr.MetricsHandler())

	counter, err := mgr.MeterProvider().Meter("test").Int64Counter("checkout.orders.placed")
	require.NoError(t, err)
	counter.Add(ctx, 2)

	rec := httptest.NewRecorder()
	mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "checkout_orders_placed_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestManagersDoNotShareRegistries(t *testing.T) {
	cfg := config.Observability{EnableMetrics: true, MetricsExporter: "prometheus"}

	first, err := newManager(context.Background(), cfg, nil)
	require.NoError(t, err)
	second, err := newManager(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.NotSame(t, first.registry, second.registry)
}

func TestDisabledExporters(t *testing.T) {
	mgr, err := newManager(context.Background(), config.Observability{
		EnableTracing:   true,
		TraceExporter:   "none",
		EnableMetrics:   true,
		MetricsExporter: "none",
	}, nil)
	require.NoError(t, err)

	assert.False(t, mgr.TracingEnabled())
	assert.False(t, mgr.MetricsEnabled())
	assert.Nil(t, mgr.MetricsHandler())
	assert.NoError(t, mgr.Shutdown(context.Background()))
}

func TestOTLPRequiresEndpoint(t *testing.T) {
	_, err := newManager(context.Background(), config.Observability{
		EnableTracing: true,
		TraceExporter: "otlp",
	}, nil)
	assert.ErrorContains(t, err, "OBS_OTLP_ENDPOINT")
}
