package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/storefront/internal/config"
	"github.com/Additional-Code/storefront/internal/presentation/http/response"
	"github.com/Additional-Code/storefront/internal/testutil/dbtest"
)

func newTestEcho(t *testing.T) *echo.Echo {
	t.Helper()
	cfg := config.Config{Observability: config.Observability{PrometheusPath: "/metrics"}}
	return NewEcho(cfg, nil, dbtest.Open(t), zap.NewNop())
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEcho(t)

	rec := serve(e, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	e := newTestEcho(t)

	rec := serve(e, http.MethodGet, "/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body response.Failure
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Message)
	assert.NotEmpty(t, body.ErrorMessage)
}

func TestPanicIsRecovered(t *testing.T) {
	e := newTestEcho(t)
	e.GET("/boom", func(echo.Context) error { panic("nil pointer") })

	rec := serve(e, http.MethodGet, "/boom")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body response.Failure
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body.Message)
}
