package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NotNil(t, metrics)
	assert.NotNil(t, metrics.InheritanceOperationsTotal)
	assert.NotNil(t, metrics.AuthDecisionsTotal)

	assert.Panics(t, func() { NewMetrics(registry) }, "double registration must fail")
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/folders/{folderId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods("PUT")

	for _, id := range []string{"1", "2", "3"} {
		req := httptest.NewRequest("PUT", "/folders/"+id, nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	count := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("PUT", "/folders/{folderId}", "404"))
	assert.Equal(t, float64(3), count)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "success", StatusLabel(nil))
	assert.Equal(t, "error", StatusLabel(errors.New("x")))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.InheritanceOperationsTotal.WithLabelValues("apply", "success").Inc()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	RegisterDBStats(registry, db)

	serveMux := http.NewServeMux()
	RegisterMetricsEndpoint(serveMux, registry)

	rec := httptest.NewRecorder()
	serveMux.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(string(body), `folio_inheritance_operations_total{operation="apply",status="success"} 1`))
	assert.Contains(t, string(body), "go_sql_max_open_connections")
}
