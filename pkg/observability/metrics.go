package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Inheritance propagation
	InheritanceOperationsTotal *prometheus.CounterVec
	InheritanceNodesChanged    *prometheus.CounterVec
	InheritanceDuration        *prometheus.HistogramVec

	// Direct grant toggles
	GrantChangesTotal *prometheus.CounterVec

	// Authorization gate
	AuthDecisionsTotal *prometheus.CounterVec
	LoginAttemptsTotal *prometheus.CounterVec

	// Blob storage
	BlobOperationsTotal *prometheus.CounterVec

	// Audit retention
	AuditRowsPurgedTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		InheritanceOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_inheritance_operations_total",
				Help: "Total number of inheritance propagations",
			},
			[]string{"operation", "status"},
		),
		InheritanceNodesChanged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_inheritance_nodes_changed_total",
				Help: "Grants created or removed by inheritance propagation",
			},
			[]string{"operation", "kind"},
		),
		InheritanceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_inheritance_duration_seconds",
				Help:    "Inheritance propagation duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		GrantChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_grant_changes_total",
				Help: "Direct grant toggles",
			},
			[]string{"resource", "action", "status"},
		),
		AuthDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_auth_decisions_total",
				Help: "Authorization gate decisions by stage",
			},
			[]string{"stage", "outcome"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		BlobOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_blob_operations_total",
				Help: "Blob store operations",
			},
			[]string{"operation", "status"},
		),
		AuditRowsPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "folio_audit_rows_purged_total",
				Help: "Audit rows deleted by the retention job",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.InheritanceOperationsTotal,
		m.InheritanceNodesChanged,
		m.InheritanceDuration,
		m.GrantChangesTotal,
		m.AuthDecisionsTotal,
		m.LoginAttemptsTotal,
		m.BlobOperationsTotal,
		m.AuditRowsPurgedTotal,
	)

	return m
}

// RegisterDBStats exports connection pool statistics for db
func RegisterDBStats(registry *prometheus.Registry, db *sql.DB) {
	registry.MustRegister(collectors.NewDBStatsCollector(db, "folio"))
}

// StatusLabel maps an error to the status label used by operation counters
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel returns the matched route template so that path parameters do
// not explode label cardinality.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware records request count and latency
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, registry *prometheus.Registry) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
