package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// HealthChecker provides health check functionality
type HealthChecker struct {
	db      *sql.DB
	redis   *redis.Client
	extra   map[string]Checker
	version string
}

// Checker is an additional dependency probe, e.g. the blob store.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// NewHealthChecker creates a new health checker. redis may be nil.
func NewHealthChecker(db *sql.DB, redis *redis.Client, version string) *HealthChecker {
	return &HealthChecker{
		db:      db,
		redis:   redis,
		extra:   make(map[string]Checker),
		version: version,
	}
}

// AddChecker registers an optional dependency. A failing optional
// dependency degrades the service without failing readiness.
func (h *HealthChecker) AddChecker(name string, c Checker) {
	h.extra[name] = c
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Liveness always returns 200 while the process serves requests
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Version:   h.version,
	})
}

// Readiness returns 503 when a required dependency is down
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, status)
}

func writeHealth(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// Check probes every dependency
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus),
	}

	// The database is required.
	if h.db != nil {
		dbStatus := h.probe(ctx, func(ctx context.Context) error {
			var one int
			return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
		})
		status.Dependencies["database"] = dbStatus
		if dbStatus.Status == StatusUnhealthy {
			status.Status = StatusUnhealthy
		}
	}

	optional := make(map[string]func(context.Context) error, len(h.extra)+1)
	if h.redis != nil {
		optional["redis"] = func(ctx context.Context) error { return h.redis.Ping(ctx).Err() }
	}
	for name, c := range h.extra {
		optional[name] = c.HealthCheck
	}

	for name, fn := range optional {
		depStatus := h.probe(ctx, fn)
		status.Dependencies[name] = depStatus
		if depStatus.Status == StatusUnhealthy && status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}

	return status
}

func (h *HealthChecker) probe(ctx context.Context, fn func(context.Context) error) DependencyStatus {
	start := time.Now()
	err := fn(ctx)
	status := DependencyStatus{
		Status:    StatusHealthy,
		Latency:   time.Since(start),
		Timestamp: time.Now(),
	}
	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
	}
	return status
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(serveMux *http.ServeMux, checker *HealthChecker) {
	serveMux.HandleFunc("/healthz", checker.Liveness)
	serveMux.HandleFunc("/readyz", checker.Readiness)
}
