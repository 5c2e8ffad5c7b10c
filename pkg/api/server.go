package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/blob"
	"github.com/platinummonkey/folio/pkg/files"
	"github.com/platinummonkey/folio/pkg/folders"
	"github.com/platinummonkey/folio/pkg/grants"
	"github.com/platinummonkey/folio/pkg/groups"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/inheritance"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/rbac"
	"github.com/platinummonkey/folio/pkg/users"
)

const defaultMaxUploadBytes = 50 << 20

// Deps are the collaborators the API is assembled from
type Deps struct {
	DB     *sql.DB
	Tokens *auth.TokenManager
	Blobs  blob.Store
	Logger *observability.Logger

	// Optional
	Metrics        *observability.Metrics
	Audit          audit.Logger
	AuditStore     audit.Store
	LoginLimiter   middleware.Limiter
	AllowedOrigins []string
	MaxUploadBytes int64
	SecureCookie   bool
	ResolverSize   int
	ResolverTTL    time.Duration
}

// Server represents our API server
type Server struct {
	router    *mux.Router
	protected *mux.Router
	handler   http.Handler
	resolver  *users.Resolver
}

// NewServer creates a new API server with every route registered
func NewServer(deps Deps) *Server {
	if deps.Audit == nil {
		deps.Audit = audit.NoOp()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{router: mux.NewRouter()}
	s.router.NotFoundHandler = httputil.NotFoundHandler()
	if deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	}

	userStore := users.NewStore(deps.DB)
	s.resolver = users.NewResolver(userStore, deps.ResolverSize, deps.ResolverTTL)

	s.protected = s.router.NewRoute().Subrouter()
	s.protected.Use(middleware.NewAuthMiddleware(deps.Tokens, s.resolver, deps.Metrics).Handler)

	s.setupRoutes(deps, userStore)

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware(deps.Logger),
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
		httputil.CORSMiddleware(deps.AllowedOrigins),
		httputil.MaxBytesMiddleware(deps.MaxUploadBytes),
		audit.Middleware(deps.Audit),
	)(otelhttp.NewHandler(s.router, "folio-api"))

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(deps Deps, userStore *users.Store) {
	groupStore := groups.NewStore(deps.DB)
	grantStore := grants.NewStore(deps.DB)
	folderStore := folders.NewStore(deps.DB)
	fileStore := files.NewStore(deps.DB)

	gate := rbac.NewGate(rbac.NewVisibility(groupStore, grantStore), deps.Metrics)

	users.NewSessionHandlers(userStore, deps.Tokens, deps.LoginLimiter, deps.Metrics, deps.SecureCookie).
		RegisterRoutes(s.router, s.protected)
	users.NewHandlers(userStore, s.resolver, gate).RegisterRoutes(s.protected)
	groups.NewHandlers(groupStore, gate).RegisterRoutes(s.protected)
	folders.NewHandlers(folderStore, gate, fileStore, deps.Blobs).RegisterRoutes(s.protected)
	files.NewHandlers(fileStore, gate, deps.Blobs).RegisterRoutes(s.protected)
	grants.NewHandlers(grantStore, gate, deps.Metrics).RegisterRoutes(s.protected)
	inheritance.NewHandlers(inheritance.NewEngine(deps.DB, deps.Metrics), gate).RegisterRoutes(s.protected)

	if deps.AuditStore != nil {
		superAdmins := s.protected.NewRoute().Subrouter()
		superAdmins.Use(gate.RequireRole(rbac.SuperAdminOnly...))
		audit.NewHandlers(deps.AuditStore).RegisterRoutes(superAdmins)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router returns the route table, for route inspection
func (s *Server) Router() *mux.Router {
	return s.router
}
