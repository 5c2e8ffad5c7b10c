package rbac

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
)

// Role sets used by the route tables.
var (
	SuperAdminOnly = []auth.Role{auth.RoleSuperAdmin}
	Admins         = []auth.Role{auth.RoleSuperAdmin, auth.RoleContentAdmin}
)

// Gate runs the role gate and visibility stages. Identity and the active
// check have already run in middleware.AuthMiddleware.
type Gate struct {
	visibility *Visibility
	metrics    *observability.Metrics
}

// NewGate creates a gate. Both arguments may be nil; a nil visibility
// treats every caller as unrestricted.
func NewGate(visibility *Visibility, metrics *observability.Metrics) *Gate {
	return &Gate{
		visibility: visibility,
		metrics:    metrics,
	}
}

// RequireRole creates middleware that admits only the given roles.
// With no roles, any authenticated user is admitted.
func (g *Gate) RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := middleware.GetAuthContext(r)
			if authCtx == nil || authCtx.User == nil {
				httputil.WriteError(w, r, apperr.Unauthenticated(""))
				return
			}

			if len(roles) > 0 && !authCtx.HasRole(roles...) {
				g.deny(r, authCtx.User, roles)
				httputil.WriteError(w, r, apperr.ForbiddenRole().WithDetail(
					"user %s with role %s attempted %s %s", authCtx.User.Username, authCtx.User.Role, r.Method, r.URL.Path))
				return
			}

			g.record("allowed")
			next.ServeHTTP(w, r)
		})
	}
}

// Wrap applies RequireRole to a handler function.
func (g *Gate) Wrap(h http.HandlerFunc, roles ...auth.Role) http.Handler {
	return g.RequireRole(roles...)(h)
}

// Scope returns the visibility scope of the authenticated caller.
func (g *Gate) Scope(ctx context.Context) (*Scope, error) {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		return nil, apperr.Unauthenticated("")
	}
	if g.visibility == nil {
		return Unrestricted(), nil
	}
	return g.visibility.ScopeFor(ctx, user)
}

func (g *Gate) deny(r *http.Request, user *auth.User, roles []auth.Role) {
	g.record("denied")

	allowed := make([]string, len(roles))
	for i, role := range roles {
		allowed[i] = string(role)
	}

	observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"username":      user.Username,
		"role":          user.Role,
		"allowed_roles": strings.Join(allowed, ","),
		"method":        r.Method,
		"path":          r.URL.Path,
	}).Warn("role gate denied request")

	userID := user.ID
	_ = audit.FromContext(r.Context()).LogAuthorization(r.Context(), audit.EventTypeAuthzAccessDenied, &userID,
		audit.ResourceTypeRoute, r.Method+" "+r.URL.Path, audit.EventStatusDenied, "role "+string(user.Role)+" not permitted")
}

func (g *Gate) record(outcome string) {
	if g.metrics != nil {
		g.metrics.AuthDecisionsTotal.WithLabelValues("role", outcome).Inc()
	}
}
