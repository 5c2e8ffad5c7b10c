package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/contextkeys"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/observability"
)

// IdentityResolver loads the current user record for a token subject
type IdentityResolver interface {
	Resolve(ctx context.Context, userID int64) (*auth.User, error)
}

// AuthMiddleware runs the first two gate stages: identity and active check.
// Every failure is a 401 UNAUTHENTICATED.
type AuthMiddleware struct {
	tokenManager *auth.TokenManager
	resolver     IdentityResolver
	metrics      *observability.Metrics
}

// NewAuthMiddleware creates a new authentication middleware. metrics may be nil.
func NewAuthMiddleware(tokenManager *auth.TokenManager, resolver IdentityResolver, metrics *observability.Metrics) *AuthMiddleware {
	return &AuthMiddleware{
		tokenManager: tokenManager,
		resolver:     resolver,
		metrics:      metrics,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := TokenFromRequest(r)
		if token == "" {
			m.deny(w, r, "identity", "missing session token")
			return
		}

		claims, err := m.tokenManager.Validate(token)
		if err != nil {
			m.deny(w, r, "identity", err.Error())
			return
		}

		user, err := m.resolver.Resolve(ctx, claims.UserID)
		if err != nil {
			if apperr.HasCode(err, apperr.CodeUserNotFound) {
				m.deny(w, r, "identity", "token subject no longer exists")
				return
			}
			httputil.WriteError(w, r, err)
			return
		}

		if !user.IsActive {
			m.deny(w, r, "active", "account disabled")
			return
		}

		m.record("identity", "allowed")

		ctx = contextkeys.WithAuth(ctx, &auth.AuthContext{User: user, Claims: claims})
		ctx = contextkeys.WithUserID(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) deny(w http.ResponseWriter, r *http.Request, stage, reason string) {
	m.record(stage, "denied")
	httputil.WriteError(w, r, apperr.Unauthenticated("").WithDetail("%s: %s", stage, reason))
}

func (m *AuthMiddleware) record(stage, outcome string) {
	if m.metrics != nil {
		m.metrics.AuthDecisionsTotal.WithLabelValues(stage, outcome).Inc()
	}
}

// TokenFromRequest reads the session token from the access_token cookie,
// falling back to an Authorization: Bearer header.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(auth.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	return AuthFromContext(r.Context())
}

// AuthFromContext extracts auth context from ctx
func AuthFromContext(ctx context.Context) *auth.AuthContext {
	authCtx, ok := ctx.Value(contextkeys.AuthKey).(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// CurrentUser returns the authenticated user or nil
func CurrentUser(ctx context.Context) *auth.User {
	if authCtx := AuthFromContext(ctx); authCtx != nil {
		return authCtx.User
	}
	return nil
}
