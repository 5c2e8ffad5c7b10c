// Package contextkeys provides centralized context key definitions
//
// All context keys used across the service are defined here so that
// producers and consumers agree on the key and on the stored type.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/folio/pkg/contextkeys"
//	ctx = contextkeys.WithAuth(ctx, authCtx)
//	authCtx, _ := ctx.Value(contextkeys.AuthKey).(*auth.AuthContext)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.AuthContext
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: rbac.RequireRole, every handler behind the identity step
	// Type: *auth.AuthContext
	AuthKey Key = "auth_context"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated user ID
	// Set by: middleware.AuthMiddleware after the active check
	// Used by: Logger, audit trail
	// Type: int64
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	// Used by: Handlers and stores that log with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"

	// AuditLoggerKey contains audit.Logger interface
	// Set by: audit.Middleware
	// Used by: Handlers that record audit events
	// Type: audit.Logger
	AuditLoggerKey Key = "audit_logger"

	// AuditRequestKey contains *audit.RequestInfo (client IP, user agent, method, path)
	// Set by: audit.Middleware
	// Used by: audit event builders
	// Type: *audit.RequestInfo
	AuditRequestKey Key = "audit_request"
)

// WithAuth adds authentication context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithAuditLogger adds audit logger to the context
func WithAuditLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}
