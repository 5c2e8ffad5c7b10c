package audit

import (
	"context"
	"time"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// LogAuthentication logs an authentication event
	LogAuthentication(ctx context.Context, eventType EventType, userID *int64, username string, status EventStatus, message string) error

	// LogAuthorization logs an authorization event
	LogAuthorization(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, status EventStatus, message string) error

	// LogDataMutation logs a data mutation event
	LogDataMutation(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, changes *ChangeDetails, message string) error

	// LogAdminAction logs an admin action on a user account
	LogAdminAction(ctx context.Context, eventType EventType, adminUserID *int64, targetUserID *int64, message string) error

	// Close flushes buffered events
	Close() error
}

// RequestInfo is the request metadata attached to events
type RequestInfo struct {
	IPAddress string
	UserAgent string
	Method    string
	Path      string
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context, or a no-op logger
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return NoOp()
}

// WithRequestInfo adds request metadata to the context
func WithRequestInfo(ctx context.Context, info *RequestInfo) context.Context {
	return context.WithValue(ctx, contextkeys.AuditRequestKey, info)
}

// buildBaseEvent creates an event populated from the request context
func buildBaseEvent(ctx context.Context, eventType EventType, status EventStatus) *AuditEvent {
	event := &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}

	if info, ok := ctx.Value(contextkeys.AuditRequestKey).(*RequestInfo); ok && info != nil {
		event.IPAddress = info.IPAddress
		event.UserAgent = info.UserAgent
		event.Method = info.Method
		event.Path = info.Path
	}

	if authCtx, ok := ctx.Value(contextkeys.AuthKey).(*auth.AuthContext); ok && authCtx != nil && authCtx.User != nil {
		id := authCtx.User.ID
		event.UserID = &id
		event.Username = authCtx.User.Username
	}

	return event
}

// recorder implements the typed Log* helpers on top of a Log function, so
// every backend shares the same event shapes.
type recorder struct {
	log func(ctx context.Context, event *AuditEvent) error
}

func (r recorder) LogAuthentication(ctx context.Context, eventType EventType, userID *int64, username string, status EventStatus, message string) error {
	event := buildBaseEvent(ctx, eventType, status)
	if userID != nil {
		event.UserID = userID
	}
	event.Username = username
	event.ResourceType = ResourceTypeUser
	event.Message = message
	return r.log(ctx, event)
}

func (r recorder) LogAuthorization(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, status EventStatus, message string) error {
	event := buildBaseEvent(ctx, eventType, status)
	if userID != nil {
		event.UserID = userID
	}
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	return r.log(ctx, event)
}

func (r recorder) LogDataMutation(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, changes *ChangeDetails, message string) error {
	event := buildBaseEvent(ctx, eventType, EventStatusSuccess)
	if userID != nil {
		event.UserID = userID
	}
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Changes = changes
	event.Message = message
	return r.log(ctx, event)
}

func (r recorder) LogAdminAction(ctx context.Context, eventType EventType, adminUserID *int64, targetUserID *int64, message string) error {
	event := buildBaseEvent(ctx, eventType, EventStatusSuccess)
	if adminUserID != nil {
		event.UserID = adminUserID
	}
	event.ResourceType = ResourceTypeUser
	if targetUserID != nil {
		event.Metadata["target_user_id"] = *targetUserID
		event.ResourceID = formatID(*targetUserID)
	}
	event.Message = message
	return r.log(ctx, event)
}

type noOpLogger struct {
	recorder
}

// NoOp returns a logger that discards every event
func NoOp() Logger {
	l := &noOpLogger{}
	l.recorder = recorder{log: l.Log}
	return l
}

func (l *noOpLogger) Log(ctx context.Context, event *AuditEvent) error { return nil }

func (l *noOpLogger) Close() error { return nil }
