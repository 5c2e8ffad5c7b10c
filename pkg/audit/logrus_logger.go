package audit

import (
	"context"

	"github.com/platinummonkey/folio/pkg/observability"
)

// LogrusLogger writes audit events as structured log lines. Denied and
// failed events are logged at warn level.
type LogrusLogger struct {
	recorder
	logger *observability.Logger
}

// NewLogrusLogger creates an audit logger on top of a structured logger
func NewLogrusLogger(logger *observability.Logger) *LogrusLogger {
	l := &LogrusLogger{logger: logger.WithField("component", "audit")}
	l.recorder = recorder{log: l.Log}
	return l
}

// Log writes event as one log line
func (l *LogrusLogger) Log(ctx context.Context, event *AuditEvent) error {
	fields := map[string]interface{}{
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	}
	if event.UserID != nil {
		fields["actor_id"] = *event.UserID
	}
	if event.Username != "" {
		fields["actor"] = event.Username
	}
	if event.ResourceType != "" {
		fields["resource_type"] = string(event.ResourceType)
	}
	if event.ResourceID != "" {
		fields["resource_id"] = event.ResourceID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.IPAddress != "" {
		fields["ip_address"] = event.IPAddress
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}

	entry := l.logger.WithFields(fields)
	if event.ErrorMessage != "" {
		entry = entry.WithField("error", event.ErrorMessage)
	}

	switch event.Status {
	case EventStatusDenied, EventStatusFailure:
		entry.Warn(event.Message)
	default:
		entry.Info(event.Message)
	}
	return nil
}

// Close is a no-op
func (l *LogrusLogger) Close() error {
	return nil
}
