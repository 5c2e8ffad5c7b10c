// Package audit records security relevant events: logins, role gate denials,
// grant changes, inheritance runs, and mutations of folders, files, groups
// and users.
//
// # Loggers
//
// Logger has three implementations that can be combined with MultiLogger:
//
//   - DBLogger persists events to the audit_logs table and implements Store.
//   - LogrusLogger writes one structured log line per event.
//   - NoOp discards events; FromContext returns it when no logger is attached.
//
// # Usage
//
//	router.Use(audit.Middleware(logger))
//	...
//	audit.FromContext(ctx).LogAuthorization(ctx, audit.EventTypeAuthzFolderGrant,
//		&actorID, audit.ResourceTypeFolder, "12", audit.EventStatusSuccess, "granted")
//
// Actor and request metadata are filled from the request context.
//
// # Retention
//
// RetentionJob deletes events older than RetentionPolicy.RetentionDays on a
// cron schedule (90 days by default).
package audit
