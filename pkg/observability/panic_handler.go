package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic in a background job and logs it.
//
//	func (j *RetentionJob) Run() {
//	    defer observability.RecoverPanic(j.logger, "audit retention")
//	    ...
//	}
//
// The panic is not re-raised. Scheduled jobs run on goroutines owned by the
// scheduler, where an unrecovered panic would terminate the process.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logger.WithFields(map[string]interface{}{
			"panic":   r,
			"stack":   string(debug.Stack()),
			"context": where,
		}).Error("PANIC recovered")
	}
}
