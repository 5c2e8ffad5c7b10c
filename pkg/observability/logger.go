package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/folio/pkg/contextkeys"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (l LogLevel) toLogrusLevel() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLogLevel converts a level name into a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides structured JSON logging on top of logrus
type Logger struct {
	entry *logrus.Entry
}

// NewLogger creates a new structured JSON logger
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	base := logrus.New()
	base.SetOutput(output)
	base.SetLevel(level.toLogrusLevel())
	base.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})

	return &Logger{entry: logrus.NewEntry(base)}
}

// SetLevel changes the level of this logger and every logger derived from it.
func (l *Logger) SetLevel(level LogLevel) {
	l.entry.Logger.SetLevel(level.toLogrusLevel())
}

// Level returns the current level
func (l *Logger) Level() LogLevel {
	switch l.entry.Logger.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return DebugLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Entry exposes the underlying logrus entry
func (l *Logger) Entry() *logrus.Entry {
	return l.entry
}

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields adds multiple fields to the logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithError adds an error to the logger context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) Debug(message string) {
	l.entry.Debug(message)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.entry.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Info(message string) {
	l.entry.Info(message)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.entry.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(message string) {
	l.entry.Warn(message)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.entry.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(message string) {
	l.entry.Error(message)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.entry.Error(fmt.Sprintf(format, args...))
}

var defaultLogger = NewLogger(InfoLevel, os.Stdout)

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return contextkeys.WithLogger(ctx, logger)
}

// GetLogger retrieves the logger from context
func GetLogger(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextkeys.LoggerKey).(*Logger); ok {
		return logger
	}
	return defaultLogger
}

// FromContext returns the context logger enriched with request and user IDs
func FromContext(ctx context.Context) *Logger {
	logger := GetLogger(ctx)

	if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
		logger = logger.WithField("request_id", requestID)
	}

	if userID, ok := contextkeys.GetUserID(ctx); ok {
		logger = logger.WithField("user_id", userID)
	}

	return logger
}
