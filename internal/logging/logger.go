// Package logging provides structured logging with trace ID support:
// request-scoped context fields, general-purpose leveled logging, and
// security-event logging (the latter satisfies
// internal/approval.AuditLogger).
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ContextKey string

const (
	TraceIDKey ContextKey = "trace_id"
	TenantKey  ContextKey = "tenant"
)

// Logger wraps logrus.Logger with service-scoped structured fields.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a Logger for service with the given level and format
// ("json" or "text").
func New(service, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}
	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, service: service}
}

// NewFromEnv constructs a logger from LOG_LEVEL/LOG_FORMAT, defaulting
// to info/json when unset.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// WithContext attaches service, trace ID, and tenant fields (when
// present in ctx) to a new log entry.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	if tenant, ok := ctx.Value(TenantKey).(string); ok && tenant != "" {
		entry = entry.WithField("tenant", tenant)
	}
	return entry
}

// NewTraceID generates a new trace ID.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID attaches a trace ID to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithTenant attaches a tenant identifier to ctx.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, TenantKey, tenant)
}

// LogSecurityEvent records a security-relevant event, satisfying
// internal/approval.AuditLogger (and any other package that needs the
// same seam). severity selects the log level: "high" events surface as
// errors so they aren't missed in a log stream tailed at info level,
// "medium" and anything else log as warnings.
func (l *Logger) LogSecurityEvent(ctx context.Context, eventType string, details map[string]any, severity string) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"event_type": eventType,
		"severity":   severity,
	})
	for k, v := range details {
		entry = entry.WithField(k, v)
	}

	if severity == "high" {
		entry.Error("security event")
		return
	}
	entry.Warn("security event")
}

// LogAudit logs a resource-level audit event.
func (l *Logger) LogAudit(ctx context.Context, action, resource, resourceID, result string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"action":      action,
		"resource":    resource,
		"resource_id": resourceID,
		"result":      result,
		"audit":       true,
	}).Info("audit event")
}

// Info logs an info-level message with structured fields.
func (l *Logger) Info(ctx context.Context, message string, fields map[string]any) {
	l.WithContext(ctx).WithFields(fields).Info(message)
}

// Warn logs a warning-level message with structured fields.
func (l *Logger) Warn(ctx context.Context, message string, fields map[string]any) {
	l.WithContext(ctx).WithFields(fields).Warn(message)
}

// Error logs an error-level message, attaching err when non-nil.
func (l *Logger) Error(ctx context.Context, message string, err error, fields map[string]any) {
	entry := l.WithContext(ctx)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.WithFields(fields).Error(message)
}
