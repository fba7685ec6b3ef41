// Package logging provides structured logging with execution-scoped
// context propagation for the workflow runtime.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context values carried alongside a trace.
type ContextKey string

const (
	TraceIDKey     ContextKey = "trace_id"
	WorkflowIDKey  ContextKey = "workflow_id"
	ExecutionIDKey ContextKey = "execution_id"
	NodeIDKey      ContextKey = "node_id"
)

// Logger wraps logrus.Logger with the runtime's field conventions.
type Logger struct {
	*logrus.Logger
	component string
}

// New creates a new Logger instance for the named component ("credential",
// "resource", "sandbox", "action", "engine", ...).
func New(component, level, format string) *Logger {
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

	return &Logger{Logger: logger, component: component}
}

// NewFromEnv constructs a logger using LOG_LEVEL and LOG_FORMAT environment
// variables, defaulting to "info" and "json".
func NewFromEnv(component string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(component, level, format)
}

// WithContext creates a log entry carrying whatever execution-scoped ids
// are present in ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("component", l.component)
	if v := ctx.Value(TraceIDKey); v != nil {
		entry = entry.WithField("trace_id", v)
	}
	if v := ctx.Value(WorkflowIDKey); v != nil {
		entry = entry.WithField("workflow_id", v)
	}
	if v := ctx.Value(ExecutionIDKey); v != nil {
		entry = entry.WithField("execution_id", v)
	}
	if v := ctx.Value(NodeIDKey); v != nil {
		entry = entry.WithField("node_id", v)
	}
	return entry
}

// WithFields creates a log entry with the component field plus custom
// fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["component"] = l.component
	return l.Logger.WithFields(fields)
}

// Context helpers.

func NewTraceID() string { return uuid.New().String() }

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

func WithWorkflow(ctx context.Context, workflowID, executionID string) context.Context {
	ctx = context.WithValue(ctx, WorkflowIDKey, workflowID)
	return context.WithValue(ctx, ExecutionIDKey, executionID)
}

func WithNode(ctx context.Context, nodeID string) context.Context {
	return context.WithValue(ctx, NodeIDKey, nodeID)
}

// Domain-specific structured events.

// LogNodeEvent logs a NodeStarted/NodeCompleted/NodeFailed event.
func (l *Logger) LogNodeEvent(ctx context.Context, event, actionKey string, duration time.Duration, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"action":      actionKey,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error(event)
		return
	}
	entry.Info(event)
}

// LogCircuitTransition logs a circuit breaker state change.
func (l *Logger) LogCircuitTransition(service, from, to string) {
	l.WithFields(logrus.Fields{
		"service":    service,
		"from_state": from,
		"to_state":   to,
	}).Warn("circuit breaker state changed")
}

// LogPoolEvent logs a resource pool lifecycle event (create/destroy/health
// transition).
func (l *Logger) LogPoolEvent(pool, event string, fields map[string]interface{}) {
	f := logrus.Fields{"pool": pool, "event": event}
	for k, v := range fields {
		f[k] = v
	}
	l.WithFields(map[string]interface{}(f)).Info("resource pool event")
}

// LogCredentialEvent logs a credential lifecycle event (issued/refreshed/
// rotated/revoked), never including secret bytes.
func (l *Logger) LogCredentialEvent(ctx context.Context, credentialID, event string, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"credential_id": credentialID,
		"event":         event,
	})
	if err != nil {
		entry.WithError(err).Error("credential event failed")
		return
	}
	entry.Info("credential event")
}

// LogSandboxViolation logs a denied capability check.
func (l *Logger) LogSandboxViolation(ctx context.Context, nodeID, capability string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"node_id":    nodeID,
		"capability": capability,
	}).Warn("sandbox violation")
}

// LogClamped records that a resilience parameter was clamped to a safe
// bound.
func (l *Logger) LogClamped(parameter string, requested, applied float64) {
	l.WithFields(logrus.Fields{
		"parameter": parameter,
		"requested": requested,
		"applied":   applied,
	}).Warn("resilience parameter clamped")
}
