// Package oteladapters provides OpenTelemetry adapters for the simulation
// observability interfaces. They give plug-and-play logging, metrics, and
// tracing to users who run the simulator next to an OpenTelemetry stack
// without having to implement the interfaces themselves.
package oteladapters

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"

	"github.com/Hburdack/happy-button-sub001/simulation"
)

// SlogBridgeLogger implements simulation.ContextualLogger using the
// OpenTelemetry slog bridge. This is the recommended implementation as it
// provides automatic trace correlation on every tick log line while staying
// compatible with Go's standard log/slog package.
type SlogBridgeLogger struct {
	logger *slog.Logger
}

// NewSlogBridgeLogger creates a contextual logger backed by the
// OpenTelemetry slog bridge, using the global LoggerProvider.
func NewSlogBridgeLogger(name string) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: otelslog.NewLogger(name)}
}

// NewSlogBridgeLoggerWithHandler creates a contextual logger from an
// explicit slog.Handler. No trace correlation is added; the handler is used
// as-is. Use NewSlogBridgeLogger when correlation is wanted.
func NewSlogBridgeLoggerWithHandler(handler slog.Handler) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: slog.New(handler)}
}

// DebugContext logs a debug message with context.
func (l *SlogBridgeLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, args...)
}

// InfoContext logs an info message with context.
func (l *SlogBridgeLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, args...)
}

// WarnContext logs a warning message with context.
func (l *SlogBridgeLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, args...)
}

// ErrorContext logs an error message with context.
func (l *SlogBridgeLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, args...)
}

// Ensure SlogBridgeLogger implements simulation.ContextualLogger.
var _ simulation.ContextualLogger = (*SlogBridgeLogger)(nil)

// OTelLogger implements simulation.ContextualLogger using the OpenTelemetry
// logging API directly. It trades the convenience of the slog bridge for
// direct control over log record creation.
type OTelLogger struct {
	logger log.Logger
}

// NewOTelLogger creates a contextual logger emitting through the given
// OpenTelemetry logger.
func NewOTelLogger(logger log.Logger) *OTelLogger {
	return &OTelLogger{logger: logger}
}

// DebugContext logs a debug message with context using the OpenTelemetry log API.
func (l *OTelLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityDebug, msg, args...)
}

// InfoContext logs an info message with context using the OpenTelemetry log API.
func (l *OTelLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityInfo, msg, args...)
}

// WarnContext logs a warning message with context using the OpenTelemetry log API.
func (l *OTelLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityWarn, msg, args...)
}

// ErrorContext logs an error message with context using the OpenTelemetry log API.
func (l *OTelLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityError, msg, args...)
}

// emit builds an OpenTelemetry log record with the given severity. Args are
// interpreted as slog-style key-value pairs; dangling keys are dropped.
func (l *OTelLogger) emit(ctx context.Context, severity log.Severity, msg string, args ...any) {
	record := log.Record{}
	record.SetSeverity(severity)
	record.SetBody(log.StringValue(msg))

	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			record.AddAttributes(log.String(key, stringValue(args[i+1])))
		}
	}

	l.logger.Emit(ctx, record)
}

// stringValue converts any value to a string for OpenTelemetry attributes.
func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}

	return slog.AnyValue(v).String()
}

// Ensure OTelLogger implements simulation.ContextualLogger.
var _ simulation.ContextualLogger = (*OTelLogger)(nil)
