package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Hburdack/happy-button-sub001/simulation"
)

// TracingCollector implements simulation.TracingCollector using the
// OpenTelemetry tracing API. Every simulation tick and delivery runs inside
// a span when this collector is wired into the engine.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates an OpenTelemetry tracing collector. The
// tracer should come from your TracerProvider.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan creates a new span with the given name and attributes and
// returns the span-carrying context together with a SpanContext wrapper.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, simulation.SpanContext) {
	spanOptions := make([]trace.SpanStartOption, 0, len(attrs))
	for key, value := range attrs {
		spanOptions = append(spanOptions, trace.WithAttributes(attribute.String(key, value)))
	}

	spanCtx, span := t.tracer.Start(ctx, name, spanOptions...)

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan completes a span with the given status and final attributes.
// Span contexts not created by this collector are ignored.
func (t *TracingCollector) FinishSpan(spanCtx simulation.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}

	for key, value := range attrs {
		otelSpanCtx.span.SetAttributes(attribute.String(key, value))
	}

	otelSpanCtx.setSpanStatus(status)
	otelSpanCtx.span.End()
}

// Ensure TracingCollector implements simulation.TracingCollector.
var _ simulation.TracingCollector = (*TracingCollector)(nil)

// OTelSpanContext implements simulation.SpanContext by wrapping an
// OpenTelemetry span.
type OTelSpanContext struct {
	span trace.Span
}

// SetStatus sets the span status from a generic status string.
func (s *OTelSpanContext) SetStatus(status string) {
	s.setSpanStatus(status)
}

// AddAttribute adds a string attribute to the span.
func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

// setSpanStatus maps the simulator's status strings to OpenTelemetry status
// codes. Unknown strings are preserved as a span attribute.
func (s *OTelSpanContext) setSpanStatus(status string) {
	switch status {
	case "ok", "success", "completed":
		s.span.SetStatus(codes.Ok, "")
	case "error", "failed", "failure":
		s.span.SetStatus(codes.Error, "Operation failed")
	case "cancelled", "canceled":
		s.span.SetStatus(codes.Error, "Operation cancelled")
	case "timeout":
		s.span.SetStatus(codes.Error, "Operation timed out")
	case "dropped":
		s.span.SetStatus(codes.Error, "Delivery dropped")
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

// Ensure OTelSpanContext implements simulation.SpanContext.
var _ simulation.SpanContext = (*OTelSpanContext)(nil)
