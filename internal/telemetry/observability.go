package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation identifies a unit of work for logging and metrics purposes.
// Component prefixes its span and metric names, e.g. "discovery", "registry",
// "session", "sandbox", "pipeline".
type Operation struct {
	Component string
	Name      string
}

// SpanName returns the dotted span name used for tracing.
func (o Operation) SpanName() string { return o.Component + "." + o.Name }

// Outcome is the result classification of an operation, used to route log
// severity and pick the metric counter to increment.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeError    Outcome = "error"
	OutcomeFallback Outcome = "fallback"
)

// Event is a structured record of one completed operation.
type Event struct {
	Op       Operation
	Duration time.Duration
	Outcome  Outcome
	Err      error
	Attrs    []any // flat key, value, key, value ...
}

// Observability bundles a Logger, Metrics, and Tracer behind the naming
// conventions shared by every component package. A nil dependency is
// replaced by its no-op counterpart, so callers may construct it with
// whatever subset of backends they were given.
type Observability struct {
	Logger  Logger
	Metrics Metrics
	Tracer  Tracer
}

// New builds an Observability, defaulting any nil dependency to a no-op.
func New(logger Logger, metrics Metrics, tracer Tracer) *Observability {
	o := &Observability{Logger: logger, Metrics: metrics, Tracer: tracer}
	if o.Logger == nil {
		o.Logger = NewNoopLogger()
	}
	if o.Metrics == nil {
		o.Metrics = NewNoopMetrics()
	}
	if o.Tracer == nil {
		o.Tracer = NewNoopTracer()
	}
	return o
}

// StartSpan starts a span named "<component>.<operation>".
func (o *Observability) StartSpan(ctx context.Context, op Operation, attrs ...attribute.KeyValue) (context.Context, Span) {
	return o.Tracer.Start(ctx, op.SpanName(), trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

// EndSpan closes a span, recording err if non-nil.
func (o *Observability) EndSpan(span Span, outcome Outcome, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, string(outcome))
	}
	span.End()
}

// Record logs the event and increments the matching counter/histogram.
func (o *Observability) Record(ctx context.Context, ev Event) {
	keyvals := append([]any{"operation", ev.Op.Name, "outcome", string(ev.Outcome), "duration_ms", ev.Duration.Milliseconds()}, ev.Attrs...)
	if ev.Err != nil {
		keyvals = append(keyvals, "error", ev.Err.Error())
	}
	msg := ev.Op.Component + " operation completed"
	switch ev.Outcome {
	case OutcomeError:
		o.Logger.Error(ctx, msg, keyvals...)
	case OutcomeFallback:
		o.Logger.Warn(ctx, msg, keyvals...)
	default:
		o.Logger.Info(ctx, msg, keyvals...)
	}

	tags := []string{"operation", ev.Op.Name}
	o.Metrics.RecordTimer(ev.Op.Component+".operation.duration", ev.Duration, tags...)
	switch ev.Outcome {
	case OutcomeSuccess:
		o.Metrics.IncCounter(ev.Op.Component+".operation.success", 1, tags...)
	case OutcomeError:
		o.Metrics.IncCounter(ev.Op.Component+".operation.error", 1, tags...)
	case OutcomeFallback:
		o.Metrics.IncCounter(ev.Op.Component+".operation.fallback", 1, tags...)
	}
}
