package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopLogger_NeverPanics(t *testing.T) {
	l := NewNoopLogger()
	ctx := context.Background()
	assert.NotPanics(t, func() {
		l.Debug(ctx, "msg", "k", "v")
		l.Info(ctx, "msg")
		l.Warn(ctx, "msg")
		l.Error(ctx, "msg")
	})
}

func TestNoopMetrics_NeverPanics(t *testing.T) {
	m := NewNoopMetrics()
	assert.NotPanics(t, func() {
		m.IncCounter("x", 1, "tag", "v")
		m.RecordTimer("x", time.Second)
		m.RecordGauge("x", 1.5)
	})
}

func TestNoopTracer_StartReturnsUsableSpan(t *testing.T) {
	tr := NewNoopTracer()
	ctx, span := tr.Start(context.Background(), "op")
	require.NotNil(t, span)
	assert.NotPanics(t, func() {
		span.AddEvent("event")
		span.RecordError(assert.AnError)
		span.End()
	})
	_ = ctx
}

func TestOperation_SpanName(t *testing.T) {
	op := Operation{Component: "pipeline", Name: "execute"}
	assert.Equal(t, "pipeline.execute", op.SpanName())
}

func TestNew_DefaultsNilDependenciesToNoop(t *testing.T) {
	obs := New(nil, nil, nil)
	assert.IsType(t, NoopLogger{}, obs.Logger)
	assert.IsType(t, NoopMetrics{}, obs.Metrics)
	assert.IsType(t, NoopTracer{}, obs.Tracer)
}

type captureLogger struct {
	level string
	msg   string
}

func (c *captureLogger) Debug(context.Context, string, ...any) {}
func (c *captureLogger) Info(_ context.Context, msg string, _ ...any) { c.level, c.msg = "info", msg }
func (c *captureLogger) Warn(_ context.Context, msg string, _ ...any) { c.level, c.msg = "warn", msg }
func (c *captureLogger) Error(_ context.Context, msg string, _ ...any) {
	c.level, c.msg = "error", msg
}

type captureMetrics struct {
	counters []string
}

func (c *captureMetrics) IncCounter(name string, _ float64, _ ...string) {
	c.counters = append(c.counters, name)
}
func (c *captureMetrics) RecordTimer(string, time.Duration, ...string) {}
func (c *captureMetrics) RecordGauge(string, float64, ...string)       {}

func TestRecord_RoutesErrorOutcomeToErrorLogAndErrorCounter(t *testing.T) {
	logger := &captureLogger{}
	metrics := &captureMetrics{}
	obs := New(logger, metrics, nil)

	obs.Record(context.Background(), Event{
		Op:      Operation{Component: "registry", Name: "list_workloads"},
		Outcome: OutcomeError,
		Err:     assert.AnError,
	})

	assert.Equal(t, "error", logger.level)
	assert.Contains(t, metrics.counters, "registry.operation.error")
}

func TestRecord_RoutesSuccessOutcomeToInfoLogAndSuccessCounter(t *testing.T) {
	logger := &captureLogger{}
	metrics := &captureMetrics{}
	obs := New(logger, metrics, nil)

	obs.Record(context.Background(), Event{
		Op:      Operation{Component: "sandbox", Name: "run"},
		Outcome: OutcomeSuccess,
	})

	assert.Equal(t, "info", logger.level)
	assert.Contains(t, metrics.counters, "sandbox.operation.success")
}

func TestRecord_RoutesFallbackOutcomeToWarnLog(t *testing.T) {
	logger := &captureLogger{}
	obs := New(logger, &captureMetrics{}, nil)

	obs.Record(context.Background(), Event{
		Op:      Operation{Component: "sandbox", Name: "run"},
		Outcome: OutcomeFallback,
	})

	assert.Equal(t, "warn", logger.level)
}

func TestEndSpan_RecordsErrorWhenPresent(t *testing.T) {
	obs := New(nil, nil, nil)
	_, span := obs.StartSpan(context.Background(), Operation{Component: "x", Name: "y"})
	assert.NotPanics(t, func() {
		obs.EndSpan(span, OutcomeError, assert.AnError)
	})
}
