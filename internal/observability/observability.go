// Package observability defines the logging, metrics, and tracing seams used
// by the review session and the registry, with process-local exporters.
package observability

import (
	"context"
	"time"
)

// Logger is the structured logging seam. Arguments are alternating key-value
// pairs in the manner of log/slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsRecorder aggregates operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TraceSpan finalizes one traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer opens spans around operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// NopLogger discards all log output.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// NopMetrics discards all observations.
type NopMetrics struct{}

// Observe implements MetricsRecorder.
func (NopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// MultiMetrics fans observations out to several recorders.
type MultiMetrics []MetricsRecorder

// Observe implements MetricsRecorder.
func (m MultiMetrics) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, rec := range m {
		rec.Observe(ctx, operation, success, duration)
	}
}

// NopTracer produces spans that do nothing.
type NopTracer struct{}

// Start implements Tracer.
func (NopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, nopSpan{}
}

type nopSpan struct{}

func (nopSpan) End(error) {}
