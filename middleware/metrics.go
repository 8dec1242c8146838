package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/gate/op"
)

// meterName is the instrumentation scope name for gate metrics.
const meterName = "github.com/xraph/gate"

// Metrics returns middleware that records per-operation execution metrics
// using the global OTel MeterProvider. If no MeterProvider is configured,
// noop instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - gate.operation.duration (Float64Histogram): execution time in
//     seconds, with attributes: status ("ok" or "error"), failure_kind
//   - gate.operation.executions (Int64Counter): total executions,
//     with attributes: status ("ok" or "error"), failure_kind
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"gate.operation.duration",
		metric.WithDescription("Duration of operation execution in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	executions, eErr := meter.Int64Counter(
		"gate.operation.executions",
		metric.WithDescription("Total number of operation executions"),
		metric.WithUnit("{execution}"),
	)
	_ = eErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, info *op.Info, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		kind := ""
		if err != nil {
			status = "error"
			kind = op.KindOf(err).String()
		}

		attrs := metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("failure_kind", kind),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}
