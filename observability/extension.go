package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/gate/ext"
	"github.com/xraph/gate/op"
)

// meterName is the instrumentation scope name for gate metrics.
const meterName = "github.com/xraph/gate"

// Compile-time interface checks.
var (
	_ ext.Extension          = (*MetricsExtension)(nil)
	_ ext.OperationEnqueued  = (*MetricsExtension)(nil)
	_ ext.OperationStarted   = (*MetricsExtension)(nil)
	_ ext.OperationCompleted = (*MetricsExtension)(nil)
	_ ext.OperationFailed    = (*MetricsExtension)(nil)
	_ ext.OperationExpired   = (*MetricsExtension)(nil)
	_ ext.BreakerOpened      = (*MetricsExtension)(nil)
	_ ext.BreakerClosed      = (*MetricsExtension)(nil)
	_ ext.QueueCleared       = (*MetricsExtension)(nil)
)

// MetricsExtension records gate lifecycle metrics. Register it as an
// extension to automatically track admission rates, outcome counts,
// queue-wait latency, expiries, clears, and breaker transitions.
//
// Instruments:
//   - gate.operations.enqueued (Int64Counter)
//   - gate.operations.completed (Int64Counter)
//   - gate.operations.failed (Int64Counter), attribute failure_kind
//   - gate.operations.expired (Int64Counter)
//   - gate.operations.cleared (Int64Counter)
//   - gate.queue.wait (Float64Histogram, seconds)
//   - gate.breaker.transitions (Int64Counter), attribute state
type MetricsExtension struct {
	enqueued    metric.Int64Counter
	completed   metric.Int64Counter
	failed      metric.Int64Counter
	expired     metric.Int64Counter
	cleared     metric.Int64Counter
	queueWait   metric.Float64Histogram
	transitions metric.Int64Counter
}

// NewMetricsExtension creates the extension using the global OTel
// MeterProvider. With no provider configured the instruments are noops.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates the extension with a specific
// meter. This variant allows injecting a MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// On instrument-creation errors the OTel API returns noop
	// instruments, so the extension degrades gracefully.
	m.enqueued, _ = meter.Int64Counter("gate.operations.enqueued",
		metric.WithDescription("Operations accepted into the queue"),
		metric.WithUnit("{operation}"),
	)
	m.completed, _ = meter.Int64Counter("gate.operations.completed",
		metric.WithDescription("Operations that resolved successfully"),
		metric.WithUnit("{operation}"),
	)
	m.failed, _ = meter.Int64Counter("gate.operations.failed",
		metric.WithDescription("Operations that failed"),
		metric.WithUnit("{operation}"),
	)
	m.expired, _ = meter.Int64Counter("gate.operations.expired",
		metric.WithDescription("Operations dropped after exceeding the queue-wait timeout"),
		metric.WithUnit("{operation}"),
	)
	m.cleared, _ = meter.Int64Counter("gate.operations.cleared",
		metric.WithDescription("Operations dropped by administrative clears"),
		metric.WithUnit("{operation}"),
	)
	m.queueWait, _ = meter.Float64Histogram("gate.queue.wait",
		metric.WithDescription("Time operations spent queued before dispatch"),
		metric.WithUnit("s"),
	)
	m.transitions, _ = meter.Int64Counter("gate.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)

	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "gate-metrics" }

// OnOperationEnqueued implements ext.OperationEnqueued.
func (m *MetricsExtension) OnOperationEnqueued(ctx context.Context, _ *op.Info) error {
	m.enqueued.Add(ctx, 1)
	return nil
}

// OnOperationStarted implements ext.OperationStarted, recording how
// long the operation waited in queue.
func (m *MetricsExtension) OnOperationStarted(ctx context.Context, info *op.Info) error {
	m.queueWait.Record(ctx, info.Waited(time.Now()).Seconds())
	return nil
}

// OnOperationCompleted implements ext.OperationCompleted.
func (m *MetricsExtension) OnOperationCompleted(ctx context.Context, _ *op.Info, _ time.Duration) error {
	m.completed.Add(ctx, 1)
	return nil
}

// OnOperationFailed implements ext.OperationFailed.
func (m *MetricsExtension) OnOperationFailed(ctx context.Context, _ *op.Info, opErr error) error {
	m.failed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("failure_kind", op.KindOf(opErr).String()),
	))
	return nil
}

// OnOperationExpired implements ext.OperationExpired.
func (m *MetricsExtension) OnOperationExpired(ctx context.Context, _ *op.Info, _ time.Duration) error {
	m.expired.Add(ctx, 1)
	return nil
}

// OnBreakerOpened implements ext.BreakerOpened.
func (m *MetricsExtension) OnBreakerOpened(ctx context.Context, _ int, _ time.Time) error {
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", "open")))
	return nil
}

// OnBreakerClosed implements ext.BreakerClosed.
func (m *MetricsExtension) OnBreakerClosed(ctx context.Context) error {
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", "closed")))
	return nil
}

// OnQueueCleared implements ext.QueueCleared.
func (m *MetricsExtension) OnQueueCleared(ctx context.Context, dropped int) error {
	m.cleared.Add(ctx, int64(dropped))
	return nil
}
