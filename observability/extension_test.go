package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/gate/id"
	"github.com/xraph/gate/observability"
	"github.com/xraph/gate/op"
)

func setupTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, mp
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	metric := findMetric(rm, name)
	if metric == nil {
		t.Fatalf("%s metric not found", name)
	}
	sum, ok := metric.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64] data type", name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func newTestInfo() *op.Info {
	return &op.Info{ID: id.NewOpID(), EnqueuedAt: time.Now().Add(-25 * time.Millisecond)}
}

func TestMetricsExtension_Name(t *testing.T) {
	m := observability.NewMetricsExtension()
	if m.Name() != "gate-metrics" {
		t.Errorf("unexpected name %q", m.Name())
	}
}

func TestMetricsExtension_CountsLifecycle(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))
	ctx := context.Background()

	if err := m.OnOperationEnqueued(ctx, newTestInfo()); err != nil {
		t.Fatalf("enqueued hook: %v", err)
	}
	if err := m.OnOperationEnqueued(ctx, newTestInfo()); err != nil {
		t.Fatalf("enqueued hook: %v", err)
	}
	if err := m.OnOperationCompleted(ctx, newTestInfo(), 10*time.Millisecond); err != nil {
		t.Fatalf("completed hook: %v", err)
	}
	if err := m.OnOperationExpired(ctx, newTestInfo(), 130*time.Second); err != nil {
		t.Fatalf("expired hook: %v", err)
	}
	if err := m.OnQueueCleared(ctx, 3); err != nil {
		t.Fatalf("cleared hook: %v", err)
	}

	rm := collectMetrics(t, reader)
	if got := sumValue(t, rm, "gate.operations.enqueued"); got != 2 {
		t.Errorf("enqueued: expected 2, got %d", got)
	}
	if got := sumValue(t, rm, "gate.operations.completed"); got != 1 {
		t.Errorf("completed: expected 1, got %d", got)
	}
	if got := sumValue(t, rm, "gate.operations.expired"); got != 1 {
		t.Errorf("expired: expected 1, got %d", got)
	}
	if got := sumValue(t, rm, "gate.operations.cleared"); got != 3 {
		t.Errorf("cleared: expected 3, got %d", got)
	}
}

func TestMetricsExtension_FailureKindAttribute(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))

	failure := &op.Failure{Kind: op.KindRateLimited, Status: 429, Err: errors.New("too many requests")}
	if err := m.OnOperationFailed(context.Background(), newTestInfo(), failure); err != nil {
		t.Fatalf("failed hook: %v", err)
	}

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "gate.operations.failed")
	if metric == nil {
		t.Fatal("gate.operations.failed metric not found")
	}
	sum, ok := metric.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("expected Sum[int64] data type")
	}
	if len(sum.DataPoints) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(sum.DataPoints))
	}
	dp := sum.DataPoints[0]
	if kind, ok := dp.Attributes.Value(attribute.Key("failure_kind")); !ok || kind.AsString() != "rate_limited" {
		t.Errorf("expected failure_kind=rate_limited attribute, got %v", dp.Attributes)
	}
}

func TestMetricsExtension_QueueWaitHistogram(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))

	if err := m.OnOperationStarted(context.Background(), newTestInfo()); err != nil {
		t.Fatalf("started hook: %v", err)
	}

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "gate.queue.wait")
	if metric == nil {
		t.Fatal("gate.queue.wait metric not found")
	}
	hist, ok := metric.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("expected Histogram[float64] data type")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points recorded for queue wait")
	}
	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("expected count=1, got %d", dp.Count)
	}
	if dp.Sum < 0.02 {
		t.Errorf("expected queue wait of at least 20ms, got %fs", dp.Sum)
	}
}

func TestMetricsExtension_BreakerTransitions(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))
	ctx := context.Background()

	if err := m.OnBreakerOpened(ctx, 3, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("opened hook: %v", err)
	}
	if err := m.OnBreakerClosed(ctx); err != nil {
		t.Fatalf("closed hook: %v", err)
	}

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "gate.breaker.transitions")
	if metric == nil {
		t.Fatal("gate.breaker.transitions metric not found")
	}
	sum, ok := metric.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("expected Sum[int64] data type")
	}

	states := map[string]int64{}
	for _, dp := range sum.DataPoints {
		if state, ok := dp.Attributes.Value(attribute.Key("state")); ok {
			states[state.AsString()] = dp.Value
		}
	}
	if states["open"] != 1 {
		t.Errorf("expected 1 open transition, got %d", states["open"])
	}
	if states["closed"] != 1 {
		t.Errorf("expected 1 closed transition, got %d", states["closed"])
	}
}
