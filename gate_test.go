package gate_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/gate"
	"github.com/xraph/gate/breaker"
	"github.com/xraph/gate/middleware"
	"github.com/xraph/gate/op"
	"github.com/xraph/gate/queue"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() gate.Config {
	return gate.Config{
		MinSpacing:         time.Millisecond,
		QueueWaitTimeout:   5 * time.Second,
		ExecutionTimeout:   5 * time.Second,
		RateLimitThreshold: 3,
		CircuitCooldown:    time.Minute,
	}
}

// lifecycleExt records the lifecycle events it observes.
type lifecycleExt struct {
	mu     sync.Mutex
	events []string
}

func (l *lifecycleExt) Name() string { return "lifecycle-recorder" }

func (l *lifecycleExt) add(event string) error {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	return nil
}

func (l *lifecycleExt) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *lifecycleExt) OnOperationEnqueued(_ context.Context, _ *op.Info) error {
	return l.add("enqueued")
}

func (l *lifecycleExt) OnOperationStarted(_ context.Context, _ *op.Info) error {
	return l.add("started")
}

func (l *lifecycleExt) OnOperationCompleted(_ context.Context, _ *op.Info, _ time.Duration) error {
	return l.add("completed")
}

func (l *lifecycleExt) OnBreakerOpened(_ context.Context, _ int, _ time.Time) error {
	return l.add("breaker_opened")
}

func (l *lifecycleExt) OnShutdown(_ context.Context) error {
	return l.add("shutdown")
}

// ---------------------------------------------------------------------------
// End to end
// ---------------------------------------------------------------------------

func TestGate_RoundTrip(t *testing.T) {
	defer leaktest.Check(t)()

	g := gate.New[string](fastConfig(), gate.WithLogger(discardLogger()))

	fut, err := g.Submit(func(_ context.Context) (string, error) {
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	v, err := fut.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected outcome error: %v", err)
	}
	if v != "hello" {
		t.Fatalf("expected %q, got %q", "hello", v)
	}
}

func TestGate_DefaultsApplied(t *testing.T) {
	g := gate.New[int](gate.Config{}, gate.WithLogger(discardLogger()))

	cfg := g.Config()
	def := gate.DefaultConfig()
	if cfg.MinSpacing != def.MinSpacing {
		t.Fatalf("expected default MinSpacing %v, got %v", def.MinSpacing, cfg.MinSpacing)
	}
	if cfg.RateLimitThreshold != def.RateLimitThreshold {
		t.Fatalf("expected default threshold %d, got %d", def.RateLimitThreshold, cfg.RateLimitThreshold)
	}
	if g.ID().IsNil() {
		t.Fatal("expected a gate instance ID")
	}
}

func TestGate_RateLimitRunOpensCircuit(t *testing.T) {
	hooks := &lifecycleExt{}
	cfg := fastConfig()
	cfg.MinSpacing = 50 * time.Millisecond
	g := gate.New[int](cfg,
		gate.WithLogger(discardLogger()),
		gate.WithExtensions(hooks),
	)

	rlErr := &op.Failure{Kind: op.KindRateLimited, Status: 429, Err: errors.New("too many requests")}

	var futs []*queue.Future[int]
	for range 3 {
		fut, err := g.Submit(func(_ context.Context) (int, error) {
			return 0, rlErr
		})
		if err != nil {
			t.Fatalf("unexpected submit error: %v", err)
		}
		futs = append(futs, fut)
	}

	var executed atomic.Bool
	fourth, err := g.Submit(func(_ context.Context) (int, error) {
		executed.Store(true)
		return 4, nil
	})
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	for _, fut := range futs {
		if _, werr := fut.Wait(context.Background()); !errors.Is(werr, error(rlErr)) {
			t.Fatalf("expected the downstream error through the future, got %v", werr)
		}
	}
	if _, werr := fourth.Wait(context.Background()); !errors.Is(werr, gate.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen for the queued survivor, got %v", werr)
	}
	if executed.Load() {
		t.Fatal("flushed operation must never execute")
	}

	// A new submission is rejected before enqueue with the remaining
	// cool-down exposed.
	var oe *breaker.OpenError
	if _, err := g.Submit(func(_ context.Context) (int, error) { return 0, nil }); !errors.As(err, &oe) {
		t.Fatalf("expected OpenError, got %v", err)
	}
	if oe.Remaining <= 0 {
		t.Fatalf("expected positive remaining, got %v", oe.Remaining)
	}

	events := hooks.snapshot()
	var sawOpen bool
	for _, e := range events {
		if e == "breaker_opened" {
			sawOpen = true
		}
	}
	if !sawOpen {
		t.Fatalf("expected breaker_opened event, got %v", events)
	}
}

func TestGate_ConcurrentSubmitsSingleFlight(t *testing.T) {
	defer leaktest.Check(t)()

	g := gate.New[int](fastConfig(), gate.WithLogger(discardLogger()))

	var inFlight, maxInFlight atomic.Int32

	var eg errgroup.Group
	for range 8 {
		eg.Go(func() error {
			fut, err := g.Submit(func(_ context.Context) (int, error) {
				cur := inFlight.Add(1)
				if prev := maxInFlight.Load(); cur > prev {
					maxInFlight.CompareAndSwap(prev, cur)
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return 1, nil
			})
			if err != nil {
				return err
			}
			_, werr := fut.Wait(context.Background())
			return werr
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if maxInFlight.Load() != 1 {
		t.Fatalf("expected single-flight execution, observed %d concurrent", maxInFlight.Load())
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestGate_LifecycleEvents(t *testing.T) {
	hooks := &lifecycleExt{}
	g := gate.New[int](fastConfig(),
		gate.WithLogger(discardLogger()),
		gate.WithExtensions(hooks),
	)

	fut, err := g.Submit(func(_ context.Context) (int, error) { return 1, nil })
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}
	if _, werr := fut.Wait(context.Background()); werr != nil {
		t.Fatalf("unexpected outcome error: %v", werr)
	}

	// Completed is emitted shortly after the future resolves.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		events := hooks.snapshot()
		if len(events) >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	events := hooks.snapshot()
	want := []string{"enqueued", "started", "completed"}
	if len(events) != len(want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, events)
		}
	}
}

func TestGate_Stop(t *testing.T) {
	defer leaktest.Check(t)()

	hooks := &lifecycleExt{}
	g := gate.New[int](fastConfig(),
		gate.WithLogger(discardLogger()),
		gate.WithExtensions(hooks),
	)

	started := make(chan struct{})
	release := make(chan struct{})
	blocker, err := g.Submit(func(_ context.Context) (int, error) {
		close(started)
		<-release
		return 1, nil
	})
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}
	<-started

	pendingFut, err := g.Submit(func(_ context.Context) (int, error) { return 2, nil })
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	if err := g.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}

	if _, werr := pendingFut.Wait(context.Background()); !errors.Is(werr, gate.ErrQueueCleared) {
		t.Fatalf("expected ErrQueueCleared, got %v", werr)
	}

	// In-flight work is not interrupted by Stop.
	close(release)
	if v, werr := blocker.Wait(context.Background()); werr != nil || v != 1 {
		t.Fatalf("expected (1, nil), got (%d, %v)", v, werr)
	}

	events := hooks.snapshot()
	var sawShutdown bool
	for _, e := range events {
		if e == "shutdown" {
			sawShutdown = true
		}
	}
	if !sawShutdown {
		t.Fatalf("expected shutdown event, got %v", events)
	}

	// The gate remains usable after Stop; it holds no background state.
	fut, err := g.Submit(func(_ context.Context) (int, error) { return 3, nil })
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}
	if v, werr := fut.Wait(context.Background()); werr != nil || v != 3 {
		t.Fatalf("expected (3, nil), got (%d, %v)", v, werr)
	}
}

func TestGate_RecoverIsAlwaysWired(t *testing.T) {
	g := gate.New[int](fastConfig(), gate.WithLogger(discardLogger()))

	fut, err := g.Submit(func(_ context.Context) (int, error) {
		panic("upstream client bug")
	})
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	if _, werr := fut.Wait(context.Background()); werr == nil {
		t.Fatal("expected the panic surfaced as an error")
	}

	// The loop survives the panic and keeps dispatching.
	ok, err := g.Submit(func(_ context.Context) (int, error) { return 7, nil })
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}
	if v, werr := ok.Wait(context.Background()); werr != nil || v != 7 {
		t.Fatalf("expected (7, nil), got (%d, %v)", v, werr)
	}
}

func TestGate_CustomMiddlewareRuns(t *testing.T) {
	var seen atomic.Int32
	tagging := func(ctx context.Context, _ *op.Info, next middleware.Handler) error {
		seen.Add(1)
		return next(ctx)
	}

	g := gate.New[int](fastConfig(),
		gate.WithLogger(discardLogger()),
		gate.WithMiddleware(tagging),
	)

	fut, err := g.Submit(func(_ context.Context) (int, error) { return 1, nil })
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}
	if _, werr := fut.Wait(context.Background()); werr != nil {
		t.Fatalf("unexpected outcome error: %v", werr)
	}
	if seen.Load() != 1 {
		t.Fatalf("expected middleware to run once, got %d", seen.Load())
	}
}
