package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/gate/breaker"
	"github.com/xraph/gate/ext"
	"github.com/xraph/gate/id"
	"github.com/xraph/gate/middleware"
	"github.com/xraph/gate/queue"
)

// Gate is the assembled admission layer for one upstream: a FIFO queue
// with a single dispatch loop, guarded by a circuit breaker, with
// middleware and lifecycle extensions wired in.
//
// Create one with New and inject it into the request-handling layer.
// A Gate is not a process-wide singleton; its lifecycle belongs to the
// host application.
type Gate[T any] struct {
	gateID  id.GateID
	config  Config
	logger  *slog.Logger
	hooks   *ext.Registry
	breaker *breaker.Breaker
	queue   *queue.Queue[T]
}

// New creates a Gate from cfg and options. Zero Config fields fall back
// to DefaultConfig values.
func New[T any](cfg Config, opts ...Option) *Gate[T] {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	cfg = cfg.withDefaults()

	gateID := id.NewGateID()
	logger := s.logger.With(slog.String("gate_id", gateID.String()))

	hooks := ext.NewRegistry(logger)
	for _, e := range s.extensions {
		hooks.Register(e)
	}

	br := breaker.New(cfg.RateLimitThreshold, cfg.CircuitCooldown,
		breaker.WithLogger(logger),
		breaker.WithNowFunc(s.nowFn),
		breaker.WithOnOpen(func(consecutive int, until time.Time) {
			hooks.EmitBreakerOpened(context.Background(), consecutive, until)
		}),
		breaker.WithOnClose(func() {
			hooks.EmitBreakerClosed(context.Background())
		}),
	)

	// Recover is always outermost so panics in operations or in other
	// middleware surface as ordinary errors.
	chain := middleware.Chain(append(
		[]middleware.Middleware{middleware.Recover(logger)},
		s.mws...,
	)...)

	qopts := []queue.Option{
		queue.WithMinSpacing(cfg.MinSpacing),
		queue.WithQueueWaitTimeout(cfg.QueueWaitTimeout),
		queue.WithExecutionTimeout(cfg.ExecutionTimeout),
		queue.WithNowFunc(s.nowFn),
		queue.WithMiddleware(chain),
	}
	if cfg.SubmitRate > 0 {
		qopts = append(qopts, queue.WithSubmitLimit(cfg.SubmitRate, cfg.SubmitBurst))
	}

	return &Gate[T]{
		gateID:  gateID,
		config:  cfg,
		logger:  logger,
		hooks:   hooks,
		breaker: br,
		queue:   queue.New[T](br, hooks, logger, qopts...),
	}
}

// ID returns the gate's unique instance identifier.
func (g *Gate[T]) ID() id.GateID { return g.gateID }

// Config returns a copy of the gate's configuration.
func (g *Gate[T]) Config() Config { return g.config }

// Logger returns the gate's logger.
func (g *Gate[T]) Logger() *slog.Logger { return g.logger }

// Breaker returns the gate's circuit breaker.
func (g *Gate[T]) Breaker() *breaker.Breaker { return g.breaker }

// Submit hands an operation to the admission queue. See queue.Submit.
func (g *Gate[T]) Submit(fn queue.Operation[T]) (*queue.Future[T], error) {
	return g.queue.Submit(fn)
}

// Status returns a snapshot of queue and breaker state for telemetry.
func (g *Gate[T]) Status() queue.Status { return g.queue.Status() }

// Clear drains the queue, rejecting every pending operation with
// queue.ErrCleared. Administrative; breaker state is untouched.
func (g *Gate[T]) Clear() int { return g.queue.Clear() }

// Stop shuts the gate down: pending operations are rejected with
// queue.ErrCleared and extensions are notified. An operation already in
// flight finishes on its own; Stop does not wait for it.
func (g *Gate[T]) Stop(ctx context.Context) error {
	if dropped := g.queue.Clear(); dropped > 0 {
		g.logger.Info("dropped pending operations on shutdown", slog.Int("count", dropped))
	}
	g.hooks.EmitShutdown(ctx)
	return nil
}
