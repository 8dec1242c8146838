package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/gate/breaker"
	"github.com/xraph/gate/ext"
	"github.com/xraph/gate/id"
	"github.com/xraph/gate/middleware"
	"github.com/xraph/gate/op"
)

var (
	// ErrQueueTimeout rejects an operation that expired waiting in the
	// queue. Expired operations are never executed.
	ErrQueueTimeout = errors.New("gate: operation expired waiting in queue")

	// ErrExecutionTimeout rejects an operation whose execution exceeded
	// the deadline. The upstream call may still be in flight; it is
	// disowned, not cancelled.
	ErrExecutionTimeout = fmt.Errorf("gate: operation execution timed out: %w", context.DeadlineExceeded)

	// ErrCleared rejects operations still pending when Clear is invoked.
	ErrCleared = errors.New("gate: queue cleared")

	// ErrThrottled rejects a submission that exceeded the configured
	// submission rate. The operation is never enqueued.
	ErrThrottled = errors.New("gate: submission rate exceeded")
)

// Operation is a unit of work submitted to the queue. It performs one
// upstream call and returns a result or an error. The queue invokes it
// at most once.
type Operation[T any] func(ctx context.Context) (T, error)

// item is a queued operation together with its metadata and result handle.
type item[T any] struct {
	info   op.Info
	fn     Operation[T]
	future *Future[T]
}

// Status is a point-in-time snapshot of queue and breaker state.
// Safe to collect concurrently with dispatch.
type Status struct {
	// QueueLength is the number of operations waiting to be dispatched.
	QueueLength int

	// Dispatching is true while a dispatch loop is draining the queue.
	Dispatching bool

	// LastDispatchAt is when the most recent execution started; zero if
	// nothing has been dispatched yet.
	LastDispatchAt time.Time

	// TimeSinceLastDispatch is the elapsed time since LastDispatchAt;
	// zero if nothing has been dispatched yet.
	TimeSinceLastDispatch time.Duration

	// ConsecutiveRateLimitFailures is the breaker's current counter.
	ConsecutiveRateLimitFailures int

	// CircuitOpen is true while the breaker rejects submissions.
	CircuitOpen bool

	// CircuitRemaining is the cool-down left before the circuit closes;
	// zero when closed.
	CircuitRemaining time.Duration
}

// settings holds the tunables shared by all Queue instantiations.
type settings struct {
	minSpacing  time.Duration
	queueWait   time.Duration
	execTimeout time.Duration
	nowFn       func() time.Time
	mw          middleware.Middleware
	throttle    *rate.Limiter
}

// Option configures a Queue.
type Option func(*settings)

// WithMinSpacing sets the minimum delay between consecutive execution
// starts. This is the backpressure protecting the upstream rate limit.
func WithMinSpacing(d time.Duration) Option {
	return func(s *settings) { s.minSpacing = d }
}

// WithQueueWaitTimeout sets how long an operation may wait in the queue
// before it is dropped undispatched.
func WithQueueWaitTimeout(d time.Duration) Option {
	return func(s *settings) { s.queueWait = d }
}

// WithExecutionTimeout sets the hard deadline for a single execution.
func WithExecutionTimeout(d time.Duration) Option {
	return func(s *settings) { s.execTimeout = d }
}

// WithNowFunc sets the clock used for enqueue timestamps and queue-wait
// expiry. Intended for deterministic tests.
func WithNowFunc(fn func() time.Time) Option {
	return func(s *settings) { s.nowFn = fn }
}

// WithMiddleware sets the middleware chain operations execute through.
func WithMiddleware(mw middleware.Middleware) Option {
	return func(s *settings) { s.mw = mw }
}

// WithSubmitLimit caps accepted submissions with a token bucket of
// perSecond sustained rate and the given burst. Burst defaults to 1.
// Submissions over the limit fail with ErrThrottled without enqueueing.
func WithSubmitLimit(perSecond float64, burst int) Option {
	return func(s *settings) {
		if perSecond <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		s.throttle = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// Queue is the admission queue: strict FIFO, drained by a single
// dispatch loop, guarded by a circuit breaker. Safe for concurrent use.
type Queue[T any] struct {
	breaker *breaker.Breaker
	hooks   *ext.Registry
	logger  *slog.Logger
	settings

	mu             sync.Mutex
	pending        []*item[T]
	dispatching    bool
	lastDispatchAt time.Time
}

// New creates a Queue guarded by br. A nil hooks registry is replaced
// with an empty one.
func New[T any](br *breaker.Breaker, hooks *ext.Registry, logger *slog.Logger, opts ...Option) *Queue[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if hooks == nil {
		hooks = ext.NewRegistry(logger)
	}

	q := &Queue[T]{
		breaker: br,
		hooks:   hooks,
		logger:  logger,
		settings: settings{
			minSpacing:  5 * time.Second,
			queueWait:   120 * time.Second,
			execTimeout: 120 * time.Second,
			nowFn:       time.Now,
			mw:          middleware.Chain(),
		},
	}
	for _, opt := range opts {
		opt(&q.settings)
	}
	return q
}

// Submit appends an operation to the queue and returns its Future.
// It fails fast — without enqueueing — when the circuit is open
// (*breaker.OpenError) or the submission rate is exceeded (ErrThrottled).
// Starting the dispatch loop is idempotent: exactly one loop drains the
// queue no matter how many callers submit concurrently.
func (q *Queue[T]) Submit(fn Operation[T]) (*Future[T], error) {
	if rem, open := q.breaker.Remaining(); open {
		return nil, &breaker.OpenError{Remaining: rem}
	}
	if q.throttle != nil && !q.throttle.Allow() {
		return nil, ErrThrottled
	}

	it := &item[T]{
		info:   op.Info{ID: id.NewOpID(), EnqueuedAt: q.nowFn()},
		fn:     fn,
		future: newFuture[T](),
	}

	q.mu.Lock()
	q.pending = append(q.pending, it)
	length := len(q.pending)
	start := !q.dispatching
	if start {
		q.dispatching = true
	}
	q.mu.Unlock()

	q.logger.Debug("operation enqueued",
		slog.String("op_id", it.info.ID.String()),
		slog.Int("queue_length", length),
	)
	q.hooks.EmitOperationEnqueued(context.Background(), &it.info)

	if start {
		go q.dispatch()
	}
	return it.future, nil
}

// Status returns a snapshot of queue and breaker state. Pure read.
func (q *Queue[T]) Status() Status {
	rem, open := q.breaker.Remaining()

	q.mu.Lock()
	defer q.mu.Unlock()

	s := Status{
		QueueLength:                  len(q.pending),
		Dispatching:                  q.dispatching,
		LastDispatchAt:               q.lastDispatchAt,
		ConsecutiveRateLimitFailures: q.breaker.Consecutive(),
		CircuitOpen:                  open,
		CircuitRemaining:             rem,
	}
	if !q.lastDispatchAt.IsZero() {
		s.TimeSinceLastDispatch = q.nowFn().Sub(q.lastDispatchAt)
	}
	return s
}

// Clear atomically drains the queue, rejecting every pending operation
// with ErrCleared. The dispatching flag and breaker state are untouched;
// an operation already handed to the loop completes normally. Returns
// the number of operations dropped.
func (q *Queue[T]) Clear() int {
	q.mu.Lock()
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, it := range dropped {
		it.future.reject(ErrCleared)
	}

	if len(dropped) > 0 {
		q.logger.Info("queue cleared", slog.Int("dropped", len(dropped)))
	}
	q.hooks.EmitQueueCleared(context.Background(), len(dropped))
	return len(dropped)
}

// dispatch is the single logical worker. Entered only on the idle→active
// transition; runs until the queue is empty or the breaker opens.
func (q *Queue[T]) dispatch() {
	ctx := context.Background()

	for {
		// A loop may find the circuit open if it was started by a
		// submission that raced the opening. Never dispatch into an
		// open circuit.
		if _, open := q.breaker.Remaining(); open {
			q.flush()
			return
		}

		q.mu.Lock()
		if len(q.pending) == 0 {
			q.dispatching = false
			q.mu.Unlock()
			return
		}
		it := q.pending[0]
		q.pending = q.pending[1:]
		last := q.lastDispatchAt
		q.mu.Unlock()

		// Enforce minimum spacing since the previous execution start.
		// The loop suspends; Submit, Status, and Clear stay callable.
		if !last.IsZero() {
			if wait := q.minSpacing - q.nowFn().Sub(last); wait > 0 {
				time.Sleep(wait)
			}
		}

		// Drop operations that exceeded their queue-wait deadline.
		// Expired work never reaches the upstream and never touches
		// the breaker.
		if waited := it.info.Waited(q.nowFn()); waited > q.queueWait {
			it.future.reject(ErrQueueTimeout)
			q.logger.Warn("operation expired in queue",
				slog.String("op_id", it.info.ID.String()),
				slog.Duration("waited", waited),
			)
			q.hooks.EmitOperationExpired(ctx, &it.info, waited)
			continue
		}

		q.mu.Lock()
		q.lastDispatchAt = q.nowFn()
		q.mu.Unlock()

		q.hooks.EmitOperationStarted(ctx, &it.info)

		start := time.Now()
		value, err := q.execute(it)
		elapsed := time.Since(start)

		if err != nil {
			opened := q.breaker.RecordFailure(op.KindOf(err))
			it.future.reject(err)
			q.hooks.EmitOperationFailed(ctx, &it.info, err)

			if opened {
				q.flush()
				return
			}
			continue
		}

		q.breaker.RecordSuccess()
		it.future.resolve(value)
		q.hooks.EmitOperationCompleted(ctx, &it.info, elapsed)
	}
}

// flush rejects everything still pending with the breaker's remaining
// cool-down and marks the loop idle. Called only by the dispatch loop.
func (q *Queue[T]) flush() {
	rem, _ := q.breaker.Remaining()

	q.mu.Lock()
	dropped := q.pending
	q.pending = nil
	q.dispatching = false
	q.mu.Unlock()

	for _, it := range dropped {
		it.future.reject(&breaker.OpenError{Remaining: rem})
		q.hooks.EmitOperationFailed(context.Background(), &it.info, &breaker.OpenError{Remaining: rem})
	}

	if len(dropped) > 0 {
		q.logger.Warn("flushed pending operations on open circuit",
			slog.Int("dropped", len(dropped)),
			slog.Duration("cooldown_remaining", rem),
		)
	}
}
