// Package ext defines the extension system for gate.
// Extensions are notified of lifecycle events (operation enqueued,
// completed, expired, breaker opened, etc.) and can react to them —
// logging, metrics, alerting, etc.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/gate/op"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Operation lifecycle hooks
// ──────────────────────────────────────────────────

// OperationEnqueued is called after an operation is accepted into the queue.
type OperationEnqueued interface {
	OnOperationEnqueued(ctx context.Context, info *op.Info) error
}

// OperationStarted is called when the dispatch loop begins executing an
// operation.
type OperationStarted interface {
	OnOperationStarted(ctx context.Context, info *op.Info) error
}

// OperationCompleted is called after an operation resolves successfully.
type OperationCompleted interface {
	OnOperationCompleted(ctx context.Context, info *op.Info, elapsed time.Duration) error
}

// OperationFailed is called when an operation's outcome is an error —
// an upstream failure, an execution timeout, or an open-circuit flush.
type OperationFailed interface {
	OnOperationFailed(ctx context.Context, info *op.Info, err error) error
}

// OperationExpired is called when an operation is dropped at the head of
// the queue because it exceeded the queue-wait timeout. Expired
// operations are never executed.
type OperationExpired interface {
	OnOperationExpired(ctx context.Context, info *op.Info, waited time.Duration) error
}

// ──────────────────────────────────────────────────
// Breaker and queue hooks
// ──────────────────────────────────────────────────

// BreakerOpened is called when the circuit breaker transitions to Open.
type BreakerOpened interface {
	OnBreakerOpened(ctx context.Context, consecutive int, until time.Time) error
}

// BreakerClosed is called when the circuit breaker transitions back to
// Closed after its cool-down elapses.
type BreakerClosed interface {
	OnBreakerClosed(ctx context.Context) error
}

// QueueCleared is called after an administrative Clear drained the queue.
type QueueCleared interface {
	OnQueueCleared(ctx context.Context, dropped int) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
