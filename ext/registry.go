package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/gate/op"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type operationEnqueuedEntry struct {
	name string
	hook OperationEnqueued
}

type operationStartedEntry struct {
	name string
	hook OperationStarted
}

type operationCompletedEntry struct {
	name string
	hook OperationCompleted
}

type operationFailedEntry struct {
	name string
	hook OperationFailed
}

type operationExpiredEntry struct {
	name string
	hook OperationExpired
}

type breakerOpenedEntry struct {
	name string
	hook BreakerOpened
}

type breakerClosedEntry struct {
	name string
	hook BreakerClosed
}

type queueClearedEntry struct {
	name string
	hook QueueCleared
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	operationEnqueued  []operationEnqueuedEntry
	operationStarted   []operationStartedEntry
	operationCompleted []operationCompletedEntry
	operationFailed    []operationFailedEntry
	operationExpired   []operationExpiredEntry
	breakerOpened      []breakerOpenedEntry
	breakerClosed      []breakerClosedEntry
	queueCleared       []queueClearedEntry
	shutdown           []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(OperationEnqueued); ok {
		r.operationEnqueued = append(r.operationEnqueued, operationEnqueuedEntry{name, h})
	}
	if h, ok := e.(OperationStarted); ok {
		r.operationStarted = append(r.operationStarted, operationStartedEntry{name, h})
	}
	if h, ok := e.(OperationCompleted); ok {
		r.operationCompleted = append(r.operationCompleted, operationCompletedEntry{name, h})
	}
	if h, ok := e.(OperationFailed); ok {
		r.operationFailed = append(r.operationFailed, operationFailedEntry{name, h})
	}
	if h, ok := e.(OperationExpired); ok {
		r.operationExpired = append(r.operationExpired, operationExpiredEntry{name, h})
	}
	if h, ok := e.(BreakerOpened); ok {
		r.breakerOpened = append(r.breakerOpened, breakerOpenedEntry{name, h})
	}
	if h, ok := e.(BreakerClosed); ok {
		r.breakerClosed = append(r.breakerClosed, breakerClosedEntry{name, h})
	}
	if h, ok := e.(QueueCleared); ok {
		r.queueCleared = append(r.queueCleared, queueClearedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Operation event emitters
// ──────────────────────────────────────────────────

// EmitOperationEnqueued notifies all extensions that implement OperationEnqueued.
func (r *Registry) EmitOperationEnqueued(ctx context.Context, info *op.Info) {
	for _, e := range r.operationEnqueued {
		if err := e.hook.OnOperationEnqueued(ctx, info); err != nil {
			r.logHookError("OnOperationEnqueued", e.name, err)
		}
	}
}

// EmitOperationStarted notifies all extensions that implement OperationStarted.
func (r *Registry) EmitOperationStarted(ctx context.Context, info *op.Info) {
	for _, e := range r.operationStarted {
		if err := e.hook.OnOperationStarted(ctx, info); err != nil {
			r.logHookError("OnOperationStarted", e.name, err)
		}
	}
}

// EmitOperationCompleted notifies all extensions that implement OperationCompleted.
func (r *Registry) EmitOperationCompleted(ctx context.Context, info *op.Info, elapsed time.Duration) {
	for _, e := range r.operationCompleted {
		if err := e.hook.OnOperationCompleted(ctx, info, elapsed); err != nil {
			r.logHookError("OnOperationCompleted", e.name, err)
		}
	}
}

// EmitOperationFailed notifies all extensions that implement OperationFailed.
func (r *Registry) EmitOperationFailed(ctx context.Context, info *op.Info, opErr error) {
	for _, e := range r.operationFailed {
		if err := e.hook.OnOperationFailed(ctx, info, opErr); err != nil {
			r.logHookError("OnOperationFailed", e.name, err)
		}
	}
}

// EmitOperationExpired notifies all extensions that implement OperationExpired.
func (r *Registry) EmitOperationExpired(ctx context.Context, info *op.Info, waited time.Duration) {
	for _, e := range r.operationExpired {
		if err := e.hook.OnOperationExpired(ctx, info, waited); err != nil {
			r.logHookError("OnOperationExpired", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Breaker and queue event emitters
// ──────────────────────────────────────────────────

// EmitBreakerOpened notifies all extensions that implement BreakerOpened.
func (r *Registry) EmitBreakerOpened(ctx context.Context, consecutive int, until time.Time) {
	for _, e := range r.breakerOpened {
		if err := e.hook.OnBreakerOpened(ctx, consecutive, until); err != nil {
			r.logHookError("OnBreakerOpened", e.name, err)
		}
	}
}

// EmitBreakerClosed notifies all extensions that implement BreakerClosed.
func (r *Registry) EmitBreakerClosed(ctx context.Context) {
	for _, e := range r.breakerClosed {
		if err := e.hook.OnBreakerClosed(ctx); err != nil {
			r.logHookError("OnBreakerClosed", e.name, err)
		}
	}
}

// EmitQueueCleared notifies all extensions that implement QueueCleared.
func (r *Registry) EmitQueueCleared(ctx context.Context, dropped int) {
	for _, e := range r.queueCleared {
		if err := e.hook.OnQueueCleared(ctx, dropped); err != nil {
			r.logHookError("OnQueueCleared", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block dispatch.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
