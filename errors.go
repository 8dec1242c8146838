package gate

import (
	"github.com/xraph/gate/breaker"
	"github.com/xraph/gate/queue"
)

// Re-exported sentinels so callers can match rejection causes without
// importing the subpackages. Each is the same value as its source; both
// errors.Is spellings work.
var (
	// ErrCircuitOpen rejects submissions while the breaker is open.
	// Match with errors.As against *breaker.OpenError to read the
	// remaining cool-down.
	ErrCircuitOpen = breaker.ErrOpen

	// ErrQueueTimeout rejects operations that expired waiting in queue.
	ErrQueueTimeout = queue.ErrQueueTimeout

	// ErrExecutionTimeout rejects operations whose execution exceeded
	// the deadline.
	ErrExecutionTimeout = queue.ErrExecutionTimeout

	// ErrQueueCleared rejects operations dropped by Clear or Stop.
	ErrQueueCleared = queue.ErrCleared

	// ErrThrottled rejects submissions over the configured rate.
	ErrThrottled = queue.ErrThrottled
)
