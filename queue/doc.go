// Package queue implements the admission queue: a strict-FIFO queue of
// operations drained by a single dispatch loop that serializes calls to
// a rate-limited upstream.
//
// # Dispatch model
//
// At most one operation is in flight at any time. The loop enforces a
// minimum spacing between consecutive execution starts, drops operations
// that exceeded their queue-wait deadline before executing them, races
// each execution against a hard timeout, and feeds every outcome to the
// circuit breaker. When the breaker opens, the loop flushes everything
// still pending and exits; the next accepted Submit restarts it.
//
// # Submitting work
//
//	q := queue.New[string](br, hooks, logger,
//	    queue.WithMinSpacing(5*time.Second),
//	)
//	fut, err := q.Submit(func(ctx context.Context) (string, error) {
//	    return client.Complete(ctx, prompt)
//	})
//	if err != nil {
//	    // rejected before enqueue: breaker open or throttled
//	}
//	answer, err := fut.Wait(ctx)
//
// Submit is safe for concurrent use. Failed operations are never retried
// by the queue; callers decide whether to resubmit.
package queue
