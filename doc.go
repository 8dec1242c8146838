// Package gate provides a single-flight admission gate for rate-limited
// upstream APIs. It serializes outbound calls through a strict-FIFO
// queue with one dispatch loop, enforces minimum spacing between
// requests, polices queue-wait and execution deadlines, and trips an
// adaptive circuit breaker after repeated rate-limit rejections.
//
// Gate is designed as a library, not a service. Construct one per
// upstream, inject it into your request-handling layer, and submit
// operations as ordinary Go closures.
//
// # Quick Start
//
//	g := gate.New[string](gate.DefaultConfig(),
//	    gate.WithLogger(logger),
//	)
//	fut, err := g.Submit(func(ctx context.Context) (string, error) {
//	    return client.Complete(ctx, prompt)
//	})
//	if err != nil {
//	    // rejected before enqueue: circuit open or throttled
//	}
//	answer, err := fut.Wait(ctx)
//
// # Architecture
//
// The queue package owns the FIFO and the dispatch loop; the breaker
// package owns the open/close state machine; the op package defines the
// failure taxonomy they communicate with. Middleware and extensions hook
// into execution and lifecycle events.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package gate
