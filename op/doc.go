// Package op defines the operation metadata and failure taxonomy shared
// by the admission queue, circuit breaker, middleware, and extension hooks.
//
// An operation is an opaque unit of work submitted to the gate. Its
// metadata lives in [Info]; its behaviour is a closure held by the queue.
//
// # Failure classification
//
// Upstream failures are classified on a closed tag set ([FailureKind])
// rather than by string sniffing at decision points. Operation boundaries
// that already know why a call failed should return a [*Failure] with the
// Kind set. Boundaries that only have a raw provider error can use
// [Classify], which inspects HTTP status codes and well-known rate-limit
// message patterns once, at the edge. Everything downstream — the breaker
// in particular — switches on the tag.
package op
