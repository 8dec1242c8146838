package op

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/gate/id"
)

// Info carries the metadata of a queued operation. It is shared with
// middleware and extension hooks; the operation's closure and result are
// not exposed through it.
type Info struct {
	// ID uniquely identifies this submission (prefix: "op").
	ID id.OpID

	// EnqueuedAt is the submission timestamp, used to compute how long
	// the operation waited in the queue.
	EnqueuedAt time.Time
}

// Waited returns how long the operation has been queued as of now.
func (i *Info) Waited(now time.Time) time.Duration {
	return now.Sub(i.EnqueuedAt)
}

// FailureKind classifies an upstream failure on a closed tag set.
type FailureKind int

const (
	// KindOther is any failure that is neither a rate-limit rejection
	// nor a timeout. It resets the breaker's consecutive counter.
	KindOther FailureKind = iota

	// KindRateLimited marks an upstream rate-limit rejection (HTTP 429
	// or equivalent). Consecutive occurrences open the circuit.
	KindRateLimited

	// KindTimeout marks a deadline expiry during execution.
	KindTimeout
)

// String returns the lowercase tag name for logging and metrics.
func (k FailureKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// Failure is a typed upstream failure. Operation boundaries construct it
// so the breaker can classify on Kind instead of inspecting error shapes.
type Failure struct {
	// Kind is the closed classification tag.
	Kind FailureKind

	// Status is the HTTP status code when known, 0 otherwise.
	Status int

	// RetryAfter is the provider-suggested retry delay, when one was
	// present on the response. Informational only; the breaker cooldown
	// is the configured constant, never this value.
	RetryAfter time.Duration

	// Err is the underlying provider error.
	Err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("gate: upstream failure (%s): %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("gate: upstream failure (%s)", f.Kind)
}

// Unwrap returns the underlying provider error.
func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the classification tag for an arbitrary error.
// Typed failures keep their tag; context deadline expiry maps to
// KindTimeout; anything matching the rate-limit heuristics maps to
// KindRateLimited; everything else is KindOther.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if IsRateLimit(err) {
		return KindRateLimited
	}
	return KindOther
}
