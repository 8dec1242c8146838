// Package breaker implements the adaptive circuit breaker that guards a
// rate-limited upstream. The breaker has two states: Closed (normal) and
// Open (submissions rejected). It opens after a configured number of
// consecutive rate-limit failures and closes again purely by wall-clock
// expiry of the cool-down — there is no half-open probing state and no
// background timer; expiry is evaluated lazily on the next check.
package breaker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/gate/op"
)

// State is the breaker state.
type State int

const (
	// Closed is the normal state: all submissions and dispatches proceed.
	Closed State = iota

	// Open rejects submissions immediately until the cool-down expires.
	Open
)

// String returns the lowercase state name.
func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// ErrOpen is the sentinel all open-circuit rejections unwrap to.
var ErrOpen = errors.New("gate: circuit open")

// OpenError is returned when a submission is rejected because the
// circuit is open. Remaining is the cool-down left at rejection time,
// exposed so callers can surface a precise "retry later" message.
type OpenError struct {
	Remaining time.Duration
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return fmt.Sprintf("gate: circuit open, retry in %s", e.Remaining.Round(time.Millisecond))
}

// Unwrap lets errors.Is(err, ErrOpen) match.
func (e *OpenError) Unwrap() error { return ErrOpen }

// Breaker tracks consecutive rate-limit failures and decides when to
// open and close the gate. It is safe for concurrent use.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	nowFn     func() time.Time
	logger    *slog.Logger
	onOpen    func(consecutive int, until time.Time)
	onClose   func()

	mu          sync.Mutex
	consecutive int
	openUntil   time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithNowFunc sets the clock used for open/close decisions. Intended for
// deterministic tests.
func WithNowFunc(fn func() time.Time) Option {
	return func(b *Breaker) { b.nowFn = fn }
}

// WithLogger sets the structured logger for state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(b *Breaker) { b.logger = l }
}

// WithOnOpen sets a callback invoked after the breaker transitions to
// Open. Called outside the breaker's lock.
func WithOnOpen(fn func(consecutive int, until time.Time)) Option {
	return func(b *Breaker) { b.onOpen = fn }
}

// WithOnClose sets a callback invoked after the breaker transitions back
// to Closed. Called outside the breaker's lock.
func WithOnClose(fn func()) Option {
	return func(b *Breaker) { b.onClose = fn }
}

// New creates a Breaker that opens after threshold consecutive
// rate-limit failures and stays open for cooldown. Non-positive values
// fall back to the defaults (3 failures, 60s).
func New(threshold int, cooldown time.Duration, opts ...Option) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}

	b := &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		nowFn:     time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Remaining reports whether the circuit is open and how long until it
// closes. A breaker whose cool-down has elapsed is closed here, lazily;
// no timer runs in the background.
func (b *Breaker) Remaining() (time.Duration, bool) {
	b.mu.Lock()

	if b.openUntil.IsZero() {
		b.mu.Unlock()
		return 0, false
	}

	now := b.nowFn()
	if now.Before(b.openUntil) {
		rem := b.openUntil.Sub(now)
		b.mu.Unlock()
		return rem, true
	}

	// Cool-down elapsed: transition back to Closed.
	b.openUntil = time.Time{}
	onClose := b.onClose
	b.mu.Unlock()

	b.logger.Info("circuit closed after cool-down")
	if onClose != nil {
		onClose()
	}
	return 0, false
}

// State returns the current breaker state, applying lazy expiry.
func (b *Breaker) State() State {
	if _, open := b.Remaining(); open {
		return Open
	}
	return Closed
}

// Consecutive returns the current consecutive rate-limit failure count.
func (b *Breaker) Consecutive() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutive
}

// RecordSuccess resets the consecutive rate-limit failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	b.consecutive = 0
	b.mu.Unlock()
}

// RecordFailure records one failed attempt classified as kind. Only
// rate-limit failures count toward the threshold; any other kind resets
// the counter. Returns true when this failure transitioned the breaker
// to Open — the caller must then stop dispatching and flush its queue.
func (b *Breaker) RecordFailure(kind op.FailureKind) bool {
	b.mu.Lock()

	if kind != op.KindRateLimited {
		b.consecutive = 0
		b.mu.Unlock()
		return false
	}

	b.consecutive++
	if b.consecutive < b.threshold && b.openUntil.IsZero() {
		n := b.consecutive
		b.mu.Unlock()
		b.logger.Debug("rate-limit failure recorded",
			slog.Int("consecutive", n),
			slog.Int("threshold", b.threshold),
		)
		return false
	}

	wasOpen := !b.openUntil.IsZero()
	until := b.nowFn().Add(b.cooldown)
	b.openUntil = until
	n := b.consecutive
	onOpen := b.onOpen
	b.mu.Unlock()

	if wasOpen {
		return false
	}

	b.logger.Warn("circuit opened",
		slog.Int("consecutive_rate_limit_failures", n),
		slog.Time("open_until", until),
	)
	if onOpen != nil {
		onOpen(n, until)
	}
	return true
}
