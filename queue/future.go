package queue

import (
	"context"
	"sync"
)

// Future is the single-assignment result handle returned by Submit.
// Exactly one outcome — a value or an error — is delivered, exactly once.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T) {
	f.once.Do(func() {
		f.value = v
		close(f.done)
	})
}

func (f *Future[T]) reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done returns a channel that is closed once the outcome is delivered.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the outcome is delivered or ctx is cancelled.
// Cancelling ctx abandons the wait, not the queued operation.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
