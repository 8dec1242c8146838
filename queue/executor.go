package queue

import (
	"context"
)

// execute runs one operation through the middleware chain, racing the
// execution deadline. On timeout the attempt is disowned: the context
// handed to the operation is cancelled, but its completion is not
// awaited and its eventual result is discarded.
func (q *Queue[T]) execute(it *item[T]) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), q.execTimeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	resCh := make(chan result, 1)

	go func() {
		var value T
		handler := func(ctx context.Context) error {
			v, err := it.fn(ctx)
			if err != nil {
				return err
			}
			value = v
			return nil
		}
		err := q.mw(ctx, &it.info, handler)
		resCh <- result{value: value, err: err}
	}()

	select {
	case r := <-resCh:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ErrExecutionTimeout
	}
}
