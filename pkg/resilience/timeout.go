package resilience

import (
	"context"
	"fmt"
	"time"
)

// Bounded runs fn with a deadline of limit and returns its result. When the
// deadline passes first, Bounded returns an error wrapping
// context.DeadlineExceeded at once and discards whatever fn later returns.
// A non-positive limit runs fn directly.
func Bounded[T any](ctx context.Context, limit time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	if limit <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%s: %w (limit %v)", op, ctx.Err(), limit)
	}
}
