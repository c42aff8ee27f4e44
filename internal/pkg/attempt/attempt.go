package attempt

import (
	"context"
	"time"
)

// Run executes fn with a hard deadline and returns fallback when fn fails or
// the deadline passes. The goroutine running fn is not interrupted; its result
// is discarded once the deadline has fired.
func Run[T any](ctx context.Context, timeout time.Duration, fallback T, fn func(ctx context.Context) (T, error)) T {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}

	ch := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		ch <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return fallback
	case res := <-ch:
		if res.err != nil {
			return fallback
		}
		return res.value
	}
}
