package middleware

import (
	"context"
	"errors"
	"time"
)

// ErrHandlerTimeout is returned to the peer when a handler exceeds the
// configured deadline. The handler goroutine keeps running to completion; its
// late result is discarded.
var ErrHandlerTimeout = errors.New("handler timed out")

// TimeoutMiddleware bounds how long one inbound invocation may run. Without a
// bound, a stuck handler would stall the receive loop indefinitely because
// inbound dispatch is synchronous on that goroutine.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	type outcome struct {
		result any
		err    error
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan outcome, 1)
			go func() {
				result, err := next(ctx, req)
				done <- outcome{result, err}
			}()

			select {
			case out := <-done:
				return out.result, out.err
			case <-ctx.Done():
				return nil, ErrHandlerTimeout
			}
		}
	}
}
