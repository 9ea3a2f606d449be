package middleware

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned to the peer (as a generic error response) when an
// inbound request exceeds the configured rate.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitMiddleware rejects inbound requests beyond r per second with bursts
// of up to burst, using a token bucket. Protects slow handlers from a peer
// that dispatches faster than this process can serve.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (any, error) {
			if !limiter.Allow() {
				return nil, ErrRateLimited
			}
			return next(ctx, req)
		}
	}
}
