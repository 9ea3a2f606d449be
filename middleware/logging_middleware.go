package middleware

import (
	"context"
	"log/slog"
	"time"
)

// LoggingMiddleware logs every inbound invocation with its duration and
// outcome. A nil logger falls back to slog.Default.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (any, error) {
			start := time.Now()
			result, err := next(ctx, req)
			duration := time.Since(start)
			if err != nil {
				logger.Error("handler failed", "method", req.Method, "duration", duration, "err", err)
			} else {
				logger.Debug("handler done", "method", req.Method, "duration", duration)
			}
			return result, err
		}
	}
}
