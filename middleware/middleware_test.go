package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestChainOrder(t *testing.T) {
	var order []string

	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *Request) (any, error) {
				order = append(order, name+".before")
				result, err := next(ctx, req)
				order = append(order, name+".after")
				return result, err
			}
		}
	}

	handler := func(ctx context.Context, req *Request) (any, error) {
		order = append(order, "handler")
		return "ok", nil
	}

	chained := Chain(mark("A"), mark("B"))(handler)
	result, err := chained(context.Background(), &Request{Method: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if result != "ok" {
		t.Errorf("result mismatch: got %v", result)
	}

	want := []string{"A.before", "B.before", "handler", "B.after", "A.after"}
	if len(order) != len(want) {
		t.Fatalf("order mismatch: got %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v, want %v", i, order, want)
		}
	}
}

func TestChainEmpty(t *testing.T) {
	handler := func(ctx context.Context, req *Request) (any, error) {
		return "bare", nil
	}
	result, err := Chain()(handler)(context.Background(), &Request{Method: "m"})
	if err != nil || result != "bare" {
		t.Fatalf("empty chain altered the handler: %v, %v", result, err)
	}
}

func TestLoggingMiddlewarePassthrough(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := func(ctx context.Context, req *Request) (any, error) {
		return 42, nil
	}
	result, err := LoggingMiddleware(logger)(handler)(context.Background(), &Request{Method: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if result != 42 {
		t.Errorf("result mismatch: got %v", result)
	}

	failing := func(ctx context.Context, req *Request) (any, error) {
		return nil, errors.New("boom")
	}
	if _, err := LoggingMiddleware(logger)(failing)(context.Background(), &Request{Method: "m"}); err == nil {
		t.Error("error should pass through the logging middleware")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := func(ctx context.Context, req *Request) (any, error) {
		return "ok", nil
	}
	// 1 request per second, burst 2: the third immediate request must be
	// rejected.
	limited := RateLimitMiddleware(1, 2)(handler)

	for i := 0; i < 2; i++ {
		if _, err := limited(context.Background(), &Request{Method: "m"}); err != nil {
			t.Fatalf("request %d unexpectedly limited: %v", i, err)
		}
	}
	if _, err := limited(context.Background(), &Request{Method: "m"}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	slow := func(ctx context.Context, req *Request) (any, error) {
		time.Sleep(200 * time.Millisecond)
		return "late", nil
	}
	_, err := TimeoutMiddleware(20*time.Millisecond)(slow)(context.Background(), &Request{Method: "m"})
	if !errors.Is(err, ErrHandlerTimeout) {
		t.Fatalf("expected ErrHandlerTimeout, got %v", err)
	}

	fast := func(ctx context.Context, req *Request) (any, error) {
		return "in time", nil
	}
	result, err := TimeoutMiddleware(time.Second)(fast)(context.Background(), &Request{Method: "m"})
	if err != nil || result != "in time" {
		t.Fatalf("fast handler should pass: %v, %v", result, err)
	}
}
