// Package middleware wraps the handlers a bridge exposes to its router.
//
// Inbound requests dispatched by the peer flow through a chain built once at
// bridge construction:
//
//	Chain(A, B, C)(handler) → A(B(C(handler)))
//	Execution order: A.before → B.before → C.before → handler → C.after → B.after → A.after
package middleware

import "context"

// Request describes one inbound invocation: the method name the peer asked for
// and its positional parameters.
type Request struct {
	Method string
	Params []any
}

// HandlerFunc is the invocation signature middlewares wrap. The innermost
// HandlerFunc looks the method up in the bridge's handler registry and runs it.
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one. Wraps in reverse order so the first
// middleware passed becomes the outermost layer.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
