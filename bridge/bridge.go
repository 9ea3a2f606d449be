// Package bridge implements the ClientServer: one persistent bidirectional
// connection to a router process that acts simultaneously as an RPC client
// (calling into the router) and an RPC server (exposing locally provided
// handlers the router can invoke).
//
//	app goroutines ──Call/Notify──┐
//	                              ├──→ single socket ──→ router
//	        Provide("add", fn) ←──┤        │
//	                              │        ▼
//	    receive goroutine:  ←── decode ── dispatch
//	      response  → pending[msgid] → waiting Call unblocks
//	      request   → handlers[name] → run fn → send response
//	      notify    → handlers[name] → run fn, no response
//
// A supervisor goroutine owns the connection lifecycle: it dials, spawns the
// receive loop, re-announces every provided method with $/register, and on any
// disconnect fails all pending calls and retries after a fixed delay, forever,
// until Close.
//
// Handlers run synchronously on the receive goroutine. A handler must not call
// back into its own bridge with Call: the response could never be read while
// the handler occupies the receive loop. Use Notify, or hand the work to
// another goroutine.
package bridge

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"app-bridge/codec"
	"app-bridge/message"
	"app-bridge/middleware"
	"app-bridge/transport"
)

const (
	// DefaultCallTimeout bounds how long Call waits for a response.
	DefaultCallTimeout = 5 * time.Second
	// DefaultReconnectDelay is the fixed pause between reconnect attempts.
	DefaultReconnectDelay = 3 * time.Second
)

// Handler is a locally provided function the router may invoke by name.
// Params arrive exactly as decoded from the wire.
type Handler func(params ...any) (any, error)

// Resolver supplies a transport address per connect attempt. The discovery
// package provides an etcd-backed implementation; a static Address works
// without one.
type Resolver interface {
	Resolve() (string, error)
}

// Config describes one bridge instance. Exactly one of Address and Resolver is
// required; Resolver wins when both are set, and is consulted again on every
// reconnect attempt.
type Config struct {
	Address        string        // tcp://<host>:<port> or unix://<path>
	Resolver       Resolver      // optional dynamic endpoint source
	DialTimeout    time.Duration // default transport.DefaultDialTimeout
	CallTimeout    time.Duration // default DefaultCallTimeout
	ReconnectDelay time.Duration // default DefaultReconnectDelay
	Logger         *slog.Logger  // default slog.Default()

	// Middlewares wrap every inbound request and notification dispatched by
	// the router into this process, outermost first.
	Middlewares []middleware.Middleware
}

// pendingCall holds the completion callbacks of one in-flight request.
// Created when the request is sent; removed when the matching response
// arrives, the call times out, or the connection drops.
type pendingCall struct {
	onResult func(any)
	onError  func(error)
}

// ClientServer is the bridge instance. Safe for concurrent use from any number
// of goroutines. Construct with New; there is no shared global instance, so
// whichever component needs a bridge owns one and passes it along.
type ClientServer struct {
	log            *slog.Logger
	endpoint       transport.Endpoint // static endpoint; unused with resolver
	resolver       Resolver
	dialTimeout    time.Duration
	callTimeout    time.Duration
	reconnectDelay time.Duration
	chain          middleware.HandlerFunc

	mu       sync.Mutex
	conn     *transport.Conn
	nextID   uint32 // monotonic msgid counter, wraps at uint32 width
	pending  map[uint32]*pendingCall
	handlers map[string]Handler
	ready    bool
	readyCh  chan struct{} // closed while connected and re-registered

	closedCh  chan struct{}
	closeOnce sync.Once
}

// New constructs a bridge bound to one router endpoint and immediately starts
// the connection supervisor.
func New(cfg Config) (*ClientServer, error) {
	c := &ClientServer{
		log:            cfg.Logger,
		resolver:       cfg.Resolver,
		dialTimeout:    cfg.DialTimeout,
		callTimeout:    cfg.CallTimeout,
		reconnectDelay: cfg.ReconnectDelay,
		pending:        make(map[uint32]*pendingCall),
		handlers:       make(map[string]Handler),
		readyCh:        make(chan struct{}),
		closedCh:       make(chan struct{}),
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.dialTimeout <= 0 {
		c.dialTimeout = transport.DefaultDialTimeout
	}
	if c.callTimeout <= 0 {
		c.callTimeout = DefaultCallTimeout
	}
	if c.reconnectDelay <= 0 {
		c.reconnectDelay = DefaultReconnectDelay
	}
	if cfg.Resolver == nil {
		ep, err := transport.ParseAddress(cfg.Address)
		if err != nil {
			return nil, err
		}
		c.endpoint = ep
	}

	// The chain is built once; the innermost handler does the registry lookup
	// so handlers provided later still dispatch through it.
	c.chain = middleware.Chain(cfg.Middlewares...)(c.invoke)

	go c.supervise()
	return c, nil
}

// Call invokes method on the router and blocks until the response arrives, the
// configured call timeout elapses, or the connection drops. A nil result from
// the peer is returned as (nil, nil); zero-argument calls behave identically
// to calls with arguments.
func (c *ClientServer) Call(method string, params ...any) (any, error) {
	return c.CallTimeout(method, c.callTimeout, params...)
}

// CallTimeout is Call with an explicit per-call timeout.
func (c *ClientServer) CallTimeout(method string, timeout time.Duration, params ...any) (any, error) {
	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	// Register the pending entry before sending so a fast response cannot race
	// the bookkeeping.
	c.mu.Lock()
	c.nextID++
	msgid := c.nextID
	c.pending[msgid] = &pendingCall{
		onResult: func(v any) { done <- outcome{result: v} },
		onError:  func(err error) { done <- outcome{err: err} },
	}
	c.mu.Unlock()

	data, err := codec.EncodeRequest(msgid, method, params)
	if err != nil {
		c.removePending(msgid)
		return nil, fmt.Errorf("encode request %s: %w", method, err)
	}
	if err := c.sendBytes(data); err != nil {
		c.removePending(msgid)
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("call %s: %w", method, out.err)
		}
		return out.result, nil
	case <-timer.C:
		// Once sent, a request cannot be withdrawn; abandoning the entry means
		// an eventual late response is logged and dropped by the dispatcher.
		c.removePending(msgid)
		return nil, fmt.Errorf("call %s: no response after %s: %w", method, timeout, ErrTimeout)
	}
}

// Notify sends a fire-and-forget notification. No response is expected or
// possible; the only failures are encoding and the socket write itself.
func (c *ClientServer) Notify(method string, params ...any) error {
	data, err := codec.EncodeNotification(method, params)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", method, err)
	}
	if err := c.sendBytes(data); err != nil {
		return fmt.Errorf("notify %s: %w", method, err)
	}
	return nil
}

// Provide registers fn under name and announces it to the router with
// $/register. Re-providing under the same name overwrites and re-announces;
// the router answering "route already exists" resolves as success. The handler
// stays registered even when the announcement fails; the supervisor announces
// every registered handler again after each reconnect.
func (c *ClientServer) Provide(name string, fn Handler) error {
	if fn == nil {
		return fmt.Errorf("provide %s: %w", name, ErrInvalidHandler)
	}
	c.mu.Lock()
	c.handlers[name] = fn
	c.mu.Unlock()

	if _, err := c.Call(message.MethodRegister, name); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	return nil
}

// Unprovide removes the handler registered under name and retracts it from the
// router with $/unregister.
func (c *ClientServer) Unprovide(name string) error {
	c.mu.Lock()
	delete(c.handlers, name)
	c.mu.Unlock()

	if _, err := c.Call(message.MethodUnregister, name); err != nil {
		return fmt.Errorf("unregister %s: %w", name, err)
	}
	return nil
}

// Connected reports whether the bridge is currently connected and has finished
// re-announcing its handlers.
func (c *ClientServer) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// WaitReady blocks until the bridge is connected and re-registered, the
// timeout elapses, or the bridge is closed.
func (c *ClientServer) WaitReady(timeout time.Duration) error {
	c.mu.Lock()
	ch := c.readyCh
	c.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-c.closedCh:
		return ErrClosed
	case <-timer.C:
		return fmt.Errorf("not connected after %s: %w", timeout, ErrTimeout)
	}
}

// Close stops the supervisor, closes the socket and fails every pending call
// with ErrClosed. The bridge cannot be reused afterwards.
func (c *ClientServer) Close() error {
	c.closeOnce.Do(func() {
		close(c.closedCh)
		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		c.failPending(ErrClosed)
	})
	return nil
}

// sendBytes hands one encoded message to the current connection. The Conn's
// own write mutex serializes concurrent senders.
func (c *ClientServer) sendBytes(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.Send(data)
}

func (c *ClientServer) removePending(msgid uint32) {
	c.mu.Lock()
	delete(c.pending, msgid)
	c.mu.Unlock()
}

// failPending invokes every pending call's error path and empties the table.
// Callbacks run outside the lock: they only feed buffered channels, but the
// lock is never held across anything that could block.
func (c *ClientServer) failPending(reason error) {
	c.mu.Lock()
	failed := c.pending
	c.pending = make(map[uint32]*pendingCall)
	c.mu.Unlock()

	for _, pc := range failed {
		pc.onError(reason)
	}
}

func (c *ClientServer) setReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ready == c.ready {
		return
	}
	c.ready = ready
	if ready {
		close(c.readyCh)
	} else {
		c.readyCh = make(chan struct{})
	}
}
