package bridge

import (
	"app-bridge/message"
	"app-bridge/transport"
	"time"
)

// supervise drives the connection state machine:
//
//	disconnected → connecting → connected → disconnected → …
//
// restarting forever until Close. Connect failures and disconnects both wait
// the fixed reconnect delay before the next attempt.
func (c *ClientServer) supervise() {
	for {
		if c.isClosed() {
			return
		}

		ep, err := c.resolveEndpoint()
		if err != nil {
			c.log.Warn("resolve router endpoint failed", "err", err)
			if !c.pause() {
				return
			}
			continue
		}

		conn, err := transport.Dial(ep, c.dialTimeout)
		if err != nil {
			c.log.Warn("connect failed", "endpoint", ep.String(), "err", err)
			if !c.pause() {
				return
			}
			continue
		}

		c.log.Info("connected to router", "endpoint", ep.String())
		c.runConnection(conn)

		if c.isClosed() {
			return
		}
		if !c.pause() {
			return
		}
	}
}

// runConnection owns one established connection from installation to teardown.
// Returns when the receive loop ends, with pending calls already failed.
func (c *ClientServer) runConnection(conn *transport.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.readLoop(conn) }()

	// Re-announce every provided method before signaling readiness, so a
	// caller unblocked by WaitReady can rely on the router routing to it.
	c.reregister()
	c.setReady(true)

	err := <-done
	c.setReady(false)

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()

	// Fail every pending call before the reconnect attempt begins: no Call
	// may block past the detection of a dropped connection.
	if c.isClosed() {
		c.failPending(ErrClosed)
		return
	}
	c.log.Warn("connection to router lost", "err", err)
	c.failPending(ErrConnectionLost)
}

// readLoop reads and dispatches values until the connection errors out.
// A zero-byte read (EOF) or reset surfaces as the returned error.
func (c *ClientServer) readLoop(conn *transport.Conn) error {
	for {
		v, err := conn.Recv()
		if err != nil {
			return err
		}
		c.dispatch(v)
	}
}

// reregister announces every entry currently in the handler registry,
// serialized. Failures are logged and skipped: the $/register call itself may
// race a dying connection, and the next reconnect announces again.
func (c *ClientServer) reregister() {
	c.mu.Lock()
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	c.mu.Unlock()

	for _, name := range names {
		if _, err := c.Call(message.MethodRegister, name); err != nil {
			c.log.Error("re-register failed", "method", name, "err", err)
		}
	}
}

func (c *ClientServer) resolveEndpoint() (transport.Endpoint, error) {
	if c.resolver != nil {
		addr, err := c.resolver.Resolve()
		if err != nil {
			return transport.Endpoint{}, err
		}
		return transport.ParseAddress(addr)
	}
	return c.endpoint, nil
}

// pause waits the reconnect delay; false means the bridge closed meanwhile.
func (c *ClientServer) pause() bool {
	timer := time.NewTimer(c.reconnectDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.closedCh:
		return false
	}
}

func (c *ClientServer) isClosed() bool {
	select {
	case <-c.closedCh:
		return true
	default:
		return false
	}
}
