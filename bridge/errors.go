package bridge

import "errors"

// Sentinel errors surfaced by the public API. Wire-level protocol errors are
// handled locally (logged, non-fatal); only application-level outcomes (remote
// errors, timeouts, disconnects) propagate to the specific blocked caller.
var (
	// ErrClosed indicates the bridge has been shut down with Close.
	ErrClosed = errors.New("bridge closed")

	// ErrNotConnected indicates no connection is currently established;
	// the supervisor is still dialing or waiting out the reconnect delay.
	ErrNotConnected = errors.New("not connected to router")

	// ErrConnectionLost fails every pending call when the connection drops.
	ErrConnectionLost = errors.New("connection to router lost")

	// ErrTimeout indicates no response arrived within the call timeout.
	ErrTimeout = errors.New("timeout")

	// ErrInvalidHandler rejects a nil handler at Provide time.
	ErrInvalidHandler = errors.New("handler must not be nil")
)
