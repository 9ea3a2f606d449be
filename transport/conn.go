package transport

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// DefaultDialTimeout bounds TCP connect attempts. Unix domain connects either
// succeed or fail immediately; the bound is harmless there.
const DefaultDialTimeout = 5 * time.Second

// Conn wraps one stream socket with a streaming MessagePack decoder on the
// read side and a write mutex on the send side.
//
// Reads must stay sequential: the decoder owns the byte stream and reassembles
// complete MessagePack values regardless of how TCP chunks them. Exactly one
// goroutine may call Recv. Send may be called from any number of goroutines:
// the mutex guarantees each encoded message reaches the socket as one
// contiguous write, so concurrent senders cannot interleave bytes.
type Conn struct {
	rwc     net.Conn
	dec     *msgpack.Decoder
	writeMu sync.Mutex
}

// Dial connects to the endpoint with the given timeout and wraps the socket.
// A non-positive timeout falls back to DefaultDialTimeout.
func Dial(ep Endpoint, timeout time.Duration) (*Conn, error) {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	nc, err := net.DialTimeout(ep.Network, ep.Addr, timeout)
	if err != nil {
		return nil, err
	}
	return NewConn(nc), nil
}

// NewConn wraps an established socket. Useful for tests driving a Conn over
// net.Pipe and for router implementations accepting inbound bridges.
func NewConn(nc net.Conn) *Conn {
	return &Conn{
		rwc: nc,
		dec: msgpack.NewDecoder(bufio.NewReader(nc)),
	}
}

// Recv blocks until one complete MessagePack value has been reassembled from
// the stream and returns it undecoded into Go native types. A zero-byte read
// or connection reset surfaces as the underlying error; the caller treats any
// error as a disconnect.
func (c *Conn) Recv() (any, error) {
	var v any
	if err := c.dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Send writes one encoded message to the socket atomically with respect to
// other senders.
func (c *Conn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.rwc.Write(data)
	return err
}

// Close closes the socket, unblocking any Recv in progress.
func (c *Conn) Close() error {
	return c.rwc.Close()
}

// RemoteAddr reports the peer address of the underlying socket.
func (c *Conn) RemoteAddr() net.Addr {
	return c.rwc.RemoteAddr()
}
