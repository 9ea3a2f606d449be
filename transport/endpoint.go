// Package transport maintains the single stream socket a bridge owns: address
// parsing, dialing with a bounded timeout, an incremental MessagePack reader
// that reassembles complete values from arbitrary chunking, and a mutex-guarded
// atomic send.
package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Endpoint identifies the peer as either a TCP host:port pair or a Unix domain
// socket path. Immutable once parsed; Network selects the socket family.
type Endpoint struct {
	Network string // "tcp" or "unix"
	Addr    string // "host:port" for tcp, filesystem path for unix
}

// ParseAddress parses a transport address of the form tcp://<host>:<port> or
// unix://<path>. Parsed once at construction time; the scheme selects the
// connect strategy.
func ParseAddress(address string) (Endpoint, error) {
	switch {
	case strings.HasPrefix(address, "tcp://"):
		addr := strings.TrimPrefix(address, "tcp://")
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return Endpoint{}, fmt.Errorf("invalid tcp address %q: %w", address, err)
		}
		if host == "" {
			return Endpoint{}, fmt.Errorf("invalid tcp address %q: missing host", address)
		}
		if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			return Endpoint{}, fmt.Errorf("invalid tcp address %q: bad port %q", address, port)
		}
		return Endpoint{Network: "tcp", Addr: addr}, nil

	case strings.HasPrefix(address, "unix://"):
		path := strings.TrimPrefix(address, "unix://")
		if path == "" {
			return Endpoint{}, fmt.Errorf("invalid unix address %q: empty path", address)
		}
		return Endpoint{Network: "unix", Addr: path}, nil

	default:
		return Endpoint{}, fmt.Errorf("unsupported address %q: expected tcp:// or unix:// scheme", address)
	}
}

func (e Endpoint) String() string {
	return e.Network + "://" + e.Addr
}
