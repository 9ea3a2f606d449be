package test

import (
	"bufio"
	"net"
	"sync"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"app-bridge/codec"
	"app-bridge/message"
)

// ---- Minimal in-process router ----
//
// Just enough router to test bridges end to end: it accepts connections,
// tracks which connection owns which method via $/register, and forwards
// requests, responses and notifications between peers. Forwarded requests get
// a fresh router-side msgid so two peers' id spaces never collide; the
// original id is restored when the response comes back.

type router struct {
	tb testing.TB
	ln net.Listener

	mu       sync.Mutex
	nextID   uint32
	routes   map[string]*routerConn
	inflight map[uint32]forwardedCall
}

type forwardedCall struct {
	origin *routerConn
	msgid  uint32
}

type routerConn struct {
	conn net.Conn
	dec  *msgpack.Decoder
	mu   sync.Mutex // serializes writes
}

func startRouter(tb testing.TB, network, addr string) *router {
	tb.Helper()
	ln, err := net.Listen(network, addr)
	if err != nil {
		tb.Fatal(err)
	}
	r := &router{
		tb:       tb,
		ln:       ln,
		routes:   make(map[string]*routerConn),
		inflight: make(map[uint32]forwardedCall),
	}
	go r.acceptLoop()
	tb.Cleanup(func() { ln.Close() })
	return r
}

func (r *router) address() string {
	if r.ln.Addr().Network() == "unix" {
		return "unix://" + r.ln.Addr().String()
	}
	return "tcp://" + r.ln.Addr().String()
}

func (r *router) acceptLoop() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		rc := &routerConn{conn: conn, dec: msgpack.NewDecoder(bufio.NewReader(conn))}
		go r.serve(rc)
	}
}

func (r *router) serve(rc *routerConn) {
	defer r.dropConn(rc)
	for {
		var v any
		if err := rc.dec.Decode(&v); err != nil {
			return
		}
		msg, err := codec.Decode(v)
		if err != nil {
			continue
		}
		switch m := msg.(type) {
		case *message.Request:
			r.handleRequest(rc, m)
		case *message.Response:
			r.handleResponse(m)
		case *message.Notification:
			r.handleNotification(m)
		}
	}
}

func (r *router) handleRequest(rc *routerConn, req *message.Request) {
	switch req.Method {
	case message.MethodRegister:
		name, _ := req.Params[0].(string)
		r.mu.Lock()
		_, exists := r.routes[name]
		if !exists {
			r.routes[name] = rc
		}
		r.mu.Unlock()
		if exists {
			rc.send([]any{message.TypeResponse, req.MsgID, []any{message.CodeRouteExists, "Route already exists"}, nil})
		} else {
			rc.send([]any{message.TypeResponse, req.MsgID, nil, nil})
		}

	case message.MethodUnregister:
		name, _ := req.Params[0].(string)
		r.mu.Lock()
		delete(r.routes, name)
		r.mu.Unlock()
		rc.send([]any{message.TypeResponse, req.MsgID, nil, nil})

	default:
		r.mu.Lock()
		owner, ok := r.routes[req.Method]
		if ok {
			r.nextID++
			r.inflight[r.nextID] = forwardedCall{origin: rc, msgid: req.MsgID}
		}
		routerID := r.nextID
		r.mu.Unlock()

		if !ok {
			rc.send([]any{message.TypeResponse, req.MsgID, []any{message.CodeMethodNotFound, "No route for method: " + req.Method}, nil})
			return
		}
		params := req.Params
		if params == nil {
			params = []any{}
		}
		owner.send([]any{message.TypeRequest, routerID, req.Method, params})
	}
}

func (r *router) handleResponse(resp *message.Response) {
	r.mu.Lock()
	fw, ok := r.inflight[resp.MsgID]
	delete(r.inflight, resp.MsgID)
	r.mu.Unlock()
	if !ok {
		return
	}
	var errField any
	if resp.Err != nil {
		errField = []any{resp.Err.Code, resp.Err.Message}
	}
	fw.origin.send([]any{message.TypeResponse, fw.msgid, errField, resp.Result})
}

func (r *router) handleNotification(n *message.Notification) {
	r.mu.Lock()
	owner, ok := r.routes[n.Method]
	r.mu.Unlock()
	if !ok {
		return
	}
	params := n.Params
	if params == nil {
		params = []any{}
	}
	owner.send([]any{message.TypeNotification, n.Method, params})
}

// dropConn forgets everything owned by a departed peer.
func (r *router) dropConn(rc *routerConn) {
	rc.conn.Close()
	r.mu.Lock()
	for name, owner := range r.routes {
		if owner == rc {
			delete(r.routes, name)
		}
	}
	r.mu.Unlock()
}

func (rc *routerConn) send(v any) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return
	}
	rc.mu.Lock()
	rc.conn.Write(data)
	rc.mu.Unlock()
}
