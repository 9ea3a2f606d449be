package bridge

import (
	"context"
	"errors"
	"fmt"

	"app-bridge/codec"
	"app-bridge/message"
	"app-bridge/middleware"
)

// dispatch routes one decoded wire value. Runs synchronously on the receive
// goroutine; malformed values are logged and dropped, never fatal to the
// connection.
func (c *ClientServer) dispatch(v any) {
	msg, err := codec.Decode(v)
	if err != nil {
		var verr *codec.ValidationError
		switch {
		case errors.As(err, &verr):
			c.log.Error("message validation error", "err", verr)
		default:
			// Non-array top-level value or unknown type tag: warn and drop.
			c.log.Warn("invalid RPC message received", "err", err)
		}
		return
	}

	switch m := msg.(type) {
	case *message.Request:
		c.handleRequest(m)
	case *message.Response:
		c.handleResponse(m)
	case *message.Notification:
		c.handleNotification(m)
	}
}

// invoke is the innermost handler of the middleware chain: look the method up
// in the registry and run it. Panics are converted to errors here so a
// misbehaving handler can never kill the receive goroutine, regardless of
// which middleware (if any) wraps it.
func (c *ClientServer) invoke(_ context.Context, req *middleware.Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	c.mu.Lock()
	fn, ok := c.handlers[req.Method]
	c.mu.Unlock()
	if !ok {
		return nil, &message.Error{Code: message.CodeMethodNotFound, Message: "method not found: " + req.Method}
	}
	return fn(req.Params...)
}

// handleRequest runs the handler chain and always answers the peer: a result
// response on success, an error response otherwise. Either branch is a
// side effect the peer observes.
func (c *ClientServer) handleRequest(req *message.Request) {
	result, err := c.chain(context.Background(), &middleware.Request{Method: req.Method, Params: req.Params})
	if err == nil {
		c.sendResponse(req.MsgID, nil, result)
		return
	}

	// Errors go on the wire in the [code, message] shape. Handlers may return
	// a *message.Error to pick their own code; anything else is generic.
	var werr *message.Error
	if !errors.As(err, &werr) {
		werr = &message.Error{Code: message.CodeGeneric, Message: err.Error()}
	}
	c.sendResponse(req.MsgID, werr, nil)
}

// handleResponse completes the pending call with matching msgid. A response
// for an unknown msgid is simply too late or a duplicate: warn and drop.
func (c *ClientServer) handleResponse(resp *message.Response) {
	c.mu.Lock()
	pc, ok := c.pending[resp.MsgID]
	if ok {
		delete(c.pending, resp.MsgID)
	}
	c.mu.Unlock()

	if !ok {
		c.log.Warn("response for unknown msgid received", "msgid", resp.MsgID)
		return
	}

	if resp.Err != nil {
		// $/register idempotency: the router still remembering a prior
		// registration counts as success for the re-registering caller.
		if resp.Err.Code == message.CodeRouteExists {
			pc.onResult(nil)
			return
		}
		pc.onError(resp.Err)
		return
	}
	pc.onResult(resp.Result)
}

// handleNotification invokes the handler if one is registered and discards the
// result. Never answers the peer; notifications are one-way by definition.
func (c *ClientServer) handleNotification(n *message.Notification) {
	_, err := c.chain(context.Background(), &middleware.Request{Method: n.Method, Params: n.Params})
	if err == nil {
		return
	}
	var werr *message.Error
	if errors.As(err, &werr) && werr.Code == message.CodeMethodNotFound {
		c.log.Warn("notification for unknown method", "method", n.Method)
		return
	}
	c.log.Error("notification handler failed", "method", n.Method, "err", err)
}

func (c *ClientServer) sendResponse(msgid uint32, werr *message.Error, result any) {
	data, err := codec.EncodeResponse(msgid, werr, result)
	if err != nil {
		c.log.Error("encode response failed", "msgid", msgid, "err", err)
		return
	}
	if err := c.sendBytes(data); err != nil {
		c.log.Error("send response failed", "msgid", msgid, "err", err)
	}
}
