// Package message defines the wire-level message variants exchanged between a
// bridge and its router over a single socket connection.
//
// Every message is a MessagePack array tagged by an integer type code:
//
//	Request:      [0, msgid, method, params]
//	Response:     [1, msgid, error, result]
//	Notification: [2, method, params]
//
// A Request expects exactly one Response with the same msgid. A Notification is
// fire-and-forget: no response is expected or possible.
package message

import "fmt"

// Message type codes, the first element of every wire array.
const (
	TypeRequest      = 0 // expects a Response with the same msgid
	TypeResponse     = 1 // terminates exactly one outstanding Request
	TypeNotification = 2 // one-way, no msgid
)

// Error codes carried in the error field of a Response ([code, message]).
const (
	CodeGeneric        = 0 // handler failure or unspecified remote error
	CodeMethodNotFound = 1 // no handler registered under the requested name
	CodeRouteExists    = 2 // router already has a route for this name; $/register
	//                       treats it as success so re-registration after a
	//                       reconnect resolves silently
)

// Reserved method names the bridge calls on the router to announce or retract
// locally provided methods. Application handlers must not be provided under
// these names.
const (
	MethodRegister   = "$/register"
	MethodUnregister = "$/unregister"
)

// Message is one of Request, Response or Notification.
type Message interface {
	wireType() int
}

// Request asks the peer to invoke method with params and reply with the same msgid.
type Request struct {
	MsgID  uint32
	Method string
	Params []any
}

// Response terminates the outstanding Request with matching MsgID.
// Err == nil means success; Result may legitimately be nil either way.
type Response struct {
	MsgID  uint32
	Err    *Error
	Result any
}

// Notification invokes method with params on the peer without expecting a reply.
type Notification struct {
	Method string
	Params []any
}

func (*Request) wireType() int      { return TypeRequest }
func (*Response) wireType() int     { return TypeResponse }
func (*Notification) wireType() int { return TypeNotification }

// Error is the wire error payload [code, message]. It doubles as a Go error so
// remote failures can flow through normal error returns.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}
