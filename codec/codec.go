// Package codec serializes and deserializes the bridge wire protocol.
//
// The wire format is plain MessagePack arrays: there is no extra envelope or
// length prefix; the streaming MessagePack parser itself delimits values. The
// codec validates the shape of every decoded value and converts it into one of
// the typed variants in the message package. Shape violations never kill the
// connection: the caller logs the error and drops the value.
package codec

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"app-bridge/message"
)

// ErrInvalidMessage reports a top-level shape violation: the decoded value is
// not a non-empty array.
var ErrInvalidMessage = errors.New("invalid RPC message (must be a non-empty array)")

// ValidationError reports a malformed request, response or notification array.
// Logged at error level by the dispatcher; the message is dropped.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// UnknownTypeError reports a leading type tag outside {0, 1, 2}.
// Logged at warning level by the dispatcher; the message is dropped.
type UnknownTypeError struct {
	Tag any
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("invalid RPC message type: %v", e.Tag)
}

// EncodeRequest packs [0, msgid, method, params].
// A nil params slice is sent as an empty array so zero-argument calls are
// indistinguishable from calls with an explicit empty parameter list.
func EncodeRequest(msgid uint32, method string, params []any) ([]byte, error) {
	if params == nil {
		params = []any{}
	}
	return msgpack.Marshal([]any{message.TypeRequest, msgid, method, params})
}

// EncodeResponse packs [1, msgid, error, result] with error either nil or the
// 2-element [code, message] array.
func EncodeResponse(msgid uint32, werr *message.Error, result any) ([]byte, error) {
	var errField any
	if werr != nil {
		errField = []any{werr.Code, werr.Message}
	}
	return msgpack.Marshal([]any{message.TypeResponse, msgid, errField, result})
}

// EncodeNotification packs [2, method, params].
func EncodeNotification(method string, params []any) ([]byte, error) {
	if params == nil {
		params = []any{}
	}
	return msgpack.Marshal([]any{message.TypeNotification, method, params})
}

// Decode validates an already-unpacked MessagePack value and converts it into
// a typed message. The transport's streaming decoder produces these values;
// DecodeBytes exists for callers holding raw bytes.
func Decode(v any) (message.Message, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil, ErrInvalidMessage
	}

	tag, ok := asInt(arr[0])
	if !ok {
		return nil, &UnknownTypeError{Tag: arr[0]}
	}

	switch tag {
	case message.TypeRequest:
		return decodeRequest(arr)
	case message.TypeResponse:
		return decodeResponse(arr)
	case message.TypeNotification:
		return decodeNotification(arr)
	default:
		return nil, &UnknownTypeError{Tag: tag}
	}
}

// DecodeBytes unpacks one MessagePack value and validates it as a message.
func DecodeBytes(data []byte) (message.Message, error) {
	var v any
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}
	return Decode(v)
}

func decodeRequest(arr []any) (message.Message, error) {
	if len(arr) != 4 {
		return nil, &ValidationError{fmt.Sprintf("invalid RPC request: expected length 4, got %d", len(arr))}
	}
	msgid, ok := asUint32(arr[1])
	if !ok {
		return nil, &ValidationError{"invalid RPC request: msgid must be an integer"}
	}
	// Peers may pack the method name as either a str or a bin value.
	method, ok := asString(arr[2])
	if !ok {
		return nil, &ValidationError{"invalid RPC request: method must be a string"}
	}
	params, ok := asParams(arr[3])
	if !ok {
		return nil, &ValidationError{"invalid RPC request params: expected array"}
	}
	return &message.Request{MsgID: msgid, Method: method, Params: params}, nil
}

func decodeResponse(arr []any) (message.Message, error) {
	if len(arr) != 4 {
		return nil, &ValidationError{fmt.Sprintf("invalid RPC response: expected length 4, got %d", len(arr))}
	}
	msgid, ok := asUint32(arr[1])
	if !ok {
		return nil, &ValidationError{"invalid RPC response: msgid must be an integer"}
	}
	werr, ok := asError(arr[2])
	if !ok {
		return nil, &ValidationError{"invalid error format in RPC response"}
	}
	return &message.Response{MsgID: msgid, Err: werr, Result: arr[3]}, nil
}

func decodeNotification(arr []any) (message.Message, error) {
	if len(arr) != 3 {
		return nil, &ValidationError{fmt.Sprintf("invalid RPC notification: expected length 3, got %d", len(arr))}
	}
	method, ok := asString(arr[1])
	if !ok {
		return nil, &ValidationError{"invalid RPC notification: method must be a string"}
	}
	params, ok := asParams(arr[2])
	if !ok {
		return nil, &ValidationError{"invalid RPC notification params: expected array"}
	}
	return &message.Notification{Method: method, Params: params}, nil
}

// asError accepts nil or a 2-element [code, message] array.
func asError(v any) (*message.Error, bool) {
	if v == nil {
		return nil, true
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return nil, false
	}
	code, ok := asInt(arr[0])
	if !ok {
		return nil, false
	}
	msg, ok := asString(arr[1])
	if !ok {
		return nil, false
	}
	return &message.Error{Code: int(code), Message: msg}, true
}

// asInt normalizes every integer width MessagePack decoding may produce.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}

func asUint32(v any) (uint32, bool) {
	n, ok := asInt(v)
	if !ok || n < 0 {
		return 0, false
	}
	return uint32(n), true
}

// asString treats bin and str values identically: peer implementations may
// encode method names either way.
func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

func asParams(v any) ([]any, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	return arr, true
}
