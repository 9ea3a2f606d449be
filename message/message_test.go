package message

import "testing"

func TestErrorString(t *testing.T) {
	e := &Error{Code: CodeGeneric, Message: "something went wrong"}
	want := "remote error 0: something went wrong"
	if e.Error() != want {
		t.Errorf("Error string mismatch: got %q, want %q", e.Error(), want)
	}
}

func TestTypeCodes(t *testing.T) {
	// The wire tags are protocol constants and must never drift.
	if TypeRequest != 0 || TypeResponse != 1 || TypeNotification != 2 {
		t.Fatalf("wire type codes changed: request=%d response=%d notification=%d",
			TypeRequest, TypeResponse, TypeNotification)
	}
}

func TestReservedMethodNames(t *testing.T) {
	if MethodRegister != "$/register" {
		t.Errorf("register method name changed: %q", MethodRegister)
	}
	if MethodUnregister != "$/unregister" {
		t.Errorf("unregister method name changed: %q", MethodUnregister)
	}
}
