package nfc

import (
	"errors"
	"fmt"
	"testing"
)

func TestNFCError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *NFCError
		expected string
	}{
		{
			name:     "with op and message",
			err:      &NFCError{Code: ErrCodeNotSupported, Op: "TargetInit", Message: "cannot emulate FeliCa"},
			expected: "TargetInit: cannot emulate FeliCa",
		},
		{
			name: "with op, message, and cause",
			err: &NFCError{
				Code:    ErrCodeIO,
				Op:      "TargetReceive",
				Message: "input/output error",
				Cause:   errors.New("usb transfer failed"),
			},
			expected: "TargetReceive: input/output error: usb transfer failed",
		},
		{
			name:     "message only",
			err:      &NFCError{Code: ErrCodeTimeout, Message: "timeout"},
			expected: "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("NFCError.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNFCError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewError(ErrCodeIO, "InitiatorInit", cause)

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("NFCError.Unwrap() = %v, want %v", unwrapped, cause)
	}
	if unwrapped := NewAbortedError("TargetReceive").Unwrap(); unwrapped != nil {
		t.Errorf("NFCError.Unwrap() = %v, want nil", unwrapped)
	}
}

func TestNFCError_Is(t *testing.T) {
	err1 := &NFCError{Code: ErrCodeAborted, Message: "test"}
	err2 := &NFCError{Code: ErrCodeAborted, Message: "different message"}
	err3 := &NFCError{Code: ErrCodeTimeout, Message: "test"}

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should match NFCErrors with the same code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should not match NFCErrors with different codes")
	}
	if err1.Is(errors.New("not an NFCError")) {
		t.Error("NFCError.Is() should return false for non-NFCError")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  *NFCError
		code ErrorCode
	}{
		{NewNotSupportedError("op"), ErrCodeNotSupported},
		{NewAbortedError("op"), ErrCodeAborted},
		{NewTimeoutError("op"), ErrCodeTimeout},
		{NewNoPeerError("op"), ErrCodeNoPeer},
		{NewDeviceClosedError("op"), ErrCodeDeviceClosed},
		{NewTransceiveError("op", nil), ErrCodeTransceiveFailed},
	}
	for _, tt := range tests {
		if tt.err.Code != tt.code {
			t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
		}
		if tt.err.Op != "op" {
			t.Errorf("Op = %q, want %q", tt.err.Op, "op")
		}
		if tt.err.Message != tt.code.String() {
			t.Errorf("Message = %q, want %q", tt.err.Message, tt.code.String())
		}
	}

	if got := ErrorCode(7).String(); got != "error code 7" {
		t.Errorf("ErrorCode(7).String() = %q", got)
	}
}

func TestPredicates(t *testing.T) {
	wrapped := fmt.Errorf("attempt failed: %w", NewAbortedError("TargetReceive"))

	tests := []struct {
		name   string
		check  func(error) bool
		err    error
		expect bool
	}{
		{"aborted", IsAbortedError, NewAbortedError("TargetInit"), true},
		{"aborted wrapped", IsAbortedError, wrapped, true},
		{"aborted nil", IsAbortedError, nil, false},
		{"timeout", IsTimeoutError, NewTimeoutError("TargetReceive"), true},
		{"timeout vs aborted", IsTimeoutError, wrapped, false},
		{"no peer", IsNoPeerError, NewNoPeerError("InitiatorSelectDEP"), true},
		{"not supported", IsNotSupportedError, NewNotSupportedError("InitiatorPoll"), true},
		{"plain error not supported", IsNotSupportedError, errors.New("not supported"), false},
		{"device closed", IsDeviceClosedError, NewDeviceClosedError("Close"), true},
		{"io", IsIOError, NewError(ErrCodeIO, "op", nil), true},
		{"io closed", IsIOError, NewDeviceClosedError("op"), true},
		{"io open failed", IsIOError, NewError(ErrCodeOpenFailed, "op", nil), true},
		{"io timeout", IsIOError, NewTimeoutError("op"), false},
		{"miss timeout", IsExpectedMiss, NewTimeoutError("op"), true},
		{"miss released", IsExpectedMiss, NewError(ErrCodeTargetReleased, "op", nil), true},
		{"miss io", IsExpectedMiss, NewError(ErrCodeIO, "op", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.err); got != tt.expect {
				t.Errorf("got %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	if code := GetErrorCode(NewError(ErrCodeOverflow, "op", nil)); code != ErrCodeOverflow {
		t.Errorf("GetErrorCode() = %v, want %v", code, ErrCodeOverflow)
	}
	if code := GetErrorCode(errors.New("regular error")); code != 0 {
		t.Errorf("GetErrorCode() = %v, want 0", code)
	}
}
