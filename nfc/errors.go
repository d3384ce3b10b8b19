package nfc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a specific type of NFC error for programmatic handling.
type ErrorCode int

const (
	// Transport operation errors (100-199)
	ErrCodeNotSupported ErrorCode = iota + 100
	ErrCodeAborted
	ErrCodeTimeout
	ErrCodeNoPeer
	ErrCodeTransceiveFailed
	ErrCodeDeviceClosed
	ErrCodeOpenFailed
	ErrCodeOverflow
	ErrCodeTargetReleased
	ErrCodeIO
	ErrCodeInvalidArgument
)

var errorCodeNames = map[ErrorCode]string{
	ErrCodeNotSupported:     "not supported",
	ErrCodeAborted:          "operation aborted",
	ErrCodeTimeout:          "timeout",
	ErrCodeNoPeer:           "no peer",
	ErrCodeTransceiveFailed: "transceive failed",
	ErrCodeDeviceClosed:     "device closed",
	ErrCodeOpenFailed:       "open failed",
	ErrCodeOverflow:         "buffer overflow",
	ErrCodeTargetReleased:   "target released",
	ErrCodeIO:               "input/output error",
	ErrCodeInvalidArgument:  "invalid argument",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error code %d", int(c))
}

// NFCError provides structured error information for programmatic handling.
type NFCError struct {
	Code    ErrorCode
	Op      string // Operation that failed (e.g., "TargetReceive", "InitiatorSelectDEP")
	Message string // Human-readable message
	Cause   error  // Underlying error
}

func (e *NFCError) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *NFCError) Unwrap() error {
	return e.Cause
}

func (e *NFCError) Is(target error) bool {
	if t, ok := target.(*NFCError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError creates an NFCError whose message is the code's name.
func NewError(code ErrorCode, op string, cause error) *NFCError {
	return &NFCError{
		Code:    code,
		Op:      op,
		Message: code.String(),
		Cause:   cause,
	}
}

// NewNotSupportedError creates an error for unsupported operations.
func NewNotSupportedError(op string) *NFCError {
	return NewError(ErrCodeNotSupported, op, nil)
}

// NewAbortedError creates an error for a blocking call cancelled by AbortCommand.
func NewAbortedError(op string) *NFCError {
	return NewError(ErrCodeAborted, op, nil)
}

// NewTimeoutError creates an error for a call that ran past its timeout.
func NewTimeoutError(op string) *NFCError {
	return NewError(ErrCodeTimeout, op, nil)
}

// NewNoPeerError creates an error for a select or poll that found nothing.
func NewNoPeerError(op string) *NFCError {
	return NewError(ErrCodeNoPeer, op, nil)
}

// NewDeviceClosedError creates an error for calls against a closed transport.
func NewDeviceClosedError(op string) *NFCError {
	return NewError(ErrCodeDeviceClosed, op, nil)
}

// NewTransceiveError creates an error for transceive failures.
func NewTransceiveError(op string, cause error) *NFCError {
	return NewError(ErrCodeTransceiveFailed, op, cause)
}

// GetErrorCode extracts the ErrorCode from an error if it's an NFCError.
// Returns 0 if the error is not an NFCError.
func GetErrorCode(err error) ErrorCode {
	var nfcErr *NFCError
	if errors.As(err, &nfcErr) {
		return nfcErr.Code
	}
	return 0
}

func hasCode(err error, code ErrorCode) bool {
	return err != nil && GetErrorCode(err) == code
}

// IsAbortedError reports whether err comes from a cancelled blocking call.
func IsAbortedError(err error) bool { return hasCode(err, ErrCodeAborted) }

// IsTimeoutError reports whether err is a transport timeout.
func IsTimeoutError(err error) bool { return hasCode(err, ErrCodeTimeout) }

// IsNoPeerError reports whether a select or poll found no peer.
func IsNoPeerError(err error) bool { return hasCode(err, ErrCodeNoPeer) }

// IsNotSupportedError checks if an error indicates an unsupported operation.
func IsNotSupportedError(err error) bool { return hasCode(err, ErrCodeNotSupported) }

// IsDeviceClosedError reports whether the transport was already closed.
func IsDeviceClosedError(err error) bool { return hasCode(err, ErrCodeDeviceClosed) }

// IsIOError reports whether err is a hardware or link level failure, the
// class of errors that may indicate an unplugged or wedged reader.
func IsIOError(err error) bool {
	switch GetErrorCode(err) {
	case ErrCodeIO, ErrCodeDeviceClosed, ErrCodeOpenFailed:
		return true
	}
	return false
}

// IsExpectedMiss reports whether err is a routine negative outcome of an
// attempt: nobody answered, the wait ran out or the call was cancelled.
func IsExpectedMiss(err error) bool {
	switch GetErrorCode(err) {
	case ErrCodeTimeout, ErrCodeAborted, ErrCodeNoPeer, ErrCodeTargetReleased:
		return true
	}
	return false
}
