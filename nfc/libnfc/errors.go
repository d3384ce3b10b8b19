package libnfc

import (
	"errors"
	"fmt"

	clnfc "github.com/clausecker/nfc/v2"

	"github.com/dotside-studios/nfc-handoff-agent/nfc"
)

// libnfc return codes (nfc.h).
const (
	codeIO              = -1
	codeInvalidArgument = -2
	codeDevNotSupported = -3
	codeNoSuchDevice    = -4
	codeOverflow        = -5
	codeTimeout         = -6
	codeAborted         = -7
	codeNotImplemented  = -8
	codeTargetReleased  = -10
	codeRFTransmission  = -20
	codeMifareAuth      = -30
	codeSoft            = -80
	codeChip            = -90
)

var libnfcMessages = map[int]string{
	codeIO:              "Input / Output Error",
	codeInvalidArgument: "Invalid argument(s)",
	codeDevNotSupported: "Not Supported by Device",
	codeNoSuchDevice:    "No Such Device",
	codeOverflow:        "Buffer Overflow",
	codeTimeout:         "Timeout",
	codeAborted:         "Operation Aborted",
	codeNotImplemented:  "Not (yet) Implemented",
	codeTargetReleased:  "Target Released",
	codeRFTransmission:  "RF Transmission Error",
	codeMifareAuth:      "Mifare Authentication Failed",
	codeSoft:            "Software Error",
	codeChip:            "Device's Internal Chip Error",
}

// errorCodeFor maps a libnfc return code onto the agent's error codes.
func errorCodeFor(code int) nfc.ErrorCode {
	switch code {
	case codeAborted:
		return nfc.ErrCodeAborted
	case codeTimeout:
		return nfc.ErrCodeTimeout
	case codeTargetReleased:
		return nfc.ErrCodeTargetReleased
	case codeOverflow:
		return nfc.ErrCodeOverflow
	case codeInvalidArgument:
		return nfc.ErrCodeInvalidArgument
	case codeDevNotSupported, codeNotImplemented:
		return nfc.ErrCodeNotSupported
	case codeRFTransmission, codeMifareAuth:
		return nfc.ErrCodeTransceiveFailed
	default:
		return nfc.ErrCodeIO
	}
}

// fromCode converts a negative libnfc return code into an NFCError.
func fromCode(op string, code int) error {
	msg, ok := libnfcMessages[code]
	if !ok {
		msg = fmt.Sprintf("Unknown error %d", code)
	}
	return &nfc.NFCError{Code: errorCodeFor(code), Op: op, Message: msg}
}

// fromError converts an error returned by the libnfc bindings into an
// NFCError, keeping the original as its cause.
func fromError(op string, err error) error {
	if err == nil {
		return nil
	}
	var libErr clnfc.Error
	if errors.As(err, &libErr) {
		code := int(libErr)
		return &nfc.NFCError{Code: errorCodeFor(code), Op: op, Message: libErr.Error(), Cause: err}
	}
	return nfc.NewError(nfc.ErrCodeIO, op, err)
}
