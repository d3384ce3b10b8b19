// Package pn532 implements nfc.Transport for an NXP PN532 attached over its
// high speed UART (HSU) link.
package pn532

import (
	"errors"
	"fmt"
)

// Frame identifiers.
const (
	tfiHostToPN532 = 0xD4
	tfiPN532ToHost = 0xD5
	tfiError       = 0x7F
)

// maxFrameData is the largest TFI+data length of an extended frame the chip
// accepts.
const maxFrameData = 265

var (
	ackFrame  = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	nackFrame = []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}
	// wakeUp brings the chip out of power down before the first command.
	wakeUp = []byte{0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
)

var (
	errIncomplete  = errors.New("incomplete frame")
	errBadChecksum = errors.New("frame checksum mismatch")
)

// FrameKind distinguishes the frames the chip can send.
type FrameKind int

const (
	FrameInfo FrameKind = iota
	FrameACK
	FrameNACK
	FrameError
)

func (k FrameKind) String() string {
	switch k {
	case FrameInfo:
		return "information"
	case FrameACK:
		return "ACK"
	case FrameNACK:
		return "NACK"
	case FrameError:
		return "error"
	}
	return fmt.Sprintf("frame kind %d", int(k))
}

// Frame is a decoded frame. Data excludes the TFI byte.
type Frame struct {
	Kind FrameKind
	TFI  byte
	Data []byte
}

// checksum returns the byte that makes the sum of p and itself zero.
func checksum(p ...byte) byte {
	var sum byte
	for _, b := range p {
		sum += b
	}
	return ^sum + 1
}

// EncodeFrame wraps a host command in a normal information frame, or an
// extended one when it does not fit.
func EncodeFrame(data []byte) ([]byte, error) {
	n := len(data) + 1
	if n > maxFrameData {
		return nil, fmt.Errorf("frame payload of %d bytes exceeds %d", n, maxFrameData)
	}

	buf := make([]byte, 0, n+10)
	buf = append(buf, 0x00, 0x00, 0xFF)
	if n < 0xFF {
		buf = append(buf, byte(n), checksum(byte(n)))
	} else {
		lenM, lenL := byte(n>>8), byte(n)
		buf = append(buf, 0xFF, 0xFF, lenM, lenL, checksum(lenM, lenL))
	}
	buf = append(buf, tfiHostToPN532)
	buf = append(buf, data...)
	buf = append(buf, checksum(append([]byte{tfiHostToPN532}, data...)...), 0x00)
	return buf, nil
}

// DecodeFrame looks for the first complete frame in buf. It returns the frame
// and the number of bytes consumed. errIncomplete means more input is
// needed; on errBadChecksum the consumed bytes should be dropped.
func DecodeFrame(buf []byte) (Frame, int, error) {
	start := -1
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == 0x00 && buf[i+1] == 0xFF {
			start = i + 2
			break
		}
	}
	if start < 0 {
		// keep a trailing 0x00, it may be the first start code byte
		if n := len(buf); n > 0 && buf[n-1] == 0x00 {
			return Frame{}, n - 1, errIncomplete
		}
		return Frame{}, len(buf), errIncomplete
	}

	rest := buf[start:]
	if len(rest) < 2 {
		return Frame{}, start - 2, errIncomplete
	}
	length, lcs := rest[0], rest[1]

	switch {
	case length == 0x00 && lcs == 0xFF:
		return Frame{Kind: FrameACK}, skipPostamble(buf, start+2), nil
	case length == 0xFF && lcs == 0x00:
		return Frame{Kind: FrameNACK}, skipPostamble(buf, start+2), nil
	}

	var n, header int
	if length == 0xFF && lcs == 0xFF {
		if len(rest) < 5 {
			return Frame{}, start - 2, errIncomplete
		}
		if checksum(rest[2], rest[3]) != rest[4] {
			return Frame{}, start, errBadChecksum
		}
		n = int(rest[2])<<8 | int(rest[3])
		header = 5
	} else {
		if byte(length+lcs) != 0 {
			return Frame{}, start, errBadChecksum
		}
		n = int(length)
		header = 2
	}

	// TFI and data, then DCS
	if len(rest) < header+n+1 {
		return Frame{}, start - 2, errIncomplete
	}
	body := rest[header : header+n]
	if checksum(body...) != rest[header+n] {
		return Frame{}, start + header + n + 1, errBadChecksum
	}
	consumed := skipPostamble(buf, start+header+n+1)
	if n == 0 {
		return Frame{}, consumed, errBadChecksum
	}

	frame := Frame{Kind: FrameInfo, TFI: body[0], Data: append([]byte(nil), body[1:]...)}
	if frame.TFI == tfiError {
		frame.Kind = FrameError
	}
	return frame, consumed, nil
}

func skipPostamble(buf []byte, i int) int {
	if len(buf) > i && buf[i] == 0x00 {
		return i + 1
	}
	return i
}
