package pn532

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/dotside-studios/nfc-handoff-agent/nfc"
)

// ConnectionPrefix selects this backend in a connection string:
// "pn532_uart:/dev/ttyUSB0" or "pn532_uart:/dev/ttyUSB0:115200".
const ConnectionPrefix = "pn532_uart:"

// Link timings.
const (
	DefaultBaudRate = 115200
	ackTimeout      = 100 * time.Millisecond
	setupTimeout    = time.Second
	readSlice       = 50 * time.Millisecond
	pollSlotTime    = 150 * time.Millisecond
)

// Port is the part of a serial port the transport uses. serial.Port
// satisfies it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

type targetKind int

const (
	targetNone targetKind = iota
	targetDEP
	targetPICC
)

// Transport drives a PN532 over HSU.
type Transport struct {
	port       Port
	connection string
	logger     *log.Logger

	writeMu sync.Mutex
	awake   bool

	// pending holds bytes read past the last decoded frame.
	pending []byte
	target  targetKind
	ready   bool

	aborted atomic.Bool
	closed  atomic.Bool
}

var (
	_ nfc.Transport      = (*Transport)(nil)
	_ nfc.AbortDiscarder = (*Transport)(nil)
)

// ParseConnection splits a connection string into port path and baud rate.
func ParseConnection(connection string) (string, int, error) {
	rest, ok := strings.CutPrefix(connection, ConnectionPrefix)
	if !ok || rest == "" {
		return "", 0, fmt.Errorf("invalid PN532 connection string %q", connection)
	}
	path, baud := rest, DefaultBaudRate
	if i := strings.LastIndexByte(rest, ':'); i > 0 {
		if n, err := strconv.Atoi(rest[i+1:]); err == nil {
			if n <= 0 {
				return "", 0, fmt.Errorf("invalid baud rate %d", n)
			}
			path, baud = rest[:i], n
		}
	}
	return path, baud, nil
}

// Open opens the serial port named by connection and configures the chip.
func Open(connection string, logger *log.Logger) (*Transport, error) {
	path, baud, err := ParseConnection(connection)
	if err != nil {
		return nil, nfc.NewError(nfc.ErrCodeInvalidArgument, "OpenTransport", err)
	}
	port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, &nfc.NFCError{Code: nfc.ErrCodeOpenFailed, Op: "OpenTransport", Message: "unable to open serial port " + path, Cause: err}
	}

	t := New(port, connection, logger)
	if err := t.setup(); err != nil {
		port.Close()
		return nil, &nfc.NFCError{Code: nfc.ErrCodeOpenFailed, Op: "OpenTransport", Message: "PN532 did not answer", Cause: err}
	}
	return t, nil
}

// New wraps an already open port. The chip is configured on first use.
func New(port Port, connection string, logger *log.Logger) *Transport {
	if logger == nil {
		logger = log.New(os.Stderr, "[pn532] ", log.LstdFlags)
	}
	return &Transport{port: port, connection: connection, logger: logger}
}

func (t *Transport) setup() error {
	if t.ready {
		return nil
	}
	if _, err := t.call("SAMConfiguration", cmdSAMConfiguration, []byte{samNormalMode, 0x14, 0x01}, setupTimeout); err != nil {
		return err
	}
	t.ready = true
	return nil
}

func (t *Transport) write(p []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if !t.awake {
		p = append(append([]byte(nil), wakeUp...), p...)
		t.awake = true
	}
	_, err := t.port.Write(p)
	return err
}

// readFrame returns the next frame. A zero timeout waits until a frame
// arrives or the call is aborted.
func (t *Transport) readFrame(op string, timeout time.Duration) (Frame, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := t.port.SetReadTimeout(readSlice); err != nil {
		return Frame{}, nfc.NewError(nfc.ErrCodeIO, op, err)
	}

	buf := make([]byte, 128)
	for {
		if len(t.pending) > 0 {
			frame, consumed, err := DecodeFrame(t.pending)
			t.pending = t.pending[consumed:]
			switch {
			case err == nil:
				return frame, nil
			case errors.Is(err, errBadChecksum):
				t.logger.Printf("Dropping corrupt frame during %s", op)
				continue
			}
		}

		if t.aborted.CompareAndSwap(true, false) {
			return Frame{}, nfc.NewAbortedError(op)
		}
		if t.closed.Load() {
			return Frame{}, nfc.NewDeviceClosedError(op)
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return Frame{}, nfc.NewTimeoutError(op)
		}

		n, err := t.port.Read(buf)
		if err != nil {
			if t.closed.Load() {
				return Frame{}, nfc.NewDeviceClosedError(op)
			}
			return Frame{}, nfc.NewError(nfc.ErrCodeIO, op, err)
		}
		t.pending = append(t.pending, buf[:n]...)
	}
}

// call sends a command, waits for its ACK and returns the response data
// after the response code. On timeout the command is cancelled with an ACK.
func (t *Transport) call(op string, cmd byte, params []byte, timeout time.Duration) ([]byte, error) {
	if t.closed.Load() {
		return nil, nfc.NewDeviceClosedError(op)
	}

	frame, err := EncodeFrame(append([]byte{cmd}, params...))
	if err != nil {
		return nil, nfc.NewError(nfc.ErrCodeInvalidArgument, op, err)
	}
	// an abort still set when the call returns was aimed at this call
	defer t.aborted.Store(false)
	t.pending = t.pending[:0]
	if err := t.write(frame); err != nil {
		return nil, nfc.NewError(nfc.ErrCodeIO, op, err)
	}

	ack, err := t.readFrame(op, ackTimeout)
	if err != nil {
		if nfc.IsAbortedError(err) {
			_ = t.write(ackFrame)
		}
		return nil, err
	}
	if ack.Kind != FrameACK {
		return nil, &nfc.NFCError{Code: nfc.ErrCodeIO, Op: op, Message: fmt.Sprintf("expected ACK, got %s frame", ack.Kind)}
	}

	resp, err := t.readFrame(op, timeout)
	if err != nil {
		if nfc.IsTimeoutError(err) || nfc.IsAbortedError(err) {
			// stop the chip so the next command is accepted
			if werr := t.write(ackFrame); werr != nil {
				t.logger.Printf("Error cancelling %s: %v", op, werr)
			}
		}
		return nil, err
	}
	switch {
	case resp.Kind == FrameError:
		return nil, &nfc.NFCError{Code: nfc.ErrCodeIO, Op: op, Message: "PN532 reported a syntax error"}
	case resp.TFI != tfiPN532ToHost || len(resp.Data) == 0 || resp.Data[0] != cmd+1:
		return nil, &nfc.NFCError{Code: nfc.ErrCodeIO, Op: op, Message: "unexpected response"}
	}
	return resp.Data[1:], nil
}

// exchange is call for commands whose response starts with a status byte.
func (t *Transport) exchange(op string, cmd byte, params []byte, timeout time.Duration) ([]byte, error) {
	resp, err := t.call(op, cmd, params, timeout)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, &nfc.NFCError{Code: nfc.ErrCodeIO, Op: op, Message: "missing status byte"}
	}
	if err := statusError(op, resp[0]); err != nil {
		return nil, err
	}
	return resp[1:], nil
}

func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nfc.NewDeviceClosedError("Close")
	}
	return t.port.Close()
}

func (t *Transport) String() string {
	return "PN532 (HSU)"
}

func (t *Transport) Connection() string {
	return t.connection
}

func (t *Transport) InitiatorInit() error {
	t.target = targetNone
	return t.setup()
}

func (t *Transport) InitiatorSelectDEP(mode nfc.DEPMode, baud nfc.BaudRate, timeout time.Duration) (*nfc.Peer, error) {
	resp, err := t.call("InitiatorSelectDEP", cmdInJumpForDEP, jumpForDEPParams(mode, baud), timeout)
	if err != nil {
		if nfc.IsTimeoutError(err) {
			return nil, nfc.NewNoPeerError("InitiatorSelectDEP")
		}
		return nil, err
	}
	return parseJumpForDEP(resp, baud)
}

func (t *Transport) InitiatorPoll(modulations []nfc.Modulation, rounds, period byte) (*nfc.Peer, error) {
	if rounds == 0 || period == 0 || period > 0x0F {
		return nil, &nfc.NFCError{Code: nfc.ErrCodeInvalidArgument, Op: "InitiatorPoll", Message: "rounds must be positive and period in 1..15"}
	}
	params := []byte{rounds, period}
	for _, m := range modulations {
		if code, ok := autoPollType(m); ok {
			params = append(params, code)
		} else {
			t.logger.Printf("PN532 cannot poll for %s, skipping", m)
		}
	}
	kinds := len(params) - 2
	if kinds == 0 {
		return nil, nfc.NewNotSupportedError("InitiatorPoll")
	}

	timeout := time.Duration(int(rounds)*kinds*int(period))*pollSlotTime + time.Second
	resp, err := t.call("InitiatorPoll", cmdInAutoPoll, params, timeout)
	if err != nil {
		if nfc.IsTimeoutError(err) {
			return nil, nil
		}
		return nil, err
	}
	return parseAutoPoll(resp)
}

func (t *Transport) InitiatorTransceive(tx []byte, rxMax int, timeout time.Duration) ([]byte, error) {
	rx, err := t.exchange("InitiatorTransceive", cmdInDataExchange, append([]byte{0x01}, tx...), timeout)
	if err != nil {
		return nil, err
	}
	if len(rx) > rxMax {
		return rx[:rxMax], nfc.NewError(nfc.ErrCodeOverflow, "InitiatorTransceive", nil)
	}
	return rx, nil
}

func (t *Transport) InitiatorDeselect() error {
	_, err := t.exchange("InitiatorDeselect", cmdInDeselect, []byte{0x00}, setupTimeout)
	return err
}

func (t *Transport) TargetInit(desc nfc.TargetDescriptor, rxMax int, timeout time.Duration) ([]byte, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if err := t.setup(); err != nil {
		return nil, err
	}
	resp, err := t.call("TargetInit", cmdTgInitAsTarget, targetParams(desc), timeout)
	if err != nil {
		return nil, err
	}
	if len(resp) < 1 {
		return nil, &nfc.NFCError{Code: nfc.ErrCodeIO, Op: "TargetInit", Message: "missing activation mode"}
	}

	if desc.Modulation.Type == nfc.ModulationDEP {
		t.target = targetDEP
	} else {
		t.target = targetPICC
	}
	first := resp[1:]
	if len(first) > rxMax {
		return first[:rxMax], nfc.NewError(nfc.ErrCodeOverflow, "TargetInit", nil)
	}
	return first, nil
}

func (t *Transport) TargetReceive(rxMax int, timeout time.Duration) ([]byte, error) {
	cmd := cmdTgGetInitiatorCommand
	switch t.target {
	case targetDEP:
		cmd = cmdTgGetData
	case targetNone:
		return nil, &nfc.NFCError{Code: nfc.ErrCodeInvalidArgument, Op: "TargetReceive", Message: "not in target mode"}
	}
	rx, err := t.exchange("TargetReceive", cmd, nil, timeout)
	if err != nil {
		return nil, err
	}
	if len(rx) > rxMax {
		return rx[:rxMax], nfc.NewError(nfc.ErrCodeOverflow, "TargetReceive", nil)
	}
	return rx, nil
}

func (t *Transport) TargetSend(tx []byte, timeout time.Duration) error {
	cmd := cmdTgResponseToInitiator
	switch t.target {
	case targetDEP:
		cmd = cmdTgSetData
	case targetNone:
		return &nfc.NFCError{Code: nfc.ErrCodeInvalidArgument, Op: "TargetSend", Message: "not in target mode"}
	}
	_, err := t.exchange("TargetSend", cmd, tx, timeout)
	return err
}

// AbortCommand cancels the command in flight by sending an ACK frame, which
// the chip treats as an abort. It may be called from any goroutine. An abort
// sent while no command is running applies to the next one, unless
// DiscardAbort drops it first.
func (t *Transport) AbortCommand() error {
	if t.closed.Load() {
		return nfc.NewDeviceClosedError("AbortCommand")
	}
	t.aborted.Store(true)
	if err := t.write(ackFrame); err != nil {
		return nfc.NewError(nfc.ErrCodeIO, "AbortCommand", err)
	}
	return nil
}

// DiscardAbort drops an abort that arrived after the last command returned.
func (t *Transport) DiscardAbort() {
	t.aborted.Store(false)
}

func (t *Transport) Describe(peer *nfc.Peer, verbose bool) string {
	if verbose && peer != nil && peer.Details != "" {
		return peer.Details
	}
	return peer.String()
}
