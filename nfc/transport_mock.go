package nfc

import (
	"fmt"
	"sync"
	"time"
)

// MockTransport is a test implementation of Transport that simulates NFC
// hardware.
//
// Each operation can be scripted with a Func field. Funcs run without the
// mock's lock held, so they may block; WaitAbort lets a Func park until
// AbortCommand or Close is called, which is how tests model a peer that
// never answers.
//
// Example:
//
//	mock := NewMockTransport()
//	mock.TargetReceiveFunc = func() ([]byte, error) {
//	    return nil, mock.WaitAbort("TargetReceive")
//	}
type MockTransport struct {
	// DeviceName is the simulated device name returned by String()
	DeviceName string

	// DeviceConnection is the simulated connection string returned by Connection()
	DeviceConnection string

	// IsOpen tracks whether the transport is currently open
	IsOpen bool

	// InitError, if set, will be returned by InitiatorInit()
	InitError error

	// CloseError, if set, will be returned by Close()
	CloseError error

	// DeselectError, if set, will be returned by InitiatorDeselect()
	DeselectError error

	// SelectDEPFunc scripts InitiatorSelectDEP. If nil, no peer is found.
	SelectDEPFunc func(mode DEPMode, baud BaudRate, timeout time.Duration) (*Peer, error)

	// PollFunc scripts InitiatorPoll. If nil, no target is found.
	PollFunc func(modulations []Modulation, rounds, period byte) (*Peer, error)

	// TransceiveFunc scripts InitiatorTransceive. If nil, tx is echoed.
	TransceiveFunc func(tx []byte) ([]byte, error)

	// TargetInitFunc scripts TargetInit. If nil, the call blocks until aborted.
	TargetInitFunc func(desc TargetDescriptor) ([]byte, error)

	// TargetReceiveFunc scripts TargetReceive. If nil, the call blocks until aborted.
	TargetReceiveFunc func() ([]byte, error)

	// TargetSendFunc scripts TargetSend. If nil, sends succeed.
	TargetSendFunc func(tx []byte) error

	// AbortError, if set, will be returned by AbortCommand()
	AbortError error

	// Sent records every frame passed to TargetSend
	Sent [][]byte

	// Transmitted records every frame passed to InitiatorTransceive
	Transmitted [][]byte

	// CallLog tracks all method calls for verification in tests
	CallLog []string

	aborts       int
	inflight     chan struct{}
	pendingAbort bool
	mu           sync.Mutex
}

// NewMockTransport creates a new MockTransport with default values.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		DeviceName:       "Mock NFC Transceiver",
		DeviceConnection: "mock:usb:001",
		IsOpen:           true,
		CallLog:          make([]string, 0),
	}
}

func (m *MockTransport) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, call)
	if !m.IsOpen {
		return NewDeviceClosedError(call)
	}
	return nil
}

// WaitAbort blocks until AbortCommand or Close is called and returns the
// aborted error for op. It is meant to be called from a scripted Func.
func (m *MockTransport) WaitAbort(op string) error {
	m.mu.Lock()
	if !m.IsOpen {
		m.mu.Unlock()
		return NewDeviceClosedError(op)
	}
	if m.pendingAbort {
		// an abort that arrived before the call started still applies to it
		m.pendingAbort = false
		m.mu.Unlock()
		return NewAbortedError(op)
	}
	ch := make(chan struct{})
	m.inflight = ch
	m.mu.Unlock()

	<-ch
	return NewAbortedError(op)
}

// Close simulates closing the transport.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "Close")
	if !m.IsOpen {
		return fmt.Errorf("transport already closed")
	}
	m.IsOpen = false
	if m.inflight != nil {
		close(m.inflight)
		m.inflight = nil
	}
	return m.CloseError
}

// String returns the simulated device name.
func (m *MockTransport) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DeviceName
}

// Connection returns the simulated connection string.
func (m *MockTransport) Connection() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DeviceConnection
}

// InitiatorInit simulates switching to initiator mode.
func (m *MockTransport) InitiatorInit() error {
	if err := m.record("InitiatorInit"); err != nil {
		return err
	}
	return m.InitError
}

// InitiatorSelectDEP simulates a D.E.P. select.
func (m *MockTransport) InitiatorSelectDEP(mode DEPMode, baud BaudRate, timeout time.Duration) (*Peer, error) {
	if err := m.record("InitiatorSelectDEP"); err != nil {
		return nil, err
	}
	if m.SelectDEPFunc != nil {
		return m.SelectDEPFunc(mode, baud, timeout)
	}
	return nil, NewNoPeerError("InitiatorSelectDEP")
}

// InitiatorPoll simulates polling for a target.
func (m *MockTransport) InitiatorPoll(modulations []Modulation, rounds, period byte) (*Peer, error) {
	if err := m.record("InitiatorPoll"); err != nil {
		return nil, err
	}
	if m.PollFunc != nil {
		return m.PollFunc(modulations, rounds, period)
	}
	return nil, nil
}

// InitiatorTransceive simulates a data exchange with the selected peer.
func (m *MockTransport) InitiatorTransceive(tx []byte, rxMax int, timeout time.Duration) ([]byte, error) {
	if err := m.record(fmt.Sprintf("InitiatorTransceive(%d bytes)", len(tx))); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.Transmitted = append(m.Transmitted, append([]byte(nil), tx...))
	m.mu.Unlock()

	var rx []byte
	var err error
	if m.TransceiveFunc != nil {
		rx, err = m.TransceiveFunc(tx)
	} else {
		rx = append([]byte(nil), tx...)
	}
	if err != nil {
		return nil, err
	}
	if len(rx) > rxMax {
		return rx[:rxMax], NewError(ErrCodeOverflow, "InitiatorTransceive", nil)
	}
	return rx, nil
}

// InitiatorDeselect simulates releasing the selected peer.
func (m *MockTransport) InitiatorDeselect() error {
	if err := m.record("InitiatorDeselect"); err != nil {
		return err
	}
	return m.DeselectError
}

// TargetInit simulates waiting for an initiator.
func (m *MockTransport) TargetInit(desc TargetDescriptor, rxMax int, timeout time.Duration) ([]byte, error) {
	if err := m.record("TargetInit"); err != nil {
		return nil, err
	}
	if m.TargetInitFunc != nil {
		return m.TargetInitFunc(desc)
	}
	return nil, m.WaitAbort("TargetInit")
}

// TargetReceive simulates receiving a frame from the initiator.
func (m *MockTransport) TargetReceive(rxMax int, timeout time.Duration) ([]byte, error) {
	if err := m.record("TargetReceive"); err != nil {
		return nil, err
	}
	if m.TargetReceiveFunc != nil {
		return m.TargetReceiveFunc()
	}
	return nil, m.WaitAbort("TargetReceive")
}

// TargetSend simulates answering the initiator.
func (m *MockTransport) TargetSend(tx []byte, timeout time.Duration) error {
	if err := m.record(fmt.Sprintf("TargetSend(%d bytes)", len(tx))); err != nil {
		return err
	}
	m.mu.Lock()
	m.Sent = append(m.Sent, append([]byte(nil), tx...))
	m.mu.Unlock()
	if m.TargetSendFunc != nil {
		return m.TargetSendFunc(tx)
	}
	return nil
}

// AbortCommand releases a call parked in WaitAbort.
func (m *MockTransport) AbortCommand() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "AbortCommand")
	m.aborts++
	if m.inflight != nil {
		close(m.inflight)
		m.inflight = nil
	} else {
		m.pendingAbort = true
	}
	return m.AbortError
}

// DiscardAbort drops an abort that arrived while no call was parked.
func (m *MockTransport) DiscardAbort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingAbort = false
}

// AbortPending reports whether an abort is waiting for the next call.
func (m *MockTransport) AbortPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingAbort
}

// Describe formats a peer for display.
func (m *MockTransport) Describe(peer *Peer, verbose bool) string {
	return peer.String()
}

// Aborts returns how many times AbortCommand was called.
func (m *MockTransport) Aborts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aborts
}

// GetCallLog returns a copy of the call log for verification.
func (m *MockTransport) GetCallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	logCopy := make([]string, len(m.CallLog))
	copy(logCopy, m.CallLog)
	return logCopy
}

// GetSent returns a copy of the frames passed to TargetSend.
func (m *MockTransport) GetSent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, len(m.Sent))
	copy(out, m.Sent)
	return out
}

// ClearCallLog clears the call log.
func (m *MockTransport) ClearCallLog() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = make([]string, 0)
}
