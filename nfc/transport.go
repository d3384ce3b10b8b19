package nfc

import "time"

// Transport is the single half-duplex NFC transceiver used by the agent.
//
// A Transport is owned by one goroutine that performs every I/O call.
// AbortCommand is the only method that may be called from another
// goroutine; it asks the call currently in flight to return with an
// ErrCodeAborted error. Some backends keep an abort that arrives between
// calls pending for the next call; see AbortDiscarder.
//
// A timeout of 0 blocks until the call completes or is aborted.
//
// Example:
//
//	manager := libnfc.NewManager(nil)
//	transport, err := manager.OpenTransport("")
//	defer transport.Close()
type Transport interface {
	Close() error
	String() string
	Connection() string

	// InitiatorInit switches the device to initiator mode.
	InitiatorInit() error
	// InitiatorSelectDEP activates a D.E.P. capable peer.
	InitiatorSelectDEP(mode DEPMode, baud BaudRate, timeout time.Duration) (*Peer, error)
	// InitiatorPoll probes the given modulations rounds times, period*150ms
	// each. It returns (nil, nil) when no target answered.
	InitiatorPoll(modulations []Modulation, rounds, period byte) (*Peer, error)
	// InitiatorTransceive sends tx to the selected peer and returns up to
	// rxMax bytes of response.
	InitiatorTransceive(tx []byte, rxMax int, timeout time.Duration) ([]byte, error)
	InitiatorDeselect() error

	// TargetInit presents desc to a remote initiator and blocks until it is
	// activated, returning the first frame the initiator sent.
	TargetInit(desc TargetDescriptor, rxMax int, timeout time.Duration) ([]byte, error)
	TargetReceive(rxMax int, timeout time.Duration) ([]byte, error)
	TargetSend(tx []byte, timeout time.Duration) error

	AbortCommand() error

	// Describe formats a peer for display.
	Describe(peer *Peer, verbose bool) string
}

// AbortDiscarder is implemented by transports that keep an abort requested
// between calls pending. DiscardAbort drops it, so that an abort aimed at a
// call that already returned does not fail the next one.
type AbortDiscarder interface {
	DiscardAbort()
}

// Manager handles transport discovery.
//
// Example:
//
//	devices, _ := manager.ListDevices()
//	transport, _ := manager.OpenTransport(devices[0])
type Manager interface {
	OpenTransport(connection string) (Transport, error)
	ListDevices() ([]string, error)
}
