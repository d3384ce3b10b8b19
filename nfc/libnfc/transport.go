// Package libnfc implements nfc.Transport on top of libnfc.
//
// Initiator calls go through the github.com/clausecker/nfc/v2 bindings.
// Target mode, D.E.P. selection and polling are not wrapped by the
// bindings and are called through cgo on the same nfc_device.
package libnfc

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	clnfc "github.com/clausecker/nfc/v2"

	"github.com/dotside-studios/nfc-handoff-agent/nfc"
)

// Transport is an nfc.Transport backed by a libnfc device.
type Transport struct {
	device clnfc.Device
	closed atomic.Bool
	logger *log.Logger
}

var _ nfc.Transport = (*Transport)(nil)

// NewTransport wraps an open libnfc device.
func NewTransport(dev clnfc.Device, logger *log.Logger) *Transport {
	if logger == nil {
		logger = log.New(os.Stderr, "[libnfc] ", log.LstdFlags)
	}
	return &Transport{device: dev, logger: logger}
}

func (t *Transport) check(op string) error {
	if t.closed.Load() {
		return nfc.NewDeviceClosedError(op)
	}
	return nil
}

func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nfc.NewDeviceClosedError("Close")
	}
	return fromError("Close", t.device.Close())
}

func (t *Transport) String() string {
	return t.device.String()
}

func (t *Transport) Connection() string {
	return t.device.Connection()
}

func (t *Transport) InitiatorInit() error {
	if err := t.check("InitiatorInit"); err != nil {
		return err
	}
	return fromError("InitiatorInit", t.device.InitiatorInit())
}

func (t *Transport) InitiatorSelectDEP(mode nfc.DEPMode, baud nfc.BaudRate, timeout time.Duration) (*nfc.Peer, error) {
	if err := t.check("InitiatorSelectDEP"); err != nil {
		return nil, err
	}
	peer, res := selectDEP(t.device, mode, baud, timeout)
	if res < 0 {
		return nil, fromCode("InitiatorSelectDEP", res)
	}
	if peer == nil {
		return nil, nfc.NewNoPeerError("InitiatorSelectDEP")
	}
	return peer, nil
}

func (t *Transport) InitiatorPoll(modulations []nfc.Modulation, rounds, period byte) (*nfc.Peer, error) {
	if err := t.check("InitiatorPoll"); err != nil {
		return nil, err
	}
	peer, res := pollTarget(t.device, modulations, rounds, period)
	if res < 0 {
		if res == codeTimeout {
			return nil, nil
		}
		return nil, fromCode("InitiatorPoll", res)
	}
	if peer == nil {
		return nil, nil
	}
	if peer.Modulation.Type == nfc.ModulationISO14443A {
		peer.Tags = identifyTags(t.device, t.logger)
	}
	return peer, nil
}

func (t *Transport) InitiatorTransceive(tx []byte, rxMax int, timeout time.Duration) ([]byte, error) {
	if err := t.check("InitiatorTransceive"); err != nil {
		return nil, err
	}
	rx := make([]byte, rxMax)
	n, err := t.device.InitiatorTransceiveBytes(tx, rx, int(timeoutMillis(timeout)))
	if err != nil {
		return nil, fromError("InitiatorTransceive", err)
	}
	return rx[:n], nil
}

func (t *Transport) InitiatorDeselect() error {
	if err := t.check("InitiatorDeselect"); err != nil {
		return err
	}
	return fromError("InitiatorDeselect", t.device.InitiatorDeselectTarget())
}

func (t *Transport) TargetInit(desc nfc.TargetDescriptor, rxMax int, timeout time.Duration) ([]byte, error) {
	if err := t.check("TargetInit"); err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	rx := make([]byte, rxMax)
	res := targetInit(t.device, desc, rx, timeout)
	if res < 0 {
		return nil, fromCode("TargetInit", res)
	}
	return rx[:res], nil
}

func (t *Transport) TargetReceive(rxMax int, timeout time.Duration) ([]byte, error) {
	if err := t.check("TargetReceive"); err != nil {
		return nil, err
	}
	rx := make([]byte, rxMax)
	res := targetReceive(t.device, rx, timeout)
	if res < 0 {
		return nil, fromCode("TargetReceive", res)
	}
	return rx[:res], nil
}

func (t *Transport) TargetSend(tx []byte, timeout time.Duration) error {
	if err := t.check("TargetSend"); err != nil {
		return err
	}
	if res := targetSend(t.device, tx, timeout); res < 0 {
		return fromCode("TargetSend", res)
	}
	return nil
}

// AbortCommand may be called from any goroutine while the device is open.
func (t *Transport) AbortCommand() error {
	if err := t.check("AbortCommand"); err != nil {
		return err
	}
	if res := abortCommand(t.device); res < 0 {
		return fromCode("AbortCommand", res)
	}
	return nil
}

// Describe returns libnfc's own dump of the peer when verbose is set.
func (t *Transport) Describe(peer *nfc.Peer, verbose bool) string {
	if peer == nil {
		return peer.String()
	}
	var sb strings.Builder
	if verbose && peer.Details != "" {
		sb.WriteString(strings.TrimRight(peer.Details, "\n"))
	} else {
		sb.WriteString(peer.String())
	}
	if len(peer.Tags) > 0 {
		fmt.Fprintf(&sb, " [%s]", strings.Join(peer.Tags, ", "))
	}
	return sb.String()
}
