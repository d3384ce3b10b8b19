package pn532

import (
	"fmt"
	"log"
	"os"
	"strings"

	"go.bug.st/serial"

	"github.com/dotside-studios/nfc-handoff-agent/nfc"
)

// Manager opens PN532 readers on serial ports.
type Manager struct {
	logger *log.Logger
	// listPorts is replaced in tests.
	listPorts func() ([]string, error)
}

var _ nfc.Manager = (*Manager)(nil)

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(os.Stderr, "[pn532] ", log.LstdFlags)
	}
	return &Manager{logger: logger, listPorts: serial.GetPortsList}
}

// OpenTransport opens connection, which must carry the pn532_uart: prefix.
// An empty connection opens the first serial port that answers.
func (m *Manager) OpenTransport(connection string) (nfc.Transport, error) {
	if connection != "" {
		t, err := Open(connection, m.logger)
		if err != nil {
			return nil, err
		}
		m.logger.Printf("NFC device: %s on %s opened", t.String(), connection)
		return t, nil
	}

	devices, err := m.ListDevices()
	if err != nil {
		return nil, &nfc.NFCError{Code: nfc.ErrCodeOpenFailed, Op: "OpenTransport", Message: "no serial ports", Cause: err}
	}
	var lastErr error
	for _, dev := range devices {
		t, err := Open(dev, m.logger)
		if err == nil {
			m.logger.Printf("NFC device: %s on %s opened", t.String(), dev)
			return t, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = nfc.NewError(nfc.ErrCodeOpenFailed, "OpenTransport", nil)
	}
	return nil, lastErr
}

// ListDevices returns a connection string for every serial port on the host.
// Ports are not probed.
func (m *Manager) ListDevices() ([]string, error) {
	ports, err := m.listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	devices := make([]string, 0, len(ports))
	for _, p := range ports {
		devices = append(devices, ConnectionPrefix+p)
	}
	return devices, nil
}

// IsConnection reports whether connection names a PN532 serial reader.
func IsConnection(connection string) bool {
	return strings.HasPrefix(connection, ConnectionPrefix)
}
