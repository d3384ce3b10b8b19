package libnfc

import (
	"fmt"
	"log"
	"os"
	"time"

	clnfc "github.com/clausecker/nfc/v2"

	"github.com/dotside-studios/nfc-handoff-agent/nfc"
)

// DeviceEnumRetries is the number of attempts made to enumerate devices.
const DeviceEnumRetries = 3

// Manager opens libnfc devices.
//
// Example:
//
//	manager := libnfc.NewManager(nil)
//	transport, err := manager.OpenTransport("") // first device found
type Manager struct {
	logger *log.Logger
}

var _ nfc.Manager = (*Manager)(nil)

// NewManager creates a libnfc manager.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(os.Stderr, "[libnfc] ", log.LstdFlags)
	}
	return &Manager{logger: logger}
}

// OpenTransport opens the device named by connection, or the first device
// libnfc finds when connection is empty.
func (m *Manager) OpenTransport(connection string) (nfc.Transport, error) {
	dev, err := clnfc.Open(connection)
	if err != nil {
		return nil, &nfc.NFCError{
			Code:    nfc.ErrCodeOpenFailed,
			Op:      "OpenTransport",
			Message: "unable to open NFC device",
			Cause:   err,
		}
	}
	m.logger.Printf("NFC device: %s opened", dev.String())
	return NewTransport(dev, m.logger), nil
}

func (m *Manager) ListDevices() ([]string, error) {
	var devices []string
	var err error
	for i := 0; i < DeviceEnumRetries; i++ {
		devices, err = clnfc.ListDevices()
		if err == nil {
			return devices, nil
		}
		time.Sleep(time.Millisecond * 100)
	}
	return nil, fmt.Errorf("failed to list NFC devices after %d retries: %w", DeviceEnumRetries, err)
}
