package nfc

import (
	"fmt"
	"sync"
)

// MockManager is a test implementation of Manager handing out a
// MockTransport.
//
// Example:
//
//	manager := NewMockManager()
//	manager.DevicesList = []string{"mock:usb:001", "mock:usb:002"}
//	transport, _ := manager.OpenTransport("mock:usb:002")
type MockManager struct {
	// DevicesList is the list of device strings returned by ListDevices()
	DevicesList []string

	// ListDevicesError, if set, will be returned by ListDevices()
	ListDevicesError error

	// Transport is returned by OpenTransport(). If nil, a new MockTransport
	// is created.
	Transport *MockTransport

	// OpenError, if set, will be returned by OpenTransport()
	OpenError error

	// CallLog tracks all method calls for verification in tests
	CallLog []string

	mu sync.Mutex
}

var _ Manager = (*MockManager)(nil)

// NewMockManager creates a new MockManager with default values.
func NewMockManager() *MockManager {
	return &MockManager{
		DevicesList: []string{"mock:usb:001"},
		Transport:   NewMockTransport(),
		CallLog:     make([]string, 0),
	}
}

// OpenTransport simulates opening an NFC device. An empty connection opens
// the first listed device.
func (m *MockManager) OpenTransport(connection string) (Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, fmt.Sprintf("OpenTransport(%s)", connection))
	if m.OpenError != nil {
		return nil, &NFCError{Code: ErrCodeOpenFailed, Op: "OpenTransport", Message: "unable to open NFC device", Cause: m.OpenError}
	}
	if connection == "" && len(m.DevicesList) > 0 {
		connection = m.DevicesList[0]
	}
	if m.Transport == nil {
		m.Transport = NewMockTransport()
	}

	m.Transport.mu.Lock()
	m.Transport.DeviceConnection = connection
	m.Transport.mu.Unlock()
	return m.Transport, nil
}

// ListDevices simulates listing available NFC devices.
func (m *MockManager) ListDevices() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "ListDevices")
	if m.ListDevicesError != nil {
		return nil, m.ListDevicesError
	}

	// Return a copy to prevent external modification
	devicesCopy := make([]string, len(m.DevicesList))
	copy(devicesCopy, m.DevicesList)
	return devicesCopy, nil
}

// GetCallLog returns a copy of the call log for verification.
func (m *MockManager) GetCallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	logCopy := make([]string, len(m.CallLog))
	copy(logCopy, m.CallLog)
	return logCopy
}
