// Package relay delivers addresses received from an NFC peer to local
// consumers.
package relay

import (
	"errors"
	"io"
)

// Sink receives a relayed address. Relay must not retain addr.
type Sink interface {
	Relay(addr []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(addr []byte) error

func (f SinkFunc) Relay(addr []byte) error {
	return f(addr)
}

// Multi fans an address out to several sinks. Every sink is tried; the
// errors of the ones that failed are joined.
type Multi []Sink

func (m Multi) Relay(addr []byte) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Relay(addr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that is also an io.Closer.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
