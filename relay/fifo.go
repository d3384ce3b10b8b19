package relay

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrNoReader is returned by FIFO.Relay when nobody has the pipe open
	// for reading. The address is dropped.
	ErrNoReader = errors.New("no reader on address pipe")
	// ErrReaderStalled is returned by FIFO.Relay when the reader stopped
	// draining the pipe and its buffer is full. The address is dropped.
	ErrReaderStalled = errors.New("address pipe reader is not draining")
)

// writeTimeout bounds a single relay write on a full pipe.
const writeTimeout = 100 * time.Millisecond

// FIFO writes each address followed by a newline to a named pipe.
//
// The pipe is opened on the first relay rather than at startup, and every
// write is bounded by writeTimeout, so neither a missing nor a stalled
// consumer holds up the NFC session for long. When the consumer goes away
// the pipe is reopened on the next relay.
type FIFO struct {
	path   string
	logger *log.Logger

	mu     sync.Mutex
	file   *os.File
	closed bool
}

// NewFIFO creates the named pipe at path if it does not exist yet.
func NewFIFO(path string, logger *log.Logger) (*FIFO, error) {
	if path == "" {
		return nil, errors.New("address pipe path is empty")
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[relay] ", log.LstdFlags)
	}
	if err := unix.Mkfifo(path, 0o666); err != nil && !errors.Is(err, unix.EEXIST) {
		return nil, fmt.Errorf("mkfifo %s: %w", path, err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Mode()&os.ModeNamedPipe == 0 {
		return nil, fmt.Errorf("%s exists and is not a named pipe", path)
	}
	return &FIFO{path: path, logger: logger}, nil
}

func (f *FIFO) Path() string {
	return f.path
}

func (f *FIFO) open() error {
	if f.file != nil {
		return nil
	}
	file, err := os.OpenFile(f.path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) {
			return ErrNoReader
		}
		return fmt.Errorf("open address pipe: %w", err)
	}
	f.file = file
	f.logger.Printf("Address pipe %s opened", f.path)
	return nil
}

// Relay writes addr and a newline terminator in a single write.
func (f *FIFO) Relay(addr []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return os.ErrClosed
	}
	if err := f.open(); err != nil {
		return err
	}

	line := make([]byte, 0, len(addr)+1)
	line = append(append(line, addr...), '\n')
	if err := f.file.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil && !errors.Is(err, os.ErrNoDeadline) {
		return fmt.Errorf("set address pipe deadline: %w", err)
	}
	if _, err := f.file.Write(line); err != nil {
		// lines up to PIPE_BUF are written whole or not at all, so the
		// pipe stays usable
		if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, unix.EAGAIN) {
			return ErrReaderStalled
		}
		f.file.Close()
		f.file = nil
		if errors.Is(err, unix.EPIPE) {
			return ErrNoReader
		}
		return fmt.Errorf("write address pipe: %w", err)
	}
	return nil
}

// Close closes the pipe. The pipe itself is left on disk for the consumer.
func (f *FIFO) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
