package emulator

import (
	"errors"
	"fmt"
)

// Type 2 tag command opcodes.
const (
	CmdRead         byte = 0x30
	CmdHalt         byte = 0x50
	CmdWrite        byte = 0xA2
	CmdSectorSelect byte = 0xC2
)

// ReadResponseLen is the size of a READ response: four blocks.
const ReadResponseLen = 16

// Signals returned by Dispatcher.Handle. They are matched with errors.Is.
var (
	// ErrHalted means the initiator sent HALT and closed the session. It is
	// a normal end of an emulation, not a failure.
	ErrHalted = errors.New("connection aborted by HALT")
	// ErrNotSupported means the command is unknown or not allowed on a
	// read-only tag.
	ErrNotSupported = errors.New("command not supported")
	// ErrNoSpace means the response buffer cannot hold the response.
	ErrNoSpace = errors.New("no space left in response buffer")
	// ErrBlockOutOfRange means a READ addressed blocks past the image.
	ErrBlockOutOfRange = errors.New("block out of range")
)

// Dispatcher answers Type 2 tag commands from a read-only memory image.
// It keeps no state between calls and never modifies the image.
type Dispatcher struct {
	mem *Memory
}

// NewDispatcher creates a dispatcher serving mem. The image is sealed so
// that it stays immutable while it is being served.
func NewDispatcher(mem *Memory) *Dispatcher {
	mem.Seal()
	return &Dispatcher{mem: mem}
}

// Memory returns the image served by the dispatcher.
func (d *Dispatcher) Memory() *Memory { return d.mem }

// Handle processes one command frame and writes the response into out. It
// returns the response length, or one of the signal errors.
func (d *Dispatcher) Handle(cmd []byte, out []byte) (int, error) {
	if len(cmd) == 0 {
		return 0, fmt.Errorf("%w: empty frame", ErrNotSupported)
	}

	switch cmd[0] {
	case CmdRead:
		if len(out) < ReadResponseLen {
			return 0, fmt.Errorf("%w: READ needs %d bytes, have %d", ErrNoSpace, ReadResponseLen, len(out))
		}
		if len(cmd) < 2 {
			return 0, fmt.Errorf("%w: READ without block number", ErrNotSupported)
		}
		n, err := d.mem.ReadBlocks(out[:ReadResponseLen], int(cmd[1]))
		if err != nil {
			return 0, fmt.Errorf("%w: READ block %d of %d", ErrBlockOutOfRange, cmd[1], d.mem.Blocks())
		}
		return n, nil
	case CmdHalt:
		return 0, ErrHalted
	case CmdWrite, CmdSectorSelect:
		return 0, fmt.Errorf("%w: 0x%02x on read-only tag", ErrNotSupported, cmd[0])
	default:
		return 0, fmt.Errorf("%w: 0x%02x", ErrNotSupported, cmd[0])
	}
}
