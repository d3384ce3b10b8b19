// Package emulator implements the memory and command handling of an
// emulated NFC Forum Type 2 tag.
package emulator

import (
	"errors"
	"fmt"
)

// BlockSize is the width of one addressable tag block in bytes.
const BlockSize = 4

var (
	// ErrSealed is returned when patching a memory image that is already
	// being served.
	ErrSealed = errors.New("memory image is sealed")
	// ErrOutOfBounds is returned for accesses outside the memory image.
	ErrOutOfBounds = errors.New("access outside memory image")
)

// Memory is a fixed-size, block addressed byte store holding the contents of
// an emulated tag. Its size never changes after construction. It may be
// patched until Seal is called and is read-only afterwards.
type Memory struct {
	data   []byte
	sealed bool
}

// NewMemory creates a memory image holding a copy of image. The length must
// be a non-zero multiple of BlockSize.
func NewMemory(image []byte) (*Memory, error) {
	if len(image) == 0 || len(image)%BlockSize != 0 {
		return nil, fmt.Errorf("memory image length %d is not a positive multiple of %d", len(image), BlockSize)
	}
	data := make([]byte, len(image))
	copy(data, image)
	return &Memory{data: data}, nil
}

// Len returns the size of the image in bytes.
func (m *Memory) Len() int { return len(m.data) }

// Blocks returns the number of blocks in the image.
func (m *Memory) Blocks() int { return len(m.data) / BlockSize }

// Sealed reports whether the image has been made read-only.
func (m *Memory) Sealed() bool { return m.sealed }

// Seal makes the image read-only for the rest of its lifetime.
func (m *Memory) Seal() { m.sealed = true }

// Patch overwrites len(p) bytes starting at offset.
func (m *Memory) Patch(offset int, p []byte) error {
	if m.sealed {
		return ErrSealed
	}
	if offset < 0 || offset+len(p) > len(m.data) {
		return fmt.Errorf("%w: patch of %d bytes at offset %d (size %d)", ErrOutOfBounds, len(p), offset, len(m.data))
	}
	copy(m.data[offset:], p)
	return nil
}

// ReadBlocks copies len(dst) bytes starting at the first byte of block into
// dst. The whole range must lie inside the image.
func (m *Memory) ReadBlocks(dst []byte, block int) (int, error) {
	offset := block * BlockSize
	if block < 0 || offset+len(dst) > len(m.data) {
		return 0, fmt.Errorf("%w: %d bytes from block %d (%d blocks)", ErrOutOfBounds, len(dst), block, m.Blocks())
	}
	return copy(dst, m.data[offset:]), nil
}

// Bytes returns a copy of the whole image.
func (m *Memory) Bytes() []byte {
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}
