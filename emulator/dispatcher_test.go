package emulator

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "B8:27:EB:12:34:56"

func newTestImage(t *testing.T) *Memory {
	t.Helper()
	mem, err := NewForumTag2Image(testAddress)
	require.NoError(t, err)
	return mem
}

func TestDispatcher_ReadReturnsFourBlocks(t *testing.T) {
	t.Parallel()
	mem := newTestImage(t)
	image := mem.Bytes()
	d := NewDispatcher(mem)

	// every block index whose four-block window fits in the image
	for block := 0; block*BlockSize+ReadResponseLen <= mem.Len(); block++ {
		out := make([]byte, 64)
		n, err := d.Handle([]byte{CmdRead, byte(block)}, out)
		require.NoError(t, err, "block %d", block)
		require.Equal(t, ReadResponseLen, n)
		assert.Equal(t, image[block*4:block*4+16], out[:n], "block %d", block)
	}
}

func TestDispatcher_ReadBlockOne(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(newTestImage(t))

	out := make([]byte, ReadResponseLen)
	n, err := d.Handle([]byte{0x30, 0x01}, out)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0xFF, 0xFF,
		0xE1, 0x10, 0x06, 0x0F,
		0x03, 0x18, 0xD1, 0x01,
	}, out[:n])
}

func TestDispatcher_Signals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cmd     []byte
		outLen  int
		wantErr error
	}{
		{name: "halt", cmd: []byte{0x50}, outLen: 16, wantErr: ErrHalted},
		{name: "halt with operand", cmd: []byte{0x50, 0x00}, outLen: 16, wantErr: ErrHalted},
		{name: "unknown opcode", cmd: []byte{0x99}, outLen: 16, wantErr: ErrNotSupported},
		{name: "write rejected", cmd: []byte{CmdWrite, 0x04, 1, 2, 3, 4}, outLen: 16, wantErr: ErrNotSupported},
		{name: "sector select rejected", cmd: []byte{CmdSectorSelect, 0xFF}, outLen: 16, wantErr: ErrNotSupported},
		{name: "empty frame", cmd: []byte{}, outLen: 16, wantErr: ErrNotSupported},
		{name: "read without operand", cmd: []byte{CmdRead}, outLen: 16, wantErr: ErrNotSupported},
		{name: "read into short buffer", cmd: []byte{CmdRead, 0x00}, outLen: 15, wantErr: ErrNoSpace},
		{name: "read past the image", cmd: []byte{CmdRead, 0x0D}, outLen: 16, wantErr: ErrBlockOutOfRange},
		{name: "read far past the image", cmd: []byte{CmdRead, 0xFF}, outLen: 16, wantErr: ErrBlockOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := NewDispatcher(newTestImage(t))
			out := make([]byte, tt.outLen)
			n, err := d.Handle(tt.cmd, out)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, n)
			assert.Equal(t, make([]byte, tt.outLen), out, "no payload may be written on a signal")
		})
	}
}

func TestDispatcher_NoSpaceCheckedBeforeOperands(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(newTestImage(t))

	_, err := d.Handle([]byte{CmdRead, 0xFF}, make([]byte, 4))
	assert.ErrorIs(t, err, ErrNoSpace)
}

func TestDispatcher_NeverMutatesMemory(t *testing.T) {
	t.Parallel()
	mem := newTestImage(t)
	before := mem.Bytes()
	d := NewDispatcher(mem)

	frames := [][]byte{
		{CmdRead, 0x00}, {CmdWrite, 0x04, 0xDE, 0xAD, 0xBE, 0xEF}, {CmdHalt},
		{CmdSectorSelect, 0x01}, {0x99}, {CmdRead, 0x0C}, {CmdRead, 0x40},
		{0x60, 0x04}, {0x1B, 0xFF, 0xFF, 0xFF, 0xFF},
	}
	out := make([]byte, 32)
	for i := 0; i < 3; i++ {
		for _, f := range frames {
			_, _ = d.Handle(f, out)
		}
	}

	assert.True(t, bytes.Equal(before, mem.Bytes()))
	assert.True(t, mem.Sealed())
	assert.ErrorIs(t, mem.Patch(0, []byte{1}), ErrSealed)
}

func TestDispatcher_SealsPlainMemory(t *testing.T) {
	t.Parallel()
	mem, err := NewMemory(make([]byte, 32))
	require.NoError(t, err)
	require.NoError(t, mem.Patch(4, []byte{0xAA, 0xBB}))

	d := NewDispatcher(mem)
	require.True(t, mem.Sealed())
	assert.Same(t, mem, d.Memory())

	out := make([]byte, ReadResponseLen)
	n, err := d.Handle([]byte{CmdRead, 0x01}, out)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0xAA, 0xBB}, make([]byte, 14)...), out[:n])

	_, err = d.Handle([]byte{CmdRead, 0x05}, out)
	assert.ErrorIs(t, err, ErrBlockOutOfRange)
}
