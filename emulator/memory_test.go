package emulator

import (
	"testing"

	ndef "github.com/hsanjuan/go-ndef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{name: "empty", size: 0, wantErr: true},
		{name: "not block aligned", size: 6, wantErr: true},
		{name: "one block", size: 4},
		{name: "type 2 image", size: Tag2ImageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mem, err := NewMemory(make([]byte, tt.size))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, mem.Len())
			assert.Equal(t, tt.size/BlockSize, mem.Blocks())
		})
	}
}

func TestMemory_CopiesInput(t *testing.T) {
	t.Parallel()
	src := []byte{1, 2, 3, 4}
	mem, err := NewMemory(src)
	require.NoError(t, err)

	src[0] = 0xFF
	assert.Equal(t, []byte{1, 2, 3, 4}, mem.Bytes())

	out := mem.Bytes()
	out[1] = 0xFF
	assert.Equal(t, []byte{1, 2, 3, 4}, mem.Bytes())
}

func TestMemory_PatchBounds(t *testing.T) {
	t.Parallel()
	mem, err := NewMemory(make([]byte, 8))
	require.NoError(t, err)

	assert.ErrorIs(t, mem.Patch(-1, []byte{1}), ErrOutOfBounds)
	assert.ErrorIs(t, mem.Patch(6, []byte{1, 2, 3}), ErrOutOfBounds)
	require.NoError(t, mem.Patch(6, []byte{1, 2}))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 1, 2}, mem.Bytes())

	mem.Seal()
	assert.ErrorIs(t, mem.Patch(0, []byte{9}), ErrSealed)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 1, 2}, mem.Bytes())
}

func TestMemory_ReadBlocksBounds(t *testing.T) {
	t.Parallel()
	mem, err := NewMemory([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)

	dst := make([]byte, 4)
	n, err := mem.ReadBlocks(dst, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{5, 6, 7, 8}, dst)

	_, err = mem.ReadBlocks(make([]byte, 8), 1)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = mem.ReadBlocks(dst, -1)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = mem.ReadBlocks(dst, 2)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestNewForumTag2Image(t *testing.T) {
	t.Parallel()
	mem, err := NewForumTag2Image(testAddress)
	require.NoError(t, err)

	image := mem.Bytes()
	require.Len(t, image, Tag2ImageSize)
	assert.True(t, mem.Sealed())

	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0xFF}, image[8:12], "static lock bytes")
	assert.Equal(t, []byte{0xE1, 0x10, 0x06, 0x0F}, image[12:16], "capability container")
	assert.Equal(t, []byte{0x03, 24, 0xD1, 0x01, 20, 'T', 0x02, 'e', 'n'}, image[16:Tag2AddressOffset])
	assert.Equal(t, testAddress, string(image[Tag2AddressOffset:Tag2AddressOffset+AddressLen]))
	assert.Equal(t, byte(0xFE), image[Tag2AddressOffset+AddressLen], "TLV terminator")
	assert.Equal(t, make([]byte, Tag2ImageSize-43), image[43:], "zero padding")

	msg := &ndef.Message{}
	_, err = msg.Unmarshal(image[18 : 18+24])
	require.NoError(t, err)
	require.Len(t, msg.Records, 1)
}

func TestNewForumTag2Image_RejectsBadAddress(t *testing.T) {
	t.Parallel()

	for _, addr := range []string{"", "B8:27:EB:12:34", "B8:27:EB:12:34:56:78"} {
		_, err := NewForumTag2Image(addr)
		assert.Error(t, err, "address %q", addr)
	}
}
