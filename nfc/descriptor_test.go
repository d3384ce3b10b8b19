package nfc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetDescriptorValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultDEPTarget().Validate())
	require.NoError(t, DefaultTag2Target().Validate())

	tooLong := DefaultDEPTarget()
	tooLong.DEP.GeneralBytes = bytes.Repeat([]byte{0x01}, MaxGeneralBytes+1)
	assert.Equal(t, ErrCodeInvalidArgument, GetErrorCode(tooLong.Validate()))

	noInfo := TargetDescriptor{Modulation: Modulation{Type: ModulationDEP}}
	assert.Equal(t, ErrCodeInvalidArgument, GetErrorCode(noInfo.Validate()))

	badUID := DefaultTag2Target()
	badUID.ISO14443A.UID = []byte{0x08, 0x00, 0xb0}
	assert.Equal(t, ErrCodeInvalidArgument, GetErrorCode(badUID.Validate()))

	felica := TargetDescriptor{Modulation: Modulation{Type: ModulationFelica, BaudRate: Baud212}}
	assert.True(t, IsNotSupportedError(felica.Validate()))
}

func TestDefaultDescriptorsAreFresh(t *testing.T) {
	t.Parallel()

	a := DefaultDEPTarget()
	a.DEP.GeneralBytes[0] = 0xFF
	assert.Equal(t, byte(0x12), DefaultDEPTarget().DEP.GeneralBytes[0])
}

func TestPeerString(t *testing.T) {
	t.Parallel()

	var none *Peer
	assert.Equal(t, "<no peer>", none.String())
	assert.Empty(t, none.UID())

	peer := &Peer{
		Modulation:   Modulation{Type: ModulationDEP, BaudRate: Baud212},
		ID:           []byte{0x01, 0xfe, 0xa2},
		GeneralBytes: []byte{0x46, 0x66},
		Tags:         []string{"MIFARE Ultralight"},
	}
	assert.Equal(t, "01FEA2", peer.UID())
	assert.Equal(t, "D.E.P. (212 kbps) id=01FEA2 gb=4666 tags=MIFARE Ultralight", peer.String())
	assert.Len(t, DefaultPollModulations(), 6)
}
