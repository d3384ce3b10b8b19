package emulator

import (
	"bytes"
	"fmt"

	ndef "github.com/hsanjuan/go-ndef"
)

// NFC Forum Type 2 image layout.
const (
	// Tag2ImageSize is the full image: 4 header blocks and 12 data blocks.
	Tag2ImageSize = 64
	// Tag2DataOffset is where the data area (block 4) begins.
	Tag2DataOffset = 16
	// Tag2AddressOffset is where the address text starts inside the image.
	Tag2AddressOffset = 25
	// AddressLen is the length of a textual Bluetooth address
	// ("AA:BB:CC:DD:EE:FF").
	AddressLen = 17

	tlvNDEF       = 0x03
	tlvTerminator = 0xFE
)

// placeholderAddress occupies the address slot until the real one is patched in.
const placeholderAddress = "AA:BB:CC:DD:EE:FF"

var tag2Header = [Tag2DataOffset]byte{
	0x00, 0x00, 0x00, 0x00, // UID / BCC
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0xFF, 0xFF, // static lock bytes: CC and data area locked
	0xE1, 0x10, 0x06, 0x0F, // CC: NDEF v1.0, 48 byte data area, read-only
}

// NewForumTag2Image builds the read-only NFC Forum Type 2 image whose single
// NDEF Text record carries address. The address must be exactly AddressLen
// bytes. The returned image is sealed.
func NewForumTag2Image(address string) (*Memory, error) {
	if len(address) != AddressLen {
		return nil, fmt.Errorf("address %q must be %d bytes, got %d", address, AddressLen, len(address))
	}

	msg, err := ndef.NewTextMessage(placeholderAddress, "en").Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode NDEF message: %w", err)
	}
	if len(msg) > 0xFE {
		return nil, fmt.Errorf("NDEF message of %d bytes needs a long TLV", len(msg))
	}

	image := make([]byte, Tag2ImageSize)
	copy(image, tag2Header[:])
	tlv := append([]byte{tlvNDEF, byte(len(msg))}, msg...)
	tlv = append(tlv, tlvTerminator)
	if Tag2DataOffset+len(tlv) > Tag2ImageSize {
		return nil, fmt.Errorf("NDEF TLV of %d bytes exceeds the data area", len(tlv))
	}
	copy(image[Tag2DataOffset:], tlv)

	offset := bytes.Index(image, []byte(placeholderAddress))
	if offset != Tag2AddressOffset {
		return nil, fmt.Errorf("address slot at offset %d, want %d", offset, Tag2AddressOffset)
	}

	mem, err := NewMemory(image)
	if err != nil {
		return nil, err
	}
	if err := mem.Patch(offset, []byte(address)); err != nil {
		return nil, err
	}
	mem.Seal()
	return mem, nil
}
