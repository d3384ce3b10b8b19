package nfc

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ModulationType identifies the RF technology of a peer. Values follow the
// libnfc nfc_modulation_type numbering.
type ModulationType int

const (
	ModulationISO14443A ModulationType = iota + 1
	ModulationJewel
	ModulationISO14443B
	ModulationISO14443BI
	ModulationISO14443B2SR
	ModulationISO14443B2CT
	ModulationFelica
	ModulationDEP
	ModulationBarcode
	ModulationISO14443BICLASS
)

var modulationNames = map[ModulationType]string{
	ModulationISO14443A:       "ISO/IEC 14443A",
	ModulationJewel:           "Innovision Jewel",
	ModulationISO14443B:       "ISO/IEC 14443-4B",
	ModulationISO14443BI:      "ISO/IEC 14443-4B'",
	ModulationISO14443B2SR:    "ISO/IEC 14443-2B ST SRx",
	ModulationISO14443B2CT:    "ISO/IEC 14443-2B ASK CTx",
	ModulationFelica:          "FeliCa",
	ModulationDEP:             "D.E.P.",
	ModulationBarcode:         "Thinfilm NFC Barcode",
	ModulationISO14443BICLASS: "ISO/IEC 14443-2B-3B iClass (Picopass)",
}

func (m ModulationType) String() string {
	if name, ok := modulationNames[m]; ok {
		return name
	}
	return fmt.Sprintf("modulation %d", int(m))
}

// BaudRate is the bit rate of an RF link. Values follow nfc_baud_rate.
type BaudRate int

const (
	BaudUndefined BaudRate = iota
	Baud106
	Baud212
	Baud424
	Baud847
)

func (b BaudRate) String() string {
	switch b {
	case Baud106:
		return "106 kbps"
	case Baud212:
		return "212 kbps"
	case Baud424:
		return "424 kbps"
	case Baud847:
		return "847 kbps"
	}
	return "undefined"
}

// Modulation pairs a technology with a bit rate.
type Modulation struct {
	Type     ModulationType
	BaudRate BaudRate
}

func (m Modulation) String() string {
	return fmt.Sprintf("%s (%s)", m.Type, m.BaudRate)
}

// DEPMode selects passive or active D.E.P. communication.
type DEPMode int

const (
	DEPUndefined DEPMode = iota
	DEPPassive
	DEPActive
)

func (m DEPMode) String() string {
	switch m {
	case DEPPassive:
		return "passive"
	case DEPActive:
		return "active"
	}
	return "undefined"
}

// Frame and protocol limits.
const (
	// MaxFrameLen is the largest frame exchanged in a single transport call.
	MaxFrameLen = 264
	// NFCID3Len is the length of a D.E.P. NFCID3 identifier.
	NFCID3Len = 10
	// MaxGeneralBytes is the maximum length of D.E.P. general bytes.
	MaxGeneralBytes = 48
)

// TargetDescriptor describes the identity this device presents when it
// acts as a target. Exactly one of DEP or ISO14443A is set, matching
// Modulation.Type. A descriptor is built fresh for each attempt and not
// modified after it is handed to the transport.
type TargetDescriptor struct {
	Modulation Modulation
	DEP        *DEPInfo
	ISO14443A  *ISO14443AInfo
}

// DEPInfo mirrors the fields of nfc_dep_info that a target supplies.
type DEPInfo struct {
	NFCID3       [NFCID3Len]byte
	GeneralBytes []byte
	Mode         DEPMode
	// Filled in by the chip during activation; kept for descriptors
	// received from a peer.
	DID, BS, BR, TO, PP byte
}

// ISO14443AInfo mirrors nfc_iso14443a_info for an emulated tag.
type ISO14443AInfo struct {
	ATQA [2]byte
	UID  []byte
	SAK  byte
	ATS  []byte
}

// Validate checks the descriptor against the limits of the RF protocols.
func (d TargetDescriptor) Validate() error {
	switch d.Modulation.Type {
	case ModulationDEP:
		if d.DEP == nil {
			return &NFCError{Code: ErrCodeInvalidArgument, Op: "TargetDescriptor", Message: "DEP info missing"}
		}
		if len(d.DEP.GeneralBytes) > MaxGeneralBytes {
			return &NFCError{Code: ErrCodeInvalidArgument, Op: "TargetDescriptor",
				Message: fmt.Sprintf("general bytes too long (%d > %d)", len(d.DEP.GeneralBytes), MaxGeneralBytes)}
		}
	case ModulationISO14443A:
		if d.ISO14443A == nil {
			return &NFCError{Code: ErrCodeInvalidArgument, Op: "TargetDescriptor", Message: "ISO14443A info missing"}
		}
		switch len(d.ISO14443A.UID) {
		case 4, 7, 10:
		default:
			return &NFCError{Code: ErrCodeInvalidArgument, Op: "TargetDescriptor",
				Message: fmt.Sprintf("invalid UID length %d", len(d.ISO14443A.UID))}
		}
	default:
		return &NFCError{Code: ErrCodeNotSupported, Op: "TargetDescriptor",
			Message: fmt.Sprintf("cannot emulate %s", d.Modulation.Type)}
	}
	return nil
}

// DefaultDEPTarget returns the D.E.P. target identity used when this device
// waits for a peer initiator.
func DefaultDEPTarget() TargetDescriptor {
	return TargetDescriptor{
		Modulation: Modulation{Type: ModulationDEP, BaudRate: BaudUndefined},
		DEP: &DEPInfo{
			NFCID3:       [NFCID3Len]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xff, 0x00, 0x00},
			GeneralBytes: []byte{0x12, 0x34, 0x56, 0x78},
			Mode:         DEPUndefined,
			PP:           0x01,
		},
	}
}

// DefaultTag2Target returns the ISO14443A identity of the emulated NFC Forum
// Type 2 tag. It has a 4 byte UID.
func DefaultTag2Target() TargetDescriptor {
	return TargetDescriptor{
		Modulation: Modulation{Type: ModulationISO14443A, BaudRate: BaudUndefined},
		ISO14443A: &ISO14443AInfo{
			ATQA: [2]byte{0x00, 0x04},
			UID:  []byte{0x08, 0x00, 0xb0, 0x0b},
			SAK:  0x00,
		},
	}
}

// DefaultPollModulations lists the technologies probed when polling for a
// nearby tag.
func DefaultPollModulations() []Modulation {
	return []Modulation{
		{Type: ModulationISO14443A, BaudRate: Baud106},
		{Type: ModulationISO14443B, BaudRate: Baud106},
		{Type: ModulationFelica, BaudRate: Baud212},
		{Type: ModulationFelica, BaudRate: Baud424},
		{Type: ModulationJewel, BaudRate: Baud106},
		{Type: ModulationISO14443BICLASS, BaudRate: Baud106},
	}
}

// Peer is a remote device found by an initiator select or poll.
type Peer struct {
	Modulation Modulation
	// ID is the UID, NFCID or NFCID3 depending on the technology.
	ID []byte
	// GeneralBytes carries the D.E.P. general bytes of a DEP peer.
	GeneralBytes []byte
	// Details is an optional human-readable dump supplied by the backend.
	Details string
	// Tags lists tag families identified on the peer, when known.
	Tags []string
}

// UID returns the peer identifier as upper-case hex.
func (p *Peer) UID() string {
	if p == nil {
		return ""
	}
	return strings.ToUpper(hex.EncodeToString(p.ID))
}

func (p *Peer) String() string {
	if p == nil {
		return "<no peer>"
	}
	var sb strings.Builder
	sb.WriteString(p.Modulation.String())
	if len(p.ID) > 0 {
		sb.WriteString(" id=")
		sb.WriteString(p.UID())
	}
	if len(p.GeneralBytes) > 0 {
		sb.WriteString(" gb=")
		sb.WriteString(strings.ToUpper(hex.EncodeToString(p.GeneralBytes)))
	}
	if len(p.Tags) > 0 {
		sb.WriteString(" tags=")
		sb.WriteString(strings.Join(p.Tags, ","))
	}
	return sb.String()
}
