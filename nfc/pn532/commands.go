package pn532

import (
	"fmt"

	"github.com/dotside-studios/nfc-handoff-agent/nfc"
)

// PN532 command codes.
const (
	cmdSAMConfiguration      byte = 0x14
	cmdInDataExchange        byte = 0x40
	cmdInDeselect            byte = 0x44
	cmdInJumpForDEP          byte = 0x56
	cmdInAutoPoll            byte = 0x60
	cmdTgGetData             byte = 0x86
	cmdTgGetInitiatorCommand byte = 0x88
	cmdTgInitAsTarget        byte = 0x8C
	cmdTgSetData             byte = 0x8E
	cmdTgResponseToInitiator byte = 0x90
)

// SAMConfiguration normal mode, no SAM involved.
const samNormalMode byte = 0x01

// Status codes carried in the first byte of data exchange responses.
const (
	statusOK             byte = 0x00
	statusTimeout        byte = 0x01
	statusTargetReleased byte = 0x29
)

// TgInitAsTarget mode bits.
const (
	targetPassiveOnly byte = 0x01
	targetDEPOnly     byte = 0x02
	targetPICCOnly    byte = 0x04
)

// statusError maps a non-zero status byte onto an NFCError.
func statusError(op string, status byte) error {
	switch status & 0x3F {
	case statusOK:
		return nil
	case statusTimeout:
		return nfc.NewTimeoutError(op)
	case statusTargetReleased:
		return nfc.NewError(nfc.ErrCodeTargetReleased, op, nil)
	default:
		return &nfc.NFCError{Code: nfc.ErrCodeTransceiveFailed, Op: op, Message: statusMessage(status & 0x3F)}
	}
}

func statusMessage(status byte) string {
	switch status {
	case 0x02:
		return "CRC error"
	case 0x03:
		return "parity error"
	case 0x0A:
		return "RF field not switched on in time"
	case 0x0B:
		return "RF protocol error"
	case 0x13:
		return "DEP protocol error"
	case 0x25:
		return "invalid device state"
	case 0x27:
		return "command not acceptable in current context"
	}
	return fmt.Sprintf("PN532 error status 0x%02X", status)
}

// autoPollType returns the InAutoPoll target type for a modulation.
func autoPollType(m nfc.Modulation) (byte, bool) {
	switch m.Type {
	case nfc.ModulationISO14443A:
		return 0x10, true
	case nfc.ModulationISO14443B:
		return 0x23, true
	case nfc.ModulationFelica:
		switch m.BaudRate {
		case nfc.Baud212:
			return 0x11, true
		case nfc.Baud424:
			return 0x12, true
		}
	case nfc.ModulationJewel:
		return 0x04, true
	case nfc.ModulationDEP:
		return 0x40, true
	}
	return 0, false
}

// baudCode is the BR byte of InJumpForDEP.
func baudCode(baud nfc.BaudRate) byte {
	switch baud {
	case nfc.Baud212:
		return 0x01
	case nfc.Baud424:
		return 0x02
	}
	return 0x00
}

// parseAutoPoll decodes the first target of an InAutoPoll response.
func parseAutoPoll(resp []byte) (*nfc.Peer, error) {
	if len(resp) < 1 {
		return nil, &nfc.NFCError{Code: nfc.ErrCodeTransceiveFailed, Op: "InitiatorPoll", Message: "empty response"}
	}
	if resp[0] == 0 {
		return nil, nil
	}
	if len(resp) < 3 {
		return nil, &nfc.NFCError{Code: nfc.ErrCodeTransceiveFailed, Op: "InitiatorPoll", Message: "truncated target"}
	}
	kind, size := resp[1], int(resp[2])
	if len(resp) < 3+size {
		return nil, &nfc.NFCError{Code: nfc.ErrCodeTransceiveFailed, Op: "InitiatorPoll", Message: "truncated target data"}
	}
	data := resp[3 : 3+size]

	peer := &nfc.Peer{}
	switch kind {
	case 0x00, 0x10, 0x20:
		// Tg, SENS_RES(2), SEL_RES, NFCIDLength, NFCID1
		peer.Modulation = nfc.Modulation{Type: nfc.ModulationISO14443A, BaudRate: nfc.Baud106}
		if len(data) >= 5 && len(data) >= 5+int(data[4]) {
			peer.ID = append([]byte(nil), data[5:5+int(data[4])]...)
		}
	case 0x11, 0x12:
		// Tg, POL_RES length, 0x01, NFCID2t(8), ...
		rate := nfc.Baud212
		if kind == 0x12 {
			rate = nfc.Baud424
		}
		peer.Modulation = nfc.Modulation{Type: nfc.ModulationFelica, BaudRate: rate}
		if len(data) >= 11 {
			peer.ID = append([]byte(nil), data[3:11]...)
		}
	case 0x03, 0x23:
		// Tg, ATQB(12): 0x50, PUPI(4), ...
		peer.Modulation = nfc.Modulation{Type: nfc.ModulationISO14443B, BaudRate: nfc.Baud106}
		if len(data) >= 6 {
			peer.ID = append([]byte(nil), data[2:6]...)
		}
	case 0x04:
		// Tg, SENS_RES(2), JEWELID(4)
		peer.Modulation = nfc.Modulation{Type: nfc.ModulationJewel, BaudRate: nfc.Baud106}
		if len(data) >= 7 {
			peer.ID = append([]byte(nil), data[3:7]...)
		}
	default:
		peer.Modulation = nfc.Modulation{Type: nfc.ModulationDEP}
		if len(data) >= 11 {
			peer.ID = append([]byte(nil), data[1:11]...)
		}
	}
	return peer, nil
}

// jumpForDEPParams builds the InJumpForDEP parameters. Passive 212/424 kbps
// activation needs a FeliCa polling request as initiator data.
func jumpForDEPParams(mode nfc.DEPMode, baud nfc.BaudRate) []byte {
	actPass := byte(0x00)
	if mode == nfc.DEPActive {
		actPass = 0x01
	}
	params := []byte{actPass, baudCode(baud), 0x00}
	if mode != nfc.DEPActive && baud != nfc.Baud106 {
		params[2] = 0x01
		params = append(params, 0x00, 0xFF, 0xFF, 0x00, 0x00)
	}
	return params
}

// parseJumpForDEP decodes Status, Tg, NFCID3i(10), DIDt, BSt, BRt, TO, PPt, Gt.
func parseJumpForDEP(resp []byte, baud nfc.BaudRate) (*nfc.Peer, error) {
	if len(resp) < 1 {
		return nil, &nfc.NFCError{Code: nfc.ErrCodeTransceiveFailed, Op: "InitiatorSelectDEP", Message: "empty response"}
	}
	if err := statusError("InitiatorSelectDEP", resp[0]); err != nil {
		if nfc.IsTimeoutError(err) {
			return nil, nfc.NewNoPeerError("InitiatorSelectDEP")
		}
		return nil, err
	}
	if len(resp) < 17 {
		return nil, &nfc.NFCError{Code: nfc.ErrCodeTransceiveFailed, Op: "InitiatorSelectDEP", Message: "truncated ATR_RES"}
	}
	peer := &nfc.Peer{
		Modulation: nfc.Modulation{Type: nfc.ModulationDEP, BaudRate: baud},
		ID:         append([]byte(nil), resp[2:12]...),
	}
	if len(resp) > 17 {
		peer.GeneralBytes = append([]byte(nil), resp[17:]...)
	}
	return peer, nil
}

// targetParams builds the TgInitAsTarget parameters for desc.
func targetParams(desc nfc.TargetDescriptor) []byte {
	params := make([]byte, 0, 40)
	switch desc.Modulation.Type {
	case nfc.ModulationISO14443A:
		a := desc.ISO14443A
		params = append(params, targetPassiveOnly|targetPICCOnly)
		// SENS_RES is sent least significant byte first; the chip forces
		// the first UID byte to 0x08.
		params = append(params, a.ATQA[1], a.ATQA[0])
		params = append(params, a.UID[1:4]...)
		params = append(params, a.SAK)
		params = append(params, make([]byte, 18)...) // FeliCa
		params = append(params, make([]byte, 10)...) // NFCID3t
		params = append(params, 0x00, 0x00)          // Gt, Tk
	default:
		dep := desc.DEP
		params = append(params, targetDEPOnly)
		params = append(params, 0x04, 0x00, 0x12, 0x34, 0x56, 0x40)
		params = append(params,
			0x01, 0xFE, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6, 0xA7, // NFCID2t
			0xC0, 0xC1, 0xC2, 0xC3, 0xC4, 0xC5, 0xC6, 0xC7, // PAD
			0xFF, 0xFF) // system code
		params = append(params, dep.NFCID3[:]...)
		params = append(params, byte(len(dep.GeneralBytes)))
		params = append(params, dep.GeneralBytes...)
		params = append(params, 0x00)
	}
	return params
}
