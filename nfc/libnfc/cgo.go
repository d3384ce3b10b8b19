package libnfc

/*
#cgo pkg-config: libnfc
#include <stdlib.h>
#include <string.h>
#include <stdbool.h>
#include <nfc/nfc.h>

static int handoff_target_init_dep(nfc_device *pnd, const uint8_t *nfcid3,
		const uint8_t *gb, size_t gblen, uint8_t pp,
		uint8_t *rx, size_t rxlen, int timeout) {
	nfc_target nt;
	memset(&nt, 0, sizeof(nt));
	nt.nm.nmt = NMT_DEP;
	nt.nm.nbr = NBR_UNDEFINED;
	memcpy(nt.nti.ndi.abtNFCID3, nfcid3, 10);
	if (gblen > sizeof(nt.nti.ndi.abtGB))
		return NFC_EINVARG;
	if (gblen > 0)
		memcpy(nt.nti.ndi.abtGB, gb, gblen);
	nt.nti.ndi.szGB = gblen;
	nt.nti.ndi.ndm = NDM_UNDEFINED;
	nt.nti.ndi.btPP = pp;
	return nfc_target_init(pnd, &nt, rx, rxlen, timeout);
}

static int handoff_target_init_iso14443a(nfc_device *pnd, const uint8_t *atqa,
		const uint8_t *uid, size_t uidlen, uint8_t sak,
		const uint8_t *ats, size_t atslen,
		uint8_t *rx, size_t rxlen, int timeout) {
	nfc_target nt;
	memset(&nt, 0, sizeof(nt));
	nt.nm.nmt = NMT_ISO14443A;
	nt.nm.nbr = NBR_UNDEFINED;
	memcpy(nt.nti.nai.abtAtqa, atqa, 2);
	if (uidlen > sizeof(nt.nti.nai.abtUid) || atslen > sizeof(nt.nti.nai.abtAts))
		return NFC_EINVARG;
	memcpy(nt.nti.nai.abtUid, uid, uidlen);
	nt.nti.nai.szUidLen = uidlen;
	nt.nti.nai.btSak = sak;
	if (atslen > 0)
		memcpy(nt.nti.nai.abtAts, ats, atslen);
	nt.nti.nai.szAtsLen = atslen;
	return nfc_target_init(pnd, &nt, rx, rxlen, timeout);
}

static int handoff_target_receive(nfc_device *pnd, uint8_t *rx, size_t rxlen, int timeout) {
	return nfc_target_receive_bytes(pnd, rx, rxlen, timeout);
}

static int handoff_target_send(nfc_device *pnd, const uint8_t *tx, size_t txlen, int timeout) {
	return nfc_target_send_bytes(pnd, tx, txlen, timeout);
}

static int handoff_abort(nfc_device *pnd) {
	return nfc_abort_command(pnd);
}

// handoff_peer is the flattened part of an nfc_target the agent keeps.
typedef struct {
	int type;
	int rate;
	uint8_t id[10];
	size_t idlen;
	uint8_t gb[48];
	size_t gblen;
	char *details;
} handoff_peer;

static void handoff_fill_peer(const nfc_target *nt, handoff_peer *out) {
	const uint8_t *id = NULL;
	size_t idlen = 0;

	out->type = nt->nm.nmt;
	out->rate = nt->nm.nbr;
	switch (nt->nm.nmt) {
	case NMT_ISO14443A:
		id = nt->nti.nai.abtUid;
		idlen = nt->nti.nai.szUidLen;
		break;
	case NMT_FELICA:
		id = nt->nti.nfi.abtId;
		idlen = 8;
		break;
	case NMT_ISO14443B:
		id = nt->nti.nbi.abtPupi;
		idlen = 4;
		break;
	case NMT_ISO14443BI:
		id = nt->nti.nii.abtDIV;
		idlen = 4;
		break;
	case NMT_ISO14443BICLASS:
		id = nt->nti.nhi.abtUID;
		idlen = 8;
		break;
	case NMT_JEWEL:
		id = nt->nti.nji.btId;
		idlen = 4;
		break;
	case NMT_DEP:
		id = nt->nti.ndi.abtNFCID3;
		idlen = 10;
		out->gblen = nt->nti.ndi.szGB;
		if (out->gblen > sizeof(out->gb))
			out->gblen = sizeof(out->gb);
		memcpy(out->gb, nt->nti.ndi.abtGB, out->gblen);
		break;
	default:
		break;
	}
	if (idlen > sizeof(out->id))
		idlen = sizeof(out->id);
	if (id != NULL)
		memcpy(out->id, id, idlen);
	out->idlen = idlen;

	char *s = NULL;
	if (str_nfc_target(&s, nt, true) >= 0 && s != NULL) {
		out->details = strdup(s);
		nfc_free(s);
	}
}

static int handoff_select_dep(nfc_device *pnd, int ndm, int nbr, int timeout, handoff_peer *out) {
	nfc_target nt;
	memset(&nt, 0, sizeof(nt));
	int res = nfc_initiator_select_dep_target(pnd, (nfc_dep_mode)ndm, (nfc_baud_rate)nbr, NULL, &nt, timeout);
	if (res > 0)
		handoff_fill_peer(&nt, out);
	return res;
}

static int handoff_poll(nfc_device *pnd, const int *types, const int *rates, size_t n,
		uint8_t rounds, uint8_t period, handoff_peer *out) {
	nfc_modulation mods[16];
	nfc_target nt;
	if (n > 16)
		return NFC_EINVARG;
	for (size_t i = 0; i < n; i++) {
		mods[i].nmt = (nfc_modulation_type)types[i];
		mods[i].nbr = (nfc_baud_rate)rates[i];
	}
	memset(&nt, 0, sizeof(nt));
	int res = nfc_initiator_poll_target(pnd, mods, n, rounds, period, &nt);
	if (res > 0)
		handoff_fill_peer(&nt, out);
	return res;
}
*/
import "C"

import (
	"time"
	"unsafe"

	clnfc "github.com/clausecker/nfc/v2"

	"github.com/dotside-studios/nfc-handoff-agent/nfc"
)

// maxPollModulations matches the array size used by handoff_poll.
const maxPollModulations = 16

func devicePointer(d clnfc.Device) *C.nfc_device {
	return (*C.nfc_device)(unsafe.Pointer(d.Pointer()))
}

func bytePtr(p []byte) *C.uint8_t {
	if len(p) == 0 {
		return nil
	}
	return (*C.uint8_t)(unsafe.Pointer(&p[0]))
}

// timeoutMillis converts a timeout into libnfc's convention, where 0 blocks.
func timeoutMillis(d time.Duration) C.int {
	if d <= 0 {
		return 0
	}
	return C.int(d / time.Millisecond)
}

func targetInit(d clnfc.Device, desc nfc.TargetDescriptor, rx []byte, timeout time.Duration) int {
	switch desc.Modulation.Type {
	case nfc.ModulationDEP:
		dep := desc.DEP
		return int(C.handoff_target_init_dep(devicePointer(d),
			bytePtr(dep.NFCID3[:]),
			bytePtr(dep.GeneralBytes), C.size_t(len(dep.GeneralBytes)),
			C.uint8_t(dep.PP),
			bytePtr(rx), C.size_t(len(rx)), timeoutMillis(timeout)))
	case nfc.ModulationISO14443A:
		a := desc.ISO14443A
		return int(C.handoff_target_init_iso14443a(devicePointer(d),
			bytePtr(a.ATQA[:]),
			bytePtr(a.UID), C.size_t(len(a.UID)),
			C.uint8_t(a.SAK),
			bytePtr(a.ATS), C.size_t(len(a.ATS)),
			bytePtr(rx), C.size_t(len(rx)), timeoutMillis(timeout)))
	}
	return codeDevNotSupported
}

func targetReceive(d clnfc.Device, rx []byte, timeout time.Duration) int {
	return int(C.handoff_target_receive(devicePointer(d), bytePtr(rx), C.size_t(len(rx)), timeoutMillis(timeout)))
}

func targetSend(d clnfc.Device, tx []byte, timeout time.Duration) int {
	return int(C.handoff_target_send(devicePointer(d), bytePtr(tx), C.size_t(len(tx)), timeoutMillis(timeout)))
}

func abortCommand(d clnfc.Device) int {
	return int(C.handoff_abort(devicePointer(d)))
}

func selectDEP(d clnfc.Device, mode nfc.DEPMode, baud nfc.BaudRate, timeout time.Duration) (*nfc.Peer, int) {
	var out C.handoff_peer
	res := int(C.handoff_select_dep(devicePointer(d), C.int(mode), C.int(baud), timeoutMillis(timeout), &out))
	if res <= 0 {
		return nil, res
	}
	return peerFromC(&out), res
}

func pollTarget(d clnfc.Device, modulations []nfc.Modulation, rounds, period byte) (*nfc.Peer, int) {
	n := len(modulations)
	if n == 0 || n > maxPollModulations {
		return nil, codeInvalidArgument
	}
	types := make([]C.int, n)
	rates := make([]C.int, n)
	for i, m := range modulations {
		types[i] = C.int(m.Type)
		rates[i] = C.int(m.BaudRate)
	}

	var out C.handoff_peer
	res := int(C.handoff_poll(devicePointer(d), &types[0], &rates[0], C.size_t(n),
		C.uint8_t(rounds), C.uint8_t(period), &out))
	if res <= 0 {
		return nil, res
	}
	return peerFromC(&out), res
}

func peerFromC(out *C.handoff_peer) *nfc.Peer {
	peer := &nfc.Peer{
		Modulation: nfc.Modulation{
			Type:     nfc.ModulationType(out._type),
			BaudRate: nfc.BaudRate(out.rate),
		},
		ID: C.GoBytes(unsafe.Pointer(&out.id[0]), C.int(out.idlen)),
	}
	if out.gblen > 0 {
		peer.GeneralBytes = C.GoBytes(unsafe.Pointer(&out.gb[0]), C.int(out.gblen))
	}
	if out.details != nil {
		peer.Details = C.GoString(out.details)
		C.free(unsafe.Pointer(out.details))
	}
	return peer
}
