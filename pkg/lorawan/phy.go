package lorawan

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePHY decodes a raw LoRaWAN PHYPayload assuming FOptsLen=0. It rejects
// frames shorter than absoluteMinPHYLength (12 bytes: MHDR, DevAddr, FCtrl,
// FCnt, MIC). FPort and FRMPayload are absent when the frame carries no
// application payload (MAC-only, FPort omitted).
func ParsePHY(raw []byte) (*PHYPayload, error) {
	if len(raw) < absoluteMinPHYLength {
		return nil, fmt.Errorf("lorawan: phy payload too short: %d bytes", len(raw))
	}

	p := &PHYPayload{
		MHDR:   MHDR(raw[0]),
		FCtrl:  raw[5],
		FCnt16: uint16(raw[6]) | uint16(raw[7])<<8,
	}
	// DevAddr is little-endian on the wire; store big-endian.
	p.DevAddr = DevAddr{raw[4], raw[3], raw[2], raw[1]}

	copy(p.MIC[:], raw[len(raw)-4:])
	body := raw[8 : len(raw)-4]

	if len(body) == 0 {
		return p, nil
	}
	p.FPort = body[0]
	p.FRMPayload = body[1:]
	return p, nil
}

// BuildDownlinkPHY assembles and encrypts a downlink PHYPayload per
// spec.md §4.C's build_downlink: FHDR || FPort || encrypted FRMPayload,
// MIC computed over MHDR||MACPayload with DirDown.
func BuildDownlinkPHY(devAddr DevAddr, nwkSKey, appSKey AES128Key, payload []byte, fCnt uint32, fPort byte, confirmed bool) ([]byte, error) {
	mhdrType := MTypeUnconfirmedDown
	if confirmed {
		mhdrType = MTypeConfirmedDown
	}
	mhdr := NewMHDR(mhdrType, 0)

	addr := devAddr.little()
	fhdr := []byte{addr[0], addr[1], addr[2], addr[3], 0x00, byte(fCnt), byte(fCnt >> 8)}

	encrypted, err := EncryptPayload(appSKey, devAddr, fCnt, DirDown, payload)
	if err != nil {
		return nil, fmt.Errorf("lorawan: encrypt downlink payload: %w", err)
	}

	macPayload := append(fhdr, fPort)
	macPayload = append(macPayload, encrypted...)

	msg := append([]byte{byte(mhdr)}, macPayload...)
	mic, err := ComputeMIC(nwkSKey, devAddr, fCnt, DirDown, msg)
	if err != nil {
		return nil, fmt.Errorf("lorawan: compute downlink mic: %w", err)
	}

	phy := append(msg, mic[:]...)
	return phy, nil
}

// DecryptUplinkPayload decrypts the FRMPayload of an uplink PHYPayload
// using the full 32-bit FCnt (the on-wire FCnt16 extended by the caller
// with whatever high-bits context it tracks; this core has none, so
// uint32(p.FCnt16) is used directly, matching the no-rollover assumption
// documented for this bridge).
func DecryptUplinkPayload(appSKey AES128Key, p *PHYPayload) ([]byte, error) {
	return EncryptPayload(appSKey, p.DevAddr, uint32(p.FCnt16), DirUp, p.FRMPayload)
}

// VerifyUplinkMIC recomputes the MIC over MHDR||MACPayload and reports
// whether it matches the received MIC. Per spec.md §9 a mismatch is
// reported to the caller but is not itself a reason to drop the packet.
func VerifyUplinkMIC(nwkSKey AES128Key, p *PHYPayload, rawMACPayload []byte) (bool, error) {
	msg := append([]byte{byte(p.MHDR)}, rawMACPayload...)
	mic, err := ComputeMIC(nwkSKey, p.DevAddr, uint32(p.FCnt16), DirUp, msg)
	if err != nil {
		return false, err
	}
	return mic == p.MIC, nil
}

// MACPayloadBytes reconstructs the raw FHDR||FPort||FRMPayload bytes of an
// uplink PHYPayload, needed to recompute the MIC over the exact bytes as
// received (ciphertext, not plaintext).
func MACPayloadBytes(raw []byte) []byte {
	if len(raw) < absoluteMinPHYLength {
		return nil
	}
	return raw[1 : len(raw)-4]
}

// DataRate is a parsed LoRaWAN datarate identifier of the form
// SF{7..12}BW{125|500}.
type DataRate struct {
	SpreadingFactor int
	BandwidthHz     int
}

// ParseDataRate parses "SF{sf}BW{bw}" into spreading factor and bandwidth
// in Hz.
func ParseDataRate(s string) (DataRate, error) {
	var dr DataRate
	if !strings.HasPrefix(s, "SF") {
		return dr, fmt.Errorf("lorawan: invalid datarate %q", s)
	}
	rest := s[2:]
	idx := strings.Index(rest, "BW")
	if idx < 0 {
		return dr, fmt.Errorf("lorawan: invalid datarate %q", s)
	}
	sf, err := strconv.Atoi(rest[:idx])
	if err != nil {
		return dr, fmt.Errorf("lorawan: invalid spreading factor in %q: %w", s, err)
	}
	bwKHz, err := strconv.Atoi(rest[idx+2:])
	if err != nil {
		return dr, fmt.Errorf("lorawan: invalid bandwidth in %q: %w", s, err)
	}
	dr.SpreadingFactor = sf
	dr.BandwidthHz = bwKHz * 1000
	return dr, nil
}
