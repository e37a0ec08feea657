package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lorawan-server/gateway-bridge/pkg/lorawan"
	"github.com/lorawan-server/gateway-bridge/pkg/radio"
)

// PacketID returns the first 16 hex characters of SHA-256 over the
// canonical (field-ordered, as produced by encoding/json) JSON of an rxpk.
// Identical input always yields the identical id.
func PacketID(rxpk radio.Rxpk) (string, error) {
	canonical, err := json.Marshal(rxpk)
	if err != nil {
		return "", fmt.Errorf("envelope: marshal rxpk for packet_id: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16], nil
}

// PacketHash returns 16 random bytes as hex, used to correlate a platform
// downlink request back to the uplink that triggered it.
func PacketHash() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("envelope: generate packet_hash: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// BuildUplinkInput bundles everything BuildUplink needs.
type BuildUplinkInput struct {
	Rxpk             radio.Rxpk
	PHY              *lorawan.PHYPayload
	Plaintext        []byte
	GatewayID        string
	DevAddr          string
	PacketHash       string
	Network          string
}

// BuildUplink assembles the "uplink" envelope per the platform message
// shape: meta carries identity/correlation fields, params carries the
// decrypted payload plus radio/lora metadata.
func BuildUplink(in BuildUplinkInput) (Uplink, error) {
	packetID, err := PacketID(in.Rxpk)
	if err != nil {
		return Uplink{}, err
	}

	dr, err := lorawan.ParseDataRate(in.Rxpk.Datr)
	if err != nil {
		return Uplink{}, fmt.Errorf("envelope: parse datarate: %w", err)
	}

	return Uplink{
		Type: TypeUplink,
		Meta: Meta{
			DeviceAddr: in.DevAddr,
			PacketHash: in.PacketHash,
			PacketID:   packetID,
			Gateway:    in.GatewayID,
			Time:       time.Now().Unix(),
			Version:    1,
			Network:    in.Network,
		},
		Params: ParamsUplink{
			Port:             int(in.PHY.FPort),
			RxTime:           time.Now().Unix(),
			CounterUp:        uint32(in.PHY.FCnt16),
			Payload:          base64Std(in.Plaintext),
			EncryptedPayload: base64Std(in.PHY.FRMPayload),
			Duplicate:        false,
			Radio: Radio{
				Freq:     in.Rxpk.Freq,
				Datarate: in.Rxpk.Datr,
				Time:     time.Now().Unix(),
				Modulation: Modulation{
					Kind:       in.Rxpk.Modu,
					Bandwidth:  dr.BandwidthHz,
					Spreading:  dr.SpreadingFactor,
					CodingRate: in.Rxpk.Codr,
				},
			},
			Lora: Lora{
				Header:      LoraHeader{Version: 1, LoraType: 2},
				MACCommands: []interface{}{},
			},
		},
	}, nil
}

// BuildDownlinkResponse mirrors the inbound request's counter_down, port,
// and payload, and echoes the originating packet_hash — resolving the
// spec's open question about downlink-response construction.
func BuildDownlinkResponse(req ParamsDownlinkRequest, packetHash string) DownlinkResponse {
	return DownlinkResponse{
		Type: TypeDownlinkResponse,
		Meta: Meta{
			DeviceAddr: req.DeviceAddr,
			PacketHash: packetHash,
			Time:       time.Now().Unix(),
			Version:    1,
		},
		Params: ParamsDownlinkResponse{
			CounterDown: req.CounterDown,
			Port:        req.Port,
			Payload:     req.Payload,
		},
	}
}

func base64Std(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
