// Package p2p decodes the proprietary non-LoRaWAN frames gateways report
// on uplink frequencies below 903.5 MHz. These frames are logged, never
// published as application data — this core has no destination format for
// them.
package p2p

import "fmt"

// MinFrameLength is the smallest accepted P2P frame: a 1-byte counter
// followed by a 3-byte proprietary identifier.
const MinFrameLength = 4

// Frame is a decoded proprietary frame: cnt(1) || lora_id(3) || payload(rest).
type Frame struct {
	Counter byte
	LoraID  [3]byte
	Payload []byte
}

// Parse decodes a P2P frame for logging purposes only.
func Parse(raw []byte) (*Frame, error) {
	if len(raw) < MinFrameLength {
		return nil, fmt.Errorf("p2p: frame too short: %d bytes", len(raw))
	}
	f := &Frame{Counter: raw[0]}
	copy(f.LoraID[:], raw[1:4])
	f.Payload = raw[4:]
	return f, nil
}

// DefaultFreqMHz, DefaultDatarate, and DefaultPayload are the fallback
// transmission parameters used when scheduling a P2P downlink window, in
// the absence of any richer P2P downlink semantics in this core.
const (
	DefaultFreqMHz  = 904.0
	DefaultDatarate = "SF11BW500"
)

// DefaultPayload is the placeholder body sent on every P2P downlink
// window; the payload of the platform's downlink request is not used for
// P2P.
var DefaultPayload = []byte("0123456789")
