package downlink

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lorawan-server/gateway-bridge/internal/directory"
	"github.com/lorawan-server/gateway-bridge/internal/envelope"
	"github.com/lorawan-server/gateway-bridge/internal/p2p"
	"github.com/lorawan-server/gateway-bridge/pkg/lorawan"
	"github.com/lorawan-server/gateway-bridge/pkg/radio"
)

// rx1Delay and p2pDelay are the wall-clock holds the scheduler enforces
// before a reply may go out, per spec.md §4.G. These gate the scheduler's
// DeadlineMS and are independent of rxpk.Tmms, which only feeds the
// outgoing Txpk.Tmms radio field (GPS-epoch, optional, and never a
// substitute for a real deadline clock).
const (
	rx1Delay = 5 * time.Second
	p2pDelay = 1 * time.Second
)

// UplinkContext is the piece of uplink state the downlink side needs to
// schedule a reply on the correct gateway and receive window: which
// gateway last heard this device, and the Rxpk that window is computed
// from.
type UplinkContext struct {
	GatewayID string
	Rxpk      radio.Rxpk
}

// ContextTracker records, per device address, the most recent uplink
// context. The uplink pipeline writes to it after every accepted uplink;
// the downlink translator reads from it when a platform downlink request
// arrives. A read-write mutex is enough here: writes are infrequent relative to
// reads and the map is small (one entry per active device).
type ContextTracker struct {
	mu   sync.RWMutex
	byDevAddr map[string]UplinkContext
}

func NewContextTracker() *ContextTracker {
	return &ContextTracker{byDevAddr: make(map[string]UplinkContext)}
}

func (t *ContextTracker) Record(devAddrHex string, ctx UplinkContext) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byDevAddr[devAddrHex] = ctx
}

func (t *ContextTracker) Get(devAddrHex string) (UplinkContext, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ctx, ok := t.byDevAddr[devAddrHex]
	return ctx, ok
}

// relayMessage is the record republished onto the internal NATS relay,
// matching SPEC_FULL's component I: the radio instruction, the wall-clock
// send deadline, and the already-built downlink_response envelope for the
// listener to record once the send succeeds.
type relayMessage struct {
	GatewayID        string          `json:"gateway_id"`
	Txpk             radio.Txpk      `json:"txpk"`
	DeadlineMS       int64           `json:"deadline_ms"`
	DevAddr          string          `json:"dev_addr"`
	ResponseEnvelope json.RawMessage `json:"response_envelope"`
}

// RequestTranslator implements transport.Translator: it decodes an
// inbound downlink-request envelope, looks up the device's session keys
// and last-heard gateway/Rxpk, assembles the encrypted downlink PHY, and
// produces the relay message for the scheduler's NATS subscription.
type RequestTranslator struct {
	Directory *directory.Cache
	Contexts  *ContextTracker
}

// requestEnvelope is the minimal shape this core needs out of an inbound
// downlink-request envelope; unknown fields are ignored. Meta.PacketHash is
// carried through so the eventual downlink_response envelope can echo it.
type requestEnvelope struct {
	Meta   envelope.Meta                  `json:"meta"`
	Params envelope.ParamsDownlinkRequest `json:"params"`
}

// Translate implements transport.Translator.
func (t *RequestTranslator) Translate(body []byte) (subject string, payload []byte, err error) {
	var req requestEnvelope
	if err := json.Unmarshal(body, &req); err != nil {
		return "", nil, fmt.Errorf("downlink: decode request envelope: %w", err)
	}

	devAddr, err := lorawan.ParseDevAddr(req.Params.DeviceAddr)
	if err != nil {
		return "", nil, fmt.Errorf("downlink: invalid device_addr %q: %w", req.Params.DeviceAddr, err)
	}
	devAddrHex := devAddr.String()

	dev, ok := t.Directory.Lookup(devAddrHex)
	if !ok {
		return "", nil, fmt.Errorf("downlink: unknown device %s", devAddrHex)
	}

	uctx, ok := t.Contexts.Get(devAddrHex)
	if !ok {
		return "", nil, fmt.Errorf("downlink: no prior uplink context for device %s", devAddrHex)
	}

	plaintext, err := base64.StdEncoding.DecodeString(req.Params.Payload)
	if err != nil {
		return "", nil, fmt.Errorf("downlink: invalid base64 payload: %w", err)
	}

	isP2P := uctx.Rxpk.Freq < 903.5

	var txpk radio.Txpk
	var deadline time.Duration
	if isP2P {
		txpk, err = buildP2PTxpk(uctx.Rxpk)
		deadline = p2pDelay
	} else {
		txpk, err = buildLoRaWANTxpk(dev, uctx.Rxpk, plaintext, req.Params.CounterDown, req.Params.Port, req.Params.Confirmed)
		deadline = rx1Delay
	}
	if err != nil {
		return "", nil, err
	}
	deadlineMS := time.Now().Add(deadline).UnixMilli()

	respEnv := envelope.BuildDownlinkResponse(req.Params, req.Meta.PacketHash)
	respEnvBytes, err := json.Marshal(respEnv)
	if err != nil {
		return "", nil, fmt.Errorf("downlink: marshal downlink_response envelope: %w", err)
	}

	msg := relayMessage{
		GatewayID:        uctx.GatewayID,
		Txpk:             txpk,
		DeadlineMS:       deadlineMS,
		DevAddr:          devAddrHex,
		ResponseEnvelope: respEnvBytes,
	}
	out, err := json.Marshal(msg)
	if err != nil {
		return "", nil, fmt.Errorf("downlink: marshal relay message: %w", err)
	}

	return "gateway." + uctx.GatewayID + ".tx", out, nil
}

// buildLoRaWANTxpk implements spec.md §4.G's downlink mapping: RX1 is 5s
// after the triggering uplink, on the paired downlink frequency, at the
// US915 RX1 default datarate, FCntDown sourced from the platform request
// (never the local observability-only counter). The returned Txpk.Tmms is
// derived from rxpk.Tmms purely for the radio field the gateway expects;
// the scheduler's send deadline is computed separately from wall-clock
// time by the caller.
func buildLoRaWANTxpk(dev directory.Device, rxpk radio.Rxpk, plaintext []byte, counterDown uint32, port int, confirmed bool) (radio.Txpk, error) {
	freq, err := lorawan.DownlinkFor(rxpk.Freq)
	if err != nil {
		return radio.Txpk{}, fmt.Errorf("downlink: %w", err)
	}

	phy, err := lorawan.BuildDownlinkPHY(dev.DevAddr, dev.NwkSKey, dev.AppSKey, plaintext, counterDown, byte(port), confirmed)
	if err != nil {
		return radio.Txpk{}, fmt.Errorf("downlink: build phy: %w", err)
	}

	tmst := rxpk.Tmst + 5_000_000
	var tmmsBase int64
	if rxpk.Tmms != nil {
		tmmsBase = *rxpk.Tmms
	}
	tmms := tmmsBase + 5000

	return radio.NewTxpk(phy, freq, "SF10BW500", tmst, &tmms, true), nil
}

// buildP2PTxpk schedules a placeholder P2P downlink window; this core has
// no application-payload format for P2P frames, so it emits the same
// default probe payload the reference implementation does. As above,
// Txpk.Tmms is derived from rxpk.Tmms for the radio field only.
func buildP2PTxpk(rxpk radio.Rxpk) (radio.Txpk, error) {
	tmst := rxpk.Tmst + 1_000_000
	var tmmsBase int64
	if rxpk.Tmms != nil {
		tmmsBase = *rxpk.Tmms
	}
	tmms := tmmsBase + 1

	phy := p2p.DefaultPayload
	return radio.NewTxpk(phy, p2p.DefaultFreqMHz, p2p.DefaultDatarate, tmst, &tmms, false), nil
}
