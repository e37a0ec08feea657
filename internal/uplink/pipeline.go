// Package uplink implements the uplink pipeline: UDP receive, Semtech
// decode, directory lookup/refresh, LoRaWAN decrypt, envelope
// construction, and publish.
package uplink

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/lorawan-server/gateway-bridge/internal/audit"
	"github.com/lorawan-server/gateway-bridge/internal/directory"
	"github.com/lorawan-server/gateway-bridge/internal/downlink"
	"github.com/lorawan-server/gateway-bridge/internal/envelope"
	"github.com/lorawan-server/gateway-bridge/internal/p2p"
	"github.com/lorawan-server/gateway-bridge/internal/transport"
	"github.com/lorawan-server/gateway-bridge/pkg/lorawan"
	"github.com/lorawan-server/gateway-bridge/pkg/radio"
	"github.com/lorawan-server/gateway-bridge/pkg/semtech"
	"github.com/rs/zerolog/log"
)

// ReadTimeout bounds each UDP read so the refresh cadence makes progress
// even without traffic, per spec.md §5.
const ReadTimeout = 60 * time.Second

// EventSink receives a copy of every successfully built envelope, for the
// admin API's live event tail. Recording is best-effort and must never
// block the pipeline.
type EventSink interface {
	Record(kind string, payload []byte)
}

// GatewaySeen receives a gateway id every time a datagram from it is
// handled, for the admin API's known-gateway listing.
type GatewaySeen interface {
	Seen(gatewayID string)
}

// Pipeline is the uplink-side state: the bound socket, the device
// directory, the platform publisher, the audit log, and the uplink
// context tracker the downlink side reads from.
type Pipeline struct {
	Conn      *net.UDPConn
	Directory *directory.Cache
	Publisher transport.Publisher
	Topic     string
	Audit     audit.Store
	Contexts  *downlink.ContextTracker
	Events    EventSink
	Gateways  GatewaySeen

	// fcnt is a per-process observability counter only; it is never used
	// as the cryptographic FCnt (that always comes from the PHY).
	fcnt uint32
}

// Run is the uplink receive loop. It returns only when ctx is canceled or
// the socket read fails unrecoverably.
func (p *Pipeline) Run(ctx context.Context) error {
	log.Info().Str("addr", p.Conn.LocalAddr().String()).Msg("uplink: listening")

	buf := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := p.Conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
			return err
		}
		n, src, err := p.Conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				p.maybeRefresh(ctx)
				continue
			}
			log.Error().Err(err).Msg("uplink: socket read failed")
			continue
		}

		p.maybeRefresh(ctx)
		p.handleDatagram(ctx, append([]byte(nil), buf[:n]...), src)
	}
}

func (p *Pipeline) maybeRefresh(ctx context.Context) {
	if p.Directory.ShouldRefresh(time.Now()) {
		_ = p.Directory.RefreshAll(ctx)
	}
}

func (p *Pipeline) handleDatagram(ctx context.Context, raw []byte, src *net.UDPAddr) {
	frame, err := semtech.Decode(raw)
	if err != nil {
		log.Warn().Err(err).Msg("uplink: malformed frame, dropping")
		return
	}

	if frame.Type != semtech.PushData {
		// PULL_* arrives on the downlink socket; anything else here is
		// uninteresting.
		return
	}

	if p.Gateways != nil {
		p.Gateways.Seen(frame.GatewayID.String())
	}

	ack := semtech.EncodeAck(frame.Version, frame.Token, semtech.PushAck, frame.GatewayID)
	if _, err := p.Conn.WriteToUDP(ack, src); err != nil {
		log.Error().Err(err).Msg("uplink: failed to send PUSH_ACK")
	}

	var batch radio.GatewayPacket
	if err := json.Unmarshal(semtech.TrimTrailingJSON(frame.Body), &batch); err != nil {
		log.Error().Err(err).Msg("uplink: invalid rxpk json")
		return
	}
	rxpk, ok := batch.Last()
	if !ok {
		return
	}

	p.fcnt++

	phyRaw, err := rxpk.Decode()
	if err != nil {
		log.Error().Err(err).Msg("uplink: invalid phy base64")
		return
	}

	if rxpk.Freq < 903.5 {
		p.handleP2P(frame.GatewayID.String(), rxpk, phyRaw)
		return
	}
	p.handleLoRaWAN(ctx, frame.GatewayID.String(), rxpk, phyRaw)
}

func (p *Pipeline) handleP2P(gatewayID string, rxpk radio.Rxpk, phyRaw []byte) {
	frame, err := p2p.Parse(phyRaw)
	if err != nil {
		log.Warn().Err(err).Msg("uplink: malformed p2p frame, dropping")
		return
	}
	log.Info().
		Str("gateway_id", gatewayID).
		Uint8("counter", frame.Counter).
		Hex("lora_id", frame.LoraID[:]).
		Int("payload_len", len(frame.Payload)).
		Msg("uplink: p2p frame received")

	if p.Contexts != nil {
		p.Contexts.Record("", downlink.UplinkContext{GatewayID: gatewayID, Rxpk: rxpk})
	}
}

func (p *Pipeline) handleLoRaWAN(ctx context.Context, gatewayID string, rxpk radio.Rxpk, phyRaw []byte) {
	phy, err := lorawan.ParsePHY(phyRaw)
	if err != nil {
		log.Error().Err(err).Msg("uplink: invalid phy payload")
		return
	}
	if phy.FPort == 0 || len(phy.FRMPayload) == 0 {
		return
	}

	devAddrHex := phy.DevAddr.String()
	dev, ok := p.Directory.LookupOrFetch(ctx, devAddrHex)
	if !ok {
		log.Warn().Str("dev_addr", devAddrHex).Msg("uplink: unknown device, dropping")
		return
	}

	plaintext, err := lorawan.DecryptUplinkPayload(dev.AppSKey, phy)
	if err != nil {
		log.Error().Err(err).Msg("uplink: decrypt failed")
		return
	}

	if ok, err := lorawan.VerifyUplinkMIC(dev.NwkSKey, phy, lorawan.MACPayloadBytes(phyRaw)); err != nil {
		log.Error().Err(err).Msg("uplink: mic verification error")
	} else if !ok {
		log.Warn().Str("dev_addr", devAddrHex).Msg("uplink: mic mismatch, continuing anyway")
	}

	packetHash, err := envelope.PacketHash()
	if err != nil {
		log.Error().Err(err).Msg("uplink: generate packet_hash")
		return
	}

	env, err := envelope.BuildUplink(envelope.BuildUplinkInput{
		Rxpk:       rxpk,
		PHY:        phy,
		Plaintext:  plaintext,
		GatewayID:  gatewayID,
		DevAddr:    devAddrHex,
		PacketHash: packetHash,
	})
	if err != nil {
		log.Error().Err(err).Msg("uplink: build envelope")
		return
	}

	payload, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("uplink: marshal envelope")
		return
	}

	if err := p.Publisher.Publish(ctx, p.Topic, payload, 0); err != nil {
		log.Error().Err(err).Msg("uplink: publish failed")
	}
	if p.Events != nil {
		p.Events.Record("uplink", payload)
	}

	if p.Contexts != nil {
		p.Contexts.Record(devAddrHex, downlink.UplinkContext{GatewayID: gatewayID, Rxpk: rxpk})
	}
	if p.Audit != nil {
		_ = p.Audit.RecordUplink(ctx, audit.UplinkRecord{
			GatewayID: gatewayID,
			DevAddr:   devAddrHex,
			PacketID:  env.Meta.PacketID,
			FreqMHz:   rxpk.Freq,
			Port:      env.Params.Port,
			Size:      len(phyRaw),
			Time:      time.Now(),
		})
	}
}
