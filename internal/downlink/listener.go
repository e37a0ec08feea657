package downlink

import (
	"context"
	"net"
	"time"

	"github.com/lorawan-server/gateway-bridge/internal/audit"
	"github.com/lorawan-server/gateway-bridge/pkg/semtech"
	"github.com/rs/zerolog/log"
)

// ReadTimeout bounds each UDP read on the downlink socket; PULL_DATA
// arrives on its own heartbeat cadence so a timeout here is routine, not
// an error.
const ReadTimeout = 60 * time.Second

// EventSink receives a copy of every successfully sent downlink_response
// envelope, for the admin API's live event tail. Recording is best-effort
// and must never block the listener.
type EventSink interface {
	Record(kind string, payload []byte)
}

// GatewaySeen receives a gateway id every time a datagram from it is
// handled, for the admin API's known-gateway listing.
type GatewaySeen interface {
	Seen(gatewayID string)
}

// Listener is the downlink-side UDP loop: it answers PULL_DATA with
// whatever the Scheduler has queued for that gateway, and logs TX_ACK.
type Listener struct {
	Conn      *net.UDPConn
	Scheduler *Scheduler
	Audit     audit.Store
	Events    EventSink
	Gateways  GatewaySeen
}

// Run services the downlink socket until ctx is canceled.
func (l *Listener) Run(ctx context.Context) error {
	log.Info().Str("addr", l.Conn.LocalAddr().String()).Msg("downlink: listening")

	buf := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := l.Conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
			return err
		}
		n, src, err := l.Conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			log.Error().Err(err).Msg("downlink: socket read failed")
			continue
		}

		l.handleDatagram(ctx, append([]byte(nil), buf[:n]...), src)
	}
}

func (l *Listener) handleDatagram(ctx context.Context, raw []byte, src *net.UDPAddr) {
	frame, err := semtech.Decode(raw)
	if err != nil {
		log.Warn().Err(err).Msg("downlink: malformed frame, dropping")
		return
	}

	switch frame.Type {
	case semtech.PullData:
		if l.Gateways != nil {
			l.Gateways.Seen(frame.GatewayID.String())
		}
		l.handlePullData(ctx, frame, src)
	case semtech.TxAck:
		if l.Gateways != nil {
			l.Gateways.Seen(frame.GatewayID.String())
		}
		log.Debug().Str("gateway_id", frame.GatewayID.String()).Msg("downlink: tx_ack received")
	default:
		// PUSH_DATA and friends arrive on the uplink socket; anything
		// else here is uninteresting.
	}
}

func (l *Listener) handlePullData(ctx context.Context, frame *semtech.Frame, src *net.UDPAddr) {
	ack := semtech.EncodeAck(frame.Version, frame.Token, semtech.PullAck, frame.GatewayID)
	if _, err := l.Conn.WriteToUDP(ack, src); err != nil {
		log.Error().Err(err).Msg("downlink: failed to send PULL_ACK")
	}

	gatewayID := frame.GatewayID.String()
	entry, result := l.Scheduler.HandlePullData(gatewayID)
	if result != DrainSent {
		return
	}

	resp, err := semtech.EncodePullResp(frame.Token, frame.GatewayID, entry.Txpk)
	if err != nil {
		log.Error().Err(err).Msg("downlink: encode pull_resp")
		return
	}
	if _, err := l.Conn.WriteToUDP(resp, src); err != nil {
		log.Error().Err(err).Msg("downlink: failed to send PULL_RESP")
		return
	}
	log.Info().Str("gateway_id", gatewayID).Msg("downlink: pull_resp sent")

	if l.Events != nil && len(entry.ResponseEnvelope) > 0 {
		l.Events.Record("downlink_response", entry.ResponseEnvelope)
	}
	if l.Audit != nil {
		if err := l.Audit.RecordDownlink(ctx, audit.DownlinkRecord{
			GatewayID: gatewayID,
			DevAddr:   entry.DevAddr,
			FreqMHz:   entry.Txpk.Freq,
			Size:      entry.Txpk.Size,
			Time:      time.Now(),
		}); err != nil {
			log.Error().Err(err).Msg("downlink: record audit failed")
		}
	}
}
