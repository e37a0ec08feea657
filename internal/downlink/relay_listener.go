package downlink

import (
	"encoding/json"

	"github.com/lorawan-server/gateway-bridge/internal/transport"
	"github.com/rs/zerolog/log"
)

// ListenRelay subscribes the scheduler to every gateway's tx subject on
// the internal relay and enqueues each translated relay message. This is
// the "fourth task (outside the core) [that] owns the Subscriber and
// enqueues downlinks" from spec.md §5, realized over NATS per SPEC_FULL
// component I.
func ListenRelay(relay *transport.NATSRelay, scheduler *Scheduler) error {
	_, err := relay.Subscribe("gateway.*.tx", func(_ string, data []byte) {
		var msg relayMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Error().Err(err).Msg("downlink: malformed relay message")
			return
		}
		scheduler.Enqueue(msg.GatewayID, ScheduledDownlink{
			Txpk:             msg.Txpk,
			DeadlineMS:       msg.DeadlineMS,
			DevAddr:          msg.DevAddr,
			ResponseEnvelope: msg.ResponseEnvelope,
		})
	})
	return err
}
