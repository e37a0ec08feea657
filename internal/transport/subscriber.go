package transport

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// Translator turns a raw downlink-request envelope body into the subject
// and payload to republish on the internal relay. Translation (device
// lookup, PHY assembly, deadline computation) is the downlink package's
// job; transport only owns the MQTT<->NATS seam.
type Translator interface {
	Translate(body []byte) (subject string, payload []byte, err error)
}

// MQTTSubscriber listens for platform-originated downlink requests and
// republishes them, translated, onto the internal relay.
type MQTTSubscriber struct {
	Client mqtt.Client
	Relay  *NATSRelay
}

// Subscribe registers a paho handler on topic that decodes each message
// with translator and republishes it onto the relay. A translation
// failure is logged and the message is dropped — it never blocks the MQTT
// client's delivery loop.
func (s *MQTTSubscriber) Subscribe(topic string, translator Translator) error {
	token := s.Client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		subject, payload, err := translator.Translate(msg.Payload())
		if err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("transport: dropping undeliverable downlink request")
			return
		}
		if err := s.Relay.Publish(subject, payload); err != nil {
			log.Error().Err(err).Str("subject", subject).Msg("transport: relay publish failed")
		}
	})
	token.Wait()
	return token.Error()
}
