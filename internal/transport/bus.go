package transport

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSRelay is a purely-internal decoupling bus between the MQTT
// subscriber and the downlink scheduler's queue. It is never exposed to
// the external platform — MQTT is the sole outside boundary.
type NATSRelay struct {
	conn *nats.Conn
}

// NewNATSRelay connects to an embedded or standalone NATS server. Connect
// failure at startup is fatal, matching the bridge's exit-status policy.
func NewNATSRelay(url string) (*NATSRelay, error) {
	conn, err := nats.Connect(url,
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: nats connect to %s failed: %w", url, err)
	}
	return &NATSRelay{conn: conn}, nil
}

// Publish sends payload to subject.
func (r *NATSRelay) Publish(subject string, payload []byte) error {
	return r.conn.Publish(subject, payload)
}

// Subscribe registers handler for every message on subject.
func (r *NATSRelay) Subscribe(subject string, handler func(subject string, payload []byte)) (*nats.Subscription, error) {
	return r.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
}

// Close drains and closes the underlying connection.
func (r *NATSRelay) Close() {
	r.conn.Close()
}
