// Package transport wires the external platform bus (MQTT) to the
// in-process downlink scheduler via an internal NATS relay. MQTT is the
// only boundary crossed to the outside platform; NATS never leaves the
// process.
package transport

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// Publisher is the platform-side publish capability the uplink pipeline
// depends on.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte) error
}

// ErrPublishFailed wraps a broker-reported publish failure.
type ErrPublishFailed struct {
	Topic string
	Err   error
}

func (e *ErrPublishFailed) Error() string {
	return fmt.Sprintf("transport: publish to %q failed: %v", e.Topic, e.Err)
}
func (e *ErrPublishFailed) Unwrap() error { return e.Err }

// MQTTConfig configures the paho client used for both publish and
// subscribe sides.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Timeout   time.Duration
}

// NewMQTTClient builds and connects a paho client per MQTTConfig. Connect
// failure at startup is fatal, per the bridge's exit-status policy.
func NewMQTTClient(cfg MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.Timeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("transport: mqtt connect to %s timed out", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("transport: mqtt connect to %s failed: %w", cfg.BrokerURL, err)
	}
	return client, nil
}

// MQTTPublisher publishes envelopes onto the platform bus.
type MQTTPublisher struct {
	Client  mqtt.Client
	Topic   string
	Timeout time.Duration
}

// Publish blocks on the paho token up to Timeout and surfaces a
// PublishFailed error on failure; per spec.md §7 this is never fatal to
// the running pipeline.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte, qos byte) error {
	token := p.Client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(p.Timeout) {
		return &ErrPublishFailed{Topic: topic, Err: fmt.Errorf("publish timed out after %s", p.Timeout)}
	}
	if err := token.Error(); err != nil {
		return &ErrPublishFailed{Topic: topic, Err: err}
	}
	log.Debug().Str("topic", topic).Int("bytes", len(payload)).Msg("transport: published")
	return nil
}
