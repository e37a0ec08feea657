// Package config loads the bridge's YAML configuration file and applies
// environment variable overrides, the same two-step pattern as the wider
// server stack this bridge is cut from.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Admin     AdminConfig     `yaml:"admin"`
	Directory DirectoryConfig `yaml:"directory"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	NATS      NATSConfig      `yaml:"nats"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds the two gateway-facing UDP listen addresses.
type ServerConfig struct {
	UplinkAddr   string `yaml:"uplink_addr"`
	DownlinkAddr string `yaml:"downlink_addr"`
}

// AdminConfig configures the admin HTTP API and its operator credential.
type AdminConfig struct {
	ListenAddr        string        `yaml:"listen_addr"`
	JWTSecret         string        `yaml:"jwt_secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	OperatorUsername  string        `yaml:"operator_username"`
	// OperatorPasswordHash is a bcrypt hash, never a plaintext password.
	OperatorPasswordHash string `yaml:"operator_password_hash"`
	EventBufferSize      int    `yaml:"event_buffer_size"`
}

// DirectoryConfig configures the HTTP device-catalog client.
type DirectoryConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// MQTTConfig configures the platform-side publish/subscribe client.
type MQTTConfig struct {
	BrokerURL      string        `yaml:"broker_url"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	PublishTopic   string        `yaml:"publish_topic"`
	SubscribeTopic string        `yaml:"subscribe_topic"`
	Timeout        time.Duration `yaml:"timeout"`
}

// NATSConfig configures the internal-only relay connection.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// DatabaseConfig configures the optional audit log. Empty DSN disables it.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LogConfig configures zerolog's console writer.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads filename, unmarshals it as YAML, fills in defaults, and
// applies environment overrides.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", filename, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.UplinkAddr == "" {
		c.Server.UplinkAddr = "0.0.0.0:1730"
	}
	if c.Server.DownlinkAddr == "" {
		c.Server.DownlinkAddr = "0.0.0.0:1700"
	}
	if c.Admin.ListenAddr == "" {
		c.Admin.ListenAddr = ":8081"
	}
	if c.Admin.TokenTTL == 0 {
		c.Admin.TokenTTL = time.Hour
	}
	if c.Admin.EventBufferSize == 0 {
		c.Admin.EventBufferSize = 256
	}
	if c.Directory.Timeout == 0 {
		c.Directory.Timeout = 5 * time.Second
	}
	if c.MQTT.Timeout == 0 {
		c.MQTT.Timeout = 10 * time.Second
	}
	if c.MQTT.PublishTopic == "" {
		c.MQTT.PublishTopic = "gateway-bridge/uplink"
	}
	if c.MQTT.SubscribeTopic == "" {
		c.MQTT.SubscribeTopic = "gateway-bridge/downlink"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// applyEnvOverrides lets deployment environments override secrets and
// endpoints without editing the YAML file, the same pattern the wider
// stack uses for its own DATABASE_URL/JWT_SECRET/LOG_LEVEL overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("MQTT_BROKER_URL"); v != "" {
		c.MQTT.BrokerURL = v
	}
	if v := os.Getenv("DIRECTORY_BASE_URL"); v != "" {
		c.Directory.BaseURL = v
	}
	if v := os.Getenv("DIRECTORY_TOKEN"); v != "" {
		c.Directory.Token = v
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		c.Admin.JWTSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}
