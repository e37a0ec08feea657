// Package supervisor wires the bridge's independent pieces together —
// the two UDP sockets, the device directory cache, the MQTT/NATS
// transport, the downlink scheduler, and the admin API — and runs them as
// a single errgroup, the same shape the teacher's UDP forwarder used for
// its own goroutine lifecycle.
package supervisor

import (
	"context"
	"net"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/lorawan-server/gateway-bridge/internal/adminapi"
	"github.com/lorawan-server/gateway-bridge/internal/audit"
	"github.com/lorawan-server/gateway-bridge/internal/config"
	"github.com/lorawan-server/gateway-bridge/internal/directory"
	"github.com/lorawan-server/gateway-bridge/internal/downlink"
	"github.com/lorawan-server/gateway-bridge/internal/transport"
	"github.com/lorawan-server/gateway-bridge/internal/uplink"
)

// Supervisor owns every long-running component and their shared state.
type Supervisor struct {
	cfg *config.Config

	uplinkConn   *net.UDPConn
	downlinkConn *net.UDPConn

	directoryCache *directory.Cache
	contexts       *downlink.ContextTracker
	scheduler      *downlink.Scheduler
	auditStore     audit.Store

	relay      *transport.NATSRelay
	mqttClient mqttClient
	adminSrv   *adminapi.Server

	uplinkPipeline   *uplink.Pipeline
	downlinkListener *downlink.Listener
}

// mqttClient is the subset of mqtt.Client Supervisor needs to disconnect
// cleanly on shutdown.
type mqttClient interface {
	Disconnect(quiesce uint)
}

// New builds every component from cfg but does not start any of them.
func New(cfg *config.Config) (*Supervisor, error) {
	uplinkAddr, err := net.ResolveUDPAddr("udp", cfg.Server.UplinkAddr)
	if err != nil {
		return nil, err
	}
	uplinkConn, err := net.ListenUDP("udp", uplinkAddr)
	if err != nil {
		return nil, err
	}

	downlinkAddr, err := net.ResolveUDPAddr("udp", cfg.Server.DownlinkAddr)
	if err != nil {
		return nil, err
	}
	downlinkConn, err := net.ListenUDP("udp", downlinkAddr)
	if err != nil {
		return nil, err
	}

	dirClient := directory.NewHTTPDirectory(cfg.Directory.BaseURL, cfg.Directory.Token, cfg.Directory.Timeout)
	directoryCache := directory.NewCache(dirClient)

	var auditStore audit.Store = audit.NoopStore{}
	if cfg.Database.DSN != "" {
		pgStore, err := audit.NewPostgresStore(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		auditStore = pgStore
	}

	relay, err := transport.NewNATSRelay(cfg.NATS.URL)
	if err != nil {
		return nil, err
	}

	mqttClient, err := transport.NewMQTTClient(transport.MQTTConfig{
		BrokerURL: cfg.MQTT.BrokerURL,
		ClientID:  cfg.MQTT.ClientID,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		Timeout:   cfg.MQTT.Timeout,
	})
	if err != nil {
		return nil, err
	}

	scheduler := downlink.NewScheduler()
	contexts := downlink.NewContextTracker()

	gateways := adminapi.NewGatewayRegistry()

	tokens := adminapi.NewTokenManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL, adminapi.Credentials{
		Username:     cfg.Admin.OperatorUsername,
		PasswordHash: cfg.Admin.OperatorPasswordHash,
	})
	adminSrv := adminapi.NewServer(tokens, directoryCache, gateways, cfg.Admin.EventBufferSize)

	s := &Supervisor{
		cfg:            cfg,
		uplinkConn:     uplinkConn,
		downlinkConn:   downlinkConn,
		directoryCache: directoryCache,
		contexts:       contexts,
		scheduler:      scheduler,
		auditStore:     auditStore,
		relay:          relay,
		mqttClient:     mqttClient,
		adminSrv:       adminSrv,
	}

	subscriber := &transport.MQTTSubscriber{Client: mqttClient, Relay: relay}
	translator := &downlink.RequestTranslator{Directory: directoryCache, Contexts: contexts}
	if err := subscriber.Subscribe(cfg.MQTT.SubscribeTopic, translator); err != nil {
		return nil, err
	}
	if err := downlink.ListenRelay(relay, scheduler); err != nil {
		return nil, err
	}

	s.uplinkPipeline = &uplink.Pipeline{
		Conn:      uplinkConn,
		Directory: directoryCache,
		Publisher: &transport.MQTTPublisher{Client: mqttClient, Topic: cfg.MQTT.PublishTopic, Timeout: cfg.MQTT.Timeout},
		Topic:     cfg.MQTT.PublishTopic,
		Audit:     auditStore,
		Contexts:  contexts,
		Events:    adminSrv.EventSink(),
		Gateways:  gateways,
	}
	s.downlinkListener = &downlink.Listener{
		Conn:      downlinkConn,
		Scheduler: scheduler,
		Audit:     auditStore,
		Events:    adminSrv.EventSink(),
		Gateways:  gateways,
	}

	if err := directoryCache.RefreshAll(context.Background()); err != nil {
		log.Warn().Err(err).Msg("supervisor: initial directory refresh failed, starting with empty cache")
	}

	return s, nil
}

// Run starts every component and blocks until ctx is canceled or one of
// them fails unrecoverably.
func (s *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.uplinkPipeline.Run(ctx) })
	g.Go(func() error { return s.downlinkListener.Run(ctx) })
	g.Go(func() error {
		err := s.adminSrv.ListenAndServe(s.cfg.Admin.ListenAddr)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		return s.adminSrv.Shutdown(context.Background())
	})

	return g.Wait()
}

// Close releases every held resource. Call after Run returns.
func (s *Supervisor) Close() {
	if err := s.uplinkConn.Close(); err != nil {
		log.Error().Err(err).Msg("supervisor: close uplink socket")
	}
	if err := s.downlinkConn.Close(); err != nil {
		log.Error().Err(err).Msg("supervisor: close downlink socket")
	}
	s.relay.Close()
	s.mqttClient.Disconnect(250)
	if err := s.auditStore.Close(); err != nil {
		log.Error().Err(err).Msg("supervisor: close audit store")
	}
}
