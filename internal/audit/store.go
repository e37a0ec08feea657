// Package audit provides a write-only, best-effort record of accepted
// uplink/downlink frames for operational visibility. It is never consulted
// by the crypto or scheduling path and carries no frame-counter authority.
package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// UplinkRecord is one accepted-uplink audit row.
type UplinkRecord struct {
	ID        uuid.UUID
	GatewayID string
	DevAddr   string
	PacketID  string
	FreqMHz   float64
	Port      int
	Size      int
	Time      time.Time
}

// DownlinkRecord is one emitted-downlink audit row.
type DownlinkRecord struct {
	ID        uuid.UUID
	GatewayID string
	DevAddr   string
	FreqMHz   float64
	Size      int
	Time      time.Time
}

// Store is the audit logging capability. Both methods are fire-and-forget
// from the caller's perspective: an error is logged, never propagated into
// the uplink/downlink path.
type Store interface {
	RecordUplink(ctx context.Context, r UplinkRecord) error
	RecordDownlink(ctx context.Context, r DownlinkRecord) error
	Close() error
}

// NoopStore discards every record. Used when no Postgres DSN is
// configured.
type NoopStore struct{}

func (NoopStore) RecordUplink(context.Context, UplinkRecord) error     { return nil }
func (NoopStore) RecordDownlink(context.Context, DownlinkRecord) error { return nil }
func (NoopStore) Close() error                                        { return nil }

// PostgresStore persists audit rows via lib/pq, the same driver the
// teacher stack uses for its storage layer.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings a Postgres connection.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) RecordUplink(ctx context.Context, r UplinkRecord) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO uplink_frames (id, gateway_id, dev_addr, packet_id, freq_mhz, port, size, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.GatewayID, r.DevAddr, r.PacketID, r.FreqMHz, r.Port, r.Size, r.Time)
	if err != nil {
		log.Error().Err(err).Msg("audit: record uplink failed")
	}
	return err
}

func (s *PostgresStore) RecordDownlink(ctx context.Context, r DownlinkRecord) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO downlink_frames (id, gateway_id, dev_addr, freq_mhz, size, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, r.GatewayID, r.DevAddr, r.FreqMHz, r.Size, r.Time)
	if err != nil {
		log.Error().Err(err).Msg("audit: record downlink failed")
	}
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
