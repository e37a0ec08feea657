// Package downlink implements the downlink scheduler: a FIFO queue per
// gateway of radio transmissions gated on that gateway's PULL_DATA
// heartbeat, plus the PHY assembly (encrypt + MIC) needed to turn a
// platform downlink request into a ready-to-send Txpk.
package downlink

import (
	"container/list"
	"sync"
	"time"

	"github.com/lorawan-server/gateway-bridge/pkg/radio"
	"github.com/rs/zerolog/log"
)

// ScheduledDownlink is one queued transmission: the radio instruction, the
// wall-clock deadline by which it must be pushed, and the bits the
// downlink listener needs to record the send (audit log, admin event
// stream) without looking anything back up.
type ScheduledDownlink struct {
	Txpk             radio.Txpk
	DeadlineMS       int64
	DevAddr          string
	ResponseEnvelope []byte
}

// DrainResult reports what HandlePullData did with the head of the queue.
type DrainResult int

const (
	// DrainNone means the queue for this gateway was empty.
	DrainNone DrainResult = iota
	// DrainSent means a Txpk is ready to be sent as a PULL_RESP.
	DrainSent
	// DrainRequeued means the head entry was not yet due and was put back.
	DrainRequeued
)

// Scheduler owns a FIFO queue per gateway, populated by a Subscriber
// callback (translated platform downlink requests) and drained by the
// downlink UDP loop on each PULL_DATA.
type Scheduler struct {
	mu      sync.Mutex
	queues  map[string]*list.List
	nowFunc func() int64
}

// NewScheduler builds an empty scheduler. nowFunc defaults to the current
// wall clock in milliseconds; tests may override it.
func NewScheduler() *Scheduler {
	return &Scheduler{
		queues:  make(map[string]*list.List),
		nowFunc: func() int64 { return time.Now().UnixMilli() },
	}
}

// Enqueue appends a scheduled downlink to gatewayID's queue.
func (s *Scheduler) Enqueue(gatewayID string, d ScheduledDownlink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[gatewayID]
	if !ok {
		q = list.New()
		s.queues[gatewayID] = q
	}
	q.PushBack(d)
}

// HandlePullData implements the per-PULL_DATA drain cycle from spec.md
// §4.F: while the queue is non-empty, dequeue the head entry; if its
// deadline is more than 1s away, re-enqueue it at the tail and stop; if
// its deadline has already passed, drop it with a warning and try the
// next entry; otherwise it is ready — return it for sending and stop.
// At most one entry is ever returned per call, matching the "at most one
// PULL_RESP per PULL_DATA" contract.
func (s *Scheduler) HandlePullData(gatewayID string) (ScheduledDownlink, DrainResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[gatewayID]
	if !ok {
		return ScheduledDownlink{}, DrainNone
	}

	for q.Len() > 0 {
		front := q.Front()
		q.Remove(front)
		entry := front.Value.(ScheduledDownlink)

		delay := entry.DeadlineMS - s.nowFunc()
		switch {
		case delay > 1000:
			q.PushBack(entry)
			return ScheduledDownlink{}, DrainRequeued
		case delay < 0:
			log.Warn().Str("gateway_id", gatewayID).Int64("overdue_ms", -delay).Msg("downlink: lost transmission window")
			continue
		default:
			return entry, DrainSent
		}
	}
	return ScheduledDownlink{}, DrainNone
}
