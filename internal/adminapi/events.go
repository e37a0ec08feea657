package adminapi

import "sync"

// ringBuffer is a fixed-capacity, mutex-guarded event log fed by the
// uplink/downlink pipelines and drained by the WebSocket stream handler —
// single-writer-per-event, many-reader, the same discipline the directory
// cache uses for its snapshot.
type ringBuffer struct {
	mu          sync.Mutex
	capacity    int
	entries     [][]byte
	subscribers map[chan []byte]struct{}
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{capacity: capacity, subscribers: make(map[chan []byte]struct{})}
}

// Record appends a raw envelope payload, discarding the oldest entry once
// capacity is reached, and fans it out to every live WebSocket
// subscriber. kind is accepted for interface symmetry with other
// EventSink implementations but isn't stored separately — the envelope's
// own "type" field already carries it.
func (r *ringBuffer) Record(kind string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, payload)
	if len(r.entries) > r.capacity {
		r.entries = r.entries[len(r.entries)-r.capacity:]
	}
	for ch := range r.subscribers {
		select {
		case ch <- payload:
		default:
			// slow subscriber: drop rather than block the pipeline.
		}
	}
}

// Subscribe registers a channel to receive every future Record call.
func (r *ringBuffer) Subscribe() chan []byte {
	ch := make(chan []byte, 16)
	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a previously subscribed channel.
func (r *ringBuffer) Unsubscribe(ch chan []byte) {
	r.mu.Lock()
	delete(r.subscribers, ch)
	r.mu.Unlock()
	close(ch)
}

// Snapshot returns a copy of the currently buffered entries.
func (r *ringBuffer) Snapshot() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.entries))
	copy(out, r.entries)
	return out
}
