package directory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// RefreshInterval is the cadence at which the uplink pipeline triggers a
// full directory refresh.
const RefreshInterval = 60 * time.Second

// Fetcher is the capability the cache depends on; HTTPDirectory satisfies
// it, and tests can supply a stub.
type Fetcher interface {
	GetBy(ctx context.Context, column, value *string) (map[string]Device, error)
}

// Cache is the single-writer, many-reader device directory. Writers
// (RefreshAll and the miss-handler in LookupOrFetch) swap an immutable
// snapshot atomically so readers never observe a partially-filled map.
type Cache struct {
	fetcher Fetcher
	snap    atomic.Pointer[map[string]Device]

	writeMu     sync.Mutex
	lastRefresh time.Time
}

// NewCache builds an empty cache bound to fetcher.
func NewCache(fetcher Fetcher) *Cache {
	c := &Cache{fetcher: fetcher}
	empty := map[string]Device{}
	c.snap.Store(&empty)
	return c
}

// Lookup is an O(1) read against the current snapshot.
func (c *Cache) Lookup(devAddrHex string) (Device, bool) {
	snap := *c.snap.Load()
	dev, ok := snap[devAddrHex]
	return dev, ok
}

// ShouldRefresh reports whether RefreshInterval has elapsed since the last
// refresh, gating the uplink pipeline's refresh trigger on elapsed wall
// time between uplinks rather than a ticking background goroutine.
func (c *Cache) ShouldRefresh(now time.Time) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return now.Sub(c.lastRefresh) >= RefreshInterval
}

// RefreshAll replaces the cache wholesale from the directory. Failure
// leaves the previous snapshot in place; the cache is never left partially
// filled.
func (c *Cache) RefreshAll(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	devices, err := c.fetcher.GetBy(ctx, nil, nil)
	if err != nil {
		log.Error().Err(err).Msg("directory: refresh failed, retaining previous snapshot")
		return err
	}

	next := make(map[string]Device, len(devices))
	for addr, dev := range devices {
		next[addr] = dev
	}
	c.snap.Store(&next)
	c.lastRefresh = time.Now()
	log.Info().Int("devices", len(next)).Msg("directory: refreshed")
	return nil
}

// LookupOrFetch returns a device from the cache, falling back to a single
// synchronous per-address directory query on a miss. A successful fetch is
// inserted into a new snapshot copy-on-write so readers never see a torn
// map.
func (c *Cache) LookupOrFetch(ctx context.Context, devAddrHex string) (Device, bool) {
	if dev, ok := c.Lookup(devAddrHex); ok {
		return dev, true
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	// Re-check under the write lock: another goroutine may have just
	// refreshed or fetched this address.
	if dev, ok := c.Lookup(devAddrHex); ok {
		return dev, true
	}

	column := "dev_addr"
	devices, err := c.fetcher.GetBy(ctx, &column, &devAddrHex)
	if err != nil {
		log.Error().Err(err).Str("dev_addr", devAddrHex).Msg("directory: miss-fetch failed")
		return Device{}, false
	}
	dev, ok := devices[devAddrHex]
	if !ok {
		return Device{}, false
	}

	prev := *c.snap.Load()
	next := make(map[string]Device, len(prev)+1)
	for addr, d := range prev {
		next[addr] = d
	}
	next[devAddrHex] = dev
	c.snap.Store(&next)
	return dev, true
}
