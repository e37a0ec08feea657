package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lorawan-server/gateway-bridge/pkg/lorawan"
)

type stubFetcher struct {
	full     map[string]Device
	byAddr   map[string]Device
	calls    int
	fullErr  error
	fetchErr error
}

func (s *stubFetcher) GetBy(ctx context.Context, column, value *string) (map[string]Device, error) {
	s.calls++
	if column == nil {
		if s.fullErr != nil {
			return nil, s.fullErr
		}
		return s.full, nil
	}
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if dev, ok := s.byAddr[*value]; ok {
		return map[string]Device{*value: dev}, nil
	}
	return map[string]Device{}, nil
}

func testDevice(t *testing.T, addr string) Device {
	t.Helper()
	a, err := lorawan.ParseDevAddr(addr)
	if err != nil {
		t.Fatalf("parse addr: %v", err)
	}
	return Device{DevAddr: a}
}

func TestCacheRefreshAll(t *testing.T) {
	dev := testDevice(t, "26011BDA")
	fetcher := &stubFetcher{full: map[string]Device{"26011BDA": dev}}
	cache := NewCache(fetcher)

	if err := cache.RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	got, ok := cache.Lookup("26011BDA")
	if !ok || got.DevAddr != dev.DevAddr {
		t.Fatalf("lookup after refresh: got=%+v ok=%v", got, ok)
	}
}

func TestCacheRefreshAllFailureRetainsSnapshot(t *testing.T) {
	dev := testDevice(t, "26011BDA")
	fetcher := &stubFetcher{full: map[string]Device{"26011BDA": dev}}
	cache := NewCache(fetcher)
	if err := cache.RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	fetcher.fullErr = errors.New("directory down")
	if err := cache.RefreshAll(context.Background()); err == nil {
		t.Fatal("expected error from second refresh")
	}

	got, ok := cache.Lookup("26011BDA")
	if !ok || got.DevAddr != dev.DevAddr {
		t.Fatalf("expected previous snapshot retained, got=%+v ok=%v", got, ok)
	}
}

// TestCacheMissPathSingleQuery is property/test 8: on a miss,
// LookupOrFetch performs exactly one directory query, and a successful
// fetch becomes observable by subsequent lookups.
func TestCacheMissPathSingleQuery(t *testing.T) {
	dev := testDevice(t, "01020304")
	fetcher := &stubFetcher{
		full:   map[string]Device{},
		byAddr: map[string]Device{"01020304": dev},
	}
	cache := NewCache(fetcher)

	got, ok := cache.LookupOrFetch(context.Background(), "01020304")
	if !ok {
		t.Fatal("expected fetch to succeed")
	}
	if got.DevAddr != dev.DevAddr {
		t.Fatalf("got %+v, want %+v", got, dev)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected exactly 1 directory query, got %d", fetcher.calls)
	}

	got2, ok2 := cache.Lookup("01020304")
	if !ok2 || got2.DevAddr != dev.DevAddr {
		t.Fatalf("expected subsequent lookup to observe fetched entry")
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected no further queries, got %d", fetcher.calls)
	}
}

func TestCacheMissPathNotFound(t *testing.T) {
	fetcher := &stubFetcher{full: map[string]Device{}, byAddr: map[string]Device{}}
	cache := NewCache(fetcher)

	_, ok := cache.LookupOrFetch(context.Background(), "FFFFFFFF")
	if ok {
		t.Fatal("expected miss for unknown address")
	}
}

func TestCacheShouldRefresh(t *testing.T) {
	fetcher := &stubFetcher{full: map[string]Device{}}
	cache := NewCache(fetcher)

	if !cache.ShouldRefresh(time.Now()) {
		t.Fatal("expected refresh due before first refresh")
	}
	if err := cache.RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if cache.ShouldRefresh(time.Now()) {
		t.Fatal("expected no refresh due immediately after a refresh")
	}
}
