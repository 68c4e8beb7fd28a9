package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/mt-monitoring/alarmd/internal/models"
)

func TestPutGetRoundTrip(t *testing.T) {
	c := New()
	now := time.Now()
	c.Put("dev-1", map[string]float64{"temperature": 72.5}, now)

	entry, ok := c.Get("dev-1")
	if !ok {
		t.Fatal("expected entry to be present")
	}
	if entry.Fields["temperature"] != 72.5 {
		t.Errorf("got temperature %v, want 72.5", entry.Fields["temperature"])
	}

	// Mutating the returned copy must not affect the cache.
	entry.Fields["temperature"] = 0
	entry2, _ := c.Get("dev-1")
	if entry2.Fields["temperature"] != 72.5 {
		t.Error("Get must return a private copy of the stored fields")
	}
}

func TestGetMissingDevice(t *testing.T) {
	c := New()
	if _, ok := c.Get("unknown"); ok {
		t.Error("expected ok=false for a device never seen")
	}
}

func TestPutReplacesWholesale(t *testing.T) {
	c := New()
	now := time.Now()
	c.Put("dev-1", map[string]float64{"temperature": 70, "humidity": 40}, now)
	c.Put("dev-1", map[string]float64{"temperature": 80}, now.Add(time.Second))

	entry, _ := c.Get("dev-1")
	if _, ok := entry.Fields["humidity"]; ok {
		t.Error("expected the second Put to replace the entry wholesale, not merge")
	}
	if entry.Fields["temperature"] != 80 {
		t.Errorf("got temperature %v, want 80", entry.Fields["temperature"])
	}
}

func TestFreshStaleness(t *testing.T) {
	now := time.Now()
	entry := models.CacheEntry{DeviceID: "dev-1", LastUpdate: now.Add(-30 * time.Second)}
	if !Fresh(entry, now, 120*time.Second) {
		t.Error("expected entry within freshness window to be fresh")
	}
	if Fresh(entry, now, 10*time.Second) {
		t.Error("expected entry older than freshness window to be stale")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Put("dev-1", map[string]float64{"v": float64(i)}, time.Now())
		}(i)
		go func() {
			defer wg.Done()
			c.Get("dev-1")
		}()
	}
	wg.Wait()
}

func TestLenCountsDistinctDevices(t *testing.T) {
	c := New()
	c.Put("dev-1", map[string]float64{"v": 1}, time.Now())
	c.Put("dev-2", map[string]float64{"v": 2}, time.Now())
	c.Put("dev-1", map[string]float64{"v": 3}, time.Now())
	if got := c.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}
