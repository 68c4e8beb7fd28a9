// Package cache implements the Device Telemetry Cache (spec §4.1): the
// latest decoded reading per device, used so conditional rules can gate
// on a different device's last reading without waiting on that device's
// next publish.
//
// The locking shape is adapted from internal/collector/manager.go's
// CollectorManager: a single sync.RWMutex guarding a map, readers taking
// the read lock and writers replacing entries wholesale under the write
// lock, with values copied out before release so a reader never observes
// a mutation in progress.
package cache

import (
	"sync"
	"time"

	"github.com/mt-monitoring/alarmd/internal/models"
)

// TelemetryCache holds the most recent fields for every device seen.
type TelemetryCache struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
}

func New() *TelemetryCache {
	return &TelemetryCache{
		entries: make(map[string]models.CacheEntry),
	}
}

// Put replaces the entry for deviceID wholesale (last-write-wins).
func (c *TelemetryCache) Put(deviceID string, fields map[string]float64, arrivalTS time.Time) {
	// Copy so later mutation of the caller's map (there is none today,
	// but the contract promises it) can't leak into a stored entry.
	copied := make(map[string]float64, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	c.mu.Lock()
	c.entries[deviceID] = models.CacheEntry{
		DeviceID:   deviceID,
		Fields:     copied,
		LastUpdate: arrivalTS,
	}
	c.mu.Unlock()
}

// Get returns a snapshot of the entry for deviceID. The returned fields
// map is a private copy; mutating it has no effect on the cache.
func (c *TelemetryCache) Get(deviceID string) (models.CacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[deviceID]
	c.mu.RUnlock()
	if !ok {
		return models.CacheEntry{}, false
	}

	copied := make(map[string]float64, len(entry.Fields))
	for k, v := range entry.Fields {
		copied[k] = v
	}
	entry.Fields = copied
	return entry, true
}

// Len reports how many devices currently have a cached entry, used by
// the periodic status logger (SPEC_FULL §12).
func (c *TelemetryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Fresh reports whether entry is within freshness of now, implementing
// the staleness policy in spec §4.1.
func Fresh(entry models.CacheEntry, now time.Time, freshness time.Duration) bool {
	return now.Sub(entry.LastUpdate) <= freshness
}
