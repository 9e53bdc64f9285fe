package cache

import (
	"sync"
	"time"

	"k8s.io/klog/v2"
	"k8s.io/utils/ptr"

	"github.com/elevated-systems/green-region-router/pkg/greenrouter/clock"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/region"
)

// Cache provides thread-safe caching of raw region measurement batches with TTL.
// Batches are deep copied on the way in and out so callers never share
// measurement data with the cache.
type Cache struct {
	data    map[string]*cacheEntry
	mutex   sync.RWMutex
	ttl     time.Duration
	maxAge  time.Duration
	clock   clock.Clock
	stopCh  chan struct{}
	metrics *metrics
}

type cacheEntry struct {
	batch     []region.RawMeasurement
	timestamp time.Time
	hits      int64
}

type metrics struct {
	hits   int64
	misses int64
	mutex  sync.RWMutex
}

// New creates a new cache instance
func New(ttl time.Duration, maxAge time.Duration) *Cache {
	return NewWithClock(ttl, maxAge, clock.RealClock{})
}

// NewWithClock creates a new cache instance that reads time from c
func NewWithClock(ttl time.Duration, maxAge time.Duration, c clock.Clock) *Cache {
	// Ensure TTL and maxAge are positive
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	if maxAge < ttl {
		maxAge = ttl
	}

	cache := &Cache{
		data: make(map[string]*cacheEntry),
		// For cache freshness purposes at get time.
		ttl: ttl,
		// Age to clean-up unaccessed items.
		maxAge:  maxAge,
		clock:   c,
		stopCh:  make(chan struct{}),
		metrics: &metrics{},
	}

	go cache.cleanup()

	return cache
}

// Get retrieves a batch from cache if it is younger than the TTL
func (c *Cache) Get(key string) ([]region.RawMeasurement, bool) {
	c.mutex.RLock()
	entry, exists := c.data[key]
	c.mutex.RUnlock()

	if !exists {
		c.recordMiss()
		return nil, false
	}

	age := c.clock.Since(entry.timestamp)
	if age > c.ttl {
		c.recordMiss()
		return nil, false
	}

	c.mutex.Lock()
	entry.hits++
	batch := copyBatch(entry.batch)
	c.mutex.Unlock()
	c.recordHit()

	return batch, true
}

// Set stores a batch in cache
func (c *Cache) Set(key string, batch []region.RawMeasurement) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = &cacheEntry{
		batch:     copyBatch(batch),
		timestamp: c.clock.Now(),
	}

	klog.V(4).InfoS("Cached region measurements",
		"key", key,
		"regions", len(batch))
}

// copyBatch deep copies a batch, including the optional fields
func copyBatch(batch []region.RawMeasurement) []region.RawMeasurement {
	out := make([]region.RawMeasurement, len(batch))
	for i, raw := range batch {
		out[i] = raw
		if raw.RenewablePercent != nil {
			out[i].RenewablePercent = ptr.To(*raw.RenewablePercent)
		}
		if raw.EstimatedLatency != nil {
			out[i].EstimatedLatency = ptr.To(*raw.EstimatedLatency)
		}
	}
	return out
}

// GetMetrics returns cache performance metrics
func (c *Cache) GetMetrics() (hits, misses int64) {
	c.metrics.mutex.RLock()
	defer c.metrics.mutex.RUnlock()
	return c.metrics.hits, c.metrics.misses
}

func (c *Cache) recordHit() {
	c.metrics.mutex.Lock()
	c.metrics.hits++
	c.metrics.mutex.Unlock()
}

func (c *Cache) recordMiss() {
	c.metrics.mutex.Lock()
	c.metrics.misses++
	c.metrics.mutex.Unlock()
}

// cleanup periodically removes expired entries
func (c *Cache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Cache) removeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, entry := range c.data {
		age := c.clock.Since(entry.timestamp)
		if age > c.maxAge {
			delete(c.data, key)
			klog.V(4).InfoS("Removed expired cache entry",
				"key", key,
				"age", age.String(),
				"hits", entry.hits)
		}
	}
}

// Close stops the cleanup goroutine
func (c *Cache) Close() {
	close(c.stopCh)
}

// Clear removes all entries from the cache
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]*cacheEntry)
	klog.V(4).Info("Cleared cache")
}

// Size returns the number of entries in the cache
func (c *Cache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}
