package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/attire-decider/internal/models"
)

// Cache stores weather readings by zip code.
// Get returns a reading only while it is unexpired; Set replaces the whole value.
type Cache interface {
	Get(ctx context.Context, zip string) (models.WeatherReading, bool, error)
	Set(ctx context.Context, zip string, reading models.WeatherReading, ttl time.Duration) error
}

// InMemoryCache implements Cache with a map guarded by an RWMutex.
// Expired entries are removed on access.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	now  func() time.Time
}

type cacheEntry struct {
	value     models.WeatherReading
	expiresAt time.Time
}

// NewInMemoryCache creates an empty cache using the wall clock.
func NewInMemoryCache() *InMemoryCache {
	return NewInMemoryCacheWithClock(time.Now)
}

// NewInMemoryCacheWithClock creates an empty cache that reads time from now.
func NewInMemoryCacheWithClock(now func() time.Time) *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  now,
	}
}

// Get returns (reading, true, nil) on a hit and (zero, false, nil) on a miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, zip string) (models.WeatherReading, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[zip]
	c.mu.RUnlock()
	if !ok {
		return models.WeatherReading{}, false, nil
	}

	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		// Another writer may have refreshed the entry since the read lock was released.
		if cur, still := c.data[zip]; still && cur.expiresAt.Equal(entry.expiresAt) {
			delete(c.data, zip)
		}
		c.mu.Unlock()
		return models.WeatherReading{}, false, nil
	}

	return entry.value, true, nil
}

// Set stores reading for ttl. A non-positive ttl stores nothing.
func (c *InMemoryCache) Set(ctx context.Context, zip string, reading models.WeatherReading, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	c.data[zip] = cacheEntry{
		value:     reading,
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
