package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/attire-decider/internal/models"
)

const keyPrefix = "attire:reading:"

// maxRelativeExp is the largest expiration memcached treats as relative seconds.
const maxRelativeExp = 30 * 24 * 60 * 60

// MemcachedCache implements Cache using memcached. Readings are stored as JSON.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated server list;
// empty means localhost:11211. Zero timeout or maxIdleConns keep the client defaults.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) *MemcachedCache {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func key(zip string) string {
	return keyPrefix + zip
}

// Get implements Cache.Get. A miss is (zero, false, nil).
func (c *MemcachedCache) Get(ctx context.Context, zip string) (models.WeatherReading, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.WeatherReading{}, false, err
	}
	item, err := c.client.Get(key(zip))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return models.WeatherReading{}, false, nil
		}
		return models.WeatherReading{}, false, fmt.Errorf("memcached get: %w", err)
	}
	var reading models.WeatherReading
	if err := json.Unmarshal(item.Value, &reading); err != nil {
		return models.WeatherReading{}, false, fmt.Errorf("decode cached reading: %w", err)
	}
	return reading, true, nil
}

// Set implements Cache.Set. The ttl is clamped to memcached's relative expiration range.
func (c *MemcachedCache) Set(ctx context.Context, zip string, reading models.WeatherReading, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}
	return c.client.Set(&memcache.Item{
		Key:        key(zip),
		Value:      raw,
		Expiration: expirationSeconds(ttl),
	})
}

func expirationSeconds(ttl time.Duration) int32 {
	sec := int64(ttl / time.Second)
	switch {
	case sec < 1:
		return 1
	case sec > maxRelativeExp:
		return maxRelativeExp
	}
	return int32(sec)
}

// Ping checks that every server is reachable.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close releases idle connections.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
