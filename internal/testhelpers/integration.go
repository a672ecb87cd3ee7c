//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/attire-decider/internal/cache"
	"github.com/kjstillabower/attire-decider/internal/client"
	"github.com/kjstillabower/attire-decider/internal/geocode"
	"github.com/kjstillabower/attire-decider/internal/resolver"
)

// LiveConfig holds upstream endpoints for tests against the real services.
type LiveConfig struct {
	WeatherURL    string
	GeocoderURL   string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetLiveConfig reads LiveConfig from the environment. Skips unless ATTIRE_LIVE_UPSTREAMS=1.
func GetLiveConfig(t *testing.T) LiveConfig {
	t.Helper()
	if os.Getenv("ATTIRE_LIVE_UPSTREAMS") != "1" {
		t.Skip("ATTIRE_LIVE_UPSTREAMS not set, skipping live upstream test")
	}
	cfg := LiveConfig{
		WeatherURL:    os.Getenv("WEATHER_API_URL"),
		GeocoderURL:   os.Getenv("GEOCODER_URL"),
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: os.Getenv("MEMCACHED_ADDRS"),
	}
	if cfg.GeocoderURL == "" {
		cfg.GeocoderURL = "https://api.zippopotam.us"
	}
	if cfg.MemcachedAddr == "" {
		cfg.MemcachedAddr = "localhost:11211"
	}
	return cfg
}

// NewLiveResolver wires a Resolver to the real upstreams described by cfg.
func NewLiveResolver(t *testing.T, cfg LiveConfig) *resolver.Resolver {
	t.Helper()
	weather, err := client.NewOpenMeteoClient(client.Options{BaseURL: cfg.WeatherURL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewOpenMeteoClient() error = %v", err)
	}
	table, err := geocode.NewBuiltinTable()
	if err != nil {
		t.Fatalf("NewBuiltinTable() error = %v", err)
	}
	locator := geocode.Chain{table, geocode.NewZippopotamClient(cfg.GeocoderURL, 2*time.Second, nil)}

	var c cache.Cache = cache.NewInMemoryCache()
	if cfg.CacheBackend == "memcached" {
		mc := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err := mc.Ping(); err != nil {
			t.Skipf("memcached not reachable: %v", err)
		}
		t.Cleanup(func() { _ = mc.Close() })
		c = mc
	}
	return resolver.New(locator, weather, c, resolver.Options{})
}
