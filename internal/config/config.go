package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from .env, YAML and the environment.
type Config struct {
	ServerPort string

	WeatherAPIURL     string
	WeatherAPITimeout time.Duration
	GeocoderEnabled   bool
	GeocoderURL       string
	GeocoderTimeout   time.Duration

	RequestTimeout time.Duration
	ResolveTimeout time.Duration

	CacheTTL              time.Duration
	CacheBackend          string // "in_memory" or "memcached"
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	WarmSchedule          string // cron spec or duration; empty disables warming

	RetryAttempts           int
	RetryBaseDelay          time.Duration
	RetryMaxDelay           time.Duration
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration
	RecoveryInitial         time.Duration
	RecoveryMax             time.Duration
	RateLimitRPS            int
	RateLimitBurst          int

	ShutdownTimeout time.Duration

	HealthWindow     time.Duration
	HealthErrorPct   int
	HealthMinLookups int

	DefaultWarm   float64
	DefaultCold   float64
	WindLayersMph float64

	TrackedZips []string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Geocoder struct {
		Enabled *bool  `yaml:"enabled"`
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"geocoder"`

	Request struct {
		Timeout        string `yaml:"timeout"`
		ResolveTimeout string `yaml:"resolve_timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend      string `yaml:"backend"`
		TTL          string `yaml:"ttl"`
		WarmSchedule string `yaml:"warm_schedule"`
		Memcached    struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts        int    `yaml:"retry_max_attempts"`
		RetryBaseDelay          string `yaml:"retry_base_delay"`
		RetryMaxDelay           string `yaml:"retry_max_delay"`
		BreakerFailureThreshold int    `yaml:"breaker_failure_threshold"`
		BreakerSuccessThreshold int    `yaml:"breaker_success_threshold"`
		BreakerTimeout          string `yaml:"breaker_timeout"`
		RecoveryInitial         string `yaml:"recovery_initial"`
		RecoveryMax             string `yaml:"recovery_max"`
		RateLimitRPS            int    `yaml:"rate_limit_rps"`
		RateLimitBurst          int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Health struct {
		Window     string `yaml:"window"`
		ErrorPct   int    `yaml:"error_pct"`
		MinLookups *int   `yaml:"min_lookups"`
	} `yaml:"health"`

	Attire struct {
		DefaultWarm   *float64 `yaml:"default_warm"`
		DefaultCold   *float64 `yaml:"default_cold"`
		WindLayersMph float64  `yaml:"wind_layers_mph"`
	} `yaml:"attire"`

	Metrics struct {
		TrackedZips []string `yaml:"tracked_zips"`
	} `yaml:"metrics"`
}

// Load reads .env (if present), then config/{ENV_NAME}.yaml (default dev) relative to the
// working directory. A missing YAML file leaves every setting at its default.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom is Load rooted at dir instead of the working directory.
func LoadFrom(dir string) (*Config, error) {
	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		// Variables already set in the process environment win over .env.
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	var fc fileConfig
	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	cfg := fromFile(fc)
	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromFile(fc fileConfig) *Config {
	cfg := &Config{
		ServerPort:              firstNonEmpty(fc.Server.Port, "8080"),
		WeatherAPIURL:           firstNonEmpty(fc.WeatherAPI.URL, "https://api.open-meteo.com/v1/forecast"),
		WeatherAPITimeout:       parseDurationOrZero(fc.WeatherAPI.Timeout, 2*time.Second),
		GeocoderEnabled:         true,
		GeocoderURL:             firstNonEmpty(fc.Geocoder.URL, "https://api.zippopotam.us"),
		GeocoderTimeout:         parseDuration(fc.Geocoder.Timeout, 2*time.Second),
		RequestTimeout:          parseDuration(fc.Request.Timeout, 5*time.Second),
		ResolveTimeout:          parseDurationOrZero(fc.Request.ResolveTimeout, 3*time.Second),
		CacheTTL:                parseDuration(fc.Cache.TTL, 10*time.Minute),
		CacheBackend:            strings.TrimSpace(strings.ToLower(firstNonEmpty(fc.Cache.Backend, "in_memory"))),
		MemcachedAddrs:          firstNonEmpty(fc.Cache.Memcached.Addrs, "localhost:11211"),
		MemcachedTimeout:        parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond),
		MemcachedMaxIdleConns:   positiveOr(fc.Cache.Memcached.MaxIdleConns, 2),
		WarmSchedule:            strings.TrimSpace(fc.Cache.WarmSchedule),
		RetryAttempts:           positiveOr(fc.Reliability.RetryMaxAttempts, 1),
		RetryBaseDelay:          parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond),
		RetryMaxDelay:           parseDuration(fc.Reliability.RetryMaxDelay, time.Second),
		BreakerFailureThreshold: positiveOr(fc.Reliability.BreakerFailureThreshold, 5),
		BreakerSuccessThreshold: positiveOr(fc.Reliability.BreakerSuccessThreshold, 1),
		BreakerTimeout:          parseDuration(fc.Reliability.BreakerTimeout, 30*time.Second),
		RecoveryInitial:         parseDurationOrZero(fc.Reliability.RecoveryInitial, 30*time.Second),
		RecoveryMax:             parseDuration(fc.Reliability.RecoveryMax, 5*time.Minute),
		RateLimitRPS:            positiveOr(fc.Reliability.RateLimitRPS, 50),
		RateLimitBurst:          positiveOr(fc.Reliability.RateLimitBurst, 100),
		ShutdownTimeout:         parseDuration(fc.Shutdown.Timeout, 30*time.Second),
		HealthWindow:            parseDuration(fc.Health.Window, time.Minute),
		HealthErrorPct:          positiveOr(fc.Health.ErrorPct, 50),
		HealthMinLookups:        5,
		DefaultWarm:             75,
		DefaultCold:             45,
		WindLayersMph:           20,
		TrackedZips:             fc.Metrics.TrackedZips,
	}
	if fc.Geocoder.Enabled != nil {
		cfg.GeocoderEnabled = *fc.Geocoder.Enabled
	}
	if fc.Health.MinLookups != nil {
		cfg.HealthMinLookups = *fc.Health.MinLookups
	}
	if fc.Attire.DefaultWarm != nil {
		cfg.DefaultWarm = *fc.Attire.DefaultWarm
	}
	if fc.Attire.DefaultCold != nil {
		cfg.DefaultCold = *fc.Attire.DefaultCold
	}
	if fc.Attire.WindLayersMph > 0 {
		cfg.WindLayersMph = fc.Attire.WindLayersMph
	}
	return cfg
}

// applyEnv overrides file values with PORT, CACHE_BACKEND, MEMCACHED_ADDRS, WEATHER_API_URL
// and GEOCODER_URL when set.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.ServerPort = v
	}
	if v := strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND"))); v != "" {
		cfg.CacheBackend = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")); v != "" {
		cfg.MemcachedAddrs = v
	}
	if v := strings.TrimSpace(os.Getenv("WEATHER_API_URL")); v != "" {
		cfg.WeatherAPIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("GEOCODER_URL")); v != "" {
		cfg.GeocoderURL = v
	}
}

func firstNonEmpty(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}

func positiveOr(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}

// parseDuration parses s, returning defaultVal when s is empty, malformed or not positive.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses s, returning defaultVal on empty or malformed input.
// Zero and negative values are returned as-is for validate to reject.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate rejects values the service cannot run with. RequestTimeout is raised to exceed
// ResolveTimeout so the page can still render after a resolve deadline.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.ResolveTimeout <= 0 {
		return fmt.Errorf("request.resolve_timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.ResolveTimeout {
		cfg.RequestTimeout = cfg.ResolveTimeout + time.Second
	}
	if cfg.DefaultWarm <= cfg.DefaultCold {
		return fmt.Errorf("attire.default_warm (%g) must be greater than attire.default_cold (%g)", cfg.DefaultWarm, cfg.DefaultCold)
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
