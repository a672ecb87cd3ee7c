// Package resolver turns a zip code into a current weather reading. Readings are cached
// per zip with a TTL and concurrent misses for one zip share a single upstream fetch.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/attire-decider/internal/cache"
	"github.com/kjstillabower/attire-decider/internal/client"
	"github.com/kjstillabower/attire-decider/internal/geocode"
	"github.com/kjstillabower/attire-decider/internal/models"
	"github.com/kjstillabower/attire-decider/internal/observability"
)

var (
	ErrUnknownZip          = errors.New("unknown zip code")
	ErrUpstreamUnavailable = errors.New("weather data unavailable")
)

const (
	DefaultTimeout = 3 * time.Second
	DefaultTTL     = 10 * time.Minute
)

// Options configures a Resolver. Zero values take defaults.
type Options struct {
	// Timeout bounds one Resolve call, cache lookups included.
	Timeout time.Duration
	// TTL is how long a successful reading is served from cache.
	TTL time.Duration
}

// Resolver implements cache-aside lookups of WeatherReading by zip.
type Resolver struct {
	locator   geocode.Locator
	weather   client.WeatherClient
	cache     cache.Cache
	timeout   time.Duration
	ttl       time.Duration
	coalescer *requestCoalescer
}

// New creates a Resolver.
func New(locator geocode.Locator, weather client.WeatherClient, c cache.Cache, opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Resolver{
		locator:   locator,
		weather:   weather,
		cache:     c,
		timeout:   opts.Timeout,
		ttl:       opts.TTL,
		coalescer: newRequestCoalescer(),
	}
}

// Resolve returns the current reading for zip. Errors match ErrUnknownZip or
// ErrUpstreamUnavailable via errors.Is; the upstream cause stays in the chain.
func (r *Resolver) Resolve(ctx context.Context, zip string) (models.WeatherReading, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	logger := observability.LoggerFromContext(ctx).With(zap.String("zip", zip))
	start := time.Now()

	if reading, ok := r.cacheGet(ctx, zip, logger); ok {
		logger.Debug("reading served", zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return reading, nil
	}

	// The shared fetch outlives any one caller but keeps the correlation ID and logger.
	fetchCtx := context.WithoutCancel(ctx)
	reading, shared, err := r.coalescer.Do(ctx, zip, func() (models.WeatherReading, error) {
		fctx, fcancel := context.WithTimeout(fetchCtx, r.timeout)
		defer fcancel()
		return r.fetch(fctx, zip, logger)
	})
	if shared {
		observability.RequestCoalescingHitsTotal.Inc()
	}
	if err != nil {
		err = classify(zip, err)
		kind := errorKind(err)
		observability.ResolverErrorsTotal.WithLabelValues(kind).Inc()
		logger.Warn("resolve failed", zap.String("kind", kind), zap.Error(err))
		return models.WeatherReading{}, err
	}

	logger.Debug("reading served", zap.Bool("cached", false), zap.Bool("coalesced", shared), zap.Duration("duration", time.Since(start)))
	return reading, nil
}

func (r *Resolver) fetch(ctx context.Context, zip string, logger *zap.Logger) (models.WeatherReading, error) {
	loc, err := r.locator.Locate(ctx, zip)
	if err != nil {
		return models.WeatherReading{}, fmt.Errorf("locate %s: %w", zip, err)
	}
	reading, err := r.weather.CurrentConditions(ctx, loc)
	if err != nil {
		return models.WeatherReading{}, fmt.Errorf("current conditions for %s: %w", zip, err)
	}
	r.cacheSet(ctx, zip, reading, logger)
	return reading, nil
}

func classify(zip string, err error) error {
	switch {
	case errors.Is(err, geocode.ErrUnknownZip):
		return fmt.Errorf("%w: %s", ErrUnknownZip, zip)
	default:
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
}

// errorKind labels a classified Resolve error for metrics and logs.
func errorKind(err error) string {
	if errors.Is(err, ErrUnknownZip) {
		return "unknown_zip"
	}
	cat := client.CategorizeError(err)
	if cat == client.ErrorCategoryUnknown && errors.Is(err, geocode.ErrLookupFailed) {
		// Geocoder HTTP status and body failures carry no weather-client sentinel.
		cat = client.ErrorCategoryUpstream
	}
	return string(cat)
}

func (r *Resolver) cacheGet(ctx context.Context, zip string, logger *zap.Logger) (models.WeatherReading, bool) {
	start := time.Now()
	reading, ok, err := r.cache.Get(ctx, zip)
	elapsed := time.Since(start).Seconds()
	switch {
	case err != nil:
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(elapsed)
		observability.CacheMissesTotal.Inc()
		logger.Warn("cache get failed, treating as miss", zap.Error(err))
		return models.WeatherReading{}, false
	case ok:
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "hit").Observe(elapsed)
		observability.CacheHitsTotal.Inc()
		return reading, true
	default:
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "miss").Observe(elapsed)
		observability.CacheMissesTotal.Inc()
		return models.WeatherReading{}, false
	}
}

func (r *Resolver) cacheSet(ctx context.Context, zip string, reading models.WeatherReading, logger *zap.Logger) {
	start := time.Now()
	if err := r.cache.Set(ctx, zip, reading, r.ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(start).Seconds())
		logger.Warn("cache set failed", zap.Error(err))
		return
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(start).Seconds())
}

// categorizeCacheError returns a stable label for cache error metrics.
func categorizeCacheError(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &netErr):
		return "connection"
	default:
		return "unknown"
	}
}
