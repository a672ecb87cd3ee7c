package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kjstillabower/attire-decider/internal/models"
	"github.com/kjstillabower/attire-decider/internal/observability"
)

// Fetcher resolves a zip to a reading and populates the cache as a side effect.
// The resolver implements it; the interface keeps this package free of that import.
type Fetcher interface {
	Resolve(ctx context.Context, zip string) (models.WeatherReading, error)
}

// Warmer prefetches readings for a fixed list of zips.
type Warmer struct {
	fetcher Fetcher
	zips    []string
	timeout time.Duration
	logger  *zap.Logger
}

// NewWarmer creates a Warmer. timeout bounds one full warm run; zero means 30s.
func NewWarmer(fetcher Fetcher, zips []string, timeout time.Duration, logger *zap.Logger) *Warmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Warmer{fetcher: fetcher, zips: zips, timeout: timeout, logger: logger}
}

// Warm resolves every zip concurrently and returns the joined failures.
func (w *Warmer) Warm(ctx context.Context) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Info("warming cache", zap.Int("zips", len(w.zips)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, zip := range w.zips {
		wg.Add(1)
		go func(zip string) {
			defer wg.Done()
			if _, err := w.fetcher.Resolve(ctx, zip); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm %s: %w", zip, err))
				mu.Unlock()
			}
		}(zip)
	}
	wg.Wait()

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.logger.Info("cache warming complete",
		zap.Int("zips", len(w.zips)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration))
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return errors.Join(errs...)
	}
	return nil
}

// Schedule registers a job on c that re-warms on spec. A bare duration such as "5m"
// is accepted and treated as "@every 5m".
func (w *Warmer) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, errors.New("empty warm schedule")
	}
	if _, err := time.ParseDuration(spec); err == nil {
		spec = "@every " + spec
	}
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		if err := w.Warm(ctx); err != nil {
			w.logger.Warn("scheduled cache warm failed", zap.Error(err))
		}
	})
}
