package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/attire-decider/internal/attire"
	"github.com/kjstillabower/attire-decider/internal/cache"
	"github.com/kjstillabower/attire-decider/internal/circuitbreaker"
	"github.com/kjstillabower/attire-decider/internal/client"
	"github.com/kjstillabower/attire-decider/internal/config"
	"github.com/kjstillabower/attire-decider/internal/degraded"
	"github.com/kjstillabower/attire-decider/internal/geocode"
	httphandler "github.com/kjstillabower/attire-decider/internal/http"
	"github.com/kjstillabower/attire-decider/internal/lifecycle"
	"github.com/kjstillabower/attire-decider/internal/models"
	"github.com/kjstillabower/attire-decider/internal/observability"
	"github.com/kjstillabower/attire-decider/internal/resolver"
	"github.com/kjstillabower/attire-decider/internal/traffic"
	"github.com/kjstillabower/attire-decider/internal/validation"
)

// probeZip is the built-in zip used for upstream recovery probes.
const probeZip = "10001"

// app is the wired service before it starts listening.
type app struct {
	handler   http.Handler
	resolver  *resolver.Resolver
	memcached *cache.MemcachedCache
	recovery  *degraded.Recovery
}

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	a, err := build(cfg, logger)
	if err != nil {
		logger.Fatal("startup", zap.Error(err))
	}

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()
	a.recovery.Start(appCtx)

	scheduler := cron.New()
	if cfg.WarmSchedule != "" && len(cfg.TrackedZips) > 0 {
		warmer := cache.NewWarmer(a.resolver, cfg.TrackedZips, 30*time.Second, logger)
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx); err != nil {
			logger.Warn("initial cache warm failed", zap.Error(err))
		}
		warmCancel()
		if _, err := warmer.Schedule(scheduler, cfg.WarmSchedule); err != nil {
			logger.Fatal("cache warm schedule", zap.String("schedule", cfg.WarmSchedule), zap.Error(err))
		}
		scheduler.Start()
		logger.Info("cache warming scheduled", zap.String("schedule", cfg.WarmSchedule), zap.Strings("zips", cfg.TrackedZips))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()
	lifecycle.MarkReady()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	appCancel()
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if a.memcached != nil {
		if err := a.memcached.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
	logger.Info("shutdown complete")
}

// build wires clients, cache, resolver and router from cfg.
func build(cfg *config.Config, logger *zap.Logger) (*app, error) {
	weatherBreaker := circuitbreaker.New(circuitbreaker.Config{
		Component:        "weather_api",
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		Timeout:          cfg.BreakerTimeout,
		Logger:           logger,
	})
	weatherClient, err := client.NewOpenMeteoClient(client.Options{
		BaseURL:        cfg.WeatherAPIURL,
		Timeout:        cfg.WeatherAPITimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
		WindMph:        cfg.WindLayersMph,
		Breaker:        weatherBreaker,
	})
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}

	table, err := geocode.NewBuiltinTable()
	if err != nil {
		return nil, fmt.Errorf("zip table: %w", err)
	}
	locator := geocode.Chain{table}
	breakers := map[string]func() string{"weatherApi": weatherBreaker.State}
	var remote geocode.Locator
	if cfg.GeocoderEnabled {
		geoBreaker := circuitbreaker.New(circuitbreaker.Config{
			Component:        "geocoder",
			FailureThreshold: cfg.BreakerFailureThreshold,
			SuccessThreshold: cfg.BreakerSuccessThreshold,
			Timeout:          cfg.BreakerTimeout,
			IsSuccessful:     geocode.IsBreakerSuccess,
			Logger:           logger,
		})
		remote = geocode.NewZippopotamClient(cfg.GeocoderURL, cfg.GeocoderTimeout, geoBreaker)
		locator = append(locator, remote)
		breakers["geocoder"] = geoBreaker.State
	}
	logger.Info("zip locator ready", zap.Int("builtin_zips", table.Len()), zap.Bool("remote_geocoder", cfg.GeocoderEnabled))

	a := &app{}
	var readingCache cache.Cache
	switch cfg.CacheBackend {
	case "memcached":
		a.memcached = cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		readingCache = a.memcached
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		readingCache = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}
	a.resolver = resolver.New(locator, weatherClient, readingCache, resolver.Options{
		Timeout: cfg.ResolveTimeout,
		TTL:     cfg.CacheTTL,
	})

	probeLoc, err := table.Locate(context.Background(), probeZip)
	if err != nil {
		return nil, fmt.Errorf("probe zip %s: %w", probeZip, err)
	}
	a.recovery = degraded.New(degraded.Options{
		Initial: cfg.RecoveryInitial,
		Max:     cfg.RecoveryMax,
		Probe:       recoveryProbe(weatherClient, probeLoc, remote),
		OnRecovered: traffic.Reset,
		Logger:      logger.With(zap.String("component", "recovery")),
	})

	healthConfig := &httphandler.HealthConfig{
		Window:       cfg.HealthWindow,
		ErrorRatePct: cfg.HealthErrorPct,
		MinLookups:   cfg.HealthMinLookups,
		Breakers:     breakers,
		OnDegraded:   a.recovery.Notify,
	}
	if a.memcached != nil {
		healthConfig.CachePing = a.memcached.Ping
	}

	handler := httphandler.NewHandler(
		a.resolver,
		validation.Defaults{Warm: cfg.DefaultWarm, Cold: cfg.DefaultCold},
		attire.Options{WindLayersMph: cfg.WindLayersMph},
		healthConfig,
		logger,
	)

	observability.RegisterTrafficGauges(cfg.HealthWindow)
	observability.SetTrackedZips(cfg.TrackedZips)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	a.handler = newRouter(handler, limiter, cfg.RequestTimeout, logger)
	return a, nil
}

// recoveryProbe checks every upstream a lookup can fail on. geocoder may be nil when the
// remote geocoder is disabled; an unknown zip from it is a healthy answer.
func recoveryProbe(weather client.WeatherClient, loc models.Location, geocoder geocode.Locator) degraded.ProbeFunc {
	return func(ctx context.Context) error {
		if _, err := weather.CurrentConditions(ctx, loc); err != nil {
			return fmt.Errorf("weather: %w", err)
		}
		if geocoder == nil {
			return nil
		}
		if _, err := geocoder.Locate(ctx, loc.Zip); err != nil && !errors.Is(err, geocode.ErrUnknownZip) {
			return fmt.Errorf("geocoder: %w", err)
		}
		return nil
	}
}

// newRouter mounts the page, health and metrics routes. Panics are recovered and logged;
// responses are gzip-compressed when the client accepts it.
func newRouter(h *httphandler.Handler, limiter *rate.Limiter, requestTimeout time.Duration, logger *zap.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	var page http.Handler = http.HandlerFunc(h.GetAttire)
	page = httphandler.TimeoutMiddleware(requestTimeout)(page)
	page = httphandler.RateLimitMiddleware(limiter)(page)
	router.Handle("/", page).Methods(http.MethodGet)

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(observability.PrintlnLogger{Logger: logger}),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(handlers.CompressHandler(router))
}
