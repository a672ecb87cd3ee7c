package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/attire-decider/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate by route and status class.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency. Watch p95 against the 3s resolve deadline.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream calls by source (weather, geocoder) and outcome.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency by source and outcome.
	UpstreamDuration *prometheus.HistogramVec

	// Retry attempts per upstream source. High values mean an unstable upstream.
	UpstreamRetriesTotal *prometheus.CounterVec

	// Reading cache hits and misses.
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Cache backend failures by operation and category. Failures degrade to misses.
	CacheErrorsTotal *prometheus.CounterVec

	// Cache operation latency by operation and result.
	CacheOperationDurationSeconds *prometheus.HistogramVec

	// Cache warming runs, failed runs and run duration.
	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	// Callers that joined an in-flight upstream fetch instead of starting one.
	RequestCoalescingHitsTotal prometheus.Counter

	// Resolver failures by kind (unknown_zip, upstream_unavailable).
	ResolverErrorsTotal *prometheus.CounterVec

	// Rejected form input by kind (invalid_zip, invalid_threshold, threshold_order).
	ValidationFailuresTotal *prometheus.CounterVec

	// Recommendations served by band.
	RecommendationsTotal *prometheus.CounterVec

	// Circuit breaker state per component: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions per component.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Rate limit denials (429).
	RateLimitDeniedTotal prometheus.Counter

	// Upstream recovery probes by outcome (success, failure).
	RecoveryProbesTotal *prometheus.CounterVec

	// Zip queries overall and per tracked zip (others use zip=other).
	ZipQueriesTotal      prometheus.Counter
	ZipQueriesByZipTotal *prometheus.CounterVec

	trackedZipsMu sync.RWMutex
	trackedZips   map[string]struct{}

	trafficGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream calls by source and status",
		},
		[]string{"source", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream call latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 3, 5},
		},
		[]string{"source", "status"},
	)
	UpstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamRetriesTotal",
			Help: "Total number of upstream retry attempts",
		},
		[]string{"source"},
	)
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of reading cache hits",
		},
	)
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of reading cache misses",
		},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend errors by operation and category",
		},
		[]string{"operation", "category"},
	)
	CacheOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Cache operation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"operation", "result"},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Total number of cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs with at least one failed zip",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Cache warming run duration in seconds",
			Buckets: []float64{.1, .5, 1, 2, 5, 10, 30},
		},
	)
	RequestCoalescingHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "requestCoalescingHitsTotal",
			Help: "Resolves that waited on an in-flight fetch for the same zip",
		},
	)
	ResolverErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolverErrorsTotal",
			Help: "Resolver failures by kind",
		},
		[]string{"kind"},
	)
	ValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validationFailuresTotal",
			Help: "Rejected form input by kind",
		},
		[]string{"kind"},
	)
	RecommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendationsTotal",
			Help: "Attire recommendations served by band",
		},
		[]string{"band"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	RecoveryProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoveryProbesTotal",
			Help: "Upstream recovery probes while degraded, by outcome",
		},
		[]string{"outcome"},
	)
	ZipQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zipQueriesTotal",
			Help: "Total number of attire lookups",
		},
	)
	ZipQueriesByZipTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zipQueriesByZipTotal",
			Help: "Attire lookups by zip (allow-list; others use zip=other)",
		},
		[]string{"zip"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, UpstreamRetriesTotal,
		CacheHitsTotal, CacheMissesTotal, CacheErrorsTotal, CacheOperationDurationSeconds,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
		RequestCoalescingHitsTotal,
		ResolverErrorsTotal, ValidationFailuresTotal, RecommendationsTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		RateLimitDeniedTotal, RecoveryProbesTotal,
		ZipQueriesTotal, ZipQueriesByZipTotal,
	)
}

// RegisterTrafficGauges registers gauges over the traffic tracker's sliding window.
// Call once from main with the health window.
func RegisterTrafficGauges(window time.Duration) {
	trafficGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "requestsInWindow",
					Help: "Attire lookups plus rate-limit denials in the health window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "upstreamErrorsInWindow",
					Help: "Lookups that failed on the resolver in the health window",
				},
				func() float64 {
					errs, _ := traffic.ErrorRate(window)
					return float64(errs)
				},
			),
		)
	})
}

// SetTrackedZips sets the allow-list for per-zip metrics. Other zips count as "other".
func SetTrackedZips(zips []string) {
	trackedZipsMu.Lock()
	defer trackedZipsMu.Unlock()
	trackedZips = make(map[string]struct{}, len(zips))
	for _, z := range zips {
		trackedZips[strings.TrimSpace(z)] = struct{}{}
	}
}

// MetricZipLabel returns zip if it is tracked, otherwise "other".
func MetricZipLabel(zip string) string {
	zip = strings.TrimSpace(zip)
	trackedZipsMu.RLock()
	_, ok := trackedZips[zip] // nil map read is safe
	trackedZipsMu.RUnlock()
	if ok {
		return zip
	}
	return "other"
}

// RecordZipQuery counts one attire lookup for zip.
func RecordZipQuery(zip string) {
	ZipQueriesTotal.Inc()
	ZipQueriesByZipTotal.WithLabelValues(MetricZipLabel(zip)).Inc()
}

// RecordCircuitBreakerTransition records a state change and updates the state gauge.
func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(CircuitBreakerStateValue(to))
}

// CircuitBreakerStateValue maps a breaker state name to the gauge value.
func CircuitBreakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// StatusLabel maps an upstream HTTP status code to a low-cardinality metric label.
func StatusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}
