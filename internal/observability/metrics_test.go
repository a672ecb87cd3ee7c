package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestMetrics_Usable verifies label dimensions match usage in client, http, resolver and cache.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/").Observe(0.01)
	UpstreamCallsTotal.WithLabelValues("weather", "success").Inc()
	UpstreamDuration.WithLabelValues("geocoder", "client_error").Observe(0.1)
	UpstreamRetriesTotal.WithLabelValues("weather").Inc()
	CacheHitsTotal.Inc()
	CacheMissesTotal.Inc()
	CacheErrorsTotal.WithLabelValues("get", "timeout").Inc()
	CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(0.001)
	ResolverErrorsTotal.WithLabelValues("unknown_zip").Inc()
	ValidationFailuresTotal.WithLabelValues("invalid_zip").Inc()
	RecommendationsTotal.WithLabelValues("warm").Inc()
	RecordCircuitBreakerTransition("weather", "closed", "open")
}

func TestMetricZipLabel(t *testing.T) {
	SetTrackedZips([]string{"08544", " 98101 "})
	defer SetTrackedZips(nil)

	tests := map[string]string{
		"08544": "08544",
		"98101": "98101",
		"12345": "other",
	}
	for in, want := range tests {
		if got := MetricZipLabel(in); got != want {
			t.Errorf("MetricZipLabel(%q) = %q, want %q", in, got, want)
		}
	}
	RecordZipQuery("08544")
}

func TestCircuitBreakerStateValue(t *testing.T) {
	tests := map[string]float64{"closed": 0, "half-open": 1, "open": 2, "bogus": 0}
	for in, want := range tests {
		if got := CircuitBreakerStateValue(in); got != want {
			t.Errorf("CircuitBreakerStateValue(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestMetricsHandler_ServesPrometheusFormat verifies /metrics serves the text exposition format.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	RegisterTrafficGauges(time.Minute)
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"httpRequestsTotal", "requestsInWindow"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[int]string{
		200: "success",
		204: "success",
		404: "client_error",
		429: "rate_limited",
		503: "server_error",
		0:   "error",
	}
	for code, want := range tests {
		if got := StatusLabel(code); got != want {
			t.Errorf("StatusLabel(%d) = %q, want %q", code, got, want)
		}
	}
}
