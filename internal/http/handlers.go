package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/attire-decider/internal/attire"
	"github.com/kjstillabower/attire-decider/internal/lifecycle"
	"github.com/kjstillabower/attire-decider/internal/models"
	"github.com/kjstillabower/attire-decider/internal/observability"
	"github.com/kjstillabower/attire-decider/internal/render"
	"github.com/kjstillabower/attire-decider/internal/traffic"
	"github.com/kjstillabower/attire-decider/internal/validation"
)

// Resolver is the weather lookup the page handler depends on.
type Resolver interface {
	Resolve(ctx context.Context, zip string) (models.WeatherReading, error)
}

// HealthConfig holds thresholds and probes for the health handler.
type HealthConfig struct {
	// Window is the sliding window for the resolver error rate.
	Window time.Duration
	// ErrorRatePct marks the service degraded when resolver errors reach this share of lookups.
	ErrorRatePct int
	// MinLookups is the number of lookups in Window needed before the error rate is judged.
	MinLookups int
	// CachePing, when set, reports cache reachability. Used with the memcached backend.
	CachePing func() error
	// Breakers maps a check name to a func returning its circuit breaker state.
	Breakers map[string]func() string
	// OnDegraded, when set, is called each time the status evaluates to degraded. Must not block.
	OnDegraded func()
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	resolver         Resolver
	defaults         validation.Defaults
	attireOpts       attire.Options
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(resolver Resolver, defaults validation.Defaults, attireOpts attire.Options, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		resolver:     resolver,
		defaults:     defaults,
		attireOpts:   attireOpts,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetAttire handles GET /. Logical failures are shown inline; the status is always 200.
func (h *Handler) GetAttire(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := render.PageData{
		Zip:         q.Get("zip"),
		Warm:        q.Get("warm"),
		Cold:        q.Get("cold"),
		DefaultWarm: formatThreshold(h.defaults.Warm),
		DefaultCold: formatThreshold(h.defaults.Cold),
	}
	if q.Has("zip") {
		display := h.decide(r.Context(), data.Zip, data.Warm, data.Cold)
		data.Display = &display
	}

	w.Header().Set("Cache-Control", "no-store")
	if q.Get("format") == "text" {
		text := "Enter a zip code to get a recommendation.\n"
		if data.Display != nil {
			text = render.Text(*data.Display)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(text))
		return
	}

	var buf bytes.Buffer
	if err := render.Page(&buf, data); err != nil {
		observability.LoggerFromContext(r.Context()).Error("page render failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// decide runs Validator, Resolver and the decision engine and renders the outcome.
func (h *Handler) decide(ctx context.Context, rawZip, rawWarm, rawCold string) render.Display {
	logger := observability.LoggerFromContext(ctx)

	query, err := validation.Validate(rawZip, rawWarm, rawCold, h.defaults)
	if err != nil {
		kind := render.Kind(err)
		observability.ValidationFailuresTotal.WithLabelValues(kind).Inc()
		logger.Debug("invalid input", zap.String("kind", kind), zap.Error(err))
		return render.Render(models.AttireRecommendation{}, err)
	}

	observability.RecordZipQuery(query.ZipCode)
	reading, err := h.resolver.Resolve(ctx, query.ZipCode)
	if err != nil {
		display := render.Render(models.AttireRecommendation{}, err)
		if display.Kind == render.KindUnknownZip {
			traffic.RecordSuccess()
		} else {
			traffic.RecordError()
		}
		return display
	}
	traffic.RecordSuccess()

	rec := attire.Decide(reading, query.Warm, query.Cold, h.attireOpts)
	observability.RecommendationsTotal.WithLabelValues(string(rec.Band)).Inc()
	logger.Debug("recommendation",
		zap.String("zip", query.ZipCode),
		zap.Float64("temperature_f", reading.TemperatureF),
		zap.String("band", string(rec.Band)))
	return render.Render(rec, nil)
}

func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()
	if result.status == "degraded" && h.healthConfig.OnDegraded != nil {
		h.healthConfig.OnDegraded()
	}

	checks := make(map[string]string)
	if h.healthConfig != nil {
		for name, state := range h.healthConfig.Breakers {
			if s := state(); s == "closed" {
				checks[name] = "healthy"
			} else {
				checks[name] = s
			}
		}
		if h.healthConfig.CachePing != nil {
			if h.healthConfig.CachePing() == nil {
				checks["cache"] = "healthy"
			} else {
				checks["cache"] = "unhealthy"
			}
		}
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "attire-decider",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates, in order: shutting-down, starting, degraded, healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if !lifecycle.IsReady() {
		return healthResult{"starting", http.StatusServiceUnavailable, "not_ready"}
	}
	if h.healthConfig != nil && h.healthConfig.Window > 0 && h.healthConfig.ErrorRatePct > 0 {
		errs, total := traffic.ErrorRate(h.healthConfig.Window)
		if total > 0 && total >= h.healthConfig.MinLookups {
			pct := float64(errs) * 100 / float64(total)
			if pct >= float64(h.healthConfig.ErrorRatePct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error body with the request's correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}
