package main

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/attire-decider/internal/attire"
	"github.com/kjstillabower/attire-decider/internal/client"
	"github.com/kjstillabower/attire-decider/internal/config"
	"github.com/kjstillabower/attire-decider/internal/geocode"
	httphandler "github.com/kjstillabower/attire-decider/internal/http"
	"github.com/kjstillabower/attire-decider/internal/lifecycle"
	"github.com/kjstillabower/attire-decider/internal/models"
	"github.com/kjstillabower/attire-decider/internal/testhelpers"
	"github.com/kjstillabower/attire-decider/internal/validation"
)

func attireOptsForTest() attire.Options { return attire.Options{WindLayersMph: 15} }

func testConfig(t *testing.T, weatherURL, geocoderURL string) *config.Config {
	t.Helper()
	t.Setenv("WEATHER_API_URL", weatherURL)
	t.Setenv("GEOCODER_URL", geocoderURL)
	t.Setenv("ENV_NAME", "test")
	cfg, err := config.LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	return cfg
}

func TestBuild_ServesBuiltinZipEndToEnd(t *testing.T) {
	lifecycle.Reset()
	defer lifecycle.Reset()
	weather := testhelpers.NewOpenMeteoServer(t, testhelpers.Current{TemperatureF: 80, FeelsLikeF: 80, WeatherCode: 0, WindMph: 3})
	zippo := testhelpers.NewZippopotamServer(t, nil)

	a, err := build(testConfig(t, weather.URL, zippo.URL), zap.NewNop())
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}

	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?zip=08544&warm=75&cold=45", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Consider wearing: light clothing.") {
		t.Errorf("body missing advisory:\n%s", w.Body.String())
	}
	if weather.Calls() != 1 {
		t.Errorf("weather calls = %d, want 1", weather.Calls())
	}

	lifecycle.MarkReady()
	hw := httptest.NewRecorder()
	a.handler.ServeHTTP(hw, httptest.NewRequest(http.MethodGet, "/health", nil))
	if hw.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200: %s", hw.Code, hw.Body.String())
	}
}

func TestBuild_FallsBackToRemoteGeocoder(t *testing.T) {
	weather := testhelpers.NewOpenMeteoServer(t, testhelpers.Current{TemperatureF: 50, WeatherCode: 3})
	zippo := testhelpers.NewZippopotamServer(t, map[string]testhelpers.Place{
		"59801": {Name: "Missoula", State: "MT", Lat: 46.8721, Lon: -113.994},
	})

	a, err := build(testConfig(t, weather.URL, zippo.URL), zap.NewNop())
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}

	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?zip=59801&format=text", nil))
	body := w.Body.String()
	if !strings.Contains(body, "Missoula, MT") || !strings.HasPrefix(body, "Consider wearing: light jacket.") {
		t.Errorf("body = %q", body)
	}
}

func TestNewRouter_CompressesWhenAccepted(t *testing.T) {
	h := httphandler.NewHandler(nil, validation.DefaultThresholds, attireOptsForTest(), nil, zap.NewNop())
	router := newRouter(h, nil, time.Second, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", w.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	body, _ := io.ReadAll(zr)
	if !strings.Contains(string(body), `name="zip"`) {
		t.Errorf("decompressed body missing form")
	}
}

func TestNewRouter_RateLimitsPageOnly(t *testing.T) {
	h := httphandler.NewHandler(nil, validation.DefaultThresholds, attireOptsForTest(), nil, zap.NewNop())
	router := newRouter(h, rate.NewLimiter(rate.Every(time.Hour), 1), time.Second, zap.NewNop())

	codes := make([]int, 0, 3)
	for _, path := range []string{"/", "/", "/metrics"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusOK {
		t.Errorf("status codes = %v, want [200 429 200]", codes)
	}
}

func TestNewRouter_RecoversPanics(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core)
	// A nil resolver panics once a valid zip reaches it.
	h := httphandler.NewHandler(nil, validation.DefaultThresholds, attireOptsForTest(), nil, logger)
	router := newRouter(h, nil, time.Second, logger)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?zip=08544", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if logs.FilterMessage("recovered panic").Len() == 0 {
		t.Error("panic not logged")
	}
}

func TestRecoveryProbe(t *testing.T) {
	loc := models.Location{Zip: "10001", Town: "New York", State: "NY", Latitude: 40.7506, Longitude: -73.9972}
	newYork := map[string]testhelpers.Place{"10001": {Name: "New York", State: "NY", Lat: 40.7506, Lon: -73.9972}}

	tests := []struct {
		name        string
		weatherDown bool
		geocoder    string // "up", "down", "unknown" or "" for disabled
		wantErr     bool
	}{
		{"both up", false, "up", false},
		{"geocoder disabled", false, "", false},
		{"geocoder answers unknown zip", false, "unknown", false},
		{"weather down", true, "up", true},
		{"geocoder down", false, "down", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weather := testhelpers.NewOpenMeteoServer(t, testhelpers.Current{TemperatureF: 60})
			if tt.weatherDown {
				weather.Fail(http.StatusBadGateway)
			}
			wc, err := client.NewOpenMeteoClient(client.Options{BaseURL: weather.URL, Timeout: time.Second})
			if err != nil {
				t.Fatalf("NewOpenMeteoClient() error = %v", err)
			}

			var remote geocode.Locator
			switch tt.geocoder {
			case "up":
				remote = geocode.NewZippopotamClient(testhelpers.NewZippopotamServer(t, newYork).URL, time.Second, nil)
			case "unknown":
				remote = geocode.NewZippopotamClient(testhelpers.NewZippopotamServer(t, nil).URL, time.Second, nil)
			case "down":
				down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusBadGateway)
				}))
				t.Cleanup(down.Close)
				remote = geocode.NewZippopotamClient(down.URL, time.Second, nil)
			}

			err = recoveryProbe(wc, loc, remote)(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("probe error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
