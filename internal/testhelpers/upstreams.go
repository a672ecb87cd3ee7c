// Package testhelpers provides fake upstream servers and wiring shared by package tests.
package testhelpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// Current describes the "current" block an OpenMeteoServer answers with.
type Current struct {
	TemperatureF  float64
	FeelsLikeF    float64
	HumidityPct   float64
	Precipitation float64
	WeatherCode   int
	WindMph       float64
}

// OpenMeteoServer is a fake Open-Meteo forecast endpoint.
type OpenMeteoServer struct {
	*httptest.Server
	calls atomic.Int32

	mu      sync.Mutex
	current Current
	status  int
}

// NewOpenMeteoServer starts a fake weather server answering with cur. It is closed with the test.
func NewOpenMeteoServer(t *testing.T, cur Current) *OpenMeteoServer {
	t.Helper()
	s := &OpenMeteoServer{current: cur, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *OpenMeteoServer) serve(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)
	s.mu.Lock()
	cur, status := s.current, s.status
	s.mu.Unlock()

	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"latitude":  r.URL.Query().Get("latitude"),
		"longitude": r.URL.Query().Get("longitude"),
		"current": map[string]interface{}{
			"temperature_2m":       cur.TemperatureF,
			"apparent_temperature": cur.FeelsLikeF,
			"relative_humidity_2m": cur.HumidityPct,
			"precipitation":        cur.Precipitation,
			"weather_code":         cur.WeatherCode,
			"wind_speed_10m":       cur.WindMph,
		},
	})
}

// Set replaces the conditions served from now on.
func (s *OpenMeteoServer) Set(cur Current) {
	s.mu.Lock()
	s.current = cur
	s.mu.Unlock()
}

// Fail makes every following request answer with status. http.StatusOK restores normal answers.
func (s *OpenMeteoServer) Fail(status int) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Calls returns the number of requests served.
func (s *OpenMeteoServer) Calls() int {
	return int(s.calls.Load())
}

// Place is one Zippopotam.us place entry.
type Place struct {
	Name  string
	State string
	Lat   float64
	Lon   float64
}

// NewZippopotamServer starts a fake Zippopotam.us server knowing places. Other zips get 404.
func NewZippopotamServer(t *testing.T, places map[string]Place) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zip := strings.TrimPrefix(r.URL.Path, "/us/")
		p, ok := places[zip]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("{}"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"post code": zip,
			"country":   "United States",
			"places": []map[string]string{{
				"place name":         p.Name,
				"state abbreviation": p.State,
				"latitude":           fmt.Sprintf("%.4f", p.Lat),
				"longitude":          fmt.Sprintf("%.4f", p.Lon),
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}
