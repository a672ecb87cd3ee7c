package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"circuit open", ErrCircuitOpen, ErrorCategoryCircuitOpen},
		{"rate limited", fmt.Errorf("exhausted retries: %w", ErrRateLimited), ErrorCategoryRateLimited},
		{"malformed", fmt.Errorf("%w: bad json", ErrMalformedResponse), ErrorCategoryParsing},
		{"deadline", fmt.Errorf("http request failed: %w", context.DeadlineExceeded), ErrorCategoryTimeout},
		{"net timeout", fmt.Errorf("http request failed: %w", timeoutErr{}), ErrorCategoryTimeout},
		{"canceled", context.Canceled, ErrorCategoryCanceled},
		{"5xx", fmt.Errorf("%w: HTTP 503", ErrUpstreamFailure), ErrorCategoryUpstream},
		{"connection refused", fmt.Errorf("http request failed: %w", &net.OpError{Op: "dial", Err: errors.New("connection refused")}), ErrorCategoryNetwork},
		{"other", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyWeatherCode(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		precip   float64
		wind     float64
		wantCond string
		wantSky  string
	}{
		{"clear", 0, 0, 3, "clear", "Clear"},
		{"overcast", 3, 0, 3, "clear", "Overcast"},
		{"drizzle", 53, 0.01, 3, "rain", "Moderate drizzle"},
		{"freezing rain", 66, 0.1, 3, "rain", "Light freezing rain"},
		{"showers", 81, 0.2, 3, "rain", "Moderate rain showers"},
		{"thunderstorm", 95, 0.3, 3, "rain", "Thunderstorm"},
		{"snow", 73, 0.1, 3, "snow", "Moderate snow fall"},
		{"snow showers", 86, 0.1, 3, "snow", "Heavy snow showers"},
		{"fog", 45, 0, 3, "unknown", "Fog"},
		{"windy clear", 1, 0, 25, "wind", "Mainly clear"},
		{"windy rain stays rain", 63, 0.2, 30, "rain", "Moderate rain"},
		{"clear code but measured precipitation", 2, 0.05, 3, "rain", "Partly cloudy"},
		{"unlisted code", 42, 0, 3, "unknown", "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, sky := ClassifyWeatherCode(tt.code, tt.precip, tt.wind, 20)
			if string(cond) != tt.wantCond || sky != tt.wantSky {
				t.Errorf("ClassifyWeatherCode(%d) = (%q, %q), want (%q, %q)", tt.code, cond, sky, tt.wantCond, tt.wantSky)
			}
		})
	}
}
