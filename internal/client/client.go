package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kjstillabower/attire-decider/internal/circuitbreaker"
	"github.com/kjstillabower/attire-decider/internal/models"
	"github.com/kjstillabower/attire-decider/internal/observability"
)

// WeatherClient fetches current conditions for a location.
type WeatherClient interface {
	CurrentConditions(ctx context.Context, loc models.Location) (models.WeatherReading, error)
}

var (
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed upstream response")
	ErrCircuitOpen       = errors.New("weather upstream circuit open")
)

const metricSource = "weather"

// Options configures an OpenMeteoClient. Zero values take defaults.
type Options struct {
	BaseURL string
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration
	// RetryAttempts is the total number of attempts; 1 disables retries.
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// WindMph is the speed at which calm-sky readings are classed as wind.
	WindMph float64
	Breaker *circuitbreaker.Breaker
}

// OpenMeteoClient reads current conditions from the Open-Meteo forecast API in US units.
type OpenMeteoClient struct {
	baseURL        *url.URL
	client         *http.Client
	timeout        time.Duration
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	windMph        float64
	breaker        *circuitbreaker.Breaker
	now            func() time.Time
}

// NewOpenMeteoClient validates opts and returns a client.
func NewOpenMeteoClient(opts Options) (*OpenMeteoClient, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.open-meteo.com/v1/forecast"
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid weather API URL %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 100 * time.Millisecond
	}
	if opts.RetryMaxDelay < opts.RetryBaseDelay {
		opts.RetryMaxDelay = opts.RetryBaseDelay
	}
	if opts.WindMph <= 0 {
		opts.WindMph = 20
	}
	return &OpenMeteoClient{
		baseURL:        u,
		client:         &http.Client{Timeout: opts.Timeout},
		timeout:        opts.Timeout,
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
		windMph:        opts.WindMph,
		breaker:        opts.Breaker,
		now:            time.Now,
	}, nil
}

type openMeteoResponse struct {
	Current *struct {
		Temperature         *float64 `json:"temperature_2m"`
		ApparentTemperature *float64 `json:"apparent_temperature"`
		RelativeHumidity    float64  `json:"relative_humidity_2m"`
		Precipitation       float64  `json:"precipitation"`
		WeatherCode         *int     `json:"weather_code"`
		WindSpeed           float64  `json:"wind_speed_10m"`
	} `json:"current"`
}

// CurrentConditions implements WeatherClient. Retries only rate limiting, 5xx and timeouts.
func (c *OpenMeteoClient) CurrentConditions(ctx context.Context, loc models.Location) (models.WeatherReading, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.WithLabelValues(metricSource).Inc()
			select {
			case <-ctx.Done():
				return models.WeatherReading{}, fmt.Errorf("%w: %v", ErrUpstreamFailure, ctx.Err())
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		reading, err := c.attempt(ctx, loc)
		if err == nil {
			return reading, nil
		}
		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			break
		}
	}
	if c.retryAttempts > 1 && isRetryable(lastErr) {
		return models.WeatherReading{}, fmt.Errorf("exhausted retries: %w", lastErr)
	}
	return models.WeatherReading{}, lastErr
}

func (c *OpenMeteoClient) attempt(ctx context.Context, loc models.Location) (models.WeatherReading, error) {
	if c.breaker == nil {
		return c.callAPI(ctx, loc)
	}
	var reading models.WeatherReading
	err := c.breaker.Execute(func() error {
		var cerr error
		reading, cerr = c.callAPI(ctx, loc)
		return cerr
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return models.WeatherReading{}, ErrCircuitOpen
	}
	return reading, err
}

func (c *OpenMeteoClient) callAPI(ctx context.Context, loc models.Location) (models.WeatherReading, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, loc)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(metricSource, "error").Inc()
		return models.WeatherReading{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(metricSource, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(metricSource, "error").Observe(time.Since(start).Seconds())
		return models.WeatherReading{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := observability.StatusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(metricSource, status).Inc()
	observability.UpstreamDuration.WithLabelValues(metricSource, status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return models.WeatherReading{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.WeatherReading{}, fmt.Errorf("read response body: %w", err)
	}

	var apiResp openMeteoResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.WeatherReading{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return c.mapResponse(apiResp, loc)
}

func (c *OpenMeteoClient) buildRequest(ctx context.Context, loc models.Location) (*http.Request, error) {
	u := *c.baseURL
	params := u.Query()
	params.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))
	params.Set("current", "temperature_2m,apparent_temperature,relative_humidity_2m,precipitation,weather_code,wind_speed_10m")
	params.Set("temperature_unit", "fahrenheit")
	params.Set("wind_speed_unit", "mph")
	params.Set("precipitation_unit", "inch")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if id := observability.CorrelationID(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		// Open-Meteo answers 400 for coordinates it rejects; the data source is unusable either way.
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

func (c *OpenMeteoClient) mapResponse(r openMeteoResponse, loc models.Location) (models.WeatherReading, error) {
	cur := r.Current
	if cur == nil || cur.Temperature == nil || cur.WeatherCode == nil {
		return models.WeatherReading{}, fmt.Errorf("%w: missing current temperature or weather code", ErrMalformedResponse)
	}
	if math.IsNaN(*cur.Temperature) || math.IsInf(*cur.Temperature, 0) {
		return models.WeatherReading{}, fmt.Errorf("%w: temperature not finite", ErrMalformedResponse)
	}
	feels := *cur.Temperature
	if cur.ApparentTemperature != nil {
		feels = *cur.ApparentTemperature
	}
	conditions, sky := ClassifyWeatherCode(*cur.WeatherCode, cur.Precipitation, cur.WindSpeed, c.windMph)
	return models.WeatherReading{
		Zip:             loc.Zip,
		Location:        loc,
		TemperatureF:    *cur.Temperature,
		FeelsLikeF:      feels,
		HumidityPct:     int(math.Round(cur.RelativeHumidity)),
		WindMph:         cur.WindSpeed,
		PrecipitationIn: cur.Precipitation,
		Conditions:      conditions,
		Sky:             sky,
		ResolvedAt:      c.now(),
	}, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	return isTimeout(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *OpenMeteoClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}
