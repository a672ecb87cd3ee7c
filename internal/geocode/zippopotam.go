package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/attire-decider/internal/circuitbreaker"
	"github.com/kjstillabower/attire-decider/internal/models"
	"github.com/kjstillabower/attire-decider/internal/observability"
)

const metricSource = "geocoder"

// ZippopotamClient looks zips up at a Zippopotam.us compatible endpoint: GET {base}/us/{zip}.
type ZippopotamClient struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

// NewZippopotamClient returns a client with the given per-call timeout. breaker may be nil.
func NewZippopotamClient(baseURL string, timeout time.Duration, breaker *circuitbreaker.Breaker) *ZippopotamClient {
	return &ZippopotamClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

type zippopotamResponse struct {
	PostCode string `json:"post code"`
	Places   []struct {
		PlaceName string `json:"place name"`
		StateAbbr string `json:"state abbreviation"`
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"places"`
}

// Locate implements Locator.
func (c *ZippopotamClient) Locate(ctx context.Context, zip string) (models.Location, error) {
	if zip == NoLocationZip {
		return models.Location{}, ErrUnknownZip
	}
	if c.breaker == nil {
		return c.fetch(ctx, zip)
	}
	var loc models.Location
	err := c.breaker.Execute(func() error {
		var ferr error
		loc, ferr = c.fetch(ctx, zip)
		return ferr
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return models.Location{}, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	return loc, err
}

func (c *ZippopotamClient) fetch(ctx context.Context, zip string) (models.Location, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/us/"+zip, nil)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: build request: %w", ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if id := observability.CorrelationID(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(metricSource, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(metricSource, "error").Observe(time.Since(start).Seconds())
		return models.Location{}, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	status := observability.StatusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(metricSource, status).Inc()
	observability.UpstreamDuration.WithLabelValues(metricSource, status).Observe(time.Since(start).Seconds())

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.Location{}, ErrUnknownZip
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return models.Location{}, fmt.Errorf("%w: HTTP %d", ErrLookupFailed, resp.StatusCode)
	}

	var body zippopotamResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Location{}, fmt.Errorf("%w: parse response: %w", ErrLookupFailed, err)
	}
	if len(body.Places) == 0 {
		return models.Location{}, ErrUnknownZip
	}
	p := body.Places[0]
	lat, latErr := strconv.ParseFloat(p.Latitude, 64)
	lon, lonErr := strconv.ParseFloat(p.Longitude, 64)
	if latErr != nil || lonErr != nil {
		return models.Location{}, fmt.Errorf("%w: parse coordinates %q,%q", ErrLookupFailed, p.Latitude, p.Longitude)
	}
	return models.Location{
		Zip:       zip,
		Town:      p.PlaceName,
		State:     p.StateAbbr,
		Latitude:  lat,
		Longitude: lon,
	}, nil
}
