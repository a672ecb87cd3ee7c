// Package geocode resolves US zip codes to coordinates.
package geocode

import (
	"context"
	"errors"

	"github.com/kjstillabower/attire-decider/internal/models"
)

// ErrUnknownZip is returned when no location is known for a zip code.
var ErrUnknownZip = errors.New("unknown zip code")

// ErrLookupFailed is returned when a remote geocoder could not answer.
var ErrLookupFailed = errors.New("zip lookup failed")

// NoLocationZip is well-formed but never names a location.
const NoLocationZip = "00000"

// Locator maps a validated zip code to a location.
type Locator interface {
	Locate(ctx context.Context, zip string) (models.Location, error)
}

// Chain tries each locator in order. ErrUnknownZip falls through to the next locator; any
// other error is remembered and returned only if no later locator succeeds.
// NoLocationZip is answered with ErrUnknownZip without consulting any locator.
type Chain []Locator

// Locate implements Locator.
func (c Chain) Locate(ctx context.Context, zip string) (models.Location, error) {
	if zip == NoLocationZip {
		return models.Location{}, ErrUnknownZip
	}
	var lastErr error
	for _, l := range c {
		loc, err := l.Locate(ctx, zip)
		if err == nil {
			return loc, nil
		}
		if !errors.Is(err, ErrUnknownZip) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return models.Location{}, lastErr
	}
	return models.Location{}, ErrUnknownZip
}

// IsBreakerSuccess reports whether err should not count against a geocoder's circuit breaker.
// An unknown zip is a valid answer from a healthy upstream.
func IsBreakerSuccess(err error) bool {
	return err == nil || errors.Is(err, ErrUnknownZip)
}
