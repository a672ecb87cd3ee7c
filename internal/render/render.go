// Package render turns a recommendation or a pipeline error into the text block shown to
// the user. It holds no decision logic.
package render

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/kjstillabower/attire-decider/internal/models"
	"github.com/kjstillabower/attire-decider/internal/resolver"
	"github.com/kjstillabower/attire-decider/internal/validation"
)

// failure kinds. Each maps to one fixed message.
const (
	KindInvalidZip          = "invalid_zip"
	KindInvalidThreshold    = "invalid_threshold"
	KindThresholdOrder      = "threshold_order"
	KindUnknownZip          = "unknown_zip"
	KindUpstreamUnavailable = "upstream_unavailable"
	KindInternal            = "internal"
)

// Display is the rendered result block. Kind is empty on success.
type Display struct {
	OK       bool     `json:"ok"`
	Kind     string   `json:"kind,omitempty"`
	Headline string   `json:"headline"`
	Lines    []string `json:"lines,omitempty"`
}

var messages = map[string]string{
	KindInvalidZip:          "Please enter a 5-digit US zip code.",
	KindThresholdOrder:      "Your warm threshold must be higher than your cold threshold.",
	KindUnknownZip:          "We couldn't find that zip code. Please check it and try again.",
	KindUpstreamUnavailable: "Weather data is unavailable right now. Please try again in a few minutes.",
	KindInternal:            "Something went wrong. Please try again.",
}

// Render maps a recommendation, or the error that prevented one, to a Display.
// Error text is never shown; only the fixed message for its kind.
func Render(rec models.AttireRecommendation, err error) Display {
	if err != nil {
		return failure(err)
	}
	return success(rec)
}

// Kind classifies err into one of the failure kinds.
func Kind(err error) string {
	switch {
	case errors.Is(err, validation.ErrInvalidZip):
		return KindInvalidZip
	case errors.Is(err, validation.ErrInvalidThreshold):
		return KindInvalidThreshold
	case errors.Is(err, validation.ErrThresholdOrder):
		return KindThresholdOrder
	case errors.Is(err, resolver.ErrUnknownZip):
		return KindUnknownZip
	case errors.Is(err, resolver.ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	default:
		return KindInternal
	}
}

// failure renders err as a user-safe message.
func failure(err error) Display {
	kind := Kind(err)
	headline := messages[kind]
	if kind == KindInvalidThreshold {
		headline = thresholdMessage(err)
	}
	return Display{Kind: kind, Headline: headline}
}

func thresholdMessage(err error) string {
	var verr *validation.Error
	if errors.As(err, &verr) {
		switch verr.Field {
		case validation.FieldWarm:
			return "The warm threshold must be a number, like 75."
		case validation.FieldCold:
			return "The cold threshold must be a number, like 45."
		}
	}
	return "Thresholds must be numbers, like 75 or 45."
}

// success renders a recommendation.
func success(rec models.AttireRecommendation) Display {
	r := rec.Reading
	lines := []string{
		fmt.Sprintf("Weather for %s (%s).", r.Location.DisplayName(), r.Zip),
		fmt.Sprintf("Temperature: %s°F, feels like %s°F.", degrees(r.TemperatureF), degrees(r.FeelsLikeF)),
	}
	if r.Sky != "" {
		lines = append(lines, fmt.Sprintf("Sky: %s.", r.Sky))
	}
	lines = append(lines,
		fmt.Sprintf("Humidity: %d%%. Wind: %s mph. Precipitation: %.2f in.", r.HumidityPct, degrees(r.WindMph), r.PrecipitationIn),
		fmt.Sprintf("Your thresholds: warm %s°F, cold %s°F.", degrees(rec.Warm), degrees(rec.Cold)),
	)
	if rec.Has(models.ModifierBringUmbrella) {
		lines = append(lines, "Bring an umbrella.")
	}
	if rec.Has(models.ModifierWearLayers) {
		lines = append(lines, "Wear layers, it is windy.")
	}
	if rec.Note != "" {
		lines = append(lines, "Tip: "+rec.Note+".")
	}
	return Display{
		OK:       true,
		Headline: fmt.Sprintf("Consider wearing: %s.", rec.Advisory),
		Lines:    lines,
	}
}

// degrees formats v rounded to one decimal place, dropping a trailing ".0".
func degrees(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
