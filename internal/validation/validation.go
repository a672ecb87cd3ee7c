package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kjstillabower/attire-decider/internal/models"
)

// ErrInvalidZip is returned when the zip code is not exactly five ASCII digits.
var ErrInvalidZip = errors.New("zip code must be 5 digits")

// ErrInvalidThreshold is returned when a provided threshold is not a finite number.
var ErrInvalidThreshold = errors.New("threshold must be a number")

// ErrThresholdOrder is returned when both thresholds are provided and warm <= cold.
var ErrThresholdOrder = errors.New("warm threshold must be greater than cold threshold")

// Field names used in Error.
const (
	FieldZip  = "zip"
	FieldWarm = "warm"
	FieldCold = "cold"
)

// Error ties a validation failure to the form field that caused it.
// errors.Is matches the wrapped sentinel.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Defaults are substituted for thresholds the user left blank. Warm must exceed Cold.
type Defaults struct {
	Warm float64
	Cold float64
}

// DefaultThresholds is 75°F warm, 45°F cold.
var DefaultThresholds = Defaults{Warm: 75, Cold: 45}

// Validate parses the raw form values into a Query.
// Blank thresholds take the defaults. If only one threshold is given and the default for the
// other would not keep warm > cold, the missing one is placed at the default gap from the
// given value instead.
func Validate(rawZip, rawWarm, rawCold string, d Defaults) (models.Query, error) {
	zip, err := ValidateZip(rawZip)
	if err != nil {
		return models.Query{}, err
	}

	warm, warmSet, err := parseThreshold(FieldWarm, rawWarm)
	if err != nil {
		return models.Query{}, err
	}
	cold, coldSet, err := parseThreshold(FieldCold, rawCold)
	if err != nil {
		return models.Query{}, err
	}

	gap := d.Warm - d.Cold
	switch {
	case warmSet && coldSet:
		if warm <= cold {
			return models.Query{}, &Error{Field: FieldWarm, Err: ErrThresholdOrder}
		}
	case warmSet:
		cold = d.Cold
		if warm <= cold {
			cold = warm - gap
		}
		// At extreme magnitudes the gap is lost to float64 rounding.
		if !(warm > cold) {
			return models.Query{}, &Error{Field: FieldWarm, Err: ErrInvalidThreshold}
		}
	case coldSet:
		warm = d.Warm
		if warm <= cold {
			warm = cold + gap
		}
		if !(warm > cold) {
			return models.Query{}, &Error{Field: FieldCold, Err: ErrInvalidThreshold}
		}
	default:
		warm, cold = d.Warm, d.Cold
	}

	return models.Query{
		ZipCode: zip,
		Warm:    warm,
		Cold:    cold,
	}, nil
}

// ValidateZip trims surrounding whitespace and requires exactly five ASCII digits.
func ValidateZip(input string) (string, error) {
	s := strings.TrimSpace(input)
	if len(s) != 5 {
		return "", &Error{Field: FieldZip, Err: ErrInvalidZip}
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", &Error{Field: FieldZip, Err: ErrInvalidZip}
		}
	}
	return s, nil
}

// parseThreshold returns (value, provided, error). Blank input is not provided.
func parseThreshold(field, raw string) (float64, bool, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, &Error{Field: field, Err: ErrInvalidThreshold}
	}
	return v, true, nil
}
