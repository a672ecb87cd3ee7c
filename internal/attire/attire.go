// Package attire maps a weather reading and a user's warm/cold thresholds to what to wear.
package attire

import "github.com/kjstillabower/attire-decider/internal/models"

// Advisory text per band.
const (
	AdvisoryWarm = "light clothing"
	AdvisoryMild = "light jacket"
	AdvisoryCold = "heavy coat/layers"
)

// Notes refining the advisory at the extremes.
const (
	NoteHot      = "T-shirt and shorts"
	NoteFreezing = "freezing: minimize outdoor exposure"
)

// DefaultWindLayersMph is the wind speed at or above which layers are advised.
const DefaultWindLayersMph = 20

// Options tunes the parts of the decision that are not user thresholds.
type Options struct {
	// WindLayersMph is the wind speed at or above which wearLayers is added. <= 0 uses the default.
	WindLayersMph float64
}

// Classify returns the band for temp. Both thresholds are inclusive and the warm side is
// checked first, so temp == warm is warm and temp == cold is cold.
func Classify(temp, warm, cold float64) models.Band {
	switch {
	case temp >= warm:
		return models.BandWarm
	case temp <= cold:
		return models.BandCold
	default:
		return models.BandMild
	}
}

// Decide builds the recommendation for a reading. It is pure and total.
func Decide(reading models.WeatherReading, warm, cold float64, opts Options) models.AttireRecommendation {
	band := Classify(reading.TemperatureF, warm, cold)
	return models.AttireRecommendation{
		Band:      band,
		Advisory:  advisory(band),
		Modifiers: modifiers(reading, opts),
		Note:      note(reading.TemperatureF, warm, cold),
		Warm:      warm,
		Cold:      cold,
		Reading:   reading,
	}
}

func advisory(b models.Band) string {
	switch b {
	case models.BandWarm:
		return AdvisoryWarm
	case models.BandCold:
		return AdvisoryCold
	default:
		return AdvisoryMild
	}
}

func modifiers(r models.WeatherReading, opts Options) []models.Modifier {
	windLimit := opts.WindLayersMph
	if windLimit <= 0 {
		windLimit = DefaultWindLayersMph
	}
	mods := []models.Modifier{}
	if r.Conditions == models.ConditionsRain || r.Conditions == models.ConditionsSnow {
		mods = append(mods, models.ModifierBringUmbrella)
	}
	if r.Conditions == models.ConditionsWind || r.WindMph >= windLimit {
		mods = append(mods, models.ModifierWearLayers)
	}
	return mods
}

// note extends the band edges by a quarter of the threshold spread: past warm it is hot,
// past cold it is freezing.
func note(temp, warm, cold float64) string {
	spread := warm - cold
	if spread <= 0 {
		return ""
	}
	switch {
	case temp >= warm+spread/4:
		return NoteHot
	case temp <= cold-spread/4:
		return NoteFreezing
	default:
		return ""
	}
}
