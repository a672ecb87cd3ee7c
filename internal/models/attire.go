package models

// Band is the coarse attire category for a temperature.
type Band string

const (
	BandCold Band = "cold"
	BandMild Band = "mild"
	BandWarm Band = "warm"
)

// Modifier is advice that applies regardless of band.
type Modifier string

const (
	ModifierBringUmbrella Modifier = "bringUmbrella"
	ModifierWearLayers    Modifier = "wearLayers"
)

// AttireRecommendation is the decision for one reading. An empty Modifiers slice means none.
type AttireRecommendation struct {
	Band      Band           `json:"band"`
	Advisory  string         `json:"advisory"`
	Modifiers []Modifier     `json:"modifiers"`
	Note      string         `json:"note,omitempty"`
	Warm      float64        `json:"warm"`
	Cold      float64        `json:"cold"`
	Reading   WeatherReading `json:"reading"`
}

// Has reports whether m is among the recommendation's modifiers.
func (r AttireRecommendation) Has(m Modifier) bool {
	for _, x := range r.Modifiers {
		if x == m {
			return true
		}
	}
	return false
}
