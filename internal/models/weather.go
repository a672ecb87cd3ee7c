package models

import "time"

// Conditions is the coarse weather class used by the attire engine.
type Conditions string

const (
	ConditionsClear   Conditions = "clear"
	ConditionsRain    Conditions = "rain"
	ConditionsSnow    Conditions = "snow"
	ConditionsWind    Conditions = "wind"
	ConditionsUnknown Conditions = "unknown"
)

// Location is a zip code resolved to a place and coordinates.
type Location struct {
	Zip       string  `json:"zip"`
	Town      string  `json:"town"`
	State     string  `json:"state"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DisplayName returns "Town, ST", falling back to the zip code.
func (l Location) DisplayName() string {
	switch {
	case l.Town != "" && l.State != "":
		return l.Town + ", " + l.State
	case l.Town != "":
		return l.Town
	default:
		return l.Zip
	}
}

// WeatherReading is the current weather at a zip code. Units are Fahrenheit, mph and inches.
type WeatherReading struct {
	Zip             string     `json:"zip"`
	Location        Location   `json:"location"`
	TemperatureF    float64    `json:"temperatureF"`
	FeelsLikeF      float64    `json:"feelsLikeF"`
	HumidityPct     int        `json:"humidityPct"`
	WindMph         float64    `json:"windMph"`
	PrecipitationIn float64    `json:"precipitationIn"`
	Conditions      Conditions `json:"conditions"`
	Sky             string     `json:"sky"`
	ResolvedAt      time.Time  `json:"resolvedAt"`
}
