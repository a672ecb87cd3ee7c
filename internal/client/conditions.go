package client

import "github.com/kjstillabower/attire-decider/internal/models"

// WMO weather interpretation codes as reported by Open-Meteo.
var wmoSky = map[int]string{
	0:  "Clear",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// ClassifyWeatherCode maps a WMO code plus measured precipitation and wind to a
// Conditions class and sky description. Precipitation classes take priority over wind.
func ClassifyWeatherCode(code int, precipitationIn, windMph, windLimitMph float64) (models.Conditions, string) {
	sky, ok := wmoSky[code]
	if !ok {
		sky = "Unknown"
	}

	var cond models.Conditions
	switch {
	case code >= 0 && code <= 3:
		cond = models.ConditionsClear
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82) || code >= 95 && code <= 99:
		cond = models.ConditionsRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		cond = models.ConditionsSnow
	default:
		cond = models.ConditionsUnknown
	}
	if !ok && cond != models.ConditionsUnknown {
		cond = models.ConditionsUnknown
	}

	if cond == models.ConditionsClear || cond == models.ConditionsUnknown {
		switch {
		case precipitationIn > 0:
			cond = models.ConditionsRain
		case windLimitMph > 0 && windMph >= windLimitMph:
			cond = models.ConditionsWind
		}
	}
	return cond, sky
}
