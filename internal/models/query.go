package models

// Query is one validated request: a zip code and the thresholds to classify against.
// Warm is always greater than Cold.
type Query struct {
	ZipCode string
	Warm    float64
	Cold    float64
}
