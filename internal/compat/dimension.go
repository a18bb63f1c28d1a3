package compat

import "math"

// Dimension is the score for a single compatibility aspect.
type Dimension struct {
	Score      int     `json:"score"`
	Type       string  `json:"type"`
	Difference float64 `json:"difference"`
}

func roundTo(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
