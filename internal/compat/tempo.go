package compat

import "math"

// Tempo relation labels.
const (
	TempoPerfect    = "PERFECT"
	TempoClose      = "CLOSE"
	TempoManageable = "MANAGEABLE"
	TempoStretch    = "STRETCH"
	TempoClash      = "CLASH"
)

// BPM scores the tempo gap as a percentage of bpmA. The difference is kept
// rounded to two decimals and the thresholds are applied to that rounded
// value. A non-positive reference tempo is treated as a clash.
func BPM(bpmA, bpmB float64) Dimension {
	if bpmA <= 0 || math.IsNaN(bpmA) || math.IsNaN(bpmB) {
		return Dimension{Score: 25, Type: TempoClash, Difference: 100}
	}
	pct := roundTo(math.Abs(bpmA-bpmB)/bpmA*100, 2)
	switch {
	case pct <= 2:
		return Dimension{Score: 100, Type: TempoPerfect, Difference: pct}
	case pct <= 4:
		return Dimension{Score: 85, Type: TempoClose, Difference: pct}
	case pct <= 6:
		return Dimension{Score: 70, Type: TempoManageable, Difference: pct}
	case pct <= 8:
		return Dimension{Score: 55, Type: TempoStretch, Difference: pct}
	default:
		return Dimension{Score: 25, Type: TempoClash, Difference: pct}
	}
}
