package compat

import "math"

// Energy movement labels.
const (
	EnergyGentleRise = "GENTLE_RISE"
	EnergyStable     = "STABLE"
	EnergyStrongRise = "STRONG_RISE"
	EnergyGentleDrop = "GENTLE_DROP"
	EnergyStrongDrop = "STRONG_DROP"
	EnergyAbrupt     = "ABRUPT"
	EnergyDistance   = "DISTANCE"
)

// Energy scores the signed movement energyB - energyA. A gentle rise is the
// ideal; drops are penalised harder than rises of the same size. The
// difference is rounded to three decimals before classification.
func Energy(energyA, energyB float64) Dimension {
	diff := roundTo(energyB-energyA, 3)
	switch {
	case diff >= 0.05 && diff <= 0.15:
		return Dimension{Score: 100, Type: EnergyGentleRise, Difference: diff}
	case diff >= -0.05 && diff < 0.05:
		return Dimension{Score: 85, Type: EnergyStable, Difference: diff}
	case diff > 0.15 && diff <= 0.25:
		return Dimension{Score: 70, Type: EnergyStrongRise, Difference: diff}
	case diff >= -0.15 && diff < -0.05:
		return Dimension{Score: 65, Type: EnergyGentleDrop, Difference: diff}
	case diff >= -0.25 && diff < -0.15:
		return Dimension{Score: 45, Type: EnergyStrongDrop, Difference: diff}
	default:
		return Dimension{Score: 25, Type: EnergyAbrupt, Difference: diff}
	}
}

// EnergyUnsigned scores only the size of the energy gap: 100 for identical
// energy, falling linearly to 0 at a full-scale gap.
func EnergyUnsigned(energyA, energyB float64) Dimension {
	gap := roundTo(math.Abs(energyB-energyA), 3)
	score := int(math.Round(100 * (1 - gap)))
	if score < 0 {
		score = 0
	}
	return Dimension{Score: score, Type: EnergyDistance, Difference: gap}
}
