package compat

// Harmonic relation labels, in evaluation order.
const (
	HarmonicPerfectMatch     = "PERFECT_MATCH"
	HarmonicAdjacent         = "ADJACENT"
	HarmonicRelative         = "RELATIVE"
	HarmonicDiagonalAdjacent = "DIAGONAL_ADJACENT"
	HarmonicEnergyBoost      = "ENERGY_BOOST"
	HarmonicCompatible       = "COMPATIBLE"
	HarmonicRisky            = "RISKY"
)

var harmonicScores = map[string]int{
	HarmonicPerfectMatch:     100,
	HarmonicAdjacent:         90,
	HarmonicRelative:         85,
	HarmonicDiagonalAdjacent: 75,
	HarmonicEnergyBoost:      65,
	HarmonicCompatible:       60,
	HarmonicRisky:            20,
}

// HarmonicScoreFor returns the score attached to a harmonic label.
func HarmonicScoreFor(label string) int {
	return harmonicScores[label]
}

// Harmonic classifies moving from key a to key b. The energy-boost rule is
// directional; every other rule is symmetric. Codes that do not parse are
// classified as risky.
func Harmonic(a, b string) Dimension {
	ka, errA := ParseCamelot(a)
	kb, errB := ParseCamelot(b)
	if errA != nil || errB != nil {
		return harmonicDimension(HarmonicRisky, 0)
	}
	return harmonicDimension(classifyKeys(ka, kb), distance(ka.Number, kb.Number))
}

func classifyKeys(a, b Key) string {
	dist := distance(a.Number, b.Number)
	sameMode := a.Mode == b.Mode
	switch {
	case a == b:
		return HarmonicPerfectMatch
	case sameMode && dist == 1:
		return HarmonicAdjacent
	case a.Number == b.Number:
		return HarmonicRelative
	case !sameMode && dist == 1:
		return HarmonicDiagonalAdjacent
	case sameMode && b.Number == boostTarget(a.Number):
		return HarmonicEnergyBoost
	case sameMode && dist == 2:
		return HarmonicCompatible
	default:
		return HarmonicRisky
	}
}

func harmonicDimension(label string, dist int) Dimension {
	return Dimension{Score: harmonicScores[label], Type: label, Difference: float64(dist)}
}
