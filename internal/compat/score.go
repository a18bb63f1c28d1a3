package compat

import (
	"fmt"
	"math"
	"strings"
)

// Features are the analysis values the scorer consumes.
type Features struct {
	BPM     float64 `json:"bpm"`
	Camelot string  `json:"camelot"`
	Energy  float64 `json:"energy"`
}

// Complete reports whether all three scoring inputs are usable.
func (f Features) Complete() bool {
	if f.BPM <= 0 || math.IsNaN(f.BPM) || math.IsInf(f.BPM, 0) {
		return false
	}
	if math.IsNaN(f.Energy) || f.Energy < 0 || f.Energy > 1 {
		return false
	}
	return ValidCamelot(f.Camelot)
}

// Profile is a named weight set for combining dimension scores.
type Profile struct {
	Name           string
	Harmonic       float64
	Tempo          float64
	Energy         float64
	UnsignedEnergy bool
}

var (
	// ProfileMix weights transitions inside a sequenced mix.
	ProfileMix = Profile{Name: "mix", Harmonic: 0.50, Tempo: 0.30, Energy: 0.20}
	// ProfileDraft weights the two-track draft preview and ignores the
	// direction of the energy change.
	ProfileDraft = Profile{Name: "draft", Harmonic: 0.40, Tempo: 0.35, Energy: 0.25, UnsignedEnergy: true}
)

// ProfileByName resolves a configured profile name.
func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProfileMix.Name:
		return ProfileMix, nil
	case ProfileDraft.Name:
		return ProfileDraft, nil
	default:
		return Profile{}, fmt.Errorf("unknown scoring profile %q", name)
	}
}

// Pair is the full compatibility breakdown for moving from one track to another.
type Pair struct {
	Score    int       `json:"score"`
	Harmonic Dimension `json:"harmonic"`
	Tempo    Dimension `json:"bpm"`
	Energy   Dimension `json:"energy"`
	Profile  string    `json:"profile"`
}

// Score compares a (outgoing) to b (incoming) using the given profile.
func Score(a, b Features, profile Profile) Pair {
	pair := Pair{
		Harmonic: Harmonic(a.Camelot, b.Camelot),
		Tempo:    BPM(a.BPM, b.BPM),
		Profile:  profile.Name,
	}
	if profile.UnsignedEnergy {
		pair.Energy = EnergyUnsigned(a.Energy, b.Energy)
	} else {
		pair.Energy = Energy(a.Energy, b.Energy)
	}
	pair.Score = profile.Combine(pair.Harmonic.Score, pair.Tempo.Score, pair.Energy.Score)
	return pair
}

// Combine applies the profile weights and rounds to the nearest integer.
func (p Profile) Combine(harmonic, tempo, energy int) int {
	total := float64(harmonic)*p.Harmonic + float64(tempo)*p.Tempo + float64(energy)*p.Energy
	return int(math.Round(total))
}

// Warnings lists human-readable concerns about the transition.
func (p Pair) Warnings() []string {
	var warnings []string
	if p.Harmonic.Type == HarmonicRisky {
		warnings = append(warnings, "keys clash on the Camelot wheel")
	}
	if p.Tempo.Difference > 6 {
		warnings = append(warnings, fmt.Sprintf("tempo differs by %.2f%%", p.Tempo.Difference))
	}
	switch p.Energy.Type {
	case EnergyAbrupt:
		warnings = append(warnings, fmt.Sprintf("abrupt energy change (%+.3f)", p.Energy.Difference))
	case EnergyStrongDrop:
		warnings = append(warnings, fmt.Sprintf("strong energy drop (%+.3f)", p.Energy.Difference))
	}
	return warnings
}
