// Package compat scores how well two analyzed tracks mix into each other.
//
// Scoring is pure and deterministic. Each dimension (harmonic key relation on
// the Camelot wheel, tempo difference, energy movement) yields a Dimension
// carrying a 0-100 score, a classification label, and the raw difference used
// to classify it. A Profile combines the three dimension scores into a single
// rounded value; ProfileMix drives full mix sequencing while ProfileDraft is
// the two-track preview variant.
//
// Callers are expected to pass fully analyzed tracks only; sequencing code
// filters incomplete analysis before it reaches this package.
package compat
