package sequence

import (
	"math"
	"sort"

	"mixcraft/internal/compat"
)

// Track is one candidate for sequencing.
type Track struct {
	ID       string
	Features compat.Features
}

// Transition scores one adjacent pair in an order.
type Transition struct {
	Position    int         `json:"position"`
	FromTrackID string      `json:"from_track_id"`
	ToTrackID   string      `json:"to_track_id"`
	Pair        compat.Pair `json:"pair"`
}

// Result is a complete ordering. Transitions has len(Order)-1 entries when
// Order holds at least two tracks and is empty otherwise.
type Result struct {
	Order        []string     `json:"order"`
	Transitions  []Transition `json:"transitions"`
	Excluded     []string     `json:"excluded,omitempty"`
	AverageScore int          `json:"average_score"`
}

// Scorable reports whether the result holds a usable mix order.
func (r Result) Scorable() bool {
	return len(r.Order) >= 2
}

// Build orders tracks with the greedy nearest-neighbour search.
func Build(tracks []Track, profile compat.Profile) Result {
	candidates, excluded := partition(tracks)
	result := Result{Excluded: excluded}
	if len(candidates) < 2 {
		return result
	}

	seed := seedIndex(candidates)
	placed := make([]Track, 0, len(candidates))
	placed = append(placed, candidates[seed])
	remaining := make([]Track, 0, len(candidates)-1)
	remaining = append(remaining, candidates[:seed]...)
	remaining = append(remaining, candidates[seed+1:]...)

	for len(remaining) > 0 {
		last := placed[len(placed)-1]
		best := -1
		var bestPair compat.Pair
		for i, candidate := range remaining {
			pair := compat.Score(last.Features, candidate.Features, profile)
			if best < 0 || better(pair, bestPair, last, candidate, remaining[best]) {
				best = i
				bestPair = pair
			}
		}
		winner := remaining[best]
		result.Transitions = append(result.Transitions, Transition{
			Position:    len(placed) - 1,
			FromTrackID: last.ID,
			ToTrackID:   winner.ID,
			Pair:        bestPair,
		})
		placed = append(placed, winner)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}

	result.Order = ids(placed)
	result.AverageScore = Average(result.Transitions)
	return result
}

// ForOrder scores adjacent pairs of an explicit order. IDs that are unknown
// or lack complete analysis are dropped in place; the rest keep their
// relative order.
func ForOrder(order []string, tracks []Track, profile compat.Profile) Result {
	byID := make(map[string]Track, len(tracks))
	for _, track := range tracks {
		byID[track.ID] = track
	}
	var result Result
	var kept []Track
	for _, id := range order {
		track, ok := byID[id]
		if !ok || !track.Features.Complete() {
			result.Excluded = append(result.Excluded, id)
			continue
		}
		kept = append(kept, track)
	}
	if len(kept) < 2 {
		return result
	}
	for i := 1; i < len(kept); i++ {
		result.Transitions = append(result.Transitions, Transition{
			Position:    i - 1,
			FromTrackID: kept[i-1].ID,
			ToTrackID:   kept[i].ID,
			Pair:        compat.Score(kept[i-1].Features, kept[i].Features, profile),
		})
	}
	result.Order = ids(kept)
	result.AverageScore = Average(result.Transitions)
	return result
}

// Average is the rounded mean transition score, or 0 for no transitions.
func Average(transitions []Transition) int {
	if len(transitions) == 0 {
		return 0
	}
	total := 0
	for _, transition := range transitions {
		total += transition.Pair.Score
	}
	return int(math.Round(float64(total) / float64(len(transitions))))
}

func partition(tracks []Track) (candidates []Track, excluded []string) {
	for _, track := range tracks {
		if track.Features.Complete() {
			candidates = append(candidates, track)
			continue
		}
		excluded = append(excluded, track.ID)
	}
	return candidates, excluded
}

// seedIndex picks the lowest energy track, then the lowest BPM, then the
// earliest input position.
func seedIndex(candidates []Track) int {
	indexes := make([]int, len(candidates))
	for i := range indexes {
		indexes[i] = i
	}
	sort.SliceStable(indexes, func(i, j int) bool {
		a, b := candidates[indexes[i]].Features, candidates[indexes[j]].Features
		if a.Energy != b.Energy {
			return a.Energy < b.Energy
		}
		return a.BPM < b.BPM
	})
	return indexes[0]
}

// better reports whether candidate (scored pair) beats the current best.
// Equal scores fall back to the energy closest to the last placed track;
// full ties keep the earlier candidate.
func better(pair, bestPair compat.Pair, last, candidate, current Track) bool {
	if pair.Score != bestPair.Score {
		return pair.Score > bestPair.Score
	}
	gap := math.Abs(candidate.Features.Energy - last.Features.Energy)
	bestGap := math.Abs(current.Features.Energy - last.Features.Energy)
	return gap < bestGap
}

func ids(tracks []Track) []string {
	out := make([]string, len(tracks))
	for i, track := range tracks {
		out[i] = track.ID
	}
	return out
}
