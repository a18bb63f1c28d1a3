package sequence

import (
	"errors"
	"strings"
)

// ErrTooFewTracks is returned when a suggested order keeps fewer than two
// owned tracks.
var ErrTooFewTracks = errors.New("suggested order keeps fewer than two tracks")

// ValidateSuggestion reconciles an externally suggested order with the
// tracks the owner actually holds. Unknown IDs are dropped, repeated IDs keep
// their first position, and owned tracks the suggestion left out are appended
// in the order given by owned.
func ValidateSuggestion(suggested, owned []string) ([]string, error) {
	ownedSet := make(map[string]struct{}, len(owned))
	for _, id := range owned {
		ownedSet[id] = struct{}{}
	}

	seen := make(map[string]struct{}, len(owned))
	order := make([]string, 0, len(owned))
	for _, raw := range suggested {
		id := strings.TrimSpace(raw)
		if _, ok := ownedSet[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		order = append(order, id)
	}
	if len(order) < 2 {
		return nil, ErrTooFewTracks
	}
	for _, id := range owned {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		order = append(order, id)
	}
	return order, nil
}
