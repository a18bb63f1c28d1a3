package sequence

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var transitionNamespace = uuid.MustParse("6f1d3c1e-8a53-4d8e-9f0a-6c2b7d1e4a90")

// TransitionID derives a stable identifier for the transition at position
// within owner. Recomputing the same order yields the same IDs, so results
// addressed to a pair that has since been replaced no longer match a row.
func TransitionID(ownerID string, t Transition) string {
	name := strings.Join([]string{ownerID, strconv.Itoa(t.Position), t.FromTrackID, t.ToTrackID}, "|")
	return uuid.NewSHA1(transitionNamespace, []byte(name)).String()
}
