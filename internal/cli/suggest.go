package cli

import (
	"sort"

	"github.com/repolens/repolens/pkg/textdist"
)

// maxSuggestionDistance is the largest edit distance still offered as a
// did-you-mean candidate.
const maxSuggestionDistance = 3

// maxSuggestions caps the candidate list.
const maxSuggestions = 3

// Suggest returns up to three known names closest to the input by edit
// distance, nearest first. Names further than distance 3 are not offered.
func Suggest(input string, known []string) []string {
	type scored struct {
		name     string
		distance int
	}

	var candidates []scored

	for _, name := range known {
		d := textdist.Distance(input, name)
		if d <= maxSuggestionDistance {
			candidates = append(candidates, scored{name: name, distance: d})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}

		return candidates[i].name < candidates[j].name
	})

	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}

	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.name)
	}

	return out
}
