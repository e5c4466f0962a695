package core

import "strings"

// RecipeMatchThreshold is the minimum header overlap for a recipe to be suggested.
const RecipeMatchThreshold = 0.7

// headerKey normalizes a column name for loose comparisons.
func headerKey(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// matchHeaders returns the fraction of want found in have, ignoring case and
// surrounding whitespace. An empty want never matches.
func matchHeaders(have, want []string) float64 {
	if len(want) == 0 {
		return 0
	}

	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[headerKey(h)] = true
	}

	matched := 0
	for _, h := range want {
		if set[headerKey(h)] {
			matched++
		}
	}
	return float64(matched) / float64(len(want))
}
