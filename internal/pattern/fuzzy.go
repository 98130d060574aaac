package pattern

import (
	"strings"

	"github.com/agext/levenshtein"
)

// DefaultSimilarityFloor is the minimum normalized edit-distance similarity
// a fuzzy match must reach to be accepted.
const DefaultSimilarityFloor = 0.8

// Similarity computes normalized Levenshtein similarity between two vendor
// names: 1 - editDistance/max(len(a), len(b)), case-insensitive.
func Similarity(a, b string) float64 {
	return levenshtein.Similarity(strings.ToLower(a), strings.ToLower(b), nil)
}

// BestMatch returns the candidate most similar to input at or above floor.
// The same primitive serves prediction fallback, curated-catalog category
// detection, and split suggestion.
func BestMatch(input string, candidates []string, floor float64) (string, float64, bool) {
	if floor <= 0 {
		floor = DefaultSimilarityFloor
	}

	var best string
	var bestScore float64
	for _, candidate := range candidates {
		score := Similarity(input, candidate)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	if bestScore < floor {
		return "", bestScore, false
	}
	return best, bestScore, true
}
