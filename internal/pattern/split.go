package pattern

import (
	"context"
	"sort"
)

// VariantStat summarizes one vendor spelling folded into a pattern.
type VariantStat struct {
	Vendor        string
	Count         int
	AverageAmount float64
}

// SplitSuggestion flags a pattern that aggregates distinct vendor variants,
// e.g. a marketplace and its subscription billing under one normalized name.
// The user decides whether to split; the engine only surfaces the evidence.
type SplitSuggestion struct {
	NormalizedVendor string
	Variants         []VariantStat
	PatternID        int64
}

const minVariantCount = 2

// SplitSuggestions scans a user's transactions for patterns whose fuzzy
// neighborhood contains two or more recurring vendor spellings. A variant
// only counts once it recurs; single sightings are noise.
func (e *Engine) SplitSuggestions(ctx context.Context, userID string, floor float64) ([]SplitSuggestion, error) {
	if floor <= 0 {
		floor = DefaultSimilarityFloor
	}

	patterns, err := e.store.GetPatternsForUser(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	vendors := make([]string, 0, len(patterns))
	byVendor := make(map[string]int64, len(patterns))
	for i := range patterns {
		vendors = append(vendors, patterns[i].NormalizedVendor)
		byVendor[patterns[i].NormalizedVendor] = patterns[i].ID
	}

	transactions, err := e.store.GetTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Fold each transaction into the nearest pattern's variant map.
	type variantKey struct {
		pattern string
		variant string
	}
	counts := make(map[variantKey]*VariantStat)
	for i := range transactions {
		vendorText := transactions[i].Vendor
		if vendorText == "" {
			vendorText = transactions[i].Description
		}
		variant := NormalizeVendor(vendorText)
		if variant == "" {
			continue
		}

		ownerVendor := variant
		if _, exact := byVendor[variant]; !exact {
			match, _, found := BestMatch(variant, vendors, floor)
			if !found {
				continue
			}
			ownerVendor = match
		}

		key := variantKey{pattern: ownerVendor, variant: variant}
		stat := counts[key]
		if stat == nil {
			stat = &VariantStat{Vendor: variant}
			counts[key] = stat
		}
		stat.Count++
		stat.AverageAmount += (transactions[i].Amount - stat.AverageAmount) / float64(stat.Count)
	}

	grouped := make(map[string][]VariantStat)
	for key, stat := range counts {
		if stat.Count < minVariantCount {
			continue
		}
		grouped[key.pattern] = append(grouped[key.pattern], *stat)
	}

	var suggestions []SplitSuggestion
	for vendor, variants := range grouped {
		if len(variants) < 2 {
			continue
		}
		sort.Slice(variants, func(i, j int) bool {
			if variants[i].Count != variants[j].Count {
				return variants[i].Count > variants[j].Count
			}
			return variants[i].Vendor < variants[j].Vendor
		})
		suggestions = append(suggestions, SplitSuggestion{
			PatternID:        byVendor[vendor],
			NormalizedVendor: vendor,
			Variants:         variants,
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		return suggestions[i].NormalizedVendor < suggestions[j].NormalizedVendor
	})

	return suggestions, nil
}
