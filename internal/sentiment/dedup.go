package sentiment

import (
	"sort"

	"github.com/wonny/argus/backend/internal/contracts"
)

// CollapseDuplicates removes near-duplicate news items before scoring so a
// syndicated headline does not count as independent confirmation.
//
// Similarity is token-set Jaccard over the headline. Items are considered
// oldest-first (ties by ID) and an item is dropped when it matches any
// already-kept item at or above the threshold, which keeps the earliest
// report of a story. Returns the kept items and the collapsed count.
func CollapseDuplicates(items []contracts.NewsItem, threshold float64) ([]contracts.NewsItem, int) {
	if len(items) < 2 {
		return items, 0
	}

	sorted := make([]contracts.NewsItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})

	kept := make([]contracts.NewsItem, 0, len(sorted))
	keptTokens := make([]map[string]struct{}, 0, len(sorted))
	collapsed := 0

	for _, item := range sorted {
		tokens := tokenSet(item.Headline)

		duplicate := false
		for _, prev := range keptTokens {
			if jaccard(tokens, prev) >= threshold {
				duplicate = true
				break
			}
		}

		if duplicate {
			collapsed++
			continue
		}
		kept = append(kept, item)
		keptTokens = append(keptTokens, tokens)
	}

	return kept, collapsed
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b|; two empty sets count as identical
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
