// Package matching scores supply/demand listing pairs and ranks candidates.
// Everything here is pure and safe for concurrent use.
package matching

import (
	"math"
	"sort"

	"circ-exchange/internal/models"
)

// Similarity is the weighted Jaccard overlap of two material profiles:
// Σ min(a_i, b_i) / Σ max(a_i, b_i) over the union of component names,
// after both profiles are normalized to fractions. Two empty profiles, or
// one empty profile, score 0.
func Similarity(a, b models.MaterialProfile) (float64, error) {
	return similarity(a, b, false)
}

// SimilarityStrict is Similarity with untagged profiles rejected.
func SimilarityStrict(a, b models.MaterialProfile) (float64, error) {
	return similarity(a, b, true)
}

func similarity(a, b models.MaterialProfile, requireExplicit bool) (float64, error) {
	na, err := a.Normalize(requireExplicit)
	if err != nil {
		return 0, err
	}
	nb, err := b.Normalize(requireExplicit)
	if err != nil {
		return 0, err
	}
	return jaccard(na, nb), nil
}

// jaccard visits keys in sorted order so that jaccard(a,b) and jaccard(b,a)
// accumulate identical sums.
func jaccard(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var inter, union float64
	for _, k := range keys {
		x, y := a[k], b[k]
		inter += math.Min(x, y)
		union += math.Max(x, y)
	}
	if union == 0 {
		return 0
	}
	return clamp01(inter / union)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
