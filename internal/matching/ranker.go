package matching

import (
	"fmt"
	"sort"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/models"
)

// Options configures a ranking call.
type Options struct {
	Weights Weights
	// TopK caps the result length; 0 returns every candidate.
	TopK int
	// MinSimilarity drops candidates whose best composition overlap is
	// below the threshold. The zero value keeps zero-overlap candidates.
	MinSimilarity       float64
	RequireExplicitUnit bool
}

// DefaultOptions ranks with the default weights and no cut-offs.
func DefaultOptions() Options {
	return Options{Weights: DefaultWeights()}
}

func (o Options) validate() error {
	if err := o.Weights.Validate(); err != nil {
		return err
	}
	if o.TopK < 0 {
		return apperrors.NewInvalidWeightsError(fmt.Sprintf("top_k must not be negative, got %d", o.TopK))
	}
	if o.MinSimilarity < 0 || o.MinSimilarity > 1 {
		return apperrors.NewInvalidWeightsError(fmt.Sprintf("min_similarity must be within [0,1], got %v", o.MinSimilarity))
	}
	return nil
}

type normalizedLine struct {
	name   string
	shares map[string]float64
}

// Rank scores source against every opposite-role listing in pool and
// returns the candidates ordered by blended score descending, ties broken by
// ascending counterpart id. Same-role listings and the source itself are
// excluded before scoring. Inputs are not modified.
func Rank(source models.Listing, pool []models.Listing, opts Options) ([]models.MatchCandidate, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := source.Validate(); err != nil {
		return nil, err
	}
	sourceLines, err := normalizeLines(source, opts.RequireExplicitUnit)
	if err != nil {
		return nil, err
	}

	want := source.Role.Opposite()
	candidates := make([]models.MatchCandidate, 0, len(pool))

	for _, other := range pool {
		if other.Role != want || other.ID == source.ID {
			continue
		}
		if err := other.Validate(); err != nil {
			return nil, err
		}
		otherLines, err := normalizeLines(other, opts.RequireExplicitUnit)
		if err != nil {
			return nil, err
		}

		sim, srcName, otherName := bestPair(sourceLines, otherLines)
		if sim < opts.MinSimilarity {
			continue
		}

		c := models.MatchCandidate{
			CounterpartID:         other.ID,
			CompositionSimilarity: sim,
		}
		if source.Role == models.RoleSupply {
			c.Supply, c.Demand = source, other
			c.SupplyMaterial, c.DemandMaterial = srcName, otherName
		} else {
			c.Supply, c.Demand = other, source
			c.SupplyMaterial, c.DemandMaterial = otherName, srcName
		}

		a, okA := source.Coordinate()
		b, okB := other.Coordinate()
		if okA && okB {
			c.DistanceKm = HaversineKm(a, b)
		} else {
			c.DistanceUnknown = true
		}
		c.BlendedScore = BlendedScore(sim, c.DistanceKm, opts.Weights)

		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].BlendedScore != candidates[j].BlendedScore {
			return candidates[i].BlendedScore > candidates[j].BlendedScore
		}
		return candidates[i].CounterpartID < candidates[j].CounterpartID
	})

	if opts.TopK > 0 && len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}
	return candidates, nil
}

// KnownDistance keeps only candidates whose distance was actually computed.
func KnownDistance(candidates []models.MatchCandidate) []models.MatchCandidate {
	out := make([]models.MatchCandidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.DistanceUnknown {
			out = append(out, c)
		}
	}
	return out
}

// UnknownDistanceLast moves DistanceUnknown candidates behind every
// candidate with a computed distance. Order within each group is kept.
func UnknownDistanceLast(candidates []models.MatchCandidate) []models.MatchCandidate {
	out := make([]models.MatchCandidate, 0, len(candidates))
	var unknown []models.MatchCandidate
	for _, c := range candidates {
		if c.DistanceUnknown {
			unknown = append(unknown, c)
			continue
		}
		out = append(out, c)
	}
	return append(out, unknown...)
}

func normalizeLines(l models.Listing, requireExplicit bool) ([]normalizedLine, error) {
	lines := make([]normalizedLine, 0, len(l.Materials))
	for i, m := range l.Materials {
		shares, err := m.Profile.Normalize(requireExplicit)
		if err != nil {
			if stdErr, ok := apperrors.As(err); ok {
				stdErr.Details = fmt.Sprintf("listing %s materials[%d]: %s", l.ID, i, stdErr.Details)
			}
			return nil, err
		}
		lines = append(lines, normalizedLine{name: m.Name, shares: shares})
	}
	return lines, nil
}

// bestPair takes the maximum similarity over every line combination. The
// first pair reaching the maximum, in line order, is reported.
func bestPair(src, other []normalizedLine) (float64, string, string) {
	best := -1.0
	var srcName, otherName string
	for _, s := range src {
		for _, o := range other {
			if sim := jaccard(s.shares, o.shares); sim > best {
				best, srcName, otherName = sim, s.name, o.name
			}
		}
	}
	if best < 0 {
		return 0, "", ""
	}
	return best, srcName, otherName
}
