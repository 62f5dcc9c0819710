package matching

import "circ-exchange/internal/common/config"

// OptionsFromConfig maps the matching config section onto ranking options.
// Zero weights and radius keep the defaults.
func OptionsFromConfig(m config.MatchingConfig) Options {
	opts := DefaultOptions()
	if m.WeightComposition != 0 || m.WeightDistance != 0 {
		opts.Weights.WeightComposition = m.WeightComposition
		opts.Weights.WeightDistance = m.WeightDistance
	}
	if m.RadiusKm != 0 {
		opts.Weights.RadiusKm = m.RadiusKm
	}
	opts.TopK = m.TopK
	opts.MinSimilarity = m.MinSimilarity
	opts.RequireExplicitUnit = m.RequireExplicitUnit
	return opts
}
