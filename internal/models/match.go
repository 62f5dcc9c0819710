// internal/models/match.go
package models

// MatchCandidate is one scored supply/demand pairing. Candidates are built
// per ranking call and never modified afterwards.
type MatchCandidate struct {
	Supply                Listing `json:"supply"`
	Demand                Listing `json:"demand"`
	CounterpartID         string  `json:"counterpartId"`
	SupplyMaterial        string  `json:"supplyMaterial,omitempty"`
	DemandMaterial        string  `json:"demandMaterial,omitempty"`
	CompositionSimilarity float64 `json:"compositionSimilarity"`
	DistanceKm            float64 `json:"distanceKm"`
	DistanceUnknown       bool    `json:"distanceUnknown"`
	BlendedScore          float64 `json:"blendedScore"`
}
