package matching

import (
	"fmt"
	"math"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/models"
)

const (
	EarthRadiusKm = 6371.0

	DefaultWeightComposition = 0.7
	DefaultWeightDistance    = 0.3
	DefaultRadiusKm          = 1000.0
)

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(a, b models.Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// Weights tunes the blended score.
type Weights struct {
	WeightComposition float64 `json:"weightComposition"`
	WeightDistance    float64 `json:"weightDistance"`
	RadiusKm          float64 `json:"radiusKm"`
}

func DefaultWeights() Weights {
	return Weights{
		WeightComposition: DefaultWeightComposition,
		WeightDistance:    DefaultWeightDistance,
		RadiusKm:          DefaultRadiusKm,
	}
}

// Validate rejects weights that cannot produce a meaningful score. A zero
// radius is allowed and means the default.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"weight_composition": w.WeightComposition,
		"weight_distance":    w.WeightDistance,
		"radius_km":          w.RadiusKm,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.NewInvalidWeightsError(fmt.Sprintf("%s must be finite", name))
		}
		if v < 0 {
			return apperrors.NewInvalidWeightsError(fmt.Sprintf("%s must not be negative, got %v", name, v))
		}
	}
	if w.WeightComposition == 0 && w.WeightDistance == 0 {
		return apperrors.NewInvalidWeightsError("at least one weight must be positive")
	}
	return nil
}

func (w Weights) radius() float64 {
	if w.RadiusKm <= 0 {
		return DefaultRadiusKm
	}
	return math.Max(w.RadiusKm, 1)
}

// BlendedScore combines composition similarity with distance proximity:
//
//	clamp(0, 1, wc*sim + wd*(1 - min(distance/radius, 1)))
//
// Proximity falls linearly from 1 at zero distance to 0 at the radius.
func BlendedScore(sim, distanceKm float64, w Weights) float64 {
	sim = clamp01(sim)
	if math.IsNaN(distanceKm) || distanceKm < 0 {
		distanceKm = 0
	}
	proximity := 1 - math.Min(distanceKm/w.radius(), 1)
	return clamp01(w.WeightComposition*sim + w.WeightDistance*proximity)
}
