// internal/models/material.go
package models

import (
	"fmt"
	"math"
	"sort"
	"strings"

	apperrors "circ-exchange/internal/common/errors"
)

// Unit declares how the shares of a MaterialProfile are expressed.
type Unit string

const (
	// UnitUnspecified profiles are inferred: any share above 1 means percent.
	UnitUnspecified Unit = ""
	UnitFraction    Unit = "fraction"
	UnitPercent     Unit = "percent"
)

// ShareTolerance is the slack allowed on the total of a profile, as a
// fraction of the full scale (1.0 or 100).
const ShareTolerance = 0.01

// MaterialProfile maps component names to their share of a material.
type MaterialProfile struct {
	Unit       Unit               `json:"unit,omitempty"`
	Components map[string]float64 `json:"components"`
}

// NewProfile is shorthand for an untagged profile, the shape the exchange
// API uses for composition maps.
func NewProfile(components map[string]float64) MaterialProfile {
	return MaterialProfile{Components: components}
}

func (p MaterialProfile) IsEmpty() bool {
	return len(p.Components) == 0
}

// ResolveUnit returns the declared unit or infers one. With requireExplicit
// set, an untagged non-empty profile is rejected instead of guessed.
func (p MaterialProfile) ResolveUnit(requireExplicit bool) (Unit, error) {
	switch p.Unit {
	case UnitFraction, UnitPercent:
		return p.Unit, nil
	case UnitUnspecified:
	default:
		return "", apperrors.NewInvalidProfileError(fmt.Sprintf("unknown unit %q", p.Unit))
	}

	if p.IsEmpty() {
		return UnitFraction, nil
	}
	if requireExplicit {
		return "", apperrors.NewAmbiguousUnitError(fmt.Sprintf("components: %s", strings.Join(p.Names(), ", ")))
	}

	for _, v := range p.Components {
		if v > 1.0 {
			return UnitPercent, nil
		}
	}
	return UnitFraction, nil
}

// Normalize validates the profile and returns its shares as fractions keyed
// by normalized component name. Names that collide after normalization are
// summed.
func (p MaterialProfile) Normalize(requireExplicit bool) (map[string]float64, error) {
	unit, err := p.ResolveUnit(requireExplicit)
	if err != nil {
		return nil, err
	}

	scale := 1.0
	if unit == UnitPercent {
		scale = 100.0
	}

	out := make(map[string]float64, len(p.Components))
	total := 0.0
	for _, name := range p.sortedRawNames() {
		v := p.Components[name]
		key := NormalizeName(name)
		if key == "" {
			return nil, apperrors.NewInvalidProfileError("component name is empty")
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, apperrors.NewInvalidProfileError(fmt.Sprintf("component %q has a non-finite share", name))
		}
		if v < 0 {
			return nil, apperrors.NewInvalidProfileError(fmt.Sprintf("component %q has negative share %v", name, v))
		}
		share := v / scale
		out[key] += share
		total += share
	}

	if len(out) > 0 && total == 0 {
		return nil, apperrors.NewInvalidProfileError("every component share is zero")
	}
	if total > 1.0+ShareTolerance {
		return nil, apperrors.NewInvalidProfileError(
			fmt.Sprintf("shares sum to %.4g%s, above the %v limit", total*scale, unitSuffix(unit), scale))
	}

	return out, nil
}

// Validate checks the profile without keeping the normalized form.
func (p MaterialProfile) Validate(requireExplicit bool) error {
	_, err := p.Normalize(requireExplicit)
	return err
}

// Names returns the component names in sorted order.
func (p MaterialProfile) Names() []string {
	return p.sortedRawNames()
}

func (p MaterialProfile) sortedRawNames() []string {
	names := make([]string, 0, len(p.Components))
	for name := range p.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeName is the matching key for component and material names.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func unitSuffix(u Unit) string {
	if u == UnitPercent {
		return "%"
	}
	return ""
}
