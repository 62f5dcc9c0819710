// internal/models/listing.go
package models

import (
	"fmt"
	"math"
	"strings"

	apperrors "circ-exchange/internal/common/errors"
)

// Role is the side of the exchange a listing sits on. A listing has exactly
// one role.
type Role string

const (
	RoleSupply Role = "supply"
	RoleDemand Role = "demand"
)

// ParseRole accepts the canonical role names and the marketplace aliases
// (seller/producer for supply, buyer/consumer for demand).
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "supply", "seller", "producer":
		return RoleSupply, nil
	case "demand", "buyer", "consumer":
		return RoleDemand, nil
	default:
		return "", apperrors.NewInvalidFilterFormatError(fmt.Sprintf("unknown listing role %q", s))
	}
}

func (r Role) Valid() bool {
	return r == RoleSupply || r == RoleDemand
}

// Opposite returns the counterpart role.
func (r Role) Opposite() Role {
	switch r {
	case RoleSupply:
		return RoleDemand
	case RoleDemand:
		return RoleSupply
	default:
		return ""
	}
}

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return fmt.Errorf("coordinate is not finite")
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %v out of range", c.Lng)
	}
	return nil
}

// CompanyRef identifies the company behind a listing.
type CompanyRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Industry string `json:"industry,omitempty"`
}

type Location struct {
	Address     string      `json:"address,omitempty"`
	City        string      `json:"city,omitempty"`
	State       string      `json:"state,omitempty"`
	Zip         string      `json:"zip,omitempty"`
	Coordinates *Coordinate `json:"coordinates,omitempty"`
}

// MaterialLine is one offered (supply) or required (demand) material.
type MaterialLine struct {
	Name             string          `json:"name"`
	Category         string          `json:"category,omitempty"`
	Profile          MaterialProfile `json:"profile"`
	QuantityTonsYear float64         `json:"quantityTonsYear"`
	// UnitCostUSD is the disposal cost per ton on supply listings and the
	// sourcing cost per ton on demand listings.
	UnitCostUSD float64 `json:"unitCostUsd"`
}

// Listing is a supply-side or demand-side offer on the exchange.
type Listing struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Company   CompanyRef     `json:"company"`
	Location  Location       `json:"location"`
	Materials []MaterialLine `json:"materials"`
}

// Coordinate returns the listing position, if known.
func (l Listing) Coordinate() (Coordinate, bool) {
	if l.Location.Coordinates == nil {
		return Coordinate{}, false
	}
	return *l.Location.Coordinates, true
}

// CostLabel names what UnitCostUSD means for this listing's role.
func (l Listing) CostLabel() string {
	switch l.Role {
	case RoleSupply:
		return "disposal_cost_per_ton"
	case RoleDemand:
		return "sourcing_cost_per_ton"
	default:
		return ""
	}
}

// Validate checks structure only; profile contents are validated by the
// matching core where the unit policy is known.
func (l Listing) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return apperrors.NewInvalidListingError(l.ID, "id is required")
	}
	if !l.Role.Valid() {
		return apperrors.NewInvalidListingError(l.ID, fmt.Sprintf("role %q is not supply or demand", l.Role))
	}
	if c, ok := l.Coordinate(); ok {
		if err := c.Validate(); err != nil {
			return apperrors.NewInvalidListingError(l.ID, err.Error())
		}
	}
	for i, m := range l.Materials {
		if m.QuantityTonsYear < 0 || math.IsNaN(m.QuantityTonsYear) {
			return apperrors.NewInvalidListingError(l.ID, fmt.Sprintf("materials[%d] quantity must not be negative", i))
		}
		if m.UnitCostUSD < 0 || math.IsNaN(m.UnitCostUSD) {
			return apperrors.NewInvalidListingError(l.ID, fmt.Sprintf("materials[%d] cost must not be negative", i))
		}
	}
	return nil
}

// TotalQuantity sums the yearly tonnage over all material lines.
func (l Listing) TotalQuantity() float64 {
	total := 0.0
	for _, m := range l.Materials {
		total += m.QuantityTonsYear
	}
	return total
}
