// internal/models/company.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperrors "circ-exchange/internal/common/errors"
)

// CompanyType is the marketplace side of a demo company record.
type CompanyType string

const (
	CompanyProducer CompanyType = "producer"
	CompanyConsumer CompanyType = "consumer"
)

// FlexibleID accepts both JSON strings and numbers. Demo records use numeric
// ids while listings use strings.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string {
	return string(id)
}

// Company is the record served by GET /companies/demo.
type Company struct {
	ID            FlexibleID      `json:"id"`
	Name          string          `json:"name"`
	Type          CompanyType     `json:"type"`
	Industry      string          `json:"industry"`
	Location      CompanyLocation `json:"location"`
	Contact       Contact         `json:"contact"`
	WasteStream   *WasteStream    `json:"waste_stream,omitempty"`
	MaterialNeeds *MaterialNeeds  `json:"material_needs,omitempty"`
}

type CompanyLocation struct {
	Address     string      `json:"address"`
	City        string      `json:"city"`
	State       string      `json:"state"`
	Zip         string      `json:"zip"`
	Coordinates *Coordinate `json:"coordinates,omitempty"`
}

type Contact struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type WasteStream struct {
	Material           string                 `json:"material"`
	Category           string                 `json:"category"`
	QuantityTonsYear   float64                `json:"quantity_tons_year"`
	Availability       string                 `json:"availability,omitempty"`
	Composition        map[string]float64     `json:"composition"`
	PhysicalProperties map[string]interface{} `json:"physical_properties,omitempty"`
	CurrentDisposal    *Disposal              `json:"current_disposal,omitempty"`
	Certifications     []string               `json:"certifications,omitempty"`
	Description        string                 `json:"description,omitempty"`
}

type Disposal struct {
	Method               string  `json:"method"`
	CostPerTon           float64 `json:"cost_per_ton"`
	AnnualCost           float64 `json:"annual_cost"`
	HaulingDistanceMiles float64 `json:"hauling_distance_miles"`
}

type MaterialNeeds struct {
	Material               string                 `json:"material"`
	Category               string                 `json:"category"`
	QuantityTonsYear       float64                `json:"quantity_tons_year"`
	Frequency              string                 `json:"frequency,omitempty"`
	CompositionNeeded      map[string]float64     `json:"composition_needed"`
	Specifications         map[string]interface{} `json:"specifications,omitempty"`
	CurrentSourcing        *Sourcing              `json:"current_sourcing,omitempty"`
	CertificationsRequired []string               `json:"certifications_required,omitempty"`
	Description            string                 `json:"description,omitempty"`
}

type Sourcing struct {
	PrimarySource          string  `json:"primary_source"`
	CostPerTon             float64 `json:"cost_per_ton"`
	AnnualCost             float64 `json:"annual_cost"`
	TransportDistanceMiles float64 `json:"transport_distance_miles"`
}

// Validate enforces that a record carries exactly one of waste_stream and
// material_needs, consistent with its type.
func (c Company) Validate() error {
	id := c.ID.String()
	if id == "" {
		return apperrors.NewInvalidListingError(id, "company id is required")
	}
	hasWaste, hasNeeds := c.WasteStream != nil, c.MaterialNeeds != nil
	if hasWaste == hasNeeds {
		return apperrors.NewInvalidListingError(id, "exactly one of waste_stream or material_needs is required")
	}
	switch c.Type {
	case CompanyProducer:
		if !hasWaste {
			return apperrors.NewInvalidListingError(id, "producer record without waste_stream")
		}
	case CompanyConsumer:
		if !hasNeeds {
			return apperrors.NewInvalidListingError(id, "consumer record without material_needs")
		}
	case "":
		// role follows from whichever block is present
	default:
		return apperrors.NewInvalidListingError(id, fmt.Sprintf("unknown company type %q", c.Type))
	}
	return nil
}

// ToListing converts a demo company record into a single-line listing.
// Producers become supply listings, consumers demand listings.
func (c Company) ToListing() (Listing, error) {
	if err := c.Validate(); err != nil {
		return Listing{}, err
	}

	listing := Listing{
		ID: c.ID.String(),
		Company: CompanyRef{
			ID:       c.ID.String(),
			Name:     c.Name,
			Industry: c.Industry,
		},
		Location: Location{
			Address:     c.Location.Address,
			City:        c.Location.City,
			State:       c.Location.State,
			Zip:         c.Location.Zip,
			Coordinates: copyCoordinate(c.Location.Coordinates),
		},
	}

	if ws := c.WasteStream; ws != nil {
		listing.Role = RoleSupply
		line := MaterialLine{
			Name:             ws.Material,
			Category:         ws.Category,
			Profile:          NewProfile(copyShares(ws.Composition)),
			QuantityTonsYear: ws.QuantityTonsYear,
		}
		if ws.CurrentDisposal != nil {
			line.UnitCostUSD = ws.CurrentDisposal.CostPerTon
		}
		listing.Materials = []MaterialLine{line}
	} else {
		mn := c.MaterialNeeds
		listing.Role = RoleDemand
		line := MaterialLine{
			Name:             mn.Material,
			Category:         mn.Category,
			Profile:          NewProfile(copyShares(mn.CompositionNeeded)),
			QuantityTonsYear: mn.QuantityTonsYear,
		}
		if mn.CurrentSourcing != nil {
			line.UnitCostUSD = mn.CurrentSourcing.CostPerTon
		}
		listing.Materials = []MaterialLine{line}
	}

	return listing, listing.Validate()
}

func copyShares(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyCoordinate(c *Coordinate) *Coordinate {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
