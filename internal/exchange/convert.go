package exchange

import (
	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/models"
)

// PartyFromListing converts a listing into the analysis service's company
// shape. Supply lines become waste streams and demand lines become needs.
// Profiles are sent fraction-normalized so the service never has to guess
// units.
func PartyFromListing(l models.Listing) (Party, error) {
	if err := l.Validate(); err != nil {
		return Party{}, err
	}
	p := Party{ID: l.ID, Name: l.Company.Name}
	if p.Name == "" {
		p.Name = l.ID
	}
	if c, ok := l.Coordinate(); ok {
		p.Latitude, p.Longitude = c.Lat, c.Lng
	}

	materials := make([]PartyMaterial, 0, len(l.Materials))
	for _, m := range l.Materials {
		shares, err := m.Profile.Normalize(false)
		if err != nil {
			return Party{}, err
		}
		materials = append(materials, PartyMaterial{Name: m.Name, Composition: shares})
	}

	switch l.Role {
	case models.RoleSupply:
		p.WasteStreams = materials
		qty := l.TotalQuantity()
		p.Quantity = &qty
		if len(l.Materials) > 0 {
			cost := l.Materials[0].UnitCostUSD
			p.DisposalCost = &cost
		}
	case models.RoleDemand:
		p.Needs = materials
	default:
		return Party{}, apperrors.NewInvalidListingError(l.ID, "listing has no role")
	}
	return p, nil
}

// NewAnalyzeRequest orders the pair so that the supply listing is company_a.
func NewAnalyzeRequest(a, b models.Listing) (*AnalyzeRequest, error) {
	supply, demand := a, b
	if a.Role == models.RoleDemand && b.Role == models.RoleSupply {
		supply, demand = b, a
	}
	if supply.Role != models.RoleSupply || demand.Role != models.RoleDemand {
		return nil, apperrors.NewInvalidRequestError("analysis needs one supply and one demand listing")
	}

	pa, err := PartyFromListing(supply)
	if err != nil {
		return nil, err
	}
	pb, err := PartyFromListing(demand)
	if err != nil {
		return nil, err
	}
	return &AnalyzeRequest{CompanyA: pa, CompanyB: pb}, nil
}

// ListingFromParty converts a party record back into a listing. Parties
// carrying waste streams become supply listings, the rest demand.
func ListingFromParty(p Party) models.Listing {
	l := models.Listing{
		ID:       p.ID,
		Company:  models.CompanyRef{ID: p.ID, Name: p.Name},
		Location: models.Location{Coordinates: &models.Coordinate{Lat: p.Latitude, Lng: p.Longitude}},
	}
	src := p.Needs
	l.Role = models.RoleDemand
	if len(p.WasteStreams) > 0 {
		src = p.WasteStreams
		l.Role = models.RoleSupply
	}
	for i, m := range src {
		line := models.MaterialLine{Name: m.Name, Profile: models.NewProfile(m.Composition)}
		if l.Role == models.RoleSupply && i == 0 {
			if p.Quantity != nil {
				line.QuantityTonsYear = *p.Quantity
			}
			if p.DisposalCost != nil {
				line.UnitCostUSD = *p.DisposalCost
			}
		}
		l.Materials = append(l.Materials, line)
	}
	return l
}
