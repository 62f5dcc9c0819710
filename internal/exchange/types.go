package exchange

import (
	"fmt"
	"math"
	"strings"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/models"
)

// Endpoint paths, relative to the configured base URL.
const (
	PathHealth         = "/"
	PathDemoCompanies  = "/companies/demo"
	PathMatches        = "/companies/matches"
	PathParties        = "/companies/"
	PathAnalyze        = "/analyze/"
	PathAsk            = "/ask/"
	PathLoadSampleData = "/load-sample-data"
)

type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// PartyMaterial is a named composition map as the analysis service takes it.
type PartyMaterial struct {
	Name        string             `json:"name"`
	Composition map[string]float64 `json:"composition"`
}

// Party is one side of an analysis request.
type Party struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Latitude     float64         `json:"latitude"`
	Longitude    float64         `json:"longitude"`
	WasteStreams []PartyMaterial `json:"waste_streams,omitempty"`
	Needs        []PartyMaterial `json:"needs,omitempty"`
	Quantity     *float64        `json:"quantity,omitempty"`
	DisposalCost *float64        `json:"disposal_cost,omitempty"`
}

func (p Party) validate(side string) error {
	if strings.TrimSpace(p.ID) == "" {
		return apperrors.NewInvalidRequestError(side + ".id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.NewInvalidRequestError(side + ".name is required")
	}
	if err := (models.Coordinate{Lat: p.Latitude, Lng: p.Longitude}).Validate(); err != nil {
		return apperrors.NewInvalidRequestError(fmt.Sprintf("%s: %v", side, err))
	}
	for _, v := range []*float64{p.Quantity, p.DisposalCost} {
		if v != nil && (*v < 0 || math.IsNaN(*v)) {
			return apperrors.NewInvalidRequestError(side + " quantity and disposal cost must not be negative")
		}
	}
	for i, m := range append(append([]PartyMaterial{}, p.WasteStreams...), p.Needs...) {
		if strings.TrimSpace(m.Name) == "" {
			return apperrors.NewInvalidRequestError(fmt.Sprintf("%s material %d has no name", side, i))
		}
		if err := models.NewProfile(m.Composition).Validate(false); err != nil {
			return apperrors.NewInvalidRequestError(fmt.Sprintf("%s material %q: %v", side, m.Name, err))
		}
	}
	return nil
}

// AnalyzeRequest pairs the waste producer (CompanyA) with the prospective
// consumer (CompanyB).
type AnalyzeRequest struct {
	CompanyA Party `json:"company_a"`
	CompanyB Party `json:"company_b"`
}

// Validate runs before anything is sent.
func (r *AnalyzeRequest) Validate() error {
	if r == nil {
		return apperrors.NewInvalidRequestError("analyze request is nil")
	}
	if err := r.CompanyA.validate("company_a"); err != nil {
		return err
	}
	if err := r.CompanyB.validate("company_b"); err != nil {
		return err
	}
	if len(r.CompanyA.WasteStreams) == 0 {
		return apperrors.NewInvalidRequestError("company_a must list at least one waste stream")
	}
	if len(r.CompanyB.Needs) == 0 {
		return apperrors.NewInvalidRequestError("company_b must list at least one need")
	}
	return nil
}

type AnalyzeResponse struct {
	CompatibilityScore int     `json:"compatibility_score"`
	ChemicalNotes      string  `json:"chemical_notes"`
	CO2ReductionTons   float64 `json:"co2_reduction_tons"`
	CostSavingsUSD     float64 `json:"cost_savings_usd"`
	RegulatoryNotes    string  `json:"regulatory_notes"`
}

func (r *AnalyzeResponse) validate() error {
	if r.CompatibilityScore < 0 || r.CompatibilityScore > 100 {
		return fmt.Errorf("compatibility_score %d outside 0-100", r.CompatibilityScore)
	}
	return nil
}

type AskRequest struct {
	Question string `json:"question"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}

// Match is a precomputed pairing served by /companies/matches.
type Match struct {
	CompanyA           models.Company `json:"company_a"`
	CompanyB           models.Company `json:"company_b"`
	CompatibilityScore int            `json:"compatibility_score"`
	DistanceKm         float64        `json:"distance_km"`
	ChemicalNotes      string         `json:"chemical_notes"`
	CO2ReductionTons   float64        `json:"co2_reduction_tons"`
	CostSavingsUSD     float64        `json:"cost_savings_usd"`
	RegulatoryNotes    string         `json:"regulatory_notes"`
}

type LoadResult struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}
