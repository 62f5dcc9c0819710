// internal/workers/matching/analyze-compatibility/models.go
package analyzecompatibility

import (
	"time"

	"circ-exchange/internal/common/validation"
	"circ-exchange/internal/exchange"
)

type Input struct {
	SupplyListingID string                   `json:"supplyListingId,omitempty"`
	DemandListingID string                   `json:"demandListingId,omitempty"`
	Request         *exchange.AnalyzeRequest `json:"request,omitempty"`
}

type Output struct {
	SupplyID           string  `json:"supplyId"`
	DemandID           string  `json:"demandId"`
	CompatibilityScore int     `json:"compatibilityScore"`
	ChemicalNotes      string  `json:"chemicalNotes"`
	CO2ReductionTons   float64 `json:"co2ReductionTons"`
	CostSavingsUSD     float64 `json:"costSavingsUsd"`
	RegulatoryNotes    string  `json:"regulatoryNotes"`
}

// AnalysisEvent is published on messaging.SubjectAnalysisReady.
type AnalysisEvent struct {
	Output
	AnalyzedAt time.Time `json:"analyzedAt"`
}

var inputSchema = validation.MustCompile(TaskType, `{
  "type": "object",
  "properties": {
    "supplyListingId": {"type": "string", "minLength": 1},
    "demandListingId": {"type": "string", "minLength": 1},
    "request": {
      "type": "object",
      "required": ["company_a", "company_b"]
    }
  },
  "oneOf": [
    {"required": ["supplyListingId", "demandListingId"], "not": {"required": ["request"]}},
    {"required": ["request"], "not": {"anyOf": [{"required": ["supplyListingId"]}, {"required": ["demandListingId"]}]}}
  ]
}`)
