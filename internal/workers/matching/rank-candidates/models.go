// internal/workers/matching/rank-candidates/models.go
package rankcandidates

import (
	"time"

	"circ-exchange/internal/common/validation"
	"circ-exchange/internal/models"
)

type Input struct {
	SourceListingID   string          `json:"sourceListingId,omitempty"`
	SourceListing     *models.Listing `json:"sourceListing,omitempty"`
	TopK              int             `json:"topK,omitempty"`
	MinSimilarity     *float64        `json:"minSimilarity,omitempty"`
	KnownDistanceOnly bool            `json:"knownDistanceOnly,omitempty"`
}

type Output struct {
	SourceListingID string      `json:"sourceListingId"`
	SourceRole      models.Role `json:"sourceRole"`
	PoolSize        int         `json:"poolSize"`
	CandidateCount  int         `json:"candidateCount"`
	Candidates      []Candidate `json:"candidates"`
}

// Candidate is the job-variable view of a models.MatchCandidate; full
// listings stay out of the process instance.
type Candidate struct {
	Rank                  int     `json:"rank"`
	CounterpartID         string  `json:"counterpartId"`
	CompanyName           string  `json:"companyName"`
	SupplyMaterial        string  `json:"supplyMaterial,omitempty"`
	DemandMaterial        string  `json:"demandMaterial,omitempty"`
	CompositionSimilarity float64 `json:"compositionSimilarity"`
	DistanceKm            float64 `json:"distanceKm"`
	DistanceUnknown       bool    `json:"distanceUnknown"`
	BlendedScore          float64 `json:"blendedScore"`
}

// RankedEvent is published on messaging.SubjectMatchesRanked.
type RankedEvent struct {
	SourceListingID string      `json:"sourceListingId"`
	SourceRole      models.Role `json:"sourceRole"`
	CandidateCount  int         `json:"candidateCount"`
	Top             []Candidate `json:"top"`
	RankedAt        time.Time   `json:"rankedAt"`
}

var inputSchema = validation.MustCompile(TaskType, `{
  "type": "object",
  "properties": {
    "sourceListingId": {"type": "string", "minLength": 1},
    "sourceListing": {
      "type": "object",
      "required": ["id", "role"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "role": {"type": "string", "enum": ["supply", "demand"]},
        "materials": {"type": "array"}
      }
    },
    "topK": {"type": "integer", "minimum": 0},
    "minSimilarity": {"type": "number", "minimum": 0, "maximum": 1},
    "knownDistanceOnly": {"type": "boolean"}
  },
  "anyOf": [
    {"required": ["sourceListingId"]},
    {"required": ["sourceListing"]}
  ]
}`)
