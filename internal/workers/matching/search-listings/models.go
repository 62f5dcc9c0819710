// internal/workers/matching/search-listings/models.go
package searchlistings

import (
	"circ-exchange/internal/common/validation"
	"circ-exchange/internal/models"
	"circ-exchange/internal/search"
)

type Input struct {
	search.Filter
	IncludeFacets bool `json:"includeFacets,omitempty"`
	Limit         int  `json:"limit,omitempty"`
}

type Output struct {
	Listings  []models.Listing `json:"listings"`
	Count     int              `json:"count"`
	Truncated bool             `json:"truncated"`
	Materials []string         `json:"materials,omitempty"`
	Locations []string         `json:"locations,omitempty"`
}

var inputSchema = validation.MustCompile(TaskType, `{
  "type": "object",
  "properties": {
    "query":         {"type": "string", "maxLength": 200},
    "material":      {"type": "string", "maxLength": 200},
    "location":      {"type": "string", "maxLength": 200},
    "role":          {"type": "string"},
    "includeFacets": {"type": "boolean"},
    "limit":         {"type": "integer", "minimum": 0}
  }
}`)
