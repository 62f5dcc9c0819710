// Package search filters listing collections in memory. It never ranks;
// results keep the insertion order of the pool.
package search

import (
	"sort"
	"strings"

	"circ-exchange/internal/models"
)

// All is the dropdown value that disables a filter.
const All = "all"

// Filter holds the AND-combined search criteria. Empty fields match
// everything.
type Filter struct {
	Query    string `json:"query,omitempty"`
	Material string `json:"material,omitempty"`
	Location string `json:"location,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Index is an immutable snapshot of a listing pool.
type Index struct {
	listings []models.Listing
}

func NewIndex(pool []models.Listing) *Index {
	listings := make([]models.Listing, len(pool))
	copy(listings, pool)
	return &Index{listings: listings}
}

func (idx *Index) Len() int {
	return len(idx.listings)
}

// Search returns the listings matching every criterion in f. An
// unrecognized role fails with a validation error.
func (idx *Index) Search(f Filter) ([]models.Listing, error) {
	m, err := compile(f)
	if err != nil {
		return nil, err
	}

	out := make([]models.Listing, 0, len(idx.listings))
	for _, l := range idx.listings {
		if m.match(l) {
			out = append(out, l)
		}
	}
	return out, nil
}

// Search filters pool directly without building an index.
func Search(pool []models.Listing, f Filter) ([]models.Listing, error) {
	return (&Index{listings: pool}).Search(f)
}

// Materials lists the distinct material names in the pool, sorted.
func (idx *Index) Materials() []string {
	seen := map[string]string{}
	for _, l := range idx.listings {
		for _, m := range l.Materials {
			addFacet(seen, m.Name)
		}
	}
	return facetValues(seen)
}

// Locations lists the distinct "City, ST" values in the pool, sorted.
func (idx *Index) Locations() []string {
	seen := map[string]string{}
	for _, l := range idx.listings {
		addFacet(seen, formatLocation(l.Location))
	}
	return facetValues(seen)
}

type matcher struct {
	query    string
	material string
	location string
	role     models.Role
}

func compile(f Filter) (matcher, error) {
	m := matcher{
		query:    strings.ToLower(strings.TrimSpace(f.Query)),
		material: disabledIfAll(f.Material),
		location: disabledIfAll(f.Location),
	}
	if r := disabledIfAll(f.Role); r != "" {
		role, err := models.ParseRole(r)
		if err != nil {
			return matcher{}, err
		}
		m.role = role
	}
	return m, nil
}

func disabledIfAll(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == All {
		return ""
	}
	return s
}

func (m matcher) match(l models.Listing) bool {
	if m.role != "" && l.Role != m.role {
		return false
	}
	if m.material != "" && !hasMaterial(l, m.material) {
		return false
	}
	if m.location != "" && !contains(l.Location.City, m.location) && !contains(l.Location.State, m.location) {
		return false
	}
	if m.query != "" && !matchesQuery(l, m.query) {
		return false
	}
	return true
}

func hasMaterial(l models.Listing, material string) bool {
	for _, line := range l.Materials {
		if models.NormalizeName(line.Name) == material {
			return true
		}
	}
	return false
}

func matchesQuery(l models.Listing, q string) bool {
	if contains(l.Company.Name, q) || contains(l.Company.Industry, q) {
		return true
	}
	for _, line := range l.Materials {
		if contains(line.Name, q) || contains(line.Category, q) {
			return true
		}
	}
	return false
}

// contains expects needle already lowercased.
func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

func formatLocation(loc models.Location) string {
	city, state := strings.TrimSpace(loc.City), strings.TrimSpace(loc.State)
	switch {
	case city != "" && state != "":
		return city + ", " + state
	case city != "":
		return city
	default:
		return state
	}
}

// addFacet dedupes case-insensitively and keeps the first spelling seen.
func addFacet(seen map[string]string, v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	key := strings.ToLower(v)
	if _, ok := seen[key]; !ok {
		seen[key] = v
	}
}

func facetValues(seen map[string]string) []string {
	out := make([]string, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i]), strings.ToLower(out[j])
		if a != b {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}
