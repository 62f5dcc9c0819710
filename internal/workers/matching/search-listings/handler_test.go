package searchlistings

import (
	"context"
	"testing"
	"time"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/models"
	"circ-exchange/internal/search"
	"circ-exchange/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool() store.StaticSource {
	mat := func(name, category string) []models.MaterialLine {
		return []models.MaterialLine{{Name: name, Category: category}}
	}
	return store.StaticSource{
		{ID: "1", Role: models.RoleSupply, Company: models.CompanyRef{Name: "Texas Steel"}, Location: models.Location{City: "Houston", State: "TX"}, Materials: mat("Steel Slag", "Metal Byproduct")},
		{ID: "2", Role: models.RoleDemand, Company: models.CompanyRef{Name: "Lone Star Cement"}, Location: models.Location{City: "Austin", State: "TX"}, Materials: mat("Calcium Oxide Source", "Mineral")},
		{ID: "3", Role: models.RoleSupply, Company: models.CompanyRef{Name: "Bay Glass"}, Location: models.Location{City: "Oakland", State: "CA"}, Materials: mat("Cullet", "Glass")},
		{ID: "4", Role: models.RoleDemand, Company: models.CompanyRef{Name: "Gulf Pavers"}, Location: models.Location{City: "houston", State: "tx"}, Materials: mat("steel slag", "Aggregate")},
	}
}

type stubSearcher struct {
	got    search.Filter
	result []models.Listing
}

func (s *stubSearcher) Search(_ context.Context, f search.Filter) ([]models.Listing, error) {
	s.got = f
	return s.result, nil
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, MaxResults: 3}
}

func ids(listings []models.Listing) []string {
	out := make([]string, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.ID)
	}
	return out
}

func TestHandler_Execute_InMemory(t *testing.T) {
	h := NewHandler(createTestConfig(), testPool(), nil, nil, logger.NewTestLogger(t))

	tests := []struct {
		name  string
		input Input
		want  []string
	}{
		{"empty filter returns pool order", Input{}, []string{"1", "2", "3"}},
		{"material is exact and case-insensitive", Input{Filter: search.Filter{Material: "Steel Slag"}}, []string{"1", "4"}},
		{"role alias", Input{Filter: search.Filter{Role: "buyer"}}, []string{"2", "4"}},
		{"query hits category", Input{Filter: search.Filter{Query: "glass"}}, []string{"3"}},
		{"combined filters", Input{Filter: search.Filter{Location: "houston", Role: "seller"}}, []string{"1"}},
		{"explicit limit", Input{Limit: 1}, []string{"1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.Execute(context.Background(), &tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(out.Listings))
			assert.Nil(t, out.Materials)
		})
	}
}

func TestHandler_Execute_TruncatesAndReportsCount(t *testing.T) {
	h := NewHandler(createTestConfig(), testPool(), nil, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Count)
	assert.Len(t, out.Listings, 3)
	assert.True(t, out.Truncated)
}

func TestHandler_Execute_Facets(t *testing.T) {
	h := NewHandler(createTestConfig(), testPool(), nil, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{IncludeFacets: true, Filter: search.Filter{Role: "supply"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Calcium Oxide Source", "Cullet", "Steel Slag"}, out.Materials)
	assert.Equal(t, []string{"Austin, TX", "Houston, TX", "Oakland, CA"}, out.Locations)
}

func TestHandler_Execute_UsesSearcher(t *testing.T) {
	pool := testPool()
	s := &stubSearcher{result: []models.Listing{pool[2]}}
	h := NewHandler(createTestConfig(), pool, s, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Filter: search.Filter{Query: "cullet"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(out.Listings))
	assert.Equal(t, "cullet", s.got.Query)
}

func TestHandler_Execute_UnknownRole(t *testing.T) {
	h := NewHandler(createTestConfig(), testPool(), nil, nil, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Filter: search.Filter{Role: "broker"}})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
