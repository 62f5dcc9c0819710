package rankcandidates

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/common/messaging"
	"circ-exchange/internal/common/validation"
	"circ-exchange/internal/models"
	"circ-exchange/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	subjects []string
	events   []interface{}
	err      error
}

func (p *recordingPublisher) PublishJSON(subject string, v interface{}) error {
	p.subjects = append(p.subjects, subject)
	p.events = append(p.events, v)
	return p.err
}

func createTestConfig() *Config {
	cfg := LoadConfig()
	cfg.Timeout = 5 * time.Second
	return cfg
}

func coord(lat, lng float64) *models.Coordinate {
	return &models.Coordinate{Lat: lat, Lng: lng}
}

func line(name string, shares map[string]float64) []models.MaterialLine {
	return []models.MaterialLine{{Name: name, Profile: models.NewProfile(shares)}}
}

func testPool() store.StaticSource {
	return store.StaticSource{
		{
			ID: "s-hdpe", Role: models.RoleSupply,
			Company:   models.CompanyRef{Name: "PolyCo"},
			Location:  models.Location{Coordinates: coord(29.76, -95.37)},
			Materials: line("HDPE regrind", map[string]float64{"HDPE": 0.95, "PP": 0.05}),
		},
		{
			ID: "d-molder", Role: models.RoleDemand,
			Company:   models.CompanyRef{Name: "MoldWorks"},
			Location:  models.Location{Coordinates: coord(29.95, -95.40)},
			Materials: line("HDPE pellets", map[string]float64{"HDPE": 1.0}),
		},
		{
			ID: "d-glass", Role: models.RoleDemand,
			Company:   models.CompanyRef{Name: "GlassWorks"},
			Location:  models.Location{Coordinates: coord(39.74, -104.99)},
			Materials: line("Cullet", map[string]float64{"SiO2": 0.72, "Na2O": 0.14, "CaO": 0.14}),
		},
		{
			ID: "d-nowhere", Role: models.RoleDemand,
			Company:   models.CompanyRef{Name: "Ghost Plastics"},
			Materials: line("HDPE flakes", map[string]float64{"HDPE": 1.0}),
		},
	}
}

func newTestHandler(t *testing.T, pool store.PoolSource, pub messaging.Publisher) *Handler {
	return NewHandler(createTestConfig(), pool, pub, nil, logger.NewTestLogger(t))
}

func TestHandler_Execute_RanksBySourceID(t *testing.T) {
	pub := &recordingPublisher{}
	h := newTestHandler(t, testPool(), pub)

	out, err := h.Execute(context.Background(), &Input{SourceListingID: "s-hdpe"})
	require.NoError(t, err)

	assert.Equal(t, "s-hdpe", out.SourceListingID)
	assert.Equal(t, models.RoleSupply, out.SourceRole)
	assert.Equal(t, 4, out.PoolSize)
	require.Equal(t, 3, out.CandidateCount)
	assert.Equal(t, "d-molder", out.Candidates[0].CounterpartID)
	assert.Equal(t, "MoldWorks", out.Candidates[0].CompanyName)
	assert.Equal(t, 1, out.Candidates[0].Rank)
	assert.False(t, out.Candidates[0].DistanceUnknown)
	assert.Equal(t, "d-glass", out.Candidates[1].CounterpartID)
	assert.False(t, out.Candidates[1].DistanceUnknown)

	// an unlocated listing scores highest but still ranks after located ones
	last := out.Candidates[2]
	assert.Equal(t, "d-nowhere", last.CounterpartID)
	assert.True(t, last.DistanceUnknown)
	assert.Equal(t, 3, last.Rank)
	assert.Greater(t, last.BlendedScore, out.Candidates[0].BlendedScore)
	assert.GreaterOrEqual(t, out.Candidates[0].BlendedScore, out.Candidates[1].BlendedScore)

	require.Len(t, pub.events, 1)
	assert.Equal(t, messaging.SubjectMatchesRanked, pub.subjects[0])
	event := pub.events[0].(RankedEvent)
	assert.Equal(t, 3, event.CandidateCount)
	assert.Len(t, event.Top, 3)
}

func TestHandler_Execute_InlineSourceAndOverrides(t *testing.T) {
	h := newTestHandler(t, testPool(), nil)
	source := models.Listing{
		ID: "d-new", Role: models.RoleDemand,
		Location:  models.Location{Coordinates: coord(29.70, -95.30)},
		Materials: line("HDPE", map[string]float64{"HDPE": 1}),
	}

	out, err := h.Execute(context.Background(), &Input{SourceListing: &source, TopK: 5})
	require.NoError(t, err)
	require.Equal(t, 1, out.CandidateCount)
	assert.Equal(t, "s-hdpe", out.Candidates[0].CounterpartID)
	assert.Equal(t, "PolyCo", out.Candidates[0].CompanyName)

	high := 0.99
	out, err = h.Execute(context.Background(), &Input{SourceListingID: "s-hdpe", MinSimilarity: &high})
	require.NoError(t, err)
	assert.Equal(t, 0, out.CandidateCount)
	assert.NotNil(t, out.Candidates)
}

func TestHandler_Execute_KnownDistanceOnlyFillsTopK(t *testing.T) {
	h := newTestHandler(t, testPool(), nil)

	out, err := h.Execute(context.Background(), &Input{SourceListingID: "s-hdpe", TopK: 2, KnownDistanceOnly: true})
	require.NoError(t, err)
	require.Len(t, out.Candidates, 2)
	for _, c := range out.Candidates {
		assert.False(t, c.DistanceUnknown)
		assert.NotEqual(t, "d-nowhere", c.CounterpartID)
	}
}

func TestHandler_Execute_TopKPrefersLocatedListings(t *testing.T) {
	h := newTestHandler(t, testPool(), nil)

	out, err := h.Execute(context.Background(), &Input{SourceListingID: "s-hdpe", TopK: 1})
	require.NoError(t, err)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "d-molder", out.Candidates[0].CounterpartID)
	assert.False(t, out.Candidates[0].DistanceUnknown)
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name    string
		pool    store.PoolSource
		input   *Input
		wantErr error
	}{
		{"unknown source id", testPool(), &Input{SourceListingID: "missing"}, apperrors.ErrNotFound},
		{"no source given", testPool(), &Input{}, apperrors.ErrValidation},
		{
			"invalid inline source",
			testPool(),
			&Input{SourceListing: &models.Listing{ID: "x", Role: "broker"}},
			apperrors.ErrValidation,
		},
		{
			"pool unavailable",
			failingPool{err: apperrors.NewQueryExecutionFailedError("list", errors.New("conn reset"))},
			&Input{SourceListing: &testPool()[0]},
			apperrors.ErrStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.pool, nil)
			_, err := h.Execute(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHandler_Execute_PublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: apperrors.NewEventPublishFailedError(messaging.SubjectMatchesRanked, errors.New("nats down"))}
	h := newTestHandler(t, testPool(), pub)

	out, err := h.Execute(context.Background(), &Input{SourceListingID: "s-hdpe"})
	require.NoError(t, err)
	assert.Equal(t, 3, out.CandidateCount)
	assert.Len(t, pub.events, 1)
}

func TestInputSchema(t *testing.T) {
	tests := []struct {
		name  string
		vars  string
		valid bool
	}{
		{"by id", `{"sourceListingId":"s-1"}`, true},
		{"inline", `{"sourceListing":{"id":"s-1","role":"supply"}}`, true},
		{"neither", `{"topK":3}`, false},
		{"negative topK", `{"sourceListingId":"s-1","topK":-1}`, false},
		{"bad role", `{"sourceListing":{"id":"s-1","role":"seller"}}`, false},
		{"similarity above one", `{"sourceListingId":"s-1","minSimilarity":1.5}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.ValidateJobInput(TaskType, inputSchema, tt.vars)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrValidation)
			}
		})
	}
}

type failingPool struct{ err error }

func (f failingPool) Pool(context.Context) ([]models.Listing, error)       { return nil, f.err }
func (f failingPool) Get(context.Context, string) (*models.Listing, error) { return nil, f.err }
