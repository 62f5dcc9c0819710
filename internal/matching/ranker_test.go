package matching

import (
	"testing"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offset returns a point roughly km kilometres north of origin.
func offset(origin models.Coordinate, km float64) *models.Coordinate {
	return &models.Coordinate{Lat: origin.Lat + km/111.195, Lng: origin.Lng}
}

var origin = models.Coordinate{Lat: 29.7604, Lng: -95.3698}

func listing(id string, role models.Role, at *models.Coordinate, shares ...map[string]float64) models.Listing {
	l := models.Listing{
		ID:       id,
		Role:     role,
		Company:  models.CompanyRef{ID: "co-" + id, Name: "Company " + id},
		Location: models.Location{Coordinates: at},
	}
	for i, s := range shares {
		l.Materials = append(l.Materials, models.MaterialLine{
			Name:    id + "-line-" + string(rune('a'+i)),
			Profile: models.NewProfile(s),
		})
	}
	return l
}

func TestRank_HDPEOverlapBeatsCloserGlass(t *testing.T) {
	source := listing("src", models.RoleSupply, &origin, map[string]float64{"HDPE": 0.9, "Additives": 0.1})
	pool := []models.Listing{
		listing("glass", models.RoleDemand, offset(origin, 10), map[string]float64{"Glass": 1.0}),
		listing("hdpe", models.RoleDemand, offset(origin, 50), map[string]float64{"HDPE": 0.8, "PET": 0.2}),
	}

	got, err := Rank(source, pool, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "hdpe", got[0].CounterpartID)
	assert.Equal(t, "glass", got[1].CounterpartID)
	assert.Greater(t, got[0].BlendedScore, got[1].BlendedScore)
	assert.InDelta(t, 50, got[0].DistanceKm, 0.5)
	assert.Equal(t, 0.0, got[1].CompositionSimilarity)
	assert.Equal(t, "src", got[0].Supply.ID)
	assert.Equal(t, "hdpe", got[0].Demand.ID)
}

func TestRank_RoleExclusion(t *testing.T) {
	source := listing("src", models.RoleSupply, &origin, map[string]float64{"HDPE": 1})
	pool := []models.Listing{
		listing("s1", models.RoleSupply, &origin, map[string]float64{"HDPE": 1}),
		listing("s2", models.RoleSupply, nil, map[string]float64{"HDPE": 0.5}),
	}

	got, err := Rank(source, pool, DefaultOptions())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRank_EmptyPool(t *testing.T) {
	source := listing("src", models.RoleDemand, nil, map[string]float64{"CaO": 60})

	got, err := Rank(source, nil, DefaultOptions())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRank_DemandSourceFillsSupplySide(t *testing.T) {
	source := listing("need", models.RoleDemand, &origin, map[string]float64{"CaO": 60, "SiO2": 20})
	pool := []models.Listing{
		listing("slag", models.RoleSupply, offset(origin, 100), map[string]float64{"CaO": 45, "SiO2": 25, "Fe2O3": 15}),
		listing("need", models.RoleSupply, &origin, map[string]float64{"CaO": 60, "SiO2": 20}),
	}

	got, err := Rank(source, pool, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 1, "listing sharing the source id is never a candidate")
	assert.Equal(t, "slag", got[0].Supply.ID)
	assert.Equal(t, "need", got[0].Demand.ID)
	assert.Equal(t, "slag-line-a", got[0].SupplyMaterial)
	assert.Equal(t, "need-line-a", got[0].DemandMaterial)
}

func TestRank_DeterministicTieBreak(t *testing.T) {
	source := listing("src", models.RoleSupply, nil, map[string]float64{"Fe": 1})
	pool := []models.Listing{
		listing("d-c", models.RoleDemand, nil, map[string]float64{"Fe": 1}),
		listing("d-a", models.RoleDemand, nil, map[string]float64{"Fe": 1}),
		listing("d-b", models.RoleDemand, nil, map[string]float64{"Fe": 1}),
		listing("d-0", models.RoleDemand, nil, map[string]float64{"Cu": 1}),
	}

	first, err := Rank(source, pool, DefaultOptions())
	require.NoError(t, err)
	second, err := Rank(source, pool, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	ids := make([]string, len(first))
	for i, c := range first {
		ids[i] = c.CounterpartID
	}
	assert.Equal(t, []string{"d-a", "d-b", "d-c", "d-0"}, ids)
}

func TestRank_MissingCoordinateFlagged(t *testing.T) {
	source := listing("src", models.RoleSupply, &origin, map[string]float64{"Fe": 1})
	pool := []models.Listing{
		listing("far", models.RoleDemand, offset(origin, 400), map[string]float64{"Fe": 1}),
		listing("nowhere", models.RoleDemand, nil, map[string]float64{"Fe": 1}),
	}

	got, err := Rank(source, pool, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "nowhere", got[0].CounterpartID)
	assert.True(t, got[0].DistanceUnknown)
	assert.Equal(t, 0.0, got[0].DistanceKm)
	assert.False(t, got[1].DistanceUnknown)

	known := KnownDistance(got)
	require.Len(t, known, 1)
	assert.Equal(t, "far", known[0].CounterpartID)
}

func TestUnknownDistanceLast(t *testing.T) {
	source := listing("src", models.RoleSupply, &origin, map[string]float64{"Fe": 1})
	pool := []models.Listing{
		listing("near", models.RoleDemand, offset(origin, 50), map[string]float64{"Fe": 0.5, "Cu": 0.5}),
		listing("nowhere-a", models.RoleDemand, nil, map[string]float64{"Fe": 1}),
		listing("far", models.RoleDemand, offset(origin, 400), map[string]float64{"Fe": 1}),
		listing("nowhere-b", models.RoleDemand, nil, map[string]float64{"Fe": 0.9, "Cu": 0.1}),
	}

	ranked, err := Rank(source, pool, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, "nowhere-a", ranked[0].CounterpartID)

	got := UnknownDistanceLast(ranked)
	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.CounterpartID
	}
	assert.Equal(t, []string{"far", "near", "nowhere-a", "nowhere-b"}, ids)
	assert.Equal(t, "nowhere-a", ranked[0].CounterpartID, "input slice must not be reordered")
	assert.Empty(t, UnknownDistanceLast(nil))
}

func TestRank_MaxOverMaterialLines(t *testing.T) {
	source := listing("src", models.RoleSupply, nil,
		map[string]float64{"Glass": 1},
		map[string]float64{"HDPE": 0.9, "Additives": 0.1},
	)
	pool := []models.Listing{
		listing("multi", models.RoleDemand, nil,
			map[string]float64{"PET": 1},
			map[string]float64{"HDPE": 0.9, "Additives": 0.1},
		),
	}

	got, err := Rank(source, pool, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].CompositionSimilarity)
	assert.Equal(t, "src-line-b", got[0].SupplyMaterial)
	assert.Equal(t, "multi-line-b", got[0].DemandMaterial)
}

func TestRank_TopKAndMinSimilarity(t *testing.T) {
	source := listing("src", models.RoleSupply, nil, map[string]float64{"A": 0.5, "B": 0.5})
	pool := []models.Listing{
		listing("full", models.RoleDemand, nil, map[string]float64{"A": 0.5, "B": 0.5}),
		listing("half", models.RoleDemand, nil, map[string]float64{"A": 1}),
		listing("none", models.RoleDemand, nil, map[string]float64{"C": 1}),
	}

	opts := DefaultOptions()
	opts.TopK = 2
	got, err := Rank(source, pool, opts)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "full", got[0].CounterpartID)
	assert.Equal(t, "half", got[1].CounterpartID)

	opts = DefaultOptions()
	opts.MinSimilarity = 0.01
	got, err = Rank(source, pool, opts)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRank_DoesNotMutateInputs(t *testing.T) {
	source := listing("src", models.RoleSupply, &origin, map[string]float64{"hdpe ": 0.5, "HDPE": 0.4})
	pool := []models.Listing{
		listing("b", models.RoleDemand, offset(origin, 5), map[string]float64{"HDPE": 90}),
		listing("a", models.RoleDemand, nil, map[string]float64{"PET": 1}),
	}

	_, err := Rank(source, pool, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "b", pool[0].ID)
	assert.Equal(t, 90.0, pool[0].Materials[0].Profile.Components["HDPE"])
	assert.Len(t, source.Materials[0].Profile.Components, 2)
}

func TestRank_FailsFast(t *testing.T) {
	good := listing("src", models.RoleSupply, nil, map[string]float64{"A": 1})

	t.Run("invalid weights", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Weights.WeightDistance = -1
		_, err := Rank(good, nil, opts)
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	})

	t.Run("negative top k", func(t *testing.T) {
		opts := DefaultOptions()
		opts.TopK = -3
		_, err := Rank(good, nil, opts)
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	})

	t.Run("source without role", func(t *testing.T) {
		bad := good
		bad.Role = ""
		_, err := Rank(bad, nil, DefaultOptions())
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("invalid counterpart profile", func(t *testing.T) {
		pool := []models.Listing{listing("d", models.RoleDemand, nil, map[string]float64{"A": -1})}
		_, err := Rank(good, pool, DefaultOptions())
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("invalid same-role listing is skipped before validation", func(t *testing.T) {
		pool := []models.Listing{listing("s", models.RoleSupply, nil, map[string]float64{"A": -1})}
		got, err := Rank(good, pool, DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("untagged rejected in strict mode", func(t *testing.T) {
		opts := DefaultOptions()
		opts.RequireExplicitUnit = true
		_, err := Rank(good, nil, opts)
		assert.ErrorIs(t, err, &apperrors.StandardError{Code: apperrors.ErrCodeAmbiguousUnit})
	})
}
