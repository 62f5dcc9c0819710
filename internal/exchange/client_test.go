package exchange

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoCompaniesJSON = `[
  {"id": 1, "name": "Texas Steel Manufacturing", "type": "producer", "industry": "Steel",
   "location": {"address": "1 Mill Rd", "city": "Houston", "state": "TX", "zip": "77002", "coordinates": {"lat": 29.76, "lng": -95.37}},
   "contact": {"name": "A", "title": "B", "email": "c@example.com", "phone": "1"},
   "waste_stream": {"material": "Steel Slag", "category": "Metal Byproduct", "quantity_tons_year": 15000,
                    "composition": {"CaO": 45, "SiO2": 25}, "current_disposal": {"method": "landfill", "cost_per_ton": 35}}},
  {"id": "tx-cement-002", "name": "Lone Star Cement", "type": "consumer", "industry": "Cement",
   "location": {"address": "2 Kiln Ave", "city": "Dallas", "state": "TX", "zip": "75201", "coordinates": {"lat": 32.78, "lng": -96.8}},
   "contact": {"name": "D", "title": "E", "email": "f@example.com", "phone": "2"},
   "material_needs": {"material": "Calcium Oxide Source", "category": "Raw Material", "quantity_tons_year": 20000,
                      "composition_needed": {"CaO": 60, "SiO2": 20}, "current_sourcing": {"primary_source": "quarry", "cost_per_ton": 48}}}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}, logger.NewTestLogger(t))
	require.NoError(t, err)
	return c
}

func validAnalyzeRequest() *AnalyzeRequest {
	qty, cost := 15000.0, 35.0
	return &AnalyzeRequest{
		CompanyA: Party{
			ID: "1", Name: "Texas Steel Manufacturing", Latitude: 29.76, Longitude: -95.37,
			WasteStreams: []PartyMaterial{{Name: "Steel Slag", Composition: map[string]float64{"CaO": 0.45, "SiO2": 0.25}}},
			Quantity:     &qty, DisposalCost: &cost,
		},
		CompanyB: Party{
			ID: "2", Name: "Lone Star Cement", Latitude: 32.78, Longitude: -96.8,
			Needs: []PartyMaterial{{Name: "Calcium Oxide Source", Composition: map[string]float64{"CaO": 0.6, "SiO2": 0.2}}},
		},
	}
}

func TestNewClient_Config(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{BaseURL: "http://localhost:8001"}, false},
		{"https with path", Config{BaseURL: "https://api.example.com/v1/", Timeout: time.Second}, false},
		{"empty", Config{}, true},
		{"no scheme", Config{BaseURL: "localhost:8001"}, true},
		{"ftp", Config{BaseURL: "ftp://example.com"}, true},
		{"negative timeout", Config{BaseURL: "http://localhost", Timeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.cfg, nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, c.BaseURL())
		})
	}
}

func TestClient_DemoCompanies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, PathDemoCompanies, r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, demoCompaniesJSON)
	})

	companies, err := c.DemoCompanies(context.Background())
	require.NoError(t, err)
	require.Len(t, companies, 2)
	assert.Equal(t, models.FlexibleID("1"), companies[0].ID)
	assert.Equal(t, models.FlexibleID("tx-cement-002"), companies[1].ID)
	assert.Equal(t, 48.0, companies[1].MaterialNeeds.CurrentSourcing.CostPerTon)
}

func TestClient_Analyze(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathAnalyze, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Steel Slag", req.CompanyA.WasteStreams[0].Name)
		assert.Equal(t, 35.0, *req.CompanyA.DisposalCost)

		io.WriteString(w, `{"compatibility_score": 82, "chemical_notes": "High CaO content suits clinker feed.",
			"co2_reduction_tons": 1200.5, "cost_savings_usd": 525000, "regulatory_notes": "TCEQ notification required."}`)
	})

	resp, err := c.Analyze(context.Background(), validAnalyzeRequest())
	require.NoError(t, err)
	assert.Equal(t, 82, resp.CompatibilityScore)
	assert.Equal(t, 1200.5, resp.CO2ReductionTons)
	assert.Contains(t, resp.RegulatoryNotes, "TCEQ")
}

func TestClient_AnalyzeValidatesBeforeSending(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	tests := []struct {
		name   string
		mutate func(r *AnalyzeRequest)
	}{
		{"missing id", func(r *AnalyzeRequest) { r.CompanyA.ID = "" }},
		{"latitude out of range", func(r *AnalyzeRequest) { r.CompanyB.Latitude = 120 }},
		{"negative share", func(r *AnalyzeRequest) { r.CompanyA.WasteStreams[0].Composition["CaO"] = -1 }},
		{"no waste streams", func(r *AnalyzeRequest) { r.CompanyA.WasteStreams = nil }},
		{"no needs", func(r *AnalyzeRequest) { r.CompanyB.Needs = nil }},
		{"negative disposal cost", func(r *AnalyzeRequest) { v := -2.0; r.CompanyA.DisposalCost = &v }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validAnalyzeRequest()
			tt.mutate(req)
			_, err := c.Analyze(context.Background(), req)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	_, err := c.Analyze(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.False(t, called)
}

func TestClient_Ask(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req AskRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Can fly ash replace cement?", req.Question)
		io.WriteString(w, `{"answer": "Partially, up to 30% in most mixes."}`)
	})

	answer, err := c.Ask(context.Background(), "  Can fly ash replace cement? ")
	require.NoError(t, err)
	assert.Equal(t, "Partially, up to 30% in most mixes.", answer)

	_, err = c.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestClient_ErrorKinds(t *testing.T) {
	t.Run("service rejected with body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"detail":"company_a.latitude must be <= 90"}`)
		})

		_, err := c.Health(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrService)
		assert.NotErrorIs(t, err, apperrors.ErrTransport)
		assert.Equal(t, http.StatusUnprocessableEntity, apperrors.StatusCode(err))

		stdErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeServiceRejected, stdErr.Code)
		assert.Contains(t, stdErr.Details, "latitude")
	})

	t.Run("server failure", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})

		_, err := c.Matches(context.Background())
		stdErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeServiceFailed, stdErr.Code)
		assert.True(t, stdErr.Retryable)
	})

	t.Run("malformed body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"status": `)
		})

		_, err := c.Health(context.Background())
		assert.ErrorIs(t, err, &apperrors.StandardError{Code: apperrors.ErrCodeMalformedResponse})
		assert.ErrorIs(t, err, apperrors.ErrService)
	})

	t.Run("score out of range is malformed", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"compatibility_score": 140}`)
		})

		_, err := c.Analyze(context.Background(), validAnalyzeRequest())
		assert.ErrorIs(t, err, &apperrors.StandardError{Code: apperrors.ErrCodeMalformedResponse})
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		c, err := NewClient(Config{BaseURL: url, Timeout: time.Second}, nil)
		require.NoError(t, err)

		_, err = c.Health(context.Background())
		assert.ErrorIs(t, err, apperrors.ErrTransport)
		assert.NotErrorIs(t, err, apperrors.ErrService)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		t.Cleanup(srv.Close)
		t.Cleanup(func() { close(release) })

		c, err := NewClient(Config{BaseURL: srv.URL}, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = c.Health(ctx)
		assert.ErrorIs(t, err, apperrors.ErrTransport)
		assert.ErrorIs(t, err, &apperrors.StandardError{Code: apperrors.ErrCodeServiceTimeout})
	})
}

func TestClient_PartiesAndSeed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == PathParties:
			io.WriteString(w, `[{"id":"p1","name":"Acme","latitude":1,"longitude":2,"needs":[{"name":"Glass","composition":{"SiO2":0.7}}]}]`)
		case r.Method == http.MethodPost && r.URL.Path == PathParties:
			var p Party
			require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			json.NewEncoder(w).Encode(p)
		case r.Method == http.MethodPost && r.URL.Path == PathLoadSampleData:
			io.WriteString(w, `{"message":"Sample data loaded","count":10}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	parties, err := c.ListParties(ctx)
	require.NoError(t, err)
	require.Len(t, parties, 1)
	assert.Equal(t, "Glass", parties[0].Needs[0].Name)

	saved, err := c.UpsertParty(ctx, parties[0])
	require.NoError(t, err)
	assert.Equal(t, "p1", saved.ID)

	_, err = c.UpsertParty(ctx, Party{Name: "no id"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	res, err := c.LoadSampleData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Count)
}
