package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoCompanies = `[
  {
    "id": 1,
    "name": "Gulf Steel",
    "type": "producer",
    "industry": "Steel",
    "location": {"city": "Houston", "state": "TX", "coordinates": {"lat": 29.7604, "lng": -95.3698}},
    "waste_stream": {"material": "Blast furnace slag", "category": "slag", "quantity_tons_year": 5000,
      "composition": {"CaO": 40, "SiO2": 35, "Al2O3": 10}}
  },
  {
    "id": 2,
    "name": "Lone Star Cement",
    "type": "consumer",
    "industry": "Cement",
    "location": {"city": "Dallas", "state": "TX", "coordinates": {"lat": 32.7767, "lng": -96.797}},
    "material_needs": {"material": "Calcium feedstock", "category": "slag", "quantity_tons_year": 3000,
      "composition_needed": {"CaO": 45, "SiO2": 30}}
  },
  {
    "id": 3,
    "name": "Broken Record",
    "type": "producer"
  }
]`

const baseConfig = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: circ_exchange
    user: exchange
`

func newFakeExchange(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`{"status":"ok","message":"running","version":"1.0.0"}`))
		case "/companies/demo":
			_, _ = w.Write([]byte(demoCompanies))
		case "/ask/":
			_, _ = w.Write([]byte(`{"answer":"Slag can replace part of the clinker."}`))
		case "/analyze/":
			_, _ = w.Write([]byte(`{"compatibility_score":82,"chemical_notes":"CaO rich","co2_reduction_tons":120.5,"cost_savings_usd":40000}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(baseConfig), 0o600))
	companies := filepath.Join(dir, "companies.json")
	require.NoError(t, os.WriteFile(companies, []byte(demoCompanies), 0o600))

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	full := append([]string{"exchange-cli", "--config", cfgPath, "--companies-file", companies}, args...)
	err := app.Run(full)
	return out.String(), err
}

func TestFacets(t *testing.T) {
	out, err := run(t, "facets")
	require.NoError(t, err)

	var got struct {
		Listings  int      `json:"listings"`
		Materials []string `json:"materials"`
		Locations []string `json:"locations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.Listings)
	assert.Equal(t, []string{"Blast furnace slag", "Calcium feedstock"}, got.Materials)
	assert.Equal(t, []string{"Dallas, TX", "Houston, TX"}, got.Locations)
}

func TestSearch(t *testing.T) {
	out, err := run(t, "search", "--role", "demand", "--location", "tx")
	require.NoError(t, err)

	var got struct {
		Count    int `json:"count"`
		Listings []struct {
			ID string `json:"id"`
		} `json:"listings"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, 1, got.Count)
	assert.Equal(t, "2", got.Listings[0].ID)

	_, err = run(t, "search", "--role", "broker")
	assert.Error(t, err)
}

func TestRank(t *testing.T) {
	out, err := run(t, "rank", "--id", "1", "--top-k", "5")
	require.NoError(t, err)

	var got struct {
		SourceListingID string `json:"sourceListingId"`
		Candidates      []struct {
			CounterpartID string  `json:"counterpartId"`
			DistanceKm    float64 `json:"distanceKm"`
		} `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "1", got.SourceListingID)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "2", got.Candidates[0].CounterpartID)
	assert.InDelta(t, 362, got.Candidates[0].DistanceKm, 5)

	_, err = run(t, "rank", "--id", "missing")
	assert.Error(t, err)

	_, err = run(t, "rank", "--id", "1", "--min-similarity", "1.5")
	assert.Error(t, err)
}

func TestExchangeCommands(t *testing.T) {
	srv := newFakeExchange(t)

	out, err := run(t, "--base-url", srv.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "ok"`)

	out, err = run(t, "--base-url", srv.URL, "ask", "Can", "slag", "replace", "clinker?")
	require.NoError(t, err)
	assert.Contains(t, out, "Slag can replace part of the clinker.")

	_, err = run(t, "--base-url", srv.URL, "ask")
	assert.Error(t, err)

	out, err = run(t, "--base-url", srv.URL, "analyze", "--supply", "1", "--demand", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "82")

	out, err = run(t, "--base-url", srv.URL, "seed", "--dry-run")
	require.NoError(t, err)
	var listings []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &listings))
	assert.Len(t, listings, 2)
}
