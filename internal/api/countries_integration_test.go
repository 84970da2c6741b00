//go:build integration

// Integration tests for the country routes against an in-memory DuckDB
// (requires cgo).
//
// Run: go test -tags=integration ./internal/api/
package api_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-forest/internal/analytics"
	"github.com/joeblew999/plat-forest/internal/api"
	"github.com/joeblew999/plat-forest/internal/db"
	"github.com/joeblew999/plat-forest/internal/humastar"
	"github.com/joeblew999/plat-forest/internal/mapview/mapviewtest"
	"github.com/joeblew999/plat-forest/internal/service"
)

func seededServices(t *testing.T) *api.Services {
	t.Helper()
	conn, err := db.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	store := db.NewStore(conn)

	ctx := context.Background()
	require.NoError(t, store.UpsertCountry(ctx, db.Country{
		ISO: "BRA", Name: "Brazil", AreaHa: 851e6, ForestAreaHa: 490e6, EmissionsMg: 1.2e9,
		Geometry: orb.Polygon{{{-74, -34}, {-34, -34}, {-34, 5}, {-74, 5}, {-74, -34}}},
	}))
	require.NoError(t, store.UpsertCountry(ctx, db.Country{ISO: "GBR", Name: "United Kingdom", ForestAreaHa: 3e6}))
	require.NoError(t, store.AddObservations(ctx, "BRA", []analytics.Observation{
		{Year: 2019, LossHa: 1000}, {Year: 2020, LossHa: 1200}, {Year: 2021, LossHa: 900},
		{Year: 2022, LossHa: 1500}, {Year: 2023, LossHa: 1100},
	}))

	cat, err := service.LoadCatalog("")
	require.NoError(t, err)
	host := service.NewViewHost(service.ViewConfig{Catalog: cat, Logger: zerolog.Nop(), Countries: store})
	return &api.Services{View: host, Store: store, DB: conn}
}

func TestCountriesList(t *testing.T) {
	tapi := newTestAPI(t, seededServices(t))

	resp := tapi.Get("/api/v1/countries?limit=1")
	require.Equal(t, http.StatusOK, resp.Code)
	page := decode[humastar.PageBody[db.CountrySummary]](t, resp.Body.Bytes())
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "BRA", page.Data[0].ISO)
	assert.Contains(t, resp.Header().Values("Link"), `</api/v1/countries?offset=1&limit=1>; rel="next"`)
}

func TestCountryStats(t *testing.T) {
	tapi := newTestAPI(t, seededServices(t))

	resp := tapi.Get("/api/v1/countries/bra/stats")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[api.StatsBody](t, resp.Body.Bytes())
	assert.Equal(t, "BRA", body.ISO)
	assert.Len(t, body.Observations, 5)
	assert.Equal(t, 5700.0, body.TotalLossHa)
	require.NotNil(t, body.Peak)
	assert.Equal(t, 2022, body.Peak.Year)
	assert.True(t, body.HasBoundary)
	assert.Len(t, body.Velocity, 4)

	assert.Equal(t, http.StatusNotFound, tapi.Get("/api/v1/countries/XXX/stats").Code)
}

func TestCountrySimulate(t *testing.T) {
	tapi := newTestAPI(t, seededServices(t))

	resp := tapi.Post("/api/v1/countries/BRA/simulate", map[string]any{"forestLossPercent": 1, "targetYear": 2030})
	require.Equal(t, http.StatusOK, resp.Code)
	res := decode[analytics.Result](t, resp.Body.Bytes())
	assert.Equal(t, 2030, res.TargetYear)
	assert.InDelta(t, 4.9e6, res.Scenario.TotalLossHa, 1)
	assert.Equal(t, "plausible", res.Comparison.Realism)

	resp = tapi.Post("/api/v1/countries/BRA/simulate", map[string]any{"forestLossPercent": 1, "targetYear": 2020})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = tapi.Post("/api/v1/countries/GBR/simulate", map[string]any{"forestLossPercent": 1, "targetYear": 2030})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code, "no history to project from")
}

func TestSelectCountryDrawsBoundary(t *testing.T) {
	svc := seededServices(t)
	eng := mapviewtest.New()
	_, err := svc.View.Mount(eng, "map")
	require.NoError(t, err)
	eng.Reset()

	tapi := newTestAPI(t, svc)
	resp := tapi.Put("/api/v1/view/country/bra?year=2022")
	require.Equal(t, http.StatusOK, resp.Code)
	st := decode[service.ViewStatus](t, resp.Body.Bytes())
	assert.Equal(t, "BRA", st.Context.CountryISO)
	assert.True(t, st.Boundary)
	assert.Equal(t, []string{"add-outline", "fit"}, eng.Kinds())

	resp = tapi.Put("/api/v1/view/country/XXX")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = tapi.Get("/api/v1/db/tables")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "loss_observations")
}

