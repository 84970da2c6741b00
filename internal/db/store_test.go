//go:build integration

// Integration tests against an in-memory DuckDB (requires cgo).
//
// Run: go test -tags=integration ./internal/db/
package db

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-forest/internal/analytics"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	conn, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewStore(conn)
}

func TestStoreCountryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	poly := orb.Polygon{{{-60, -10}, {-50, -10}, {-50, 0}, {-60, 0}, {-60, -10}}}
	require.NoError(t, s.UpsertCountry(ctx, Country{
		ISO: "bra", Name: "Brazil", AreaHa: 851e6, ForestAreaHa: 490e6, EmissionsMg: 1.2e9, Geometry: poly,
	}))

	c, err := s.Country(ctx, "BRA")
	require.NoError(t, err)
	assert.Equal(t, "BRA", c.ISO)
	assert.Equal(t, "Brazil", c.Name)
	assert.Equal(t, 490e6, c.ForestAreaHa)
	assert.True(t, orb.Equal(poly, c.Geometry))

	require.NoError(t, s.UpsertCountry(ctx, Country{ISO: "BRA", Name: "Brasil"}))
	c, err = s.Country(ctx, "bra")
	require.NoError(t, err)
	assert.Equal(t, "Brasil", c.Name)
	assert.Nil(t, c.Geometry)

	_, err = s.Country(ctx, "XXX")
	assert.ErrorIs(t, err, ErrCountryNotFound)
}

func TestStoreSeriesAndSummaries(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.UpsertCountry(ctx, Country{ISO: "IDN", Name: "Indonesia", ForestAreaHa: 90e6}))
	require.NoError(t, s.UpsertCountry(ctx, Country{ISO: "GBR", Name: "United Kingdom"}))
	require.NoError(t, s.AddObservations(ctx, "idn", []analytics.Observation{
		{Year: 2021, LossHa: 200}, {Year: 2020, LossHa: 100},
	}))
	require.NoError(t, s.AddObservations(ctx, "IDN", []analytics.Observation{{Year: 2021, LossHa: 250}}))

	hist, err := s.Series(ctx, "IDN")
	require.NoError(t, err)
	assert.Equal(t, []analytics.Observation{{Year: 2020, LossHa: 100}, {Year: 2021, LossHa: 250}}, hist)

	list, err := s.Countries(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, CountrySummary{ISO: "IDN", Name: "Indonesia", ForestAreaHa: 90e6, Years: 2, FirstYear: 2020, LastYear: 2021}, list[0])
	assert.Equal(t, 0, list[1].Years)

	b, err := s.Baseline(ctx, "IDN")
	require.NoError(t, err)
	assert.Len(t, b.History, 2)

	err = s.AddObservations(ctx, "IDN", []analytics.Observation{{Year: 2022, LossHa: -1}})
	assert.Error(t, err)

	tables, err := Tables(s.db)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"countries", "loss_observations"}, tables)
}
