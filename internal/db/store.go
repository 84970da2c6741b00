package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-forest/internal/analytics"
)

// ErrCountryNotFound is returned for an ISO code with no stored country.
var ErrCountryNotFound = errors.New("country not found")

// Country is a stored country with its baseline figures and boundary.
type Country struct {
	ISO          string
	Name         string
	AreaHa       float64
	ForestAreaHa float64
	EmissionsMg  float64
	Geometry     orb.Geometry
}

// CountrySummary is a country row with the span of its observations.
type CountrySummary struct {
	ISO          string  `json:"iso" example:"BRA"`
	Name         string  `json:"name" example:"Brazil"`
	ForestAreaHa float64 `json:"forestAreaHa"`
	Years        int     `json:"years" doc:"Number of observed years"`
	FirstYear    int     `json:"firstYear,omitempty"`
	LastYear     int     `json:"lastYear,omitempty"`
}

// Store reads and writes countries and loss observations.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open, migrated connection.
func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// NormalizeISO upper-cases and trims an ISO code.
func NormalizeISO(iso string) string {
	return strings.ToUpper(strings.TrimSpace(iso))
}

// UpsertCountry inserts c or replaces the stored row with the same ISO.
func (s *Store) UpsertCountry(ctx context.Context, c Country) error {
	c.ISO = NormalizeISO(c.ISO)
	if c.ISO == "" {
		return fmt.Errorf("country iso is required")
	}

	var geom sql.NullString
	if c.Geometry != nil {
		data, err := geojson.NewGeometry(c.Geometry).MarshalJSON()
		if err != nil {
			return fmt.Errorf("encoding %s geometry: %w", c.ISO, err)
		}
		geom = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO countries (iso, name, area_ha, forest_area_ha, emissions_mg, geometry)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ISO, c.Name, c.AreaHa, c.ForestAreaHa, c.EmissionsMg, geom)
	if err != nil {
		return fmt.Errorf("upserting country %s: %w", c.ISO, err)
	}
	return nil
}

// AddObservations stores obs for iso, replacing existing years.
func (s *Store) AddObservations(ctx context.Context, iso string, obs []analytics.Observation) error {
	iso = NormalizeISO(iso)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO loss_observations (iso, year, loss_ha) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range obs {
		if o.LossHa < 0 {
			return fmt.Errorf("%s %d: negative loss %v", iso, o.Year, o.LossHa)
		}
		if _, err := stmt.ExecContext(ctx, iso, o.Year, o.LossHa); err != nil {
			return fmt.Errorf("storing %s %d: %w", iso, o.Year, err)
		}
	}
	return tx.Commit()
}

// Country loads a country by ISO code.
func (s *Store) Country(ctx context.Context, iso string) (Country, error) {
	iso = NormalizeISO(iso)
	var (
		c    Country
		geom sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT iso, name, area_ha, forest_area_ha, emissions_mg, geometry FROM countries WHERE iso = ?`, iso).
		Scan(&c.ISO, &c.Name, &c.AreaHa, &c.ForestAreaHa, &c.EmissionsMg, &geom)
	if errors.Is(err, sql.ErrNoRows) {
		return Country{}, fmt.Errorf("%s: %w", iso, ErrCountryNotFound)
	}
	if err != nil {
		return Country{}, fmt.Errorf("loading country %s: %w", iso, err)
	}

	if geom.Valid && geom.String != "" {
		g, err := geojson.UnmarshalGeometry([]byte(geom.String))
		if err != nil {
			return Country{}, fmt.Errorf("decoding %s geometry: %w", iso, err)
		}
		c.Geometry = g.Geometry()
	}
	return c, nil
}

// Series returns the observations for iso, oldest first.
func (s *Store) Series(ctx context.Context, iso string) ([]analytics.Observation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT year, loss_ha FROM loss_observations WHERE iso = ? ORDER BY year`, NormalizeISO(iso))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []analytics.Observation
	for rows.Next() {
		var o analytics.Observation
		if err := rows.Scan(&o.Year, &o.LossHa); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Countries lists every stored country ordered by name.
func (s *Store) Countries(ctx context.Context) ([]CountrySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.iso, c.name, c.forest_area_ha,
		       COUNT(o.year), COALESCE(MIN(o.year), 0), COALESCE(MAX(o.year), 0)
		FROM countries c
		LEFT JOIN loss_observations o ON o.iso = c.iso
		GROUP BY c.iso, c.name, c.forest_area_ha
		ORDER BY c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CountrySummary{}
	for rows.Next() {
		var cs CountrySummary
		if err := rows.Scan(&cs.ISO, &cs.Name, &cs.ForestAreaHa, &cs.Years, &cs.FirstYear, &cs.LastYear); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// Baseline loads everything a simulation needs for iso.
func (s *Store) Baseline(ctx context.Context, iso string) (analytics.Baseline, error) {
	c, err := s.Country(ctx, iso)
	if err != nil {
		return analytics.Baseline{}, err
	}
	hist, err := s.Series(ctx, c.ISO)
	if err != nil {
		return analytics.Baseline{}, err
	}
	return analytics.Baseline{
		ISO:          c.ISO,
		Name:         c.Name,
		AreaHa:       c.AreaHa,
		ForestAreaHa: c.ForestAreaHa,
		EmissionsMg:  c.EmissionsMg,
		History:      hist,
	}, nil
}
