package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-forest/internal/analytics"
	"github.com/joeblew999/plat-forest/internal/db"
	"github.com/joeblew999/plat-forest/internal/humastar"
)

type ISOInput struct {
	ISO string `path:"iso" pattern:"^[A-Za-z]{3}$" doc:"ISO 3166-1 alpha-3 code" example:"BRA"`
}

type ListCountriesInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Index of the first country returned"`
	Limit  int `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Page size"`
}

type CountriesOutput struct {
	Body humastar.PageBody[db.CountrySummary]
}

// StatsBody is a country's observed loss with derived history figures.
type StatsBody struct {
	ISO          string                  `json:"iso"`
	Name         string                  `json:"name"`
	AreaHa       float64                 `json:"areaHa"`
	ForestAreaHa float64                 `json:"forestAreaHa"`
	Observations []analytics.Observation `json:"observations"`
	TotalLossHa  float64                 `json:"totalLossHa"`
	Peak         *analytics.Observation  `json:"peak,omitempty"`
	Decades      []analytics.Decade      `json:"decades"`
	Velocity     []analytics.Change      `json:"velocity"`
	HasBoundary  bool                    `json:"hasBoundary"`
}

type SimulateInput struct {
	ISOInput
	Body struct {
		ForestLossPercent float64 `json:"forestLossPercent" minimum:"0" maximum:"100" doc:"Share of forest lost by the target year, in percent" example:"10"`
		TargetYear        int     `json:"targetYear" minimum:"2001" maximum:"2100" doc:"Year the loss is reached" example:"2030"`
	}
}

type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"List of table names"`
	}
}

// RegisterCountries registers country data and simulation routes.
func (h *APIHandler) RegisterCountries(api huma.API) {
	huma.Get(api, "/api/v1/countries", h.ListCountries, huma.OperationTags("countries"))
	huma.Get(api, "/api/v1/countries/{iso}/stats", h.GetCountryStats, huma.OperationTags("countries"))
	huma.Post(api, "/api/v1/countries/{iso}/simulate", h.SimulateCountry, huma.OperationTags("countries"))
	huma.Get(api, "/api/v1/db/tables", h.ListTables, huma.OperationTags("db"))
}

func (h *APIHandler) store() (*db.Store, error) {
	if h.svc == nil || h.svc.Store == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	return h.svc.Store, nil
}

func (h *APIHandler) ListCountries(ctx context.Context, input *ListCountriesInput) (*CountriesOutput, error) {
	s, err := h.store()
	if err != nil {
		return nil, err
	}
	list, err := s.Countries(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list countries", err)
	}
	return &CountriesOutput{Body: humastar.Paginate(list, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) GetCountryStats(ctx context.Context, input *ISOInput) (*struct{ Body StatsBody }, error) {
	s, err := h.store()
	if err != nil {
		return nil, err
	}
	c, err := s.Country(ctx, input.ISO)
	if err != nil {
		return nil, toHumaError(err)
	}
	hist, err := s.Series(ctx, c.ISO)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to load observations", err)
	}

	body := StatsBody{
		ISO:          c.ISO,
		Name:         c.Name,
		AreaHa:       c.AreaHa,
		ForestAreaHa: c.ForestAreaHa,
		Observations: hist,
		Decades:      analytics.Decades(hist),
		Velocity:     analytics.Velocity(hist),
		HasBoundary:  c.Geometry != nil,
	}
	if body.Observations == nil {
		body.Observations = []analytics.Observation{}
	}
	for _, o := range hist {
		body.TotalLossHa += o.LossHa
	}
	if p, ok := analytics.Peak(hist); ok {
		body.Peak = &p
	}
	return &struct{ Body StatsBody }{Body: body}, nil
}

func (h *APIHandler) SimulateCountry(ctx context.Context, input *SimulateInput) (*struct{ Body analytics.Result }, error) {
	s, err := h.store()
	if err != nil {
		return nil, err
	}
	b, err := s.Baseline(ctx, input.ISO)
	if err != nil {
		return nil, toHumaError(err)
	}
	res, err := analytics.Simulate(b, input.Body.ForestLossPercent/100, input.Body.TargetYear)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &struct{ Body analytics.Result }{Body: res}, nil
}

// ListTables returns all DuckDB tables.
func (h *APIHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.svc == nil || h.svc.DB == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	tables, err := db.Tables(h.svc.DB)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	out := &TablesOutput{}
	out.Body.Tables = tables
	if out.Body.Tables == nil {
		out.Body.Tables = []string{}
	}
	return out, nil
}
