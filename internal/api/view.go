package api

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-forest/internal/browsermap"
	"github.com/joeblew999/plat-forest/internal/humastar"
	"github.com/joeblew999/plat-forest/internal/mapview"
	"github.com/joeblew999/plat-forest/internal/service"
)

// ViewBody is the view status with the actions its state allows.
type ViewBody struct {
	service.ViewStatus
}

// Actions lists what can be done to the view in its current state.
func (b ViewBody) Actions() []humastar.Action {
	var out []humastar.Action
	if b.Mounted {
		out = append(out, humastar.Action{Rel: "flush", Href: "/api/v1/view/flush", Method: "POST", Title: "Apply pending updates"})
	}
	if iso := b.Context.CountryISO; iso != "" {
		out = append(out,
			humastar.Action{Rel: "stats", Href: fmt.Sprintf("/api/v1/countries/%s/stats", iso), Method: "GET", Title: "Loss history"},
			humastar.Action{Rel: "simulate", Href: fmt.Sprintf("/api/v1/countries/%s/simulate", iso), Method: "POST", Title: "Project loss"},
		)
	}
	return out
}

type ViewOutput struct {
	Body ViewBody
}

func viewOutput(st service.ViewStatus) *ViewOutput {
	return &ViewOutput{Body: ViewBody{st}}
}

type SetLayersInput struct {
	Body struct {
		Layers []string `json:"layers" doc:"Overlay ids to show; replaces the current set" example:"[\"tree-loss\",\"fire-alerts\"]"`
	}
}

type SetLayersBody struct {
	Status  service.ViewStatus `json:"status"`
	Unknown []string           `json:"unknown" doc:"Requested ids missing from the catalog; they are ignored"`
}

type SetGeometryInput struct {
	RawBody []byte `contentType:"application/geo+json" doc:"GeoJSON Polygon, MultiPolygon or Feature; null clears the boundary"`
}

type SetContextInput struct {
	Body struct {
		CountryISO string `json:"countryIso,omitempty" pattern:"^[A-Za-z]{3}$" doc:"ISO 3166-1 alpha-3 code" example:"BRA"`
		Year       int    `json:"year,omitempty" minimum:"2000" maximum:"2100" doc:"Selected year" example:"2023"`
	}
}

type SelectCountryInput struct {
	ISO  string `path:"iso" pattern:"^[A-Za-z]{3}$" doc:"ISO 3166-1 alpha-3 code" example:"BRA"`
	Year int    `query:"year" minimum:"2000" maximum:"2100" default:"2023" doc:"Year shown by context-dependent layers"`
}

type FlushOutput struct {
	Body mapview.FlushResult
}

type StreamInput struct {
	Container string `query:"container" default:"map" doc:"DOM id of the map element"`
}

// RegisterView registers the hosted map view routes.
func (h *APIHandler) RegisterView(api huma.API) {
	huma.Get(api, "/api/v1/view", h.GetView, huma.OperationTags("view"))
	huma.Put(api, "/api/v1/view/layers", h.PutViewLayers, huma.OperationTags("view"))
	huma.Put(api, "/api/v1/view/geometry", h.PutViewGeometry, huma.OperationTags("view"))
	huma.Put(api, "/api/v1/view/context", h.PutViewContext, huma.OperationTags("view"))
	huma.Put(api, "/api/v1/view/country/{iso}", h.PutViewCountry, huma.OperationTags("view"))
	huma.Post(api, "/api/v1/view/flush", h.PostViewFlush, huma.OperationTags("view"))
	huma.Get(api, "/api/v1/view/stream", h.GetViewStream, huma.OperationTags("view"))
	huma.Get(api, "/api/v1/view/events", h.GetViewEvents, huma.OperationTags("view"))
	huma.Post(api, "/api/v1/view/signals", h.PostViewSignals, huma.OperationTags("view"))
}

func (h *APIHandler) view() (*service.ViewHost, error) {
	if h.svc == nil || h.svc.View == nil {
		return nil, huma.Error503ServiceUnavailable("view host not available")
	}
	return h.svc.View, nil
}

func (h *APIHandler) GetView(ctx context.Context, input *struct{}) (*ViewOutput, error) {
	host, err := h.view()
	if err != nil {
		return nil, err
	}
	return viewOutput(host.Status()), nil
}

func (h *APIHandler) PutViewLayers(ctx context.Context, input *SetLayersInput) (*struct{ Body SetLayersBody }, error) {
	host, err := h.view()
	if err != nil {
		return nil, err
	}
	if err := host.SetLayers(input.Body.Layers); err != nil {
		return nil, toHumaError(err)
	}
	unknown := []string{}
	for _, id := range mapview.NewLayerSet(input.Body.Layers...).Sorted() {
		if !host.Catalog().Has(id) {
			unknown = append(unknown, id)
		}
	}
	return &struct{ Body SetLayersBody }{Body: SetLayersBody{Status: host.Status(), Unknown: unknown}}, nil
}

func (h *APIHandler) PutViewGeometry(ctx context.Context, input *SetGeometryInput) (*ViewOutput, error) {
	host, err := h.view()
	if err != nil {
		return nil, err
	}
	if err := host.SetGeoJSON(input.RawBody); err != nil {
		return nil, toHumaError(err)
	}
	return viewOutput(host.Status()), nil
}

func (h *APIHandler) PutViewContext(ctx context.Context, input *SetContextInput) (*ViewOutput, error) {
	host, err := h.view()
	if err != nil {
		return nil, err
	}
	if err := host.SetContext(input.Body.CountryISO, input.Body.Year); err != nil {
		return nil, toHumaError(err)
	}
	return viewOutput(host.Status()), nil
}

func (h *APIHandler) PutViewCountry(ctx context.Context, input *SelectCountryInput) (*ViewOutput, error) {
	host, err := h.view()
	if err != nil {
		return nil, err
	}
	if h.svc.Store == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	if _, err := host.SelectCountry(ctx, input.ISO, input.Year); err != nil {
		return nil, toHumaError(err)
	}
	return viewOutput(host.Status()), nil
}

func (h *APIHandler) PostViewFlush(ctx context.Context, input *struct{}) (*FlushOutput, error) {
	host, err := h.view()
	if err != nil {
		return nil, err
	}
	res, err := host.Flush()
	if err != nil {
		return nil, toHumaError(err)
	}
	return &FlushOutput{Body: res}, nil
}

// GetViewStream mounts a browser map for the connecting page and streams
// its map commands as Datastar events until the page goes away or another
// page takes over the view.
func (h *APIHandler) GetViewStream(ctx context.Context, input *StreamInput) (*huma.StreamResponse, error) {
	host, err := h.view()
	if err != nil {
		return nil, err
	}
	return humastar.Stream(func(sse humastar.SSE) {
		reqCtx := sse.Request.Context()

		engine := browsermap.New()
		gen, err := host.Mount(engine, input.Container)
		if err != nil {
			_ = sse.Error(err.Error())
			return
		}
		defer host.Unmount(gen)

		_ = sse.Signals(map[string]any{"mapGeneration": gen, "error": ""})
		if err := engine.Stream(reqCtx, browsermap.DatastarSender(reqCtx, sse.ServerSentEventGenerator)); err != nil && reqCtx.Err() == nil {
			_ = sse.Error(err.Error())
		}
	}), nil
}

// GetViewEvents streams view changes to the UI via SSE.
func (h *APIHandler) GetViewEvents(ctx context.Context, input *struct{}) (*huma.StreamResponse, error) {
	host, err := h.view()
	if err != nil {
		return nil, err
	}
	return humastar.Stream(func(sse humastar.SSE) {
		ch := host.Bus().Subscribe()
		defer host.Bus().Unsubscribe(ch)

		for {
			select {
			case <-sse.Done():
				return
			case ev := <-ch:
				if err := sse.DispatchCustomEvent("view-changed", ev); err != nil {
					return
				}
				if err := statusSignals(sse, host.Status()); err != nil {
					return
				}
			}
		}
	}), nil
}

// PostViewSignals applies the page's view signals: viewDesired replaces the
// wanted overlays, and countryIso with year selects a stored country (or
// only sets the context when no database is configured). It answers with
// the resulting status as signals.
func (h *APIHandler) PostViewSignals(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	host, err := h.view()
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	var applyErr error
	if signals.Has("viewDesired") {
		applyErr = host.SetLayers(signals.Strings("viewDesired"))
	}
	if iso := signals.String("countryIso"); applyErr == nil && iso != "" {
		year := signals.Int("year")
		if h.svc.Store != nil {
			_, applyErr = host.SelectCountry(ctx, iso, year)
		} else {
			applyErr = host.SetContext(iso, year)
		}
	}

	return humastar.Stream(func(sse humastar.SSE) {
		if applyErr != nil {
			_ = sse.Error(applyErr.Error())
			return
		}
		_ = statusSignals(sse, host.Status())
	}), nil
}

func statusSignals(sse humastar.SSE, st service.ViewStatus) error {
	return browsermap.Status(sse.ServerSentEventGenerator, map[string]any{
		"viewLayers":  st.Layers,
		"viewPending": st.Pending,
		"error":       st.LastError,
	})
}
