package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-forest/internal/analytics"
	"github.com/joeblew999/plat-forest/internal/db"
	"github.com/joeblew999/plat-forest/internal/mapview"
	"github.com/joeblew999/plat-forest/internal/service"
)

// toHumaError maps domain errors to HTTP status errors.
func toHumaError(err error) error {
	switch {
	case errors.Is(err, mapview.ErrNotFound), errors.Is(err, db.ErrCountryNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, mapview.ErrInvalidState), errors.Is(err, service.ErrNoView):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrMalformedJSON):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, analytics.ErrTargetYear), errors.Is(err, analytics.ErrNoHistory):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}
