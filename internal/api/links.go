package api

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-forest/internal/humastar"
)

// links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/layers>; rel="layers"`,
		`</api/v1/view>; rel="view"`,
		`</api/v1/countries>; rel="countries"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/layers>; rel="layers"`,
	},
	"/api/v1/layers": {
		`</api/v1/view>; rel="view"`,
	},
	"/api/v1/layers/{id}": {
		`</api/v1/layers>; rel="collection"`,
	},
	"/api/v1/view": {
		`</api/v1/layers>; rel="layers"`,
		`</api/v1/view/stream>; rel="stream"`,
		`</api/v1/view/events>; rel="events"`,
	},
	"/api/v1/countries": {
		`</api/v1/view>; rel="view"`,
	},
	"/api/v1/countries/{iso}/stats": {
		`</api/v1/countries>; rel="collection"`,
	},
	"/api/v1/db/tables": {
		`</api/v1/countries>; rel="countries"`,
	},
}

// Transformers returns the response transformers the API is served with.
func Transformers() []huma.Transformer {
	return []huma.Transformer{LinkTransformer(), humastar.LinkTransformer()}
}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link headers.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		// Item endpoints get a self link
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		// Country endpoints point at each other and at the map selection.
		if iso := ctx.Param("iso"); iso != "" && strings.HasPrefix(op.Path, "/api/v1/countries/") {
			ctx.AppendHeader("Link", fmt.Sprintf(`</api/v1/countries/%s/stats>; rel="stats"`, iso))
			ctx.AppendHeader("Link", fmt.Sprintf(`</api/v1/countries/%s/simulate>; rel="simulate"`, iso))
			ctx.AppendHeader("Link", fmt.Sprintf(`</api/v1/view/country/%s>; rel="select"`, iso))
		}

		return v, nil
	}
}
