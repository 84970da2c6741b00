package humastar

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"countryIso":"BRA","year":2021,"viewDesired":["tree-loss",3,"fire-alerts"],"empty":""}`))
	require.NoError(t, err)

	assert.Equal(t, "BRA", s.String("countryIso"))
	assert.Equal(t, 2021, s.Int("year"))
	assert.Equal(t, []string{"tree-loss", "fire-alerts"}, s.Strings("viewDesired"))
	assert.True(t, s.Has("empty"))
	assert.False(t, s.Has("missing"))
	assert.Zero(t, s.Int("countryIso"))
	assert.Nil(t, s.Strings("year"))

	_, err = ParseSignals([]byte(`{`))
	assert.Error(t, err)

	in := SignalsInput{RawBody: []byte(`nope`)}
	_, err = in.MustParse()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.GetStatus())
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	p := Paginate(items, 2, 2)
	assert.Equal(t, []int{3, 4}, p.Data)
	assert.Equal(t, 5, p.Total)

	p = Paginate(items, 10, 2)
	assert.Empty(t, p.Data)
	assert.NotNil(t, p.Data)

	p = Paginate(items, 0, 0)
	assert.Equal(t, items, p.Data)
	assert.Equal(t, 5, p.Limit)

	p = Paginate([]int(nil), 0, 10)
	assert.Equal(t, []int{}, p.Data)
}

func TestPaginationLinks(t *testing.T) {
	p := PageBody[int]{Total: 25, Offset: 10, Limit: 10}
	assert.Equal(t, []string{
		`</c?offset=0&limit=10>; rel="first"`,
		`</c?offset=0&limit=10>; rel="prev"`,
		`</c?offset=20&limit=10>; rel="next"`,
		`</c?offset=20&limit=10>; rel="last"`,
	}, p.PaginationLinks("/c"))

	assert.Nil(t, PageBody[int]{}.PaginationLinks("/c"))
}

func TestActionLinkHeader(t *testing.T) {
	a := Action{Rel: "flush", Href: "/api/v1/view/flush", Method: "POST", Title: "Apply"}
	assert.Equal(t, `</api/v1/view/flush>; rel="flush"; method="POST"; title="Apply"`, a.LinkHeader())
	assert.Equal(t, `</x>; rel="self"`, Action{Rel: "self", Href: "/x"}.LinkHeader())
}

type actorBody struct {
	Open bool `json:"open"`
}

func (b actorBody) Actions() []Action {
	if !b.Open {
		return nil
	}
	return []Action{{Rel: "close", Href: "/thing/close", Method: "POST"}}
}

func TestLinkTransformer(t *testing.T) {
	cfg := huma.DefaultConfig("test", "1.0.0")
	cfg.Transformers = append(cfg.Transformers, LinkTransformer())
	_, api := humatest.New(t, cfg)

	huma.Get(api, "/thing", func(ctx context.Context, in *struct {
		Open bool `query:"open"`
	}) (*struct{ Body actorBody }, error) {
		return &struct{ Body actorBody }{Body: actorBody{Open: in.Open}}, nil
	})
	huma.Get(api, "/items", func(ctx context.Context, in *struct{}) (*struct{ Body PageBody[string] }, error) {
		return &struct{ Body PageBody[string] }{Body: Paginate([]string{"a", "b", "c"}, 0, 2)}, nil
	})

	resp := api.Get("/thing?open=true")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Values("Link"), `</thing/close>; rel="close"; method="POST"`)

	resp = api.Get("/thing")
	for _, l := range resp.Header().Values("Link") {
		assert.NotContains(t, l, `rel="close"`)
	}

	resp = api.Get("/items")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Values("Link"), `</items?offset=2&limit=2>; rel="next"`)
}
