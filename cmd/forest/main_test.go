package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(t *testing.T) *Options {
	t.Helper()
	return &Options{
		Host:         "localhost",
		Port:         8087,
		DataDir:      t.TempDir(),
		FitPadding:   20,
		FitMaxZoom:   8,
		FallbackZoom: 3,
	}
}

func TestNewServerAppliesFitOptions(t *testing.T) {
	opts := testOptions(t)
	opts.FitPadding = 1

	s, err := newServer(opts, zerolog.Nop(), true)
	require.NoError(t, err)
	defer s.Close()
	assert.NotNil(t, s.OpenAPI())
}

func TestNewServerRejectsZeroFitSettings(t *testing.T) {
	for _, tc := range []struct {
		name string
		set  func(*Options)
	}{
		{"fit-padding", func(o *Options) { o.FitPadding = 0 }},
		{"fit-max-zoom", func(o *Options) { o.FitMaxZoom = 0 }},
		{"fallback-zoom", func(o *Options) { o.FallbackZoom = -2 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			opts := testOptions(t)
			tc.set(opts)
			_, err := newServer(opts, zerolog.Nop(), true)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "--"+tc.name)
		})
	}
}
