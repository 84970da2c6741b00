package server

import _ "embed"

// viewerPage is the Leaflet page that replays map commands from
// /api/v1/view/stream.
//
//go:embed viewer.html
var viewerPage []byte
