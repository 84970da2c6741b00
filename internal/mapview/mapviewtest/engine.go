// Package mapviewtest provides an in-memory mapview.Engine that records
// every call, for tests.
package mapviewtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/joeblew999/plat-forest/internal/mapview"
)

// Op is one recorded engine call.
type Op struct {
	Kind   string // mount, add-tile, add-outline, remove, fit, view, unmount
	Name   string // layer name for add-tile, container for mount
	URL    string // expanded template for add-tile
	Handle mapview.Handle
	Fit    mapview.FitRequest
	View   mapview.View
}

func (o Op) String() string {
	if o.Name != "" {
		return o.Kind + ":" + o.Name
	}
	return o.Kind
}

// ErrInjected is returned by calls configured to fail.
var ErrInjected = errors.New("injected engine failure")

// Engine records calls and tracks live handles.
type Engine struct {
	mu      sync.Mutex
	ops     []Op
	live    map[mapview.Handle]string
	next    int
	mounted bool

	// FailAdd makes AddTileLayer fail for these layer names.
	FailAdd map[string]bool
	// FailRemove makes every Remove fail.
	FailRemove bool
}

// New returns an empty recording engine.
func New() *Engine {
	return &Engine{live: make(map[mapview.Handle]string)}
}

func (e *Engine) record(op Op) {
	e.ops = append(e.ops, op)
}

func (e *Engine) handle(name string) mapview.Handle {
	e.next++
	h := mapview.Handle(fmt.Sprintf("h%d", e.next))
	e.live[h] = name
	return h
}

func (e *Engine) Mount(container string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(Op{Kind: "mount", Name: container})
	e.mounted = true
	return nil
}

func (e *Engine) AddTileLayer(layer mapview.TileLayer) (mapview.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailAdd[layer.Name] {
		return "", ErrInjected
	}
	h := e.handle(layer.Name)
	e.record(Op{Kind: "add-tile", Name: layer.Name, URL: layer.URL, Handle: h})
	return h, nil
}

func (e *Engine) AddOutline(o mapview.Outline) (mapview.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.handle("boundary")
	e.record(Op{Kind: "add-outline", Handle: h})
	return h, nil
}

func (e *Engine) Remove(h mapview.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	name, ok := e.live[h]
	if !ok {
		return fmt.Errorf("unknown handle %q", h)
	}
	delete(e.live, h)
	e.record(Op{Kind: "remove", Name: name, Handle: h})
	if e.FailRemove {
		return ErrInjected
	}
	return nil
}

func (e *Engine) FitBounds(req mapview.FitRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(Op{Kind: "fit", Fit: req})
	return nil
}

func (e *Engine) SetView(v mapview.View) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(Op{Kind: "view", View: v})
	return nil
}

func (e *Engine) Unmount() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(Op{Kind: "unmount"})
	e.mounted = false
	return nil
}

// Ops returns a copy of the recorded calls.
func (e *Engine) Ops() []Op {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Op, len(e.ops))
	copy(out, e.ops)
	return out
}

// Kinds returns the recorded calls as "kind" or "kind:name" strings.
func (e *Engine) Kinds() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.ops))
	for i, op := range e.ops {
		out[i] = op.String()
	}
	return out
}

// Reset forgets the recorded calls but keeps live handles.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ops = nil
}

// Live returns the number of handles issued and not yet removed.
func (e *Engine) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.live)
}

// Mounted reports whether the engine is mounted.
func (e *Engine) Mounted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mounted
}

var _ mapview.Engine = (*Engine)(nil)
