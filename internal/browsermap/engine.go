// Package browsermap drives a Leaflet map in the browser. Engine implements
// mapview.Engine by queueing map commands, and Stream delivers them to the
// page as Datastar custom events.
package browsermap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-forest/internal/mapview"
)

// EventName is the DOM event the page listens for.
const EventName = "map-command"

// Command operations.
const (
	OpMount      = "mount"
	OpAddTile    = "add-tile"
	OpAddOutline = "add-outline"
	OpRemove     = "remove"
	OpFit        = "fit"
	OpView       = "view"
	OpUnmount    = "unmount"
)

var (
	ErrNotMounted     = errors.New("map engine not mounted")
	ErrAlreadyMounted = errors.New("map engine already mounted")
	ErrUnknownHandle  = errors.New("unknown map handle")
)

// Outline is the wire form of a boundary outline.
type Outline struct {
	Geometry *geojson.Geometry `json:"geometry"`
	Color    string            `json:"color"`
	Weight   float64           `json:"weight"`
	Fill     bool              `json:"fill"`
}

// Command is one instruction for the page's map. Coordinates follow
// Leaflet order: bounds are [[south, west], [north, east]] and center is
// [lat, lng].
type Command struct {
	Seq       uint64             `json:"seq"`
	Op        string             `json:"op"`
	Handle    mapview.Handle     `json:"handle,omitempty"`
	Container string             `json:"container,omitempty"`
	Layer     *mapview.TileLayer `json:"layer,omitempty"`
	Outline   *Outline           `json:"outline,omitempty"`
	Bounds    *[2][2]float64     `json:"bounds,omitempty"`
	Padding   int                `json:"padding,omitempty"`
	MaxZoom   int                `json:"maxZoom,omitempty"`
	Center    *[2]float64        `json:"center,omitempty"`
	Zoom      int                `json:"zoom,omitempty"`
}

// Engine queues commands for one browser map. The queue is unbounded so
// the view never blocks on a slow page.
type Engine struct {
	mu      sync.Mutex
	queue   []Command
	seq     uint64
	ready   chan struct{}
	handles map[mapview.Handle]string
	mounted bool

	newHandle func() mapview.Handle
}

// New returns an unmounted engine.
func New() *Engine {
	return &Engine{
		ready:   make(chan struct{}, 1),
		handles: make(map[mapview.Handle]string),
		newHandle: func() mapview.Handle {
			return mapview.Handle(uuid.NewString())
		},
	}
}

func (e *Engine) pushLocked(cmd Command) {
	e.seq++
	cmd.Seq = e.seq
	e.queue = append(e.queue, cmd)
	select {
	case e.ready <- struct{}{}:
	default:
	}
}

func (e *Engine) issueLocked(kind string) mapview.Handle {
	h := e.newHandle()
	e.handles[h] = kind
	return h
}

func (e *Engine) Mount(container string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mounted {
		return ErrAlreadyMounted
	}
	e.mounted = true
	e.pushLocked(Command{Op: OpMount, Container: container})
	return nil
}

func (e *Engine) AddTileLayer(layer mapview.TileLayer) (mapview.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.mounted {
		return "", ErrNotMounted
	}
	h := e.issueLocked("tile")
	e.pushLocked(Command{Op: OpAddTile, Handle: h, Layer: &layer})
	return h, nil
}

func (e *Engine) AddOutline(o mapview.Outline) (mapview.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.mounted {
		return "", ErrNotMounted
	}
	if o.Geometry == nil {
		return "", fmt.Errorf("outline without geometry")
	}
	h := e.issueLocked("outline")
	e.pushLocked(Command{Op: OpAddOutline, Handle: h, Outline: &Outline{
		Geometry: geojson.NewGeometry(o.Geometry),
		Color:    o.Style.Color,
		Weight:   o.Style.Weight,
	}})
	return h, nil
}

func (e *Engine) Remove(h mapview.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.mounted {
		return ErrNotMounted
	}
	if _, ok := e.handles[h]; !ok {
		return fmt.Errorf("remove %s: %w", h, ErrUnknownHandle)
	}
	delete(e.handles, h)
	e.pushLocked(Command{Op: OpRemove, Handle: h})
	return nil
}

func (e *Engine) FitBounds(req mapview.FitRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.mounted {
		return ErrNotMounted
	}
	b := req.Bound
	e.pushLocked(Command{
		Op:      OpFit,
		Bounds:  &[2][2]float64{{b.Bottom(), b.Left()}, {b.Top(), b.Right()}},
		Padding: req.Padding,
		MaxZoom: req.MaxZoom,
	})
	return nil
}

func (e *Engine) SetView(v mapview.View) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.mounted {
		return ErrNotMounted
	}
	e.pushLocked(Command{Op: OpView, Center: &[2]float64{v.Center.Lat(), v.Center.Lon()}, Zoom: v.Zoom})
	return nil
}

func (e *Engine) Unmount() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.mounted {
		return ErrNotMounted
	}
	e.mounted = false
	e.handles = make(map[mapview.Handle]string)
	e.pushLocked(Command{Op: OpUnmount})
	return nil
}

// Ready is signalled whenever commands are queued.
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// Drain removes and returns every queued command in order.
func (e *Engine) Drain() []Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.queue
	e.queue = nil
	return out
}

// Live returns the number of handles the page currently holds.
func (e *Engine) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

// Stream delivers queued commands to send until ctx ends or the map is
// unmounted. It returns nil after delivering the unmount command.
func (e *Engine) Stream(ctx context.Context, send func(Command) error) error {
	for {
		for _, cmd := range e.Drain() {
			if err := send(cmd); err != nil {
				return fmt.Errorf("sending %s command: %w", cmd.Op, err)
			}
			if cmd.Op == OpUnmount {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.ready:
		}
	}
}

var _ mapview.Engine = (*Engine)(nil)
