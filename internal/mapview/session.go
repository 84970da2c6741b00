package mapview

import (
	"errors"
	"fmt"
	"sort"
)

// State is a session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session owns one live engine instance and every handle it has issued.
// Nothing else may add or remove engine resources for the view.
//
// Lifecycle: Uninitialized -Init-> Active -Dispose-> Disposed.
type Session struct {
	engine      Engine
	base        []TileLayer
	state       State
	baseHandles []Handle
	overlays    map[string]Handle
	boundary    Handle
	hasBoundary bool
}

// NewSession creates an uninitialized session over engine. The base layers
// (basemap and labels) are attached by Init and stay for the session's life.
func NewSession(engine Engine, base ...TileLayer) *Session {
	return &Session{
		engine:   engine,
		base:     base,
		overlays: make(map[string]Handle),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Init mounts the engine into container and attaches the base layers.
func (s *Session) Init(container string) error {
	if s.state != StateUninitialized {
		return fmt.Errorf("init on %s session: %w", s.state, ErrInvalidState)
	}
	if err := s.engine.Mount(container); err != nil {
		return fmt.Errorf("mounting engine: %w", err)
	}
	for _, layer := range s.base {
		layer.Base = true
		h, err := s.engine.AddTileLayer(layer)
		if err != nil {
			// Roll back what was mounted so the session stays re-initialisable.
			for _, added := range s.baseHandles {
				_ = s.engine.Remove(added)
			}
			s.baseHandles = nil
			_ = s.engine.Unmount()
			return fmt.Errorf("attaching base layer %q: %w", layer.Name, err)
		}
		s.baseHandles = append(s.baseHandles, h)
	}
	s.state = StateActive
	return nil
}

func (s *Session) requireActive(op string) error {
	if s.state != StateActive {
		return fmt.Errorf("%s on %s session: %w", op, s.state, ErrInvalidState)
	}
	return nil
}

// AttachOverlay creates a tile overlay from def and records it under id.
func (s *Session) AttachOverlay(id string, def LayerDefinition) (Handle, error) {
	if err := s.requireActive("attach overlay"); err != nil {
		return "", err
	}
	if _, exists := s.overlays[id]; exists {
		return "", fmt.Errorf("overlay %q: %w", id, ErrDuplicateLayer)
	}
	h, err := s.engine.AddTileLayer(TileLayer{
		Name:    id,
		URL:     def.TileURLTemplate,
		Opacity: def.Opacity,
		MaxZoom: def.MaxZoom,
	})
	if err != nil {
		return "", fmt.Errorf("adding overlay %q: %w", id, err)
	}
	s.overlays[id] = h
	return h, nil
}

// DetachOverlay removes the overlay attached under id.
func (s *Session) DetachOverlay(id string) error {
	if err := s.requireActive("detach overlay"); err != nil {
		return err
	}
	h, ok := s.overlays[id]
	if !ok {
		return fmt.Errorf("overlay %q: %w", id, ErrNotFound)
	}
	// Forget the handle even if the engine complains; it is no longer ours.
	delete(s.overlays, id)
	if err := s.engine.Remove(h); err != nil {
		return fmt.Errorf("removing overlay %q: %w", id, err)
	}
	return nil
}

// SetBoundary replaces the boundary outline with o.
func (s *Session) SetBoundary(o Outline) (Handle, error) {
	if err := s.ClearBoundary(); err != nil {
		return "", err
	}
	h, err := s.engine.AddOutline(o)
	if err != nil {
		return "", fmt.Errorf("adding boundary: %w", err)
	}
	s.boundary = h
	s.hasBoundary = true
	return h, nil
}

// ClearBoundary removes the boundary outline if there is one.
func (s *Session) ClearBoundary() error {
	if err := s.requireActive("clear boundary"); err != nil {
		return err
	}
	if !s.hasBoundary {
		return nil
	}
	h := s.boundary
	s.boundary, s.hasBoundary = "", false
	if err := s.engine.Remove(h); err != nil {
		return fmt.Errorf("removing boundary: %w", err)
	}
	return nil
}

// FitBounds forwards a viewport fit request to the engine.
func (s *Session) FitBounds(req FitRequest) error {
	if err := s.requireActive("fit bounds"); err != nil {
		return err
	}
	return s.engine.FitBounds(req)
}

// SetView moves the viewport to an explicit center and zoom.
func (s *Session) SetView(v View) error {
	if err := s.requireActive("set view"); err != nil {
		return err
	}
	return s.engine.SetView(v)
}

// ActiveIDs returns the ids of attached overlays, sorted.
func (s *Session) ActiveIDs() []string {
	ids := make([]string, 0, len(s.overlays))
	for id := range s.overlays {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Overlay returns the handle attached under id.
func (s *Session) Overlay(id string) (Handle, bool) {
	h, ok := s.overlays[id]
	return h, ok
}

// Boundary returns the boundary handle, if any.
func (s *Session) Boundary() (Handle, bool) {
	return s.boundary, s.hasBoundary
}

// Dispose releases every handle, unmounts the engine and moves the session
// to Disposed. Calling it again, or on a session that was never initialised,
// does nothing. Engine failures are reported but do not stop the teardown.
func (s *Session) Dispose() error {
	if s.state != StateActive {
		return nil
	}

	var errs []error
	for _, id := range s.ActiveIDs() {
		if err := s.engine.Remove(s.overlays[id]); err != nil {
			errs = append(errs, fmt.Errorf("removing overlay %q: %w", id, err))
		}
	}
	s.overlays = make(map[string]Handle)

	if s.hasBoundary {
		if err := s.engine.Remove(s.boundary); err != nil {
			errs = append(errs, fmt.Errorf("removing boundary: %w", err))
		}
		s.boundary, s.hasBoundary = "", false
	}

	for _, h := range s.baseHandles {
		if err := s.engine.Remove(h); err != nil {
			errs = append(errs, fmt.Errorf("removing base layer: %w", err))
		}
	}
	s.baseHandles = nil

	if err := s.engine.Unmount(); err != nil {
		errs = append(errs, fmt.Errorf("unmounting engine: %w", err))
	}
	s.state = StateDisposed
	return errors.Join(errs...)
}
