package mapview

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
)

// Observer receives a callback for every applied pass. Implementations must
// not call back into the controller.
type Observer interface {
	ObserveReconcile(r Report, elapsed time.Duration)
	ObserveFit(outcome FitOutcome)
	ObserveFlushError(err error)
}

// Options configures a Controller.
type Options struct {
	Fit FitOptions

	// FrameInterval is the coalescing window. The first update after a flush
	// arms a timer for this long; everything set before it fires is applied
	// in one pass. Zero disables the timer and leaves flushing to the caller.
	FrameInterval time.Duration

	Clock    clockwork.Clock
	Logger   zerolog.Logger
	Observer Observer

	// OnFlush is called, with the controller locked, after every pass that
	// changed something.
	OnFlush func(FlushResult)
}

// FlushResult describes one applied pass.
type FlushResult struct {
	Report  Report      `json:"report"`
	Fit     *FitResult  `json:"-"`
	Context ViewContext `json:"context"`
}

// Changed reports whether the pass touched the view.
func (r FlushResult) Changed() bool {
	return !r.Report.Empty() || r.Fit != nil
}

// Snapshot is the controller's applied and pending state.
type Snapshot struct {
	State       State        `json:"-"`
	Desired     []string     `json:"desired"`
	Layers      []string     `json:"layers"`
	Context     ViewContext  `json:"context"`
	Geometry    orb.Geometry `json:"-"`
	HasBoundary bool         `json:"hasBoundary"`
	Pending     bool         `json:"pending"`
}

// Controller is the facade the UI drives. Setters record the wanted state;
// a flush applies the latest of it to the session in a single pass, layers
// first, then the boundary.
type Controller struct {
	mu         sync.Mutex
	session    *Session
	reconciler *Reconciler
	fitter     *BoundaryFitter
	catalog    *Catalog
	opts       Options
	clock      clockwork.Clock
	log        zerolog.Logger

	pendingLayers   LayerSet
	layersDirty     bool
	pendingGeometry orb.Geometry
	geometryDirty   bool
	pendingContext  ViewContext

	appliedLayers   LayerSet
	appliedGeometry orb.Geometry
	geometryApplied bool
	appliedContext  ViewContext

	timer    clockwork.Timer
	timerGen int
	tornDown bool
	lastErr  error
}

// NewController creates a controller for session. The session must not be
// used by anything else afterwards.
func NewController(session *Session, catalog *Catalog, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Controller{
		session:       session,
		reconciler:    NewReconciler(catalog, opts.Logger),
		fitter:        NewBoundaryFitter(opts.Fit, opts.Logger),
		catalog:       catalog,
		opts:          opts,
		clock:         opts.Clock,
		log:           opts.Logger,
		pendingLayers: NewLayerSet(),
		appliedLayers: NewLayerSet(),
	}
}

// Mount initialises the session in container and applies whatever state
// was recorded before it.
func (c *Controller) Mount(container string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tornDown {
		return fmt.Errorf("mount after teardown: %w", ErrInvalidState)
	}
	if err := c.session.Init(container); err != nil {
		return err
	}
	c.log.Info().Str("container", container).Msg("map view mounted")

	c.layersDirty = true
	_, err := c.flushLocked()
	return err
}

// SetDesiredLayers records the overlay ids the UI wants visible.
func (c *Controller) SetDesiredLayers(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return
	}
	c.pendingLayers = NewLayerSet(ids...)
	c.layersDirty = true
	c.scheduleLocked()
}

// SetGeometry records the country boundary; nil clears it.
func (c *Controller) SetGeometry(g orb.Geometry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return
	}
	c.pendingGeometry = g
	c.geometryDirty = true
	c.scheduleLocked()
}

// SetContext records the country and year the view shows. Context-dependent
// overlays are re-attached on the next flush when it changes.
func (c *Controller) SetContext(countryISO string, year int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return
	}
	c.pendingContext = ViewContext{CountryISO: strings.ToUpper(strings.TrimSpace(countryISO)), Year: year}
	c.scheduleLocked()
}

// Flush applies pending state now. Before Mount it does nothing and keeps
// the pending state for Mount to apply.
func (c *Controller) Flush() (FlushResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

// Teardown cancels any scheduled flush and disposes the session. It is safe
// before Mount and safe to call more than once.
func (c *Controller) Teardown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return nil
	}
	c.tornDown = true
	c.stopTimerLocked()

	wasActive := c.session.State() == StateActive
	err := c.session.Dispose()
	if wasActive {
		c.log.Info().Msg("map view torn down")
	}
	return err
}

// Applied returns the last applied state.
func (c *Controller) Applied() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, hasBoundary := c.session.Boundary()
	return Snapshot{
		State:       c.session.State(),
		Desired:     c.appliedLayers.Sorted(),
		Layers:      c.session.ActiveIDs(),
		Context:     c.appliedContext,
		Geometry:    c.appliedGeometry,
		HasBoundary: hasBoundary,
		Pending:     c.layersDirty || c.geometryDirty || c.pendingContext != c.appliedContext,
	}
}

// LastError returns the error of the most recent failed flush, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) scheduleLocked() {
	if c.opts.FrameInterval <= 0 || c.timer != nil {
		return
	}
	c.timerGen++
	gen := c.timerGen
	c.timer = c.clock.AfterFunc(c.opts.FrameInterval, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.timerGen || c.tornDown {
			return
		}
		_, _ = c.flushLocked()
	})
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
}

func (c *Controller) flushLocked() (FlushResult, error) {
	c.stopTimerLocked()
	if c.tornDown {
		return FlushResult{}, fmt.Errorf("flush after teardown: %w", ErrInvalidState)
	}
	if c.session.State() != StateActive {
		return FlushResult{}, nil
	}

	res := FlushResult{Context: c.pendingContext}
	contextChanged := c.pendingContext != c.appliedContext

	if c.layersDirty || contextChanged {
		var refresh LayerSet
		if contextChanged {
			refresh = c.contextDependent(c.session.ActiveIDs())
		}
		start := c.clock.Now()
		report, err := c.reconciler.ReconcileContext(c.pendingLayers, c.session, c.pendingContext, refresh)
		res.Report = report
		if err != nil {
			return res, c.failLocked(err)
		}
		if c.opts.Observer != nil {
			c.opts.Observer.ObserveReconcile(report, c.clock.Since(start))
		}
		c.appliedLayers = c.pendingLayers.Clone()
		c.appliedContext = c.pendingContext
		c.layersDirty = false
	}

	if c.geometryDirty {
		if !c.geometryApplied || !sameGeometry(c.pendingGeometry, c.appliedGeometry) {
			_, hadBoundary := c.session.Boundary()
			fit, err := c.fitter.ApplyGeometry(c.pendingGeometry, c.session)
			if err != nil {
				return res, c.failLocked(err)
			}
			// Clearing an absent boundary changed nothing.
			if fit.Outcome != OutcomeCleared || hadBoundary {
				res.Fit = &fit
				if c.opts.Observer != nil {
					c.opts.Observer.ObserveFit(fit.Outcome)
				}
			}
		}
		c.appliedGeometry = c.pendingGeometry
		c.geometryApplied = true
		c.geometryDirty = false
	}

	c.lastErr = nil
	if res.Changed() && c.opts.OnFlush != nil {
		c.opts.OnFlush(res)
	}
	return res, nil
}

func (c *Controller) failLocked(err error) error {
	c.lastErr = err
	c.log.Error().Err(err).Msg("map view flush failed")
	if c.opts.Observer != nil {
		c.opts.Observer.ObserveFlushError(err)
	}
	return err
}

func (c *Controller) contextDependent(ids []string) LayerSet {
	out := NewLayerSet()
	for _, id := range ids {
		if def, err := c.catalog.Lookup(id); err == nil && def.ContextDependent() {
			out[id] = struct{}{}
		}
	}
	return out
}

func sameGeometry(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return orb.Equal(a, b)
}
