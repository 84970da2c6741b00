package mapview

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// LayerSet is a set of layer ids.
type LayerSet map[string]struct{}

// NewLayerSet builds a set from ids. Empty ids are skipped.
func NewLayerSet(ids ...string) LayerSet {
	s := make(LayerSet, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Has reports whether id is in the set.
func (s LayerSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in sorted order.
func (s LayerSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold the same ids.
func (s LayerSet) Equal(o LayerSet) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

// Clone returns a copy of the set.
func (s LayerSet) Clone() LayerSet {
	out := make(LayerSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Report lists what a reconciliation pass changed. Every list is sorted.
type Report struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Unknown []string `json:"unknown"`
}

// Empty reports whether the pass attached or detached nothing.
func (r Report) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0
}

// Plan is the computed delta between desired and active overlays.
type Plan struct {
	Remove  []string
	Add     []string
	Unknown []string
}

// ComputePlan diffs desired against active. Ids in refresh that are both
// active and still desired are removed and added again so a changed
// definition replaces the old one.
func ComputePlan(desired LayerSet, active []string, catalog *Catalog, refresh LayerSet) Plan {
	activeSet := NewLayerSet(active...)
	var p Plan
	for _, id := range activeSet.Sorted() {
		if !desired.Has(id) || refresh.Has(id) {
			p.Remove = append(p.Remove, id)
		}
	}
	for _, id := range desired.Sorted() {
		switch {
		case !catalog.Has(id):
			p.Unknown = append(p.Unknown, id)
		case !activeSet.Has(id) || refresh.Has(id):
			p.Add = append(p.Add, id)
		}
	}
	return p
}

// Reconciler brings a session's overlays in line with a desired set.
type Reconciler struct {
	catalog *Catalog
	log     zerolog.Logger
}

// NewReconciler creates a reconciler over catalog.
func NewReconciler(catalog *Catalog, log zerolog.Logger) *Reconciler {
	return &Reconciler{catalog: catalog, log: log}
}

// Reconcile applies the minimal detach/attach sequence so that the session's
// overlays equal desired ∩ catalog. Unknown ids are reported, not fatal.
func (r *Reconciler) Reconcile(desired LayerSet, s *Session) (Report, error) {
	return r.ReconcileContext(desired, s, ViewContext{}, nil)
}

// ReconcileContext is Reconcile with templates expanded from vc. Ids in
// refresh are re-attached even when already active.
//
// All removals are applied before any addition. A bookkeeping error stops
// the pass and is returned with the partial report.
func (r *Reconciler) ReconcileContext(desired LayerSet, s *Session, vc ViewContext, refresh LayerSet) (Report, error) {
	plan := ComputePlan(desired, s.ActiveIDs(), r.catalog, refresh)
	report := Report{Unknown: plan.Unknown}

	if len(plan.Unknown) > 0 {
		r.log.Warn().Strs("unknown", plan.Unknown).Msg("ignoring layers missing from catalog")
	}

	for _, id := range plan.Remove {
		if err := s.DetachOverlay(id); err != nil {
			return report, fmt.Errorf("reconcile: %w", err)
		}
		report.Removed = append(report.Removed, id)
	}

	for _, id := range plan.Add {
		def, err := r.catalog.Lookup(id)
		if err != nil {
			return report, fmt.Errorf("reconcile: %w", err)
		}
		if _, err := s.AttachOverlay(id, def.Expand(vc)); err != nil {
			return report, fmt.Errorf("reconcile: %w", err)
		}
		report.Added = append(report.Added, id)
	}

	r.log.Debug().
		Strs("added", report.Added).
		Strs("removed", report.Removed).
		Msg("overlays reconciled")
	return report, nil
}
