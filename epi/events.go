package epi

import (
	"fmt"
	"math"
	"sort"
)

// Event is one compartment transition of one individual.
type Event struct {
	Individual int
	Kind       EventKind
	Time       float64
}

// EventHistory records, per individual, the time of each transition it has
// undergone. NaN marks a transition that never happened. Times are strictly
// positive and strictly increasing along the compartment chain; the state
// at time zero is the start compartment vector given at construction.
//
// Mutated only by the simulation engine (forward generation) and the MCMC
// sampler (latent-time proposals).
type EventHistory struct {
	variant Variant
	start   []Compartment
	// times[kind][individual]; NaN = never occurred
	times [3][]float64
}

// NewEventHistory creates an empty history over n individuals starting from
// the given compartment vector. Start compartments must be admissible under
// the variant.
func NewEventHistory(v Variant, start []Compartment) (*EventHistory, error) {
	if len(start) == 0 {
		return nil, fmt.Errorf("empty start compartment vector")
	}
	for i, c := range start {
		if !v.ValidStart(c) {
			return nil, fmt.Errorf("individual %d: start compartment %s not admissible under variant %s", i, c, v)
		}
	}
	h := &EventHistory{variant: v, start: append([]Compartment(nil), start...)}
	n := len(start)
	for k := range h.times {
		h.times[k] = make([]float64, n)
		for i := range h.times[k] {
			h.times[k][i] = math.NaN()
		}
	}
	return h, nil
}

// AllSusceptible returns a start vector of n susceptible individuals.
func AllSusceptible(n int) []Compartment {
	return make([]Compartment, n)
}

// Size returns the number of individuals covered.
func (h *EventHistory) Size() int { return len(h.start) }

// Variant returns the disease model variant of the history.
func (h *EventHistory) Variant() Variant { return h.variant }

// Start returns the initial compartment of individual i.
func (h *EventHistory) Start(i int) Compartment { return h.start[i] }

// Time returns the transition time of kind k for individual i, NaN if the
// transition never occurred.
func (h *EventHistory) Time(k EventKind, i int) float64 { return h.times[k][i] }

// SetTime records a transition time. Times must be strictly positive; the
// time-zero state is fixed by the start vector.
func (h *EventHistory) SetTime(k EventKind, i int, t float64) error {
	if !h.variant.HasKind(k) {
		return fmt.Errorf("individual %d: variant %s has no %s transition", i, h.variant, k)
	}
	if math.IsNaN(t) || t <= 0 {
		return fmt.Errorf("individual %d: %s time %v must be strictly positive", i, k, t)
	}
	h.times[k][i] = t
	return nil
}

// ClearTime erases the transition of kind k for individual i.
func (h *EventHistory) ClearTime(k EventKind, i int) {
	h.times[k][i] = math.NaN()
}

// Infected reports whether individual i underwent the transmission-caused
// transition (initial infectives do not count; they were never infected
// within the observed process).
func (h *EventHistory) Infected(i int) bool {
	return !math.IsNaN(h.times[h.variant.TransmissionKind()][i])
}

// CompartmentAt returns the compartment of individual i at simulated time
// t, applying transitions with times <= t on top of the start compartment.
func (h *EventHistory) CompartmentAt(i int, t float64) Compartment {
	c := h.start[i]
	for _, k := range h.variant.Kinds() {
		et := h.times[k][i]
		if !math.IsNaN(et) && et <= t {
			c = h.variant.After(k)
		}
	}
	return c
}

// infectiousStart returns the time individual i became infectious: zero for
// initial infectives, the Infection transition time otherwise (NaN if
// never).
func (h *EventHistory) infectiousStart(i int) float64 {
	if h.start[i] == Infectious {
		return 0
	}
	return h.times[Infection][i]
}

// EligibleInfector reports whether individual j can be the source of a
// transmission firing at time t: j must be infectious on the left limit of
// t, i.e. it became infectious strictly before t and was not removed
// before t.
func (h *EventHistory) EligibleInfector(j int, t float64) bool {
	s := h.infectiousStart(j)
	if math.IsNaN(s) || s >= t {
		return false
	}
	if h.variant.HasRemoved() {
		r := h.times[Removal][j]
		if !math.IsNaN(r) && r < t {
			return false
		}
	}
	return true
}

// Validate checks per-individual consistency: transition times strictly
// increasing along the compartment chain, no transition recorded out of
// sequence, and no transition recorded for an individual whose start
// compartment already lies past it. The first violation is reported with
// the individual index.
func (h *EventHistory) Validate() error {
	kinds := h.variant.Kinds()
	for i := range h.start {
		// prev is the time the individual entered its current compartment;
		// zero for the start compartment.
		prev := 0.0
		entered := h.start[i]
		for _, k := range kinds {
			t := h.times[k][i]
			past := h.variant.After(k) <= entered
			if past {
				if !math.IsNaN(t) {
					return fmt.Errorf("individual %d: %s time recorded but start compartment is already %s", i, k, entered)
				}
				continue
			}
			if math.IsNaN(t) {
				// Chain stops here; no later transition may be present.
				for _, later := range kinds {
					if later > k && !math.IsNaN(h.times[later][i]) {
						return fmt.Errorf("individual %d: %s time recorded without a %s time", i, later, k)
					}
				}
				break
			}
			if t <= prev {
				return fmt.Errorf("individual %d: %s time %v not after preceding transition at %v", i, k, t, prev)
			}
			prev = t
		}
	}
	return nil
}

// Sequence returns every recorded event sorted by (time, individual, kind).
// The tie-break by individual id then kind index fixes a total order for
// likelihood evaluation.
func (h *EventHistory) Sequence() []Event {
	var seq []Event
	for _, k := range h.variant.Kinds() {
		for i, t := range h.times[k] {
			if !math.IsNaN(t) {
				seq = append(seq, Event{Individual: i, Kind: k, Time: t})
			}
		}
	}
	sort.Slice(seq, func(a, b int) bool {
		if seq[a].Time != seq[b].Time {
			return seq[a].Time < seq[b].Time
		}
		if seq[a].Individual != seq[b].Individual {
			return seq[a].Individual < seq[b].Individual
		}
		return seq[a].Kind < seq[b].Kind
	})
	return seq
}

// Copy returns a deep copy for proposal snapshots.
func (h *EventHistory) Copy() *EventHistory {
	dup := &EventHistory{variant: h.variant, start: append([]Compartment(nil), h.start...)}
	for k := range h.times {
		dup.times[k] = append([]float64(nil), h.times[k]...)
	}
	return dup
}
