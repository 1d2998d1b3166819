package epi

import "fmt"

// TransmissionNetwork assigns each infection to its cause: an external
// spark or one specific internal source. internal[j][i] = true means j
// caused i's transmission event; external[i] = true means i was sparked
// from outside the population. Every individual with a recorded
// transmission event has exactly one cause; everyone else has none.
type TransmissionNetwork struct {
	external []bool
	internal [][]bool
}

// NewTransmissionNetwork creates an empty network over n individuals.
func NewTransmissionNetwork(n int) *TransmissionNetwork {
	tn := &TransmissionNetwork{
		external: make([]bool, n),
		internal: make([][]bool, n),
	}
	for j := range tn.internal {
		tn.internal[j] = make([]bool, n)
	}
	return tn
}

// Size returns the number of individuals covered.
func (tn *TransmissionNetwork) Size() int { return len(tn.external) }

// External reports whether i's infection was an external spark.
func (tn *TransmissionNetwork) External(i int) bool { return tn.external[i] }

// Internal reports whether j caused i's infection.
func (tn *TransmissionNetwork) Internal(j, i int) bool { return tn.internal[j][i] }

// Source returns i's internal infector, if any.
func (tn *TransmissionNetwork) Source(i int) (int, bool) {
	for j := range tn.internal {
		if tn.internal[j][i] {
			return j, true
		}
	}
	return 0, false
}

// SetExternal marks i's infection as externally sparked, clearing any
// previous cause.
func (tn *TransmissionNetwork) SetExternal(i int) {
	tn.Clear(i)
	tn.external[i] = true
}

// SetSource marks j as the infector of i, clearing any previous cause.
func (tn *TransmissionNetwork) SetSource(j, i int) {
	tn.Clear(i)
	tn.internal[j][i] = true
}

// Clear removes any recorded cause for i.
func (tn *TransmissionNetwork) Clear(i int) {
	tn.external[i] = false
	for j := range tn.internal {
		tn.internal[j][i] = false
	}
}

// causeCount returns the number of causes recorded for i across the
// external flag and the internal column.
func (tn *TransmissionNetwork) causeCount(i int) int {
	n := 0
	if tn.external[i] {
		n++
	}
	for j := range tn.internal {
		if tn.internal[j][i] {
			n++
		}
	}
	return n
}

// Validate checks the network against an event history: exactly one cause
// for every individual with a recorded transmission event, no cause for
// anyone else, and every internal source infectious strictly before the
// time it infects its target.
func (tn *TransmissionNetwork) Validate(h *EventHistory) error {
	if tn.Size() != h.Size() {
		return fmt.Errorf("network size %d does not match event history size %d", tn.Size(), h.Size())
	}
	kind := h.Variant().TransmissionKind()
	for i := range tn.external {
		count := tn.causeCount(i)
		if !h.Infected(i) {
			if count != 0 {
				return fmt.Errorf("individual %d: transmission cause recorded but no %s event", i, kind)
			}
			continue
		}
		if count != 1 {
			return fmt.Errorf("individual %d: %d transmission causes recorded, want exactly 1", i, count)
		}
		if j, ok := tn.Source(i); ok {
			t := h.Time(kind, i)
			if !h.EligibleInfector(j, t) {
				return fmt.Errorf("individual %d: designated infector %d was not infectious before time %v", i, j, t)
			}
		}
	}
	return nil
}

// Copy returns a deep copy for proposal snapshots.
func (tn *TransmissionNetwork) Copy() *TransmissionNetwork {
	dup := &TransmissionNetwork{
		external: append([]bool(nil), tn.external...),
		internal: make([][]bool, len(tn.internal)),
	}
	for j := range tn.internal {
		dup.internal[j] = append([]bool(nil), tn.internal[j]...)
	}
	return dup
}
