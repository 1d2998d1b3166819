package epi

import "fmt"

// Compartment is a disease state an individual occupies at a point in
// simulated time. Transitions are monotonic along the chain
// Susceptible → (Exposed) → Infectious → (Removed); individuals never
// revisit a compartment.
type Compartment int

const (
	Susceptible Compartment = iota
	Exposed
	Infectious
	Removed
)

func (c Compartment) String() string {
	switch c {
	case Susceptible:
		return "susceptible"
	case Exposed:
		return "exposed"
	case Infectious:
		return "infectious"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("compartment(%d)", int(c))
}

// EventKind identifies a compartment transition. Which kinds exist
// depends on the model variant.
type EventKind int

const (
	// Exposure is the S→E transition (SEI/SEIR only). It is the
	// transmission-caused transition in those variants.
	Exposure EventKind = iota
	// Infection is S→I in SI/SIR (transmission-caused) and E→I
	// (end of latency) in SEI/SEIR.
	Infection
	// Removal is the I→R transition (SIR/SEIR only).
	Removal
)

func (k EventKind) String() string {
	switch k {
	case Exposure:
		return "exposure"
	case Infection:
		return "infection"
	case Removal:
		return "removal"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Variant selects one of the four compartment topologies. It is a closed
// set checked once at construction; all downstream logic branches on the
// tag.
type Variant int

const (
	SI Variant = iota
	SIR
	SEI
	SEIR
)

// ParseVariant maps a config string ("si", "sir", "sei", "seir") to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "si", "SI":
		return SI, nil
	case "sir", "SIR":
		return SIR, nil
	case "sei", "SEI":
		return SEI, nil
	case "seir", "SEIR":
		return SEIR, nil
	}
	return 0, fmt.Errorf("unknown disease model variant %q (want si, sir, sei or seir)", s)
}

func (v Variant) String() string {
	switch v {
	case SI:
		return "si"
	case SIR:
		return "sir"
	case SEI:
		return "sei"
	case SEIR:
		return "seir"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// HasExposed reports whether the variant includes the Exposed compartment.
func (v Variant) HasExposed() bool { return v == SEI || v == SEIR }

// HasRemoved reports whether the variant includes the Removed compartment.
func (v Variant) HasRemoved() bool { return v == SIR || v == SEIR }

// Kinds returns the transitions of the variant in compartment-chain order.
func (v Variant) Kinds() []EventKind {
	switch v {
	case SI:
		return []EventKind{Infection}
	case SIR:
		return []EventKind{Infection, Removal}
	case SEI:
		return []EventKind{Exposure, Infection}
	case SEIR:
		return []EventKind{Exposure, Infection, Removal}
	}
	return nil
}

// HasKind reports whether the variant includes the given transition.
func (v Variant) HasKind(k EventKind) bool {
	switch k {
	case Exposure:
		return v.HasExposed()
	case Infection:
		return true
	case Removal:
		return v.HasRemoved()
	}
	return false
}

// TransmissionKind returns the transition caused by transmission: Exposure
// when the variant has an Exposed compartment, Infection otherwise.
func (v Variant) TransmissionKind() EventKind {
	if v.HasExposed() {
		return Exposure
	}
	return Infection
}

// After returns the compartment an individual enters when the given
// transition fires.
func (v Variant) After(k EventKind) Compartment {
	switch k {
	case Exposure:
		return Exposed
	case Infection:
		return Infectious
	case Removal:
		return Removed
	}
	return Susceptible
}

// ValidStart reports whether c is an admissible initial compartment under
// the variant.
func (v Variant) ValidStart(c Compartment) bool {
	switch c {
	case Susceptible, Infectious:
		return true
	case Exposed:
		return v.HasExposed()
	case Removed:
		return v.HasRemoved()
	}
	return false
}
