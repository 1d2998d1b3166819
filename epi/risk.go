package epi

import (
	"fmt"
	"math"
)

// Risk function slot signatures. Sparks, susceptibility, latency and
// removal are functions of a single individual; infectivity is a function
// of the source; transmissibility is evaluated pairwise (source, target)
// and typically depends on the pair distance. The per-pair transmission
// hazard from infectious j to susceptible i is
//
//	susceptibility(i) × infectivity(j) × transmissibility(j, i)
//
// and the external (spark) hazard for i is sparks(i). All rate values
// must be finite and non-negative; the engine treats anything else as a
// malformed risk function.
type (
	SparksFunc           func(params []float64, pop *Population, i int) float64
	SusceptibilityFunc   func(params []float64, pop *Population, i int) float64
	InfectivityFunc      func(params []float64, pop *Population, j int) float64
	TransmissibilityFunc func(params []float64, pop *Population, j, i int) float64
	LatencyFunc          func(params []float64, pop *Population, i int) float64
	RemovalFunc          func(params []float64, pop *Population, i int) float64
)

// RiskBundle holds the rate functions active under a disease model
// variant. Slots the variant does not use must be nil; slots it uses must
// be set. Both are checked once at construction so the compartment chain
// stays exhaustive downstream.
type RiskBundle struct {
	Variant          Variant
	Sparks           SparksFunc
	Susceptibility   SusceptibilityFunc
	Infectivity      InfectivityFunc
	Transmissibility TransmissibilityFunc
	Latency          LatencyFunc
	Removal          RemovalFunc
}

// NewRiskBundle validates slot presence against the variant and returns
// the bundle.
func NewRiskBundle(v Variant, sparks SparksFunc, sus SusceptibilityFunc, inf InfectivityFunc,
	trans TransmissibilityFunc, lat LatencyFunc, rem RemovalFunc) (*RiskBundle, error) {
	if sparks == nil || sus == nil || inf == nil || trans == nil {
		return nil, fmt.Errorf("variant %s requires sparks, susceptibility, infectivity and transmissibility functions", v)
	}
	if v.HasExposed() && lat == nil {
		return nil, fmt.Errorf("variant %s requires a latency function", v)
	}
	if !v.HasExposed() && lat != nil {
		return nil, fmt.Errorf("variant %s has no exposed compartment; latency function must be absent", v)
	}
	if v.HasRemoved() && rem == nil {
		return nil, fmt.Errorf("variant %s requires a removal function", v)
	}
	if !v.HasRemoved() && rem != nil {
		return nil, fmt.Errorf("variant %s has no removed compartment; removal function must be absent", v)
	}
	return &RiskBundle{
		Variant:          v,
		Sparks:           sparks,
		Susceptibility:   sus,
		Infectivity:      inf,
		Transmissibility: trans,
		Latency:          lat,
		Removal:          rem,
	}, nil
}

// SparkHazard evaluates the external infection hazard for individual i.
func (b *RiskBundle) SparkHazard(params RiskParameters, pop *Population, i int) float64 {
	return b.Sparks(params.Sparks, pop, i)
}

// PairHazard evaluates the internal transmission hazard from source j to
// target i: susceptibility(i) × infectivity(j) × transmissibility(j, i).
func (b *RiskBundle) PairHazard(params RiskParameters, pop *Population, j, i int) float64 {
	return b.Susceptibility(params.Susceptibility, pop, i) *
		b.Infectivity(params.Infectivity, pop, j) *
		b.Transmissibility(params.Transmissibility, pop, j, i)
}

// RiskSlots lists the six parameter-group names in fixed order. Callers
// (the sampler, trace summaries, config) iterate groups in this order so
// runs are reproducible.
var RiskSlots = []string{"sparks", "susceptibility", "infectivity", "transmissibility", "latency", "removal"}

// RiskParameters carries one real-valued vector per risk-function slot.
// Empty vectors are permitted for parameter-less functions.
type RiskParameters struct {
	Sparks           []float64
	Susceptibility   []float64
	Infectivity      []float64
	Transmissibility []float64
	Latency          []float64
	Removal          []float64
}

// Slot returns the parameter vector for the named group. Unknown names
// return nil.
func (p *RiskParameters) Slot(name string) []float64 {
	switch name {
	case "sparks":
		return p.Sparks
	case "susceptibility":
		return p.Susceptibility
	case "infectivity":
		return p.Infectivity
	case "transmissibility":
		return p.Transmissibility
	case "latency":
		return p.Latency
	case "removal":
		return p.Removal
	}
	return nil
}

// SetSlot replaces the parameter vector for the named group.
func (p *RiskParameters) SetSlot(name string, v []float64) {
	switch name {
	case "sparks":
		p.Sparks = v
	case "susceptibility":
		p.Susceptibility = v
	case "infectivity":
		p.Infectivity = v
	case "transmissibility":
		p.Transmissibility = v
	case "latency":
		p.Latency = v
	case "removal":
		p.Removal = v
	}
}

// Copy returns a deep copy; proposal kernels mutate copies, never the
// accepted state.
func (p RiskParameters) Copy() RiskParameters {
	dup := func(s []float64) []float64 {
		if s == nil {
			return nil
		}
		out := make([]float64, len(s))
		copy(out, s)
		return out
	}
	return RiskParameters{
		Sparks:           dup(p.Sparks),
		Susceptibility:   dup(p.Susceptibility),
		Infectivity:      dup(p.Infectivity),
		Transmissibility: dup(p.Transmissibility),
		Latency:          dup(p.Latency),
		Removal:          dup(p.Removal),
	}
}

// === Standard risk functions ===
//
// A small library of rate functions usable from scenario configs. User
// code may supply arbitrary closures with the slot signatures instead.

// ConstantRate returns params[0] regardless of the individual.
func ConstantRate(params []float64, _ *Population, _ int) float64 {
	return params[0]
}

// ZeroRate is the explicit "no hazard of this kind" function.
func ZeroRate(_ []float64, _ *Population, _ int) float64 { return 0 }

// UnitRate returns 1; handy as a neutral susceptibility or infectivity
// factor.
func UnitRate(_ []float64, _ *Population, _ int) float64 { return 1 }

// LogLinearRate returns exp(params[0] + params[1:]·covariates(i)).
func LogLinearRate(params []float64, pop *Population, i int) float64 {
	z := params[0]
	cov := pop.Individual(i).Covariates
	for d, beta := range params[1:] {
		z += beta * cov[d]
	}
	return math.Exp(z)
}

// ConstantKernel returns params[0] for every (source, target) pair,
// ignoring distance.
func ConstantKernel(params []float64, _ *Population, _, _ int) float64 {
	return params[0]
}

// PowerLawKernel returns params[0]·d^(−params[1]) where d is the pair
// distance. Pairs at distance zero have no finite power-law hazard and
// yield +Inf, which the engine reports as a malformed risk function; use
// a population with distinct locations.
func PowerLawKernel(params []float64, pop *Population, j, i int) float64 {
	return params[0] * math.Pow(pop.Distance(j, i), -params[1])
}

// ExponentialKernel returns params[0]·exp(−params[1]·d).
func ExponentialKernel(params []float64, pop *Population, j, i int) float64 {
	return params[0] * math.Exp(-params[1]*pop.Distance(j, i))
}
