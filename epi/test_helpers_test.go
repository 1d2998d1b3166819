package epi

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

// pairPopulation builds the canonical two-individual population with unit
// distance used across the engine tests.
func pairPopulation(t *testing.T) *Population {
	t.Helper()
	distances := mat.NewSymDense(2, nil)
	distances.SetSym(0, 1, 1)
	pop, err := NewPopulation([]Individual{{X: 0, Y: 0}, {X: 1, Y: 0}}, distances)
	if err != nil {
		t.Fatalf("building pair population: %v", err)
	}
	return pop
}

// siBundle builds an SI bundle with zero sparks, unit susceptibility and
// infectivity, and a constant transmission kernel; the kernel rate is the
// single transmissibility parameter.
func siBundle(t *testing.T) (*RiskBundle, RiskParameters) {
	t.Helper()
	bundle, err := NewRiskBundle(SI, ZeroRate, UnitRate, UnitRate, ConstantKernel, nil, nil)
	if err != nil {
		t.Fatalf("building SI bundle: %v", err)
	}
	return bundle, RiskParameters{Transmissibility: []float64{1}}
}

// sirBundle builds an SIR bundle with constant sparks, removal and
// transmission kernel rates taken from the parameter vectors.
func sirBundle(t *testing.T) *RiskBundle {
	t.Helper()
	bundle, err := NewRiskBundle(SIR, ConstantRate, UnitRate, UnitRate, ConstantKernel, nil, ConstantRate)
	if err != nil {
		t.Fatalf("building SIR bundle: %v", err)
	}
	return bundle
}
