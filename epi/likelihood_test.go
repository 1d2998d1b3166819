package epi

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLikelihood_HandComputedPair(t *testing.T) {
	// 0 starts infectious, 1 is infected by 0 at t=2 under a constant
	// pairwise hazard k with zero sparks. The only hazard active on (0, 2)
	// is k, so ll = log(k) − k·2.
	const k = 0.7
	pop := pairPopulation(t)
	bundle, params := siBundle(t)
	params.Transmissibility = []float64{k}

	h, err := NewEventHistory(SI, []Compartment{Infectious, Susceptible})
	require.NoError(t, err)
	require.NoError(t, h.SetTime(Infection, 1, 2))
	tn := NewTransmissionNetwork(2)
	tn.SetSource(0, 1)

	eval, err := NewLikelihoodEvaluator(pop, bundle)
	require.NoError(t, err)
	ll, err := eval.LogLikelihood(params, h, tn)
	require.NoError(t, err)

	assert.InDelta(t, math.Log(k)-2*k, ll, 1e-12)
}

func TestLogLikelihood_HandComputedSIR(t *testing.T) {
	// SIR with sparks ε: 0 sparked at t=1, removed at t=3; 1 stays
	// susceptible throughout. Hazards: on (0,1) both susceptible under
	// sparks 2ε plus no transmission; on (1,3) 1 is under ε+k, 0 under
	// removal γ. ll = log ε − 2ε·1 + log γ − (ε + k + γ)·2.
	const eps, k, gamma = 0.05, 0.4, 0.25
	pop := pairPopulation(t)
	bundle := sirBundle(t)
	params := RiskParameters{
		Sparks:           []float64{eps},
		Transmissibility: []float64{k},
		Removal:          []float64{gamma},
	}

	h, err := NewEventHistory(SIR, AllSusceptible(2))
	require.NoError(t, err)
	require.NoError(t, h.SetTime(Infection, 0, 1))
	require.NoError(t, h.SetTime(Removal, 0, 3))
	tn := NewTransmissionNetwork(2)
	tn.SetExternal(0)

	eval, err := NewLikelihoodEvaluator(pop, bundle)
	require.NoError(t, err)
	ll, err := eval.LogLikelihood(params, h, tn)
	require.NoError(t, err)

	want := math.Log(eps) - 2*eps*1 + math.Log(gamma) - (eps+k+gamma)*2
	assert.InDelta(t, want, ll, 1e-12)
}

func TestLogLikelihood_Idempotent(t *testing.T) {
	pop := pairPopulation(t)
	bundle, params := siBundle(t)

	h, err := NewEventHistory(SI, []Compartment{Infectious, Susceptible})
	require.NoError(t, err)
	require.NoError(t, h.SetTime(Infection, 1, 1.25))
	tn := NewTransmissionNetwork(2)
	tn.SetSource(0, 1)

	eval, err := NewLikelihoodEvaluator(pop, bundle)
	require.NoError(t, err)
	first, err := eval.LogLikelihood(params, h, tn)
	require.NoError(t, err)
	second, err := eval.LogLikelihood(params, h, tn)
	require.NoError(t, err)

	assert.Equal(t, first, second, "no hidden randomness in likelihood computation")
}

func TestLogLikelihood_SimulatedRealizationIsFinite(t *testing.T) {
	// Anything the forward engine generates must evaluate to a finite
	// log-likelihood under the same model.
	pop, err := NewPopulationFromCoords([]Individual{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 2}, {X: 2, Y: 2},
	})
	require.NoError(t, err)
	bundle, err := NewRiskBundle(SIR, ConstantRate, UnitRate, UnitRate, ExponentialKernel, nil, ConstantRate)
	require.NoError(t, err)
	params := RiskParameters{
		Sparks:           []float64{0.01},
		Transmissibility: []float64{2, 0.8},
		Removal:          []float64{0.3},
	}

	sim, err := NewSimulator(pop, bundle, params, rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	start := AllSusceptible(4)
	start[0] = Infectious
	result, err := sim.Run(start, StoppingPolicy{TMax: 50})
	require.NoError(t, err)

	eval, err := NewLikelihoodEvaluator(pop, bundle)
	require.NoError(t, err)
	ll, err := eval.LogLikelihood(params, result.Events, result.Network)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(ll) || math.IsInf(ll, 0))
}

func TestLogLikelihood_RejectsOrderingViolation(t *testing.T) {
	pop := pairPopulation(t)
	bundle := sirBundle(t)
	params := RiskParameters{
		Sparks:           []float64{0.1},
		Transmissibility: []float64{1},
		Removal:          []float64{1},
	}

	h, err := NewEventHistory(SIR, AllSusceptible(2))
	require.NoError(t, err)
	require.NoError(t, h.SetTime(Infection, 0, 3))
	require.NoError(t, h.SetTime(Removal, 0, 2))
	tn := NewTransmissionNetwork(2)
	tn.SetExternal(0)

	eval, err := NewLikelihoodEvaluator(pop, bundle)
	require.NoError(t, err)
	_, err = eval.LogLikelihood(params, h, tn)
	assert.ErrorIs(t, err, ErrInvalidRealization)
}

func TestLogLikelihood_RejectsIneligibleInfector(t *testing.T) {
	pop := pairPopulation(t)
	bundle, params := siBundle(t)

	h, err := NewEventHistory(SI, AllSusceptible(2))
	require.NoError(t, err)
	require.NoError(t, h.SetTime(Infection, 0, 2))
	require.NoError(t, h.SetTime(Infection, 1, 1))
	tn := NewTransmissionNetwork(2)
	tn.SetExternal(0)
	// 0 was infected at t=2 but is blamed for 1's infection at t=1.
	tn.SetSource(0, 1)

	eval, err := NewLikelihoodEvaluator(pop, bundle)
	require.NoError(t, err)
	_, err = eval.LogLikelihood(params, h, tn)
	assert.ErrorIs(t, err, ErrInvalidRealization)
}

func TestLogLikelihood_RejectsZeroHazardEvent(t *testing.T) {
	// An external infection under zero sparks is a support violation,
	// reported as invalid rather than folded into −Inf.
	pop := pairPopulation(t)
	bundle, params := siBundle(t)

	h, err := NewEventHistory(SI, AllSusceptible(2))
	require.NoError(t, err)
	require.NoError(t, h.SetTime(Infection, 0, 1))
	tn := NewTransmissionNetwork(2)
	tn.SetExternal(0)

	eval, err := NewLikelihoodEvaluator(pop, bundle)
	require.NoError(t, err)
	_, err = eval.LogLikelihood(params, h, tn)
	assert.ErrorIs(t, err, ErrInvalidRealization)
	assert.ErrorContains(t, err, "zero hazard")
}

func TestLogLikelihood_MalformedRisk(t *testing.T) {
	pop := pairPopulation(t)
	bundle, err := NewRiskBundle(SI, ConstantRate, UnitRate, UnitRate, ConstantKernel, nil, nil)
	require.NoError(t, err)
	params := RiskParameters{Sparks: []float64{math.Inf(1)}, Transmissibility: []float64{1}}

	h, err := NewEventHistory(SI, AllSusceptible(2))
	require.NoError(t, err)
	tn := NewTransmissionNetwork(2)

	eval, err := NewLikelihoodEvaluator(pop, bundle)
	require.NoError(t, err)
	_, err = eval.LogLikelihood(params, h, tn)
	assert.ErrorIs(t, err, ErrMalformedRisk)
}
