package mcmc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/epinet-sim/epinet-sim/epi"
)

// sirModel builds a three-individual SIR inference problem: individual 0
// observed infected at 1.5 and removed at 3, individual 1 observed
// infected at 4 with censored removal, individual 2 fully unobserved.
func sirModel(t *testing.T) (*epi.Population, *epi.RiskBundle, *Priors, *epi.Observations) {
	t.Helper()
	pop, err := epi.NewPopulationFromCoords([]epi.Individual{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1},
	})
	require.NoError(t, err)
	bundle, err := epi.NewRiskBundle(epi.SIR,
		epi.ConstantRate, epi.UnitRate, epi.UnitRate, epi.ConstantKernel, nil, epi.ConstantRate)
	require.NoError(t, err)
	priors := &Priors{
		Sparks:           []Prior{distuv.Gamma{Alpha: 2, Beta: 4}},
		Transmissibility: []Prior{distuv.Gamma{Alpha: 2, Beta: 2}},
		Removal:          []Prior{distuv.Gamma{Alpha: 2, Beta: 2}},
	}
	nan := math.NaN()
	obs, err := epi.NewObservations(epi.SIR,
		[]float64{1.5, 4, nan},
		[]float64{3, nan, nan})
	require.NoError(t, err)
	return pop, bundle, priors, obs
}

func sirConfig() Config {
	return Config{
		Chains:          2,
		MaxInitAttempts: 200,
		Batches:         2,
		StepSize:        0.1,
		AdaptSweeps:     0,
		Thin:            2,
		Parallelism:     2,
		Seed:            42,
		Horizon:         10,
	}
}

func sirExtents() epi.EventExtents {
	return epi.EventExtents{Infection: 1, Removal: 1, Sparks: 5}
}

func TestSampler_DeterministicWithSeed(t *testing.T) {
	run := func() *Sampler {
		pop, bundle, priors, obs := sirModel(t)
		s, err := NewSampler(pop, bundle, priors, obs, sirExtents(), sirConfig())
		require.NoError(t, err)
		require.NoError(t, s.Start())
		require.NoError(t, s.Iterate(5))
		return s
	}

	a, b := run(), run()
	for k := range a.Chains() {
		ta, tb := a.Chain(k).Trace(), b.Chain(k).Trace()
		require.Equal(t, ta.Len(), tb.Len())
		for i := 0; i < ta.Len(); i++ {
			ra, rb := ta.At(i), tb.At(i)
			assert.Equal(t, ra.Params, rb.Params, "chain %d sweep %d", k, ra.Sweep)
			assert.Equal(t, ra.LogLikelihood, rb.LogLikelihood, "chain %d sweep %d", k, ra.Sweep)
			assert.Equal(t, ra.ParamsAccepted, rb.ParamsAccepted, "chain %d sweep %d", k, ra.Sweep)
		}
	}
}

func TestSampler_ZeroWidthExtentsPinObservedTimes(t *testing.T) {
	pop, bundle, priors, obs := sirModel(t)
	s, err := NewSampler(pop, bundle, priors, obs,
		epi.EventExtents{Sparks: 5}, sirConfig())
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, s.Iterate(3))

	for _, c := range s.Chains() {
		if c.Status() != Ready {
			continue
		}
		h := c.Events()
		assert.Equal(t, 1.5, h.Time(epi.Infection, 0))
		assert.Equal(t, 3.0, h.Time(epi.Removal, 0))
		assert.Equal(t, 4.0, h.Time(epi.Infection, 1))
	}
}

func TestSampler_CensoredIndividualStaysInSparksWindow(t *testing.T) {
	pop, bundle, priors, obs := sirModel(t)
	cfg := sirConfig()
	s, err := NewSampler(pop, bundle, priors, obs, sirExtents(), cfg)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, s.Iterate(10))

	for _, c := range s.Chains() {
		if c.Status() != Ready {
			continue
		}
		h := c.Events()
		if !h.Infected(2) {
			continue
		}
		inf := h.Time(epi.Infection, 2)
		assert.Greater(t, inf, cfg.Horizon-5)
		assert.Less(t, inf, cfg.Horizon)
	}
}

func TestSampler_InitializationExhaustion(t *testing.T) {
	// A single individual observed infected under zero external hazard has
	// no admissible transmission cause; every attempt fails.
	pop, err := epi.NewPopulationFromCoords([]epi.Individual{{X: 0, Y: 0}, {X: 1, Y: 0}})
	require.NoError(t, err)
	bundle, err := epi.NewRiskBundle(epi.SI,
		epi.ZeroRate, epi.UnitRate, epi.UnitRate, epi.ConstantKernel, nil, nil)
	require.NoError(t, err)
	priors := &Priors{Transmissibility: []Prior{distuv.Gamma{Alpha: 2, Beta: 2}}}
	obs, err := epi.NewObservations(epi.SI, []float64{2, math.NaN()}, nil)
	require.NoError(t, err)

	cfg := sirConfig()
	cfg.Chains = 1
	cfg.MaxInitAttempts = 3
	s, err := NewSampler(pop, bundle, priors, obs, sirExtents(), cfg)
	require.NoError(t, err)

	err = s.Start()
	require.Error(t, err)
	assert.Equal(t, Failed, s.Chain(0).Status())
	assert.ErrorContains(t, s.Chain(0).Err(), "exhausted")
}

func TestSampler_RiskFunctionPanicFailsChainOnly(t *testing.T) {
	// The constant sparks function reads params[0], but the priors define
	// no sparks dimension, so every sampled parameter vector is empty. The
	// resulting index panic must be contained as a per-chain failure, not
	// unwind through the sampler's goroutines.
	pop, err := epi.NewPopulationFromCoords([]epi.Individual{{X: 0, Y: 0}, {X: 1, Y: 0}})
	require.NoError(t, err)
	bundle, err := epi.NewRiskBundle(epi.SI,
		epi.ConstantRate, epi.UnitRate, epi.UnitRate, epi.ConstantKernel, nil, nil)
	require.NoError(t, err)
	priors := &Priors{Transmissibility: []Prior{distuv.Gamma{Alpha: 2, Beta: 2}}}
	obs, err := epi.NewObservations(epi.SI, []float64{2, math.NaN()}, nil)
	require.NoError(t, err)

	cfg := sirConfig()
	cfg.Chains = 2
	s, err := NewSampler(pop, bundle, priors, obs, sirExtents(), cfg)
	require.NoError(t, err)

	var startErr error
	require.NotPanics(t, func() { startErr = s.Start() })
	require.Error(t, startErr)
	for _, c := range s.Chains() {
		assert.Equal(t, Failed, c.Status())
		assert.ErrorContains(t, c.Err(), "panicked")
	}
}

func TestSampler_TraceBookkeeping(t *testing.T) {
	pop, bundle, priors, obs := sirModel(t)
	cfg := sirConfig()
	cfg.Chains = 1
	cfg.Thin = 2
	s, err := NewSampler(pop, bundle, priors, obs, sirExtents(), cfg)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, s.Iterate(4))

	c := s.Chain(0)
	require.Equal(t, Ready, c.Status())
	tr := c.Trace()
	require.Equal(t, 4, tr.Len())

	for i := 0; i < tr.Len(); i++ {
		r := tr.At(i)
		assert.Equal(t, i+1, r.Sweep)
		keys := make([]string, 0, len(r.ParamsAccepted))
		for slot := range r.ParamsAccepted {
			keys = append(keys, slot)
		}
		assert.ElementsMatch(t, []string{"sparks", "transmissibility", "removal"}, keys,
			"only parameterized groups are proposed")
		assert.LessOrEqual(t, r.EventBatchesAccepted, r.EventBatches)
		if r.Sweep%cfg.Thin == 0 {
			assert.NotNil(t, r.Events)
			assert.NotNil(t, r.Network)
		} else {
			assert.Nil(t, r.Events)
			assert.Nil(t, r.Network)
		}
	}
}

func TestSampler_StateRemainsValidAcrossSweeps(t *testing.T) {
	pop, bundle, priors, obs := sirModel(t)
	s, err := NewSampler(pop, bundle, priors, obs, sirExtents(), sirConfig())
	require.NoError(t, err)
	require.NoError(t, s.Start())

	for sweep := 0; sweep < 5; sweep++ {
		require.NoError(t, s.Iterate(1))
		for _, c := range s.Chains() {
			if c.Status() != Ready {
				continue
			}
			h, tn := c.Events(), c.Network()
			require.NoError(t, h.Validate())
			require.NoError(t, tn.Validate(h))
		}
	}
}

func TestSampler_StopBlocksIteration(t *testing.T) {
	pop, bundle, priors, obs := sirModel(t)
	cfg := sirConfig()
	cfg.Chains = 1
	s, err := NewSampler(pop, bundle, priors, obs, sirExtents(), cfg)
	require.NoError(t, err)
	require.NoError(t, s.Start())

	s.Chain(0).Stop()
	assert.Equal(t, Stopped, s.Chain(0).Status())
	// Iterate skips non-Ready chains; the trace stays empty.
	require.NoError(t, s.Iterate(2))
	assert.Equal(t, 0, s.Chain(0).Trace().Len())
}

func TestNewSampler_Validation(t *testing.T) {
	pop, bundle, priors, obs := sirModel(t)

	_, err := NewSampler(pop, bundle, priors, nil, sirExtents(), sirConfig())
	assert.ErrorContains(t, err, "nil")

	short, err := epi.NewObservations(epi.SIR, []float64{1}, []float64{2})
	require.NoError(t, err)
	_, err = NewSampler(pop, bundle, priors, short, sirExtents(), sirConfig())
	assert.ErrorContains(t, err, "does not match population size")

	bad := sirConfig()
	bad.Chains = 0
	_, err = NewSampler(pop, bundle, priors, obs, sirExtents(), bad)
	assert.ErrorContains(t, err, "chain count")

	bad = sirConfig()
	bad.StepSize = 0
	_, err = NewSampler(pop, bundle, priors, obs, sirExtents(), bad)
	assert.ErrorContains(t, err, "step size")

	bad = sirConfig()
	bad.Horizon = 0
	_, err = NewSampler(pop, bundle, priors, obs, sirExtents(), bad)
	assert.ErrorContains(t, err, "horizon")

	bad = sirConfig()
	bad.Start = epi.AllSusceptible(2)
	_, err = NewSampler(pop, bundle, priors, obs, sirExtents(), bad)
	assert.ErrorContains(t, err, "start compartment")
}
