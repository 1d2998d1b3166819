package mcmc

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/epinet-sim/epinet-sim/epi"
)

func TestPriors_Validate(t *testing.T) {
	p := &Priors{
		Sparks:  []Prior{distuv.Gamma{Alpha: 1, Beta: 1}},
		Latency: []Prior{distuv.Gamma{Alpha: 1, Beta: 1}},
	}
	assert.ErrorContains(t, p.Validate(epi.SIR), "latency priors must be absent")
	assert.NoError(t, p.Validate(epi.SEIR))

	p = &Priors{Removal: []Prior{distuv.Gamma{Alpha: 1, Beta: 1}}}
	assert.ErrorContains(t, p.Validate(epi.SI), "removal priors must be absent")
	assert.NoError(t, p.Validate(epi.SIR))
}

func TestPriors_SampleDimensionsAndSupport(t *testing.T) {
	p := &Priors{
		Sparks:           []Prior{distuv.Gamma{Alpha: 2, Beta: 2}},
		Transmissibility: []Prior{distuv.Uniform{Min: 1, Max: 3}, distuv.Exponential{Rate: 1}},
	}
	rng := rand.New(rand.NewSource(9))
	for trial := 0; trial < 50; trial++ {
		params := p.Sample(rng)
		require.Len(t, params.Sparks, 1)
		require.Len(t, params.Transmissibility, 2)
		assert.Nil(t, params.Removal)
		assert.Greater(t, params.Sparks[0], 0.0)
		assert.GreaterOrEqual(t, params.Transmissibility[0], 1.0)
		assert.LessOrEqual(t, params.Transmissibility[0], 3.0)
	}
}

func TestPriors_LogPrior(t *testing.T) {
	p := &Priors{
		Sparks:           []Prior{distuv.Gamma{Alpha: 2, Beta: 2}},
		Transmissibility: []Prior{distuv.Normal{Mu: 0, Sigma: 1}},
	}

	lp, err := p.LogPrior(epi.RiskParameters{
		Sparks:           []float64{0.5},
		Transmissibility: []float64{0},
	})
	require.NoError(t, err)
	want := distuv.Gamma{Alpha: 2, Beta: 2}.LogProb(0.5) + distuv.Normal{Mu: 0, Sigma: 1}.LogProb(0)
	assert.InDelta(t, want, lp, 1e-12)

	// Out of support is -Inf, not an error; the sampler rejects it.
	lp, err = p.LogPrior(epi.RiskParameters{
		Sparks:           []float64{-1},
		Transmissibility: []float64{0},
	})
	require.NoError(t, err)
	assert.True(t, math.IsInf(lp, -1))

	// Dimension mismatch is a configuration error.
	_, err = p.LogPrior(epi.RiskParameters{Sparks: []float64{0.5}})
	assert.ErrorContains(t, err, "dimensions")
}
