// Package mcmc implements data-augmentation Markov-chain Monte Carlo over
// the epidemic model: independent chains jointly sampling risk parameters,
// latent event times and the transmission network given partial, noisy
// observations.
package mcmc

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/epinet-sim/epinet-sim/epi"
)

// Prior is one univariate prior distribution. All gonum distuv types
// satisfy it; Quantile doubles as the sampler via the probability integral
// transform so initial draws consume the chain-local RNG.
type Prior interface {
	LogProb(x float64) float64
	Quantile(p float64) float64
}

// Priors carries one prior per parameter dimension per risk-function
// slot. A nil/empty slice means the slot's function takes no parameters.
// The slice lengths define the dimension of each parameter vector.
type Priors struct {
	Sparks           []Prior
	Susceptibility   []Prior
	Infectivity      []Prior
	Transmissibility []Prior
	Latency          []Prior
	Removal          []Prior
}

// Slot returns the prior slice for the named risk group.
func (p *Priors) Slot(name string) []Prior {
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

// Validate checks the priors against a variant: slots the variant omits
// must carry no priors.
func (p *Priors) Validate(v epi.Variant) error {
	if !v.HasExposed() && len(p.Latency) > 0 {
		return fmt.Errorf("variant %s has no latency transition; latency priors must be absent", v)
	}
	if !v.HasRemoved() && len(p.Removal) > 0 {
		return fmt.Errorf("variant %s has no removal transition; removal priors must be absent", v)
	}
	return nil
}

// Sample draws one parameter vector per slot from the priors.
func (p *Priors) Sample(rng *rand.Rand) epi.RiskParameters {
	draw := func(priors []Prior) []float64 {
		if len(priors) == 0 {
			return nil
		}
		out := make([]float64, len(priors))
		for d, prior := range priors {
			out[d] = prior.Quantile(rng.Float64())
		}
		return out
	}
	return epi.RiskParameters{
		Sparks:           draw(p.Sparks),
		Susceptibility:   draw(p.Susceptibility),
		Infectivity:      draw(p.Infectivity),
		Transmissibility: draw(p.Transmissibility),
		Latency:          draw(p.Latency),
		Removal:          draw(p.Removal),
	}
}

// LogPrior returns the summed log prior density of params. Out-of-support
// values yield -Inf, which the sampler treats as certain rejection.
// Parameter vectors must match the prior dimensions exactly.
func (p *Priors) LogPrior(params epi.RiskParameters) (float64, error) {
	total := 0.0
	for _, slot := range epi.RiskSlots {
		priors := p.Slot(slot)
		values := params.Slot(slot)
		if len(priors) != len(values) {
			return 0, fmt.Errorf("%s parameter vector has %d dimensions, priors define %d", slot, len(values), len(priors))
		}
		for d, prior := range priors {
			lp := prior.LogProb(values[d])
			if math.IsNaN(lp) {
				return 0, fmt.Errorf("%s prior returned NaN log density at %v (dimension %d)", slot, values[d], d)
			}
			total += lp
		}
	}
	return total, nil
}
