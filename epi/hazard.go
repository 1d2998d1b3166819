package epi

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedRisk marks a risk function that produced a negative or
// non-finite hazard. This is a fatal configuration/usage error detected at
// first occurrence, never propagated as NaN.
var ErrMalformedRisk = errors.New("malformed risk function")

// rateCache holds the per-individual hazards of a (bundle, parameters)
// pair. Single-individual rates are constant in time, so they are
// evaluated once and validated up front; pair terms are validated as they
// are computed.
type rateCache struct {
	pop    *Population
	bundle *RiskBundle
	params RiskParameters

	sparks []float64
	sus    []float64
	inf    []float64
	lat    []float64
	rem    []float64
}

func checkRate(v float64, slot string, i int) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s rate %v for individual %d", ErrMalformedRisk, slot, v, i)
	}
	return nil
}

func newRateCache(pop *Population, bundle *RiskBundle, params RiskParameters) (*rateCache, error) {
	n := pop.Size()
	rc := &rateCache{
		pop:    pop,
		bundle: bundle,
		params: params,
		sparks: make([]float64, n),
		sus:    make([]float64, n),
		inf:    make([]float64, n),
	}
	for i := 0; i < n; i++ {
		rc.sparks[i] = bundle.Sparks(params.Sparks, pop, i)
		if err := checkRate(rc.sparks[i], "sparks", i); err != nil {
			return nil, err
		}
		rc.sus[i] = bundle.Susceptibility(params.Susceptibility, pop, i)
		if err := checkRate(rc.sus[i], "susceptibility", i); err != nil {
			return nil, err
		}
		rc.inf[i] = bundle.Infectivity(params.Infectivity, pop, i)
		if err := checkRate(rc.inf[i], "infectivity", i); err != nil {
			return nil, err
		}
	}
	if bundle.Variant.HasExposed() {
		rc.lat = make([]float64, n)
		for i := 0; i < n; i++ {
			rc.lat[i] = bundle.Latency(params.Latency, pop, i)
			if err := checkRate(rc.lat[i], "latency", i); err != nil {
				return nil, err
			}
		}
	}
	if bundle.Variant.HasRemoved() {
		rc.rem = make([]float64, n)
		for i := 0; i < n; i++ {
			rc.rem[i] = bundle.Removal(params.Removal, pop, i)
			if err := checkRate(rc.rem[i], "removal", i); err != nil {
				return nil, err
			}
		}
	}
	return rc, nil
}

// pair returns the transmission hazard from infectious source j to
// susceptible target i.
func (rc *rateCache) pair(j, i int) (float64, error) {
	kappa := rc.bundle.Transmissibility(rc.params.Transmissibility, rc.pop, j, i)
	if err := checkRate(kappa, "transmissibility", i); err != nil {
		return 0, err
	}
	return rc.sus[i] * rc.inf[j] * kappa, nil
}
