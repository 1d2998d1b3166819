package epi

import (
	"fmt"
	"math"
	"math/rand"
)

// DelaySampler generates non-negative observation delays. Implementations
// draw only from the RNG they are handed, keeping observation generation
// chain-local and reproducible.
type DelaySampler interface {
	// Sample returns a delay >= 0.
	Sample(rng *rand.Rand) float64
}

// FixedDelay observes every event exactly D time units after it happens.
type FixedDelay struct {
	D float64
}

func (s FixedDelay) Sample(_ *rand.Rand) float64 { return s.D }

// QuantileDelay adapts any distribution exposing an inverse CDF (all gonum
// distuv types qualify) into a DelaySampler via the probability integral
// transform, so the draw consumes the caller's RNG rather than a
// distribution-internal source.
type QuantileDelay struct {
	Dist interface {
		Quantile(p float64) float64
	}
}

func (s QuantileDelay) Sample(rng *rand.Rand) float64 {
	return s.Dist.Quantile(rng.Float64())
}

// Observations holds the per-individual observed transition times of
// epidemiological interest: infection, and removal when the variant
// includes it. NaN marks a censored ("never observed") value. Immutable
// after construction.
type Observations struct {
	variant   Variant
	infection []float64
	removal   []float64
}

// NewObservations builds an observation set directly from observed times;
// this is the reverse-direction constructor used when field data is the
// input to inference. removal must be nil for variants without a Removed
// compartment.
func NewObservations(v Variant, infection, removal []float64) (*Observations, error) {
	if len(infection) == 0 {
		return nil, fmt.Errorf("empty infection observation vector")
	}
	if v.HasRemoved() {
		if len(removal) != len(infection) {
			return nil, fmt.Errorf("removal observation vector length %d does not match infection length %d", len(removal), len(infection))
		}
	} else if removal != nil {
		return nil, fmt.Errorf("variant %s has no removal transition; removal observations must be absent", v)
	}
	obs := &Observations{
		variant:   v,
		infection: append([]float64(nil), infection...),
	}
	if v.HasRemoved() {
		obs.removal = append([]float64(nil), removal...)
	}
	return obs, nil
}

// Observe generates observations from a true event history: each event
// time of interest plus an independently drawn non-negative delay, censored
// to NaN when the delayed observation exceeds the study horizon. Initial
// infectives carry no infection event and are unobserved.
func Observe(history *EventHistory, delays DelaySampler, horizon float64, rng *rand.Rand) (*Observations, error) {
	if delays == nil {
		return nil, fmt.Errorf("nil delay sampler")
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("study horizon %v must be positive", horizon)
	}
	n := history.Size()
	v := history.Variant()
	obs := &Observations{variant: v, infection: make([]float64, n)}
	if v.HasRemoved() {
		obs.removal = make([]float64, n)
	}
	observe := func(t float64) (float64, error) {
		if math.IsNaN(t) {
			return math.NaN(), nil
		}
		d := delays.Sample(rng)
		if math.IsNaN(d) || d < 0 {
			return 0, fmt.Errorf("delay sampler produced %v, want non-negative", d)
		}
		if t+d > horizon {
			return math.NaN(), nil
		}
		return t + d, nil
	}
	var err error
	for i := 0; i < n; i++ {
		if obs.infection[i], err = observe(history.Time(Infection, i)); err != nil {
			return nil, fmt.Errorf("individual %d: %w", i, err)
		}
		if v.HasRemoved() {
			if obs.removal[i], err = observe(history.Time(Removal, i)); err != nil {
				return nil, fmt.Errorf("individual %d: %w", i, err)
			}
		}
	}
	return obs, nil
}

// Size returns the number of individuals covered.
func (o *Observations) Size() int { return len(o.infection) }

// Variant returns the disease model variant of the observations.
func (o *Observations) Variant() Variant { return o.variant }

// Infection returns the observed infection time of individual i, NaN if
// censored.
func (o *Observations) Infection(i int) float64 { return o.infection[i] }

// Removal returns the observed removal time of individual i, NaN if
// censored or the variant has no removal transition.
func (o *Observations) Removal(i int) float64 {
	if o.removal == nil {
		return math.NaN()
	}
	return o.removal[i]
}

// EventExtents bounds the data-augmentation windows: the maximum gap
// between an observation and the latent true event time proposed for it,
// per transition kind, plus the sparks-only window for individuals never
// observed. A width of zero collapses the latent time to exactly the
// observed time.
type EventExtents struct {
	Exposure  float64 // latent exposure within (infection − Exposure, infection)
	Infection float64 // latent infection within [observation − Infection, observation]
	Removal   float64 // latent removal within [observation − Removal, observation]
	Sparks    float64 // unobserved individuals within [horizon − Sparks, horizon]
}

// Validate checks the extents against a variant. Variants with an Exposed
// compartment need a strictly positive exposure extent because exposure
// must precede infection strictly.
func (e EventExtents) Validate(v Variant) error {
	if e.Infection < 0 || e.Removal < 0 || e.Exposure < 0 || e.Sparks < 0 {
		return fmt.Errorf("event extents must be non-negative: %+v", e)
	}
	if v.HasExposed() && e.Exposure == 0 {
		return fmt.Errorf("variant %s requires a positive exposure extent", v)
	}
	return nil
}
