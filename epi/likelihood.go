package epi

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRealization marks a (history, network) pair outside the
// support of the continuous-time process: out-of-order times, a designated
// infector that was not yet infectious, or an event that fired with zero
// hazard. Callers distinguish this from a valid but very low probability
// realization; the evaluator never folds it into a −Inf result.
var ErrInvalidRealization = errors.New("invalid realization")

// LikelihoodEvaluator computes the exact log-likelihood of a realization
// under the continuous-time competing-hazards process. Hazards are
// piecewise constant between events, so every inter-event survival
// integral has the closed form −Λ·Δt. The evaluator is a pure function of
// its inputs: re-evaluating the same tuple returns the identical value.
type LikelihoodEvaluator struct {
	pop    *Population
	bundle *RiskBundle
}

// NewLikelihoodEvaluator returns an evaluator for the given population and
// risk bundle.
func NewLikelihoodEvaluator(pop *Population, bundle *RiskBundle) (*LikelihoodEvaluator, error) {
	if pop == nil || bundle == nil {
		return nil, fmt.Errorf("nil population or risk bundle")
	}
	return &LikelihoodEvaluator{pop: pop, bundle: bundle}, nil
}

// LogLikelihood returns the log-likelihood of the exact realization
// (params, history, network): the sum over the ordered event sequence of
// log(hazard of the event that occurred) minus the integral of total
// hazard over each preceding inter-event interval. Structural invalidity
// is reported as ErrInvalidRealization, malformed hazards as
// ErrMalformedRisk.
func (e *LikelihoodEvaluator) LogLikelihood(params RiskParameters, history *EventHistory, network *TransmissionNetwork) (float64, error) {
	if history.Size() != e.pop.Size() {
		return 0, fmt.Errorf("event history size %d does not match population size %d", history.Size(), e.pop.Size())
	}
	if history.Variant() != e.bundle.Variant {
		return 0, fmt.Errorf("event history variant %s does not match risk bundle variant %s", history.Variant(), e.bundle.Variant)
	}
	if err := history.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRealization, err)
	}
	if err := network.Validate(history); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRealization, err)
	}
	rates, err := newRateCache(e.pop, e.bundle, params)
	if err != nil {
		return 0, err
	}

	n := e.pop.Size()
	cur := make([]Compartment, n)
	for i := 0; i < n; i++ {
		cur[i] = history.Start(i)
	}
	pressure := make([]float64, n)
	addSource := func(j int, sign float64) error {
		for i := 0; i < n; i++ {
			if cur[i] != Susceptible {
				continue
			}
			p, err := rates.pair(j, i)
			if err != nil {
				return err
			}
			pressure[i] += sign * p
		}
		return nil
	}
	for j := 0; j < n; j++ {
		if cur[j] == Infectious {
			if err := addSource(j, 1); err != nil {
				return 0, err
			}
		}
	}

	totalHazard := func() float64 {
		total := 0.0
		for i := 0; i < n; i++ {
			switch cur[i] {
			case Susceptible:
				total += rates.sparks[i] + math.Max(pressure[i], 0)
			case Exposed:
				total += rates.lat[i]
			case Infectious:
				if e.bundle.Variant.HasRemoved() {
					total += rates.rem[i]
				}
			}
		}
		return total
	}

	ll := 0.0
	prev := 0.0
	for _, ev := range history.Sequence() {
		ll -= totalHazard() * (ev.Time - prev)

		var rate float64
		switch {
		case ev.Kind == e.bundle.Variant.TransmissionKind():
			if network.External(ev.Individual) {
				rate = rates.sparks[ev.Individual]
			} else {
				j, _ := network.Source(ev.Individual)
				rate, err = rates.pair(j, ev.Individual)
				if err != nil {
					return 0, err
				}
			}
			cur[ev.Individual] = e.bundle.Variant.After(ev.Kind)
			pressure[ev.Individual] = 0
			if cur[ev.Individual] == Infectious {
				if err := addSource(ev.Individual, 1); err != nil {
					return 0, err
				}
			}
		case ev.Kind == Infection:
			// End of latency (SEI/SEIR only; in SI/SIR Infection is the
			// transmission kind handled above).
			rate = rates.lat[ev.Individual]
			cur[ev.Individual] = Infectious
			if err := addSource(ev.Individual, 1); err != nil {
				return 0, err
			}
		case ev.Kind == Removal:
			rate = rates.rem[ev.Individual]
			if err := addSource(ev.Individual, -1); err != nil {
				return 0, err
			}
			cur[ev.Individual] = Removed
		}

		if rate <= 0 {
			return 0, fmt.Errorf("%w: %s of individual %d at t=%v fired with zero hazard",
				ErrInvalidRealization, ev.Kind, ev.Individual, ev.Time)
		}
		ll += math.Log(rate)
		prev = ev.Time
	}
	return ll, nil
}
