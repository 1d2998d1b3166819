package epi

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// StopReason reports which terminal condition ended a simulation run.
// Hitting a stopping condition is a normal outcome, not an error.
type StopReason int

const (
	// StopHazardExhausted: total hazard reached zero; no individual can
	// transition further (absorbing state).
	StopHazardExhausted StopReason = iota
	// StopTimeCeiling: the next event would occur past the simulated-time
	// ceiling tmax.
	StopTimeCeiling
	// StopWallClock: the wall-clock budget was spent.
	StopWallClock
	// StopIterationCap: the iteration cap was hit.
	StopIterationCap
)

func (r StopReason) String() string {
	switch r {
	case StopHazardExhausted:
		return "hazard exhausted"
	case StopTimeCeiling:
		return "time ceiling reached"
	case StopWallClock:
		return "wall clock budget spent"
	case StopIterationCap:
		return "iteration cap hit"
	}
	return fmt.Sprintf("stop(%d)", int(r))
}

// StoppingPolicy bounds a simulation run. Zero-valued fields are
// unbounded; with everything zero the run ends only at hazard exhaustion.
// Bounds are checked cooperatively between events.
type StoppingPolicy struct {
	TMax          float64       // simulated-time ceiling
	WallClock     time.Duration // wall-clock budget
	MaxIterations int           // event-count cap
}

func (p StoppingPolicy) tmax() float64 {
	if p.TMax <= 0 {
		return math.Inf(1)
	}
	return p.TMax
}

// SimulationResult is the complete outcome of a forward run.
type SimulationResult struct {
	Events     *EventHistory
	Network    *TransmissionNetwork
	FinalTime  float64
	Iterations int
	Reason     StopReason
}

// Simulator drives forward generation of an event history and transmission
// network by continuous-time competing hazards: every pending transition
// races an exponential clock, realized by drawing one exponential with the
// summed hazard and choosing the triggering transition proportional to its
// share.
type Simulator struct {
	pop    *Population
	bundle *RiskBundle
	params RiskParameters
	rng    *rand.Rand
}

// NewSimulator validates the inputs and returns a simulator. The RNG must
// be exclusively owned by this simulator for the duration of its runs.
func NewSimulator(pop *Population, bundle *RiskBundle, params RiskParameters, rng *rand.Rand) (*Simulator, error) {
	if pop == nil || bundle == nil {
		return nil, fmt.Errorf("nil population or risk bundle")
	}
	if rng == nil {
		return nil, fmt.Errorf("nil RNG; thread a chain-local generator explicitly")
	}
	return &Simulator{pop: pop, bundle: bundle, params: params, rng: rng}, nil
}

// Run simulates from the given initial compartment assignment until a
// stopping condition is met. Initial infectives transmit from time zero;
// their own compartment entry is part of the initial conditions, not an
// event.
func (s *Simulator) Run(start []Compartment, policy StoppingPolicy) (*SimulationResult, error) {
	n := s.pop.Size()
	if len(start) != n {
		return nil, fmt.Errorf("initial compartment vector length %d does not match population size %d", len(start), n)
	}
	history, err := NewEventHistory(s.bundle.Variant, start)
	if err != nil {
		return nil, err
	}
	network := NewTransmissionNetwork(n)
	rates, err := newRateCache(s.pop, s.bundle, s.params)
	if err != nil {
		return nil, err
	}

	cur := append([]Compartment(nil), start...)

	// pressure[i] is the summed internal transmission hazard on
	// susceptible i; maintained incrementally as sources appear and
	// disappear. Clamped at zero on read to absorb float cancellation.
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
				return nil, err
			}
		}
	}

	hazardOf := func(i int) float64 {
		switch cur[i] {
		case Susceptible:
			return rates.sparks[i] + math.Max(pressure[i], 0)
		case Exposed:
			return rates.lat[i]
		case Infectious:
			if s.bundle.Variant.HasRemoved() {
				return rates.rem[i]
			}
		}
		return 0
	}

	tmax := policy.tmax()
	began := time.Now()
	t := 0.0
	iterations := 0
	finish := func(finalTime float64, reason StopReason) (*SimulationResult, error) {
		logrus.Infof("simulation ended at t=%.4f after %d events: %s", finalTime, iterations, reason)
		return &SimulationResult{
			Events:     history,
			Network:    network,
			FinalTime:  finalTime,
			Iterations: iterations,
			Reason:     reason,
		}, nil
	}

	for {
		if policy.WallClock > 0 && time.Since(began) >= policy.WallClock {
			return finish(t, StopWallClock)
		}
		if policy.MaxIterations > 0 && iterations >= policy.MaxIterations {
			return finish(t, StopIterationCap)
		}

		total := 0.0
		for i := 0; i < n; i++ {
			total += hazardOf(i)
		}
		if total == 0 {
			return finish(t, StopHazardExhausted)
		}

		t += s.rng.ExpFloat64() / total
		if t >= tmax {
			return finish(tmax, StopTimeCeiling)
		}

		// Categorical draw of the triggering transition, proportional to
		// each candidate's hazard share.
		target := -1
		u := s.rng.Float64() * total
		acc := 0.0
		for i := 0; i < n; i++ {
			h := hazardOf(i)
			if h == 0 {
				continue
			}
			acc += h
			target = i
			if u < acc {
				break
			}
		}

		switch cur[target] {
		case Susceptible:
			kind := s.bundle.Variant.TransmissionKind()
			if err := history.SetTime(kind, target, t); err != nil {
				return nil, err
			}
			if err := s.drawInfector(rates, history, network, cur, target, t); err != nil {
				return nil, err
			}
			cur[target] = s.bundle.Variant.After(kind)
			pressure[target] = 0
			if cur[target] == Infectious {
				if err := addSource(target, 1); err != nil {
					return nil, err
				}
			}
			logrus.Debugf("[t=%.4f] %s of individual %d", t, kind, target)
		case Exposed:
			if err := history.SetTime(Infection, target, t); err != nil {
				return nil, err
			}
			cur[target] = Infectious
			if err := addSource(target, 1); err != nil {
				return nil, err
			}
			logrus.Debugf("[t=%.4f] individual %d became infectious", t, target)
		case Infectious:
			if err := history.SetTime(Removal, target, t); err != nil {
				return nil, err
			}
			if err := addSource(target, -1); err != nil {
				return nil, err
			}
			cur[target] = Removed
			logrus.Debugf("[t=%.4f] removal of individual %d", t, target)
		}
		iterations++
	}
}

// drawInfector selects the cause of target's transmission event at time t:
// an explicit categorical draw over the sparks weight and every currently
// infectious individual's contribution to the pairwise hazard sum.
func (s *Simulator) drawInfector(rates *rateCache, history *EventHistory, network *TransmissionNetwork,
	cur []Compartment, target int, t float64) error {
	n := s.pop.Size()
	weights := make([]float64, n)
	total := rates.sparks[target]
	for j := 0; j < n; j++ {
		if cur[j] != Infectious {
			continue
		}
		w, err := rates.pair(j, target)
		if err != nil {
			return err
		}
		weights[j] = w
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("individual %d: transmission fired with zero total hazard at t=%v", target, t)
	}
	u := s.rng.Float64() * total
	if u < rates.sparks[target] {
		network.SetExternal(target)
		return nil
	}
	acc := rates.sparks[target]
	last := -1
	for j := 0; j < n; j++ {
		if weights[j] == 0 {
			continue
		}
		acc += weights[j]
		last = j
		if u < acc {
			network.SetSource(j, target)
			return nil
		}
	}
	if last < 0 {
		network.SetExternal(target)
		return nil
	}
	network.SetSource(last, target)
	return nil
}
