package mcmc

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/epinet-sim/epinet-sim/epi"
	"github.com/epinet-sim/epinet-sim/epi/trace"
)

// ChainStatus is the lifecycle state of one chain.
type ChainStatus int

const (
	Uninitialized ChainStatus = iota
	Initializing
	Ready
	Iterating
	Stopped
	Failed
)

func (s ChainStatus) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Iterating:
		return "iterating"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Chain holds the exclusively-owned state of one MCMC chain: current
// parameters, augmented event history, transmission network, running
// log-likelihood and a chain-local RNG. Chains never share mutable state;
// the population and risk bundle they reference are read-only.
type Chain struct {
	id     int
	status ChainStatus
	err    error

	sampler *Sampler
	rng     *rand.Rand
	steps   map[string]float64

	params   epi.RiskParameters
	events   *epi.EventHistory
	network  *epi.TransmissionNetwork
	logLik   float64
	logPrior float64

	sweep int
	trace *trace.ChainTrace
}

// ID returns the chain index.
func (c *Chain) ID() int { return c.id }

// Status returns the lifecycle state.
func (c *Chain) Status() ChainStatus { return c.status }

// Err returns the fatal error of a Failed chain, nil otherwise.
func (c *Chain) Err() error { return c.err }

// Trace returns the chain's sweep trace.
func (c *Chain) Trace() *trace.ChainTrace { return c.trace }

// Params returns a copy of the current parameter state.
func (c *Chain) Params() epi.RiskParameters { return c.params.Copy() }

// Events returns a copy of the current augmented event history.
func (c *Chain) Events() *epi.EventHistory { return c.events.Copy() }

// Network returns a copy of the current transmission network.
func (c *Chain) Network() *epi.TransmissionNetwork { return c.network.Copy() }

// LogLikelihood returns the running log-likelihood.
func (c *Chain) LogLikelihood() float64 { return c.logLik }

// Stop marks the chain Stopped; further iteration requests are rejected.
func (c *Chain) Stop() {
	if c.status == Ready || c.status == Iterating {
		c.status = Stopped
	}
}

// initialize performs bounded random-restart initialization: draw
// parameters from the priors and a candidate event history plus network
// consistent with the observations and extents, and accept the first
// attempt with a structurally valid, finite log-likelihood. Exhausting
// every attempt is fatal for this chain only; no partial state is left
// behind.
func (c *Chain) initialize(maxAttempts int) (err error) {
	defer c.recoverPanic(&err)
	c.status = Initializing
	s := c.sampler
	n := s.pop.Size()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		params := s.priors.Sample(c.rng)
		logPrior, err := s.priors.LogPrior(params)
		if err != nil {
			c.fail(err)
			return c.err
		}
		if math.IsInf(logPrior, -1) {
			continue
		}

		events, err := epi.NewEventHistory(s.bundle.Variant, s.start)
		if err != nil {
			c.fail(err)
			return c.err
		}
		ok := true
		for i := 0; i < n && ok; i++ {
			ok = drawLatentTimes(events, s.obs, s.extents, s.cfg.Horizon, c.rng, i, true)
		}
		if !ok {
			continue
		}

		network := epi.NewTransmissionNetwork(n)
		for i := 0; i < n && ok; i++ {
			if !events.Infected(i) {
				continue
			}
			j, external, drawn := drawSource(s.bundle, params, s.pop, events, c.rng, i)
			if !drawn {
				ok = false
				break
			}
			if external {
				network.SetExternal(i)
			} else {
				network.SetSource(j, i)
			}
		}
		if !ok {
			continue
		}

		logLik, err := s.eval.LogLikelihood(params, events, network)
		if err != nil {
			if errors.Is(err, epi.ErrInvalidRealization) {
				continue
			}
			c.fail(err)
			return c.err
		}
		if math.IsInf(logLik, 0) || math.IsNaN(logLik) {
			continue
		}

		c.params = params
		c.events = events
		c.network = network
		c.logLik = logLik
		c.logPrior = logPrior
		c.status = Ready
		logrus.Infof("chain %d initialized after %d attempt(s), log-likelihood %.4f", c.id, attempt, logLik)
		return nil
	}

	c.fail(fmt.Errorf("chain %d: initialization exhausted after %d attempts", c.id, maxAttempts))
	return c.err
}

func (c *Chain) fail(err error) {
	c.status = Failed
	c.err = err
	c.params = epi.RiskParameters{}
	c.events = nil
	c.network = nil
	c.logLik = 0
	c.logPrior = 0
}

// recoverPanic converts a panic out of a user-supplied risk function (for
// example an index error from a parameter vector shorter than the function
// reads) into a Failed state for this chain only, instead of unwinding
// through the sampler's goroutine group and killing sibling chains.
func (c *Chain) recoverPanic(err *error) {
	if r := recover(); r != nil {
		c.fail(fmt.Errorf("chain %d: risk function panicked: %v", c.id, r))
		*err = c.err
	}
}

// iterate runs the given number of sweeps. Each sweep updates, in
// sequence, the risk parameters (per-group random-walk Metropolis), the
// latent event times (batched proposals within the extents), and the
// transmission network (Gibbs resampling from the full conditional).
// Rejection of one sub-step never blocks the others.
func (c *Chain) iterate(sweeps int) (err error) {
	defer c.recoverPanic(&err)
	if c.status != Ready {
		return fmt.Errorf("chain %d is %s, want ready", c.id, c.status)
	}
	c.status = Iterating
	for s := 0; s < sweeps; s++ {
		c.sweep++
		paramsAccepted, err := c.updateParameters()
		if err != nil {
			c.fail(err)
			return c.err
		}
		batchesAccepted, batches, err := c.updateEventTimes()
		if err != nil {
			c.fail(err)
			return c.err
		}
		if err := c.updateNetwork(); err != nil {
			c.fail(err)
			return c.err
		}

		rec := trace.SweepRecord{
			Sweep:                c.sweep,
			Params:               c.params.Copy(),
			LogLikelihood:        c.logLik,
			LogPrior:             c.logPrior,
			ParamsAccepted:       paramsAccepted,
			EventBatchesAccepted: batchesAccepted,
			EventBatches:         batches,
		}
		if thin := c.sampler.cfg.Thin; thin > 0 && c.sweep%thin == 0 {
			rec.Events = c.events.Copy()
			rec.Network = c.network.Copy()
		}
		c.trace.Record(rec)
		logrus.Debugf("chain %d sweep %d: log-likelihood %.4f", c.id, c.sweep, c.logLik)
	}
	c.status = Ready
	return nil
}

// updateParameters proposes a Gaussian random-walk perturbation per
// non-empty parameter group and accepts or rejects it by the
// Metropolis-Hastings ratio against the priors. During the configured
// adaptation window the per-group step sizes are nudged toward a moderate
// acceptance rate.
func (c *Chain) updateParameters() (map[string]bool, error) {
	s := c.sampler
	accepted := make(map[string]bool)
	for _, slot := range epi.RiskSlots {
		group := c.params.Slot(slot)
		if len(group) == 0 {
			continue
		}
		prop := c.params.Copy()
		vec := prop.Slot(slot)
		for d := range vec {
			vec[d] += c.rng.NormFloat64() * c.steps[slot]
		}

		accept := false
		newPrior, err := s.priors.LogPrior(prop)
		if err != nil {
			return nil, err
		}
		if !math.IsInf(newPrior, -1) {
			newLik, err := s.eval.LogLikelihood(prop, c.events, c.network)
			switch {
			case err == nil:
				logAlpha := newLik + newPrior - c.logLik - c.logPrior
				if math.Log(c.rng.Float64()) < logAlpha {
					c.params = prop
					c.logLik = newLik
					c.logPrior = newPrior
					accept = true
				}
			case errors.Is(err, epi.ErrInvalidRealization):
				// Proposal moved a realized event outside the support;
				// plain rejection.
			default:
				return nil, err
			}
		}
		accepted[slot] = accept

		if c.sweep <= s.cfg.AdaptSweeps {
			if accept {
				c.steps[slot] *= 1.05
			} else {
				c.steps[slot] *= 0.95
			}
		}
	}
	return accepted, nil
}

// updateEventTimes partitions the augmented individuals into batches and
// proposes fresh latent times per batch within the extents windows,
// accepting or rejecting each batch by the likelihood ratio. Structurally
// invalid proposals are rejected before they can become the accepted
// state.
func (c *Chain) updateEventTimes() (acceptedBatches, batches int, err error) {
	s := c.sampler
	ids := c.augmentedIndividuals()
	if len(ids) == 0 {
		return 0, 0, nil
	}
	c.rng.Shuffle(len(ids), func(a, b int) { ids[a], ids[b] = ids[b], ids[a] })

	batches = s.cfg.Batches
	if batches > len(ids) {
		batches = len(ids)
	}
	size := (len(ids) + batches - 1) / batches
	for b := 0; b < batches; b++ {
		lo := b * size
		hi := lo + size
		if hi > len(ids) {
			hi = len(ids)
		}
		if lo >= hi {
			continue
		}

		prop := c.events.Copy()
		ok := true
		// hastings accumulates log q(old) − log q(new); only the exposure
		// windows contribute, their widths depending on the infection times.
		hastings := 0.0
		for _, i := range ids[lo:hi] {
			hastings += exposureProposalLogDensity(c.events, s.extents, i)
			clearLatentTimes(prop, i)
			if !drawLatentTimes(prop, s.obs, s.extents, s.cfg.Horizon, c.rng, i, false) {
				ok = false
				break
			}
			hastings -= exposureProposalLogDensity(prop, s.extents, i)
		}
		if !ok {
			continue
		}

		newLik, evalErr := s.eval.LogLikelihood(c.params, prop, c.network)
		if evalErr != nil {
			if errors.Is(evalErr, epi.ErrInvalidRealization) {
				continue
			}
			return 0, 0, evalErr
		}
		if math.Log(c.rng.Float64()) < newLik-c.logLik+hastings {
			c.events = prop
			c.logLik = newLik
			acceptedBatches++
		}
	}
	return acceptedBatches, batches, nil
}

// augmentedIndividuals lists the individuals carrying latent event times:
// everyone with a transmission event, plus initial infectives with a
// latent removal. The infected set is fixed after initialization; sweeps
// move times, not infection status.
func (c *Chain) augmentedIndividuals() []int {
	var ids []int
	v := c.events.Variant()
	for i := 0; i < c.events.Size(); i++ {
		if c.events.Infected(i) {
			ids = append(ids, i)
			continue
		}
		if c.events.Start(i) == epi.Infectious && v.HasRemoved() && !math.IsNaN(c.events.Time(epi.Removal, i)) {
			ids = append(ids, i)
		}
	}
	return ids
}

// updateNetwork resamples each infected individual's transmission cause
// from its exact full conditional under the current parameters and times,
// a Gibbs step that is always accepted. The running log-likelihood is refreshed
// afterwards because the realized transmission hazards changed.
func (c *Chain) updateNetwork() error {
	s := c.sampler
	changed := false
	for i := 0; i < c.events.Size(); i++ {
		if !c.events.Infected(i) {
			continue
		}
		j, external, ok := drawSource(s.bundle, c.params, s.pop, c.events, c.rng, i)
		if !ok {
			return fmt.Errorf("chain %d: no admissible transmission cause for individual %d", c.id, i)
		}
		if external {
			c.network.SetExternal(i)
		} else {
			c.network.SetSource(j, i)
		}
		changed = true
	}
	if !changed {
		return nil
	}
	logLik, err := s.eval.LogLikelihood(c.params, c.events, c.network)
	if err != nil {
		return err
	}
	c.logLik = logLik
	return nil
}
