package mcmc

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/epinet-sim/epinet-sim/epi"
	"github.com/epinet-sim/epinet-sim/epi/trace"
)

// Config groups sampler construction parameters.
type Config struct {
	Chains          int     // number of independent chains (>= 1)
	MaxInitAttempts int     // random-restart budget per chain (>= 1)
	Batches         int     // event-time update batches per sweep (>= 1)
	StepSize        float64 // default random-walk step size (> 0)
	// StepSizes overrides StepSize per risk-slot name (optional).
	StepSizes map[string]float64
	// AdaptSweeps is the number of leading sweeps during which step sizes
	// are tuned; 0 keeps them fixed.
	AdaptSweeps int
	// Thin is the sweep interval for event-history/network snapshots in
	// the trace; 0 disables snapshots.
	Thin int
	// Parallelism bounds concurrently running chains; 0 means NumCPU.
	Parallelism int
	// Seed is the master seed; chain k draws from the stream derived for
	// SubsystemChain(k).
	Seed int64
	// Horizon is the study horizon the observations were collected under;
	// it anchors the sparks-only augmentation window.
	Horizon float64
	// Start optionally fixes the initial compartment vector; nil means
	// everyone starts susceptible and the first infection is an external
	// spark.
	Start []epi.Compartment
}

// Sampler owns one or more independent MCMC chains over a shared read-only
// model: population, risk bundle, priors, observations and extents.
type Sampler struct {
	pop     *epi.Population
	bundle  *epi.RiskBundle
	priors  *Priors
	obs     *epi.Observations
	extents epi.EventExtents
	eval    *epi.LikelihoodEvaluator
	start   []epi.Compartment
	cfg     Config

	chains []*Chain
}

// NewSampler validates the model and configuration and builds the chains
// in the Uninitialized state.
func NewSampler(pop *epi.Population, bundle *epi.RiskBundle, priors *Priors,
	obs *epi.Observations, extents epi.EventExtents, cfg Config) (*Sampler, error) {
	if pop == nil || bundle == nil || priors == nil || obs == nil {
		return nil, fmt.Errorf("nil population, risk bundle, priors or observations")
	}
	if obs.Size() != pop.Size() {
		return nil, fmt.Errorf("observation size %d does not match population size %d", obs.Size(), pop.Size())
	}
	if obs.Variant() != bundle.Variant {
		return nil, fmt.Errorf("observation variant %s does not match risk bundle variant %s", obs.Variant(), bundle.Variant)
	}
	if err := priors.Validate(bundle.Variant); err != nil {
		return nil, err
	}
	if err := extents.Validate(bundle.Variant); err != nil {
		return nil, err
	}
	if cfg.Chains < 1 {
		return nil, fmt.Errorf("chain count %d must be at least 1", cfg.Chains)
	}
	if cfg.MaxInitAttempts < 1 {
		return nil, fmt.Errorf("max initialization attempts %d must be at least 1", cfg.MaxInitAttempts)
	}
	if cfg.Batches < 1 {
		return nil, fmt.Errorf("event-time batch count %d must be at least 1", cfg.Batches)
	}
	if cfg.StepSize <= 0 {
		return nil, fmt.Errorf("step size %v must be positive", cfg.StepSize)
	}
	if cfg.Horizon <= 0 {
		return nil, fmt.Errorf("study horizon %v must be positive", cfg.Horizon)
	}
	start := cfg.Start
	if start == nil {
		start = epi.AllSusceptible(pop.Size())
	}
	if len(start) != pop.Size() {
		return nil, fmt.Errorf("start compartment vector length %d does not match population size %d", len(start), pop.Size())
	}

	eval, err := epi.NewLikelihoodEvaluator(pop, bundle)
	if err != nil {
		return nil, err
	}

	s := &Sampler{
		pop:     pop,
		bundle:  bundle,
		priors:  priors,
		obs:     obs,
		extents: extents,
		eval:    eval,
		start:   start,
		cfg:     cfg,
	}

	// Chain RNGs are all derived here, on one goroutine, before any
	// fan-out.
	prng := epi.NewPartitionedRNG(epi.NewSimulationKey(cfg.Seed))
	s.chains = make([]*Chain, cfg.Chains)
	for k := 0; k < cfg.Chains; k++ {
		steps := make(map[string]float64)
		for _, slot := range epi.RiskSlots {
			steps[slot] = cfg.StepSize
			if override, ok := cfg.StepSizes[slot]; ok {
				steps[slot] = override
			}
		}
		s.chains[k] = &Chain{
			id:      k,
			status:  Uninitialized,
			sampler: s,
			rng:     prng.ForSubsystem(epi.SubsystemChain(k)),
			steps:   steps,
			trace:   trace.NewChainTrace(k),
		}
	}
	return s, nil
}

// Chains returns the sampler's chains.
func (s *Sampler) Chains() []*Chain { return s.chains }

// Chain returns chain k.
func (s *Sampler) Chain(k int) *Chain { return s.chains[k] }

func (s *Sampler) parallelism() int {
	if s.cfg.Parallelism > 0 {
		return s.cfg.Parallelism
	}
	return runtime.NumCPU()
}

// Start initializes every chain, running chains in parallel. A chain
// exhausting its initialization attempts is marked Failed without
// aborting its siblings; Start returns an error only when no chain
// reached Ready.
func (s *Sampler) Start() error {
	var g errgroup.Group
	g.SetLimit(s.parallelism())
	for _, c := range s.chains {
		c := c
		g.Go(func() error {
			if err := c.initialize(s.cfg.MaxInitAttempts); err != nil {
				logrus.Warnf("chain %d failed to initialize: %v", c.id, err)
			}
			return nil
		})
	}
	g.Wait()

	ready := 0
	for _, c := range s.chains {
		if c.Status() == Ready {
			ready++
		}
	}
	if ready == 0 {
		return fmt.Errorf("all %d chains failed to initialize", len(s.chains))
	}
	logrus.Infof("%d/%d chains initialized", ready, len(s.chains))
	return nil
}

// Iterate runs the given number of sweeps on every Ready chain, chains in
// parallel, sweeps strictly sequential within a chain. The first fatal
// chain error is returned; that chain is marked Failed.
func (s *Sampler) Iterate(sweeps int) error {
	if sweeps < 1 {
		return fmt.Errorf("sweep count %d must be at least 1", sweeps)
	}
	var g errgroup.Group
	g.SetLimit(s.parallelism())
	for _, c := range s.chains {
		if c.Status() != Ready {
			continue
		}
		c := c
		g.Go(func() error {
			return c.iterate(sweeps)
		})
	}
	return g.Wait()
}
