package cmd

import (
	"fmt"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"

	"github.com/epinet-sim/epinet-sim/epi"
	"github.com/epinet-sim/epinet-sim/epi/mcmc"
)

// ScenarioConfig is the top-level YAML scenario: the population and risk
// model shared by both commands, plus per-command sections.
type ScenarioConfig struct {
	Seed       int64              `yaml:"seed"`
	Variant    string             `yaml:"variant"`
	Population PopulationConfig   `yaml:"population"`
	Risk       RiskConfig         `yaml:"risk"`
	Simulation *SimulationConfig  `yaml:"simulation"`
	Observe    *ObservationConfig `yaml:"observation"`
	Inference  *InferenceConfig   `yaml:"inference"`
}

// PopulationConfig lists individuals and optionally a precomputed distance
// matrix; without one, Euclidean distances are computed from coordinates.
type PopulationConfig struct {
	Individuals []IndividualConfig `yaml:"individuals"`
	Distances   [][]float64        `yaml:"distances"`
}

type IndividualConfig struct {
	X          float64   `yaml:"x"`
	Y          float64   `yaml:"y"`
	Covariates []float64 `yaml:"covariates"`
}

// RiskConfig selects one named risk function plus parameter vector per
// slot. Slots the variant omits must be absent.
type RiskConfig struct {
	Sparks           *RiskSlotConfig `yaml:"sparks"`
	Susceptibility   *RiskSlotConfig `yaml:"susceptibility"`
	Infectivity      *RiskSlotConfig `yaml:"infectivity"`
	Transmissibility *RiskSlotConfig `yaml:"transmissibility"`
	Latency          *RiskSlotConfig `yaml:"latency"`
	Removal          *RiskSlotConfig `yaml:"removal"`
}

type RiskSlotConfig struct {
	Function string    `yaml:"function"`
	Params   []float64 `yaml:"params"`
}

// SimulationConfig is the forward-simulation stopping policy and initial
// compartment assignment.
type SimulationConfig struct {
	TMax              float64 `yaml:"tmax"`
	WallClockSeconds  float64 `yaml:"wall_clock_seconds"`
	MaxIterations     int     `yaml:"max_iterations"`
	InitialExposed    []int   `yaml:"initial_exposed"`
	InitialInfectious []int   `yaml:"initial_infectious"`
}

// ObservationConfig drives forward observation generation.
type ObservationConfig struct {
	Horizon float64            `yaml:"horizon"`
	Delay   DistributionConfig `yaml:"delay"`
}

// DistributionConfig names a univariate distribution: fixed(v),
// normal(mu, sigma), lognormal(mu, sigma), gamma(alpha, beta),
// uniform(min, max), exponential(rate), beta(alpha, beta).
type DistributionConfig struct {
	Distribution string    `yaml:"distribution"`
	Params       []float64 `yaml:"params"`
}

// InferenceConfig drives the MCMC sampler.
type InferenceConfig struct {
	Chains          int     `yaml:"chains"`
	Sweeps          int     `yaml:"sweeps"`
	Batches         int     `yaml:"batches"`
	MaxInitAttempts int     `yaml:"max_init_attempts"`
	StepSize        float64 `yaml:"step_size"`
	AdaptSweeps     int     `yaml:"adapt_sweeps"`
	Thin            int     `yaml:"thin"`
	Horizon         float64 `yaml:"horizon"`
	CredibleMass    float64 `yaml:"credible_mass"`

	Extents ExtentsConfig                   `yaml:"extents"`
	Priors  map[string][]DistributionConfig `yaml:"priors"`

	// Observations holds per-individual observed times; null entries are
	// censored ("never observed").
	Observations *ObservationsData `yaml:"observations"`
}

type ExtentsConfig struct {
	Exposure  float64 `yaml:"exposure"`
	Infection float64 `yaml:"infection"`
	Removal   float64 `yaml:"removal"`
	Sparks    float64 `yaml:"sparks"`
}

type ObservationsData struct {
	Infection []*float64 `yaml:"infection"`
	Removal   []*float64 `yaml:"removal"`
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*ScenarioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var cfg ScenarioConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if len(cfg.Population.Individuals) == 0 {
		return nil, fmt.Errorf("scenario defines no individuals")
	}
	return &cfg, nil
}

// BuildVariant parses the scenario's disease model variant.
func (c *ScenarioConfig) BuildVariant() (epi.Variant, error) {
	return epi.ParseVariant(c.Variant)
}

// BuildPopulation constructs the population, preferring an explicit
// distance matrix over computed Euclidean distances.
func (c *ScenarioConfig) BuildPopulation() (*epi.Population, error) {
	individuals := make([]epi.Individual, len(c.Population.Individuals))
	for i, ind := range c.Population.Individuals {
		individuals[i] = epi.Individual{X: ind.X, Y: ind.Y, Covariates: ind.Covariates}
	}
	if c.Population.Distances == nil {
		return epi.NewPopulationFromCoords(individuals)
	}
	n := len(individuals)
	if len(c.Population.Distances) != n {
		return nil, fmt.Errorf("distance matrix has %d rows, population has %d individuals", len(c.Population.Distances), n)
	}
	distances := mat.NewSymDense(n, nil)
	for i, row := range c.Population.Distances {
		if len(row) != n {
			return nil, fmt.Errorf("distance matrix row %d has %d entries, want %d", i, len(row), n)
		}
		for j := i + 1; j < n; j++ {
			if row[j] != c.Population.Distances[j][i] {
				return nil, fmt.Errorf("distance matrix not symmetric at (%d,%d)", i, j)
			}
			distances.SetSym(i, j, row[j])
		}
	}
	return epi.NewPopulation(individuals, distances)
}

// individualRiskFunctions maps config names to single-individual rate
// functions and their required parameter count (-1 = depends on the
// covariate dimension).
var individualRiskFunctions = map[string]struct {
	fn     func([]float64, *epi.Population, int) float64
	params int
}{
	"zero":      {epi.ZeroRate, 0},
	"unit":      {epi.UnitRate, 0},
	"constant":  {epi.ConstantRate, 1},
	"loglinear": {epi.LogLinearRate, -1},
}

// pairRiskFunctions maps config names to pairwise transmissibility kernels.
var pairRiskFunctions = map[string]struct {
	fn     func([]float64, *epi.Population, int, int) float64
	params int
}{
	"constant":    {epi.ConstantKernel, 1},
	"powerlaw":    {epi.PowerLawKernel, 2},
	"exponential": {epi.ExponentialKernel, 2},
}

func (c *ScenarioConfig) slotConfig(name string) *RiskSlotConfig {
	switch name {
	case "sparks":
		return c.Risk.Sparks
	case "susceptibility":
		return c.Risk.Susceptibility
	case "infectivity":
		return c.Risk.Infectivity
	case "transmissibility":
		return c.Risk.Transmissibility
	case "latency":
		return c.Risk.Latency
	case "removal":
		return c.Risk.Removal
	}
	return nil
}

func slotArity(want, covDim int) int {
	if want == -1 {
		return 1 + covDim
	}
	return want
}

func checkSlotParams(slot, fn string, want int, covDim int, got []float64) error {
	if n := slotArity(want, covDim); len(got) != n {
		return fmt.Errorf("%s function %q takes %d parameter(s), got %d", slot, fn, n, len(got))
	}
	return nil
}

// BuildRiskBundle resolves the named risk functions and returns the bundle
// together with the scenario's parameter vectors. Parameter-vector lengths
// are checked here, at construction.
func (c *ScenarioConfig) BuildRiskBundle() (*epi.RiskBundle, epi.RiskParameters, error) {
	variant, err := c.BuildVariant()
	if err != nil {
		return nil, epi.RiskParameters{}, err
	}
	covDim := len(c.Population.Individuals[0].Covariates)

	var params epi.RiskParameters
	single := func(slot string) (func([]float64, *epi.Population, int) float64, error) {
		sc := c.slotConfig(slot)
		if sc == nil {
			return nil, nil
		}
		entry, ok := individualRiskFunctions[sc.Function]
		if !ok {
			return nil, fmt.Errorf("unknown %s function %q", slot, sc.Function)
		}
		if err := checkSlotParams(slot, sc.Function, entry.params, covDim, sc.Params); err != nil {
			return nil, err
		}
		params.SetSlot(slot, sc.Params)
		return entry.fn, nil
	}

	sparks, err := single("sparks")
	if err != nil {
		return nil, epi.RiskParameters{}, err
	}
	sus, err := single("susceptibility")
	if err != nil {
		return nil, epi.RiskParameters{}, err
	}
	inf, err := single("infectivity")
	if err != nil {
		return nil, epi.RiskParameters{}, err
	}
	lat, err := single("latency")
	if err != nil {
		return nil, epi.RiskParameters{}, err
	}
	rem, err := single("removal")
	if err != nil {
		return nil, epi.RiskParameters{}, err
	}

	var trans epi.TransmissibilityFunc
	if sc := c.Risk.Transmissibility; sc != nil {
		entry, ok := pairRiskFunctions[sc.Function]
		if !ok {
			return nil, epi.RiskParameters{}, fmt.Errorf("unknown transmissibility function %q", sc.Function)
		}
		if err := checkSlotParams("transmissibility", sc.Function, entry.params, covDim, sc.Params); err != nil {
			return nil, epi.RiskParameters{}, err
		}
		params.Transmissibility = sc.Params
		trans = entry.fn
	}

	var latFn epi.LatencyFunc
	if lat != nil {
		latFn = epi.LatencyFunc(lat)
	}
	var remFn epi.RemovalFunc
	if rem != nil {
		remFn = epi.RemovalFunc(rem)
	}
	bundle, err := epi.NewRiskBundle(variant, sparks, sus, inf, trans, latFn, remFn)
	if err != nil {
		return nil, epi.RiskParameters{}, err
	}
	return bundle, params, nil
}

// ValidatePriors checks that the inference priors define exactly one
// distribution per parameter dimension of each configured risk function.
// A mismatch would otherwise surface only as an index error inside a chain
// once the sampled vectors reach the risk functions.
func (c *ScenarioConfig) ValidatePriors(priors *mcmc.Priors) error {
	covDim := len(c.Population.Individuals[0].Covariates)
	for _, slot := range epi.RiskSlots {
		sc := c.slotConfig(slot)
		dims := len(priors.Slot(slot))
		if sc == nil {
			if dims > 0 {
				return fmt.Errorf("%s priors configured but the scenario defines no %s function", slot, slot)
			}
			continue
		}
		var want int
		if slot == "transmissibility" {
			entry, ok := pairRiskFunctions[sc.Function]
			if !ok {
				return fmt.Errorf("unknown transmissibility function %q", sc.Function)
			}
			want = slotArity(entry.params, covDim)
		} else {
			entry, ok := individualRiskFunctions[sc.Function]
			if !ok {
				return fmt.Errorf("unknown %s function %q", slot, sc.Function)
			}
			want = slotArity(entry.params, covDim)
		}
		if dims != want {
			return fmt.Errorf("%s function %q takes %d parameter(s), got %d prior(s)", slot, sc.Function, want, dims)
		}
	}
	return nil
}

// BuildStart converts the simulation section's initial compartment lists
// into a start vector.
func (c *ScenarioConfig) BuildStart(n int) ([]epi.Compartment, error) {
	start := epi.AllSusceptible(n)
	if c.Simulation == nil {
		return start, nil
	}
	mark := func(ids []int, comp epi.Compartment) error {
		for _, i := range ids {
			if i < 0 || i >= n {
				return fmt.Errorf("initial %s individual %d out of range [0, %d)", comp, i, n)
			}
			start[i] = comp
		}
		return nil
	}
	if err := mark(c.Simulation.InitialExposed, epi.Exposed); err != nil {
		return nil, err
	}
	if err := mark(c.Simulation.InitialInfectious, epi.Infectious); err != nil {
		return nil, err
	}
	return start, nil
}

// StoppingPolicy converts the simulation section into the engine's policy.
func (c *SimulationConfig) StoppingPolicy() epi.StoppingPolicy {
	return epi.StoppingPolicy{
		TMax:          c.TMax,
		WallClock:     time.Duration(c.WallClockSeconds * float64(time.Second)),
		MaxIterations: c.MaxIterations,
	}
}

// distribution resolves a DistributionConfig into a gonum distuv value
// exposing LogProb and Quantile.
func distribution(cfg DistributionConfig) (mcmc.Prior, error) {
	need := func(n int) error {
		if len(cfg.Params) != n {
			return fmt.Errorf("distribution %q takes %d parameter(s), got %d", cfg.Distribution, n, len(cfg.Params))
		}
		return nil
	}
	switch cfg.Distribution {
	case "normal":
		if err := need(2); err != nil {
			return nil, err
		}
		return distuv.Normal{Mu: cfg.Params[0], Sigma: cfg.Params[1]}, nil
	case "lognormal":
		if err := need(2); err != nil {
			return nil, err
		}
		return distuv.LogNormal{Mu: cfg.Params[0], Sigma: cfg.Params[1]}, nil
	case "gamma":
		if err := need(2); err != nil {
			return nil, err
		}
		return distuv.Gamma{Alpha: cfg.Params[0], Beta: cfg.Params[1]}, nil
	case "uniform":
		if err := need(2); err != nil {
			return nil, err
		}
		return distuv.Uniform{Min: cfg.Params[0], Max: cfg.Params[1]}, nil
	case "exponential":
		if err := need(1); err != nil {
			return nil, err
		}
		return distuv.Exponential{Rate: cfg.Params[0]}, nil
	case "beta":
		if err := need(2); err != nil {
			return nil, err
		}
		return distuv.Beta{Alpha: cfg.Params[0], Beta: cfg.Params[1]}, nil
	}
	return nil, fmt.Errorf("unknown distribution %q", cfg.Distribution)
}

// BuildDelaySampler resolves the observation delay distribution.
func (c *ObservationConfig) BuildDelaySampler() (epi.DelaySampler, error) {
	if c.Delay.Distribution == "fixed" {
		if len(c.Delay.Params) != 1 {
			return nil, fmt.Errorf("fixed delay takes 1 parameter, got %d", len(c.Delay.Params))
		}
		return epi.FixedDelay{D: c.Delay.Params[0]}, nil
	}
	dist, err := distribution(c.Delay)
	if err != nil {
		return nil, err
	}
	return epi.QuantileDelay{Dist: dist}, nil
}

// BuildPriors resolves the inference section's prior distributions.
func (c *InferenceConfig) BuildPriors() (*mcmc.Priors, error) {
	priors := &mcmc.Priors{}
	set := func(slot string, target *[]mcmc.Prior) error {
		for d, cfg := range c.Priors[slot] {
			dist, err := distribution(cfg)
			if err != nil {
				return fmt.Errorf("%s prior dimension %d: %w", slot, d, err)
			}
			*target = append(*target, dist)
		}
		return nil
	}
	for slot, target := range map[string]*[]mcmc.Prior{
		"sparks":           &priors.Sparks,
		"susceptibility":   &priors.Susceptibility,
		"infectivity":      &priors.Infectivity,
		"transmissibility": &priors.Transmissibility,
		"latency":          &priors.Latency,
		"removal":          &priors.Removal,
	} {
		if err := set(slot, target); err != nil {
			return nil, err
		}
	}
	return priors, nil
}

// BuildObservations converts the inline observation data; null YAML
// entries become NaN (censored).
func (c *InferenceConfig) BuildObservations(v epi.Variant) (*epi.Observations, error) {
	if c.Observations == nil {
		return nil, fmt.Errorf("inference section has no observations")
	}
	toSlice := func(in []*float64) []float64 {
		if in == nil {
			return nil
		}
		out := make([]float64, len(in))
		for i, p := range in {
			if p == nil {
				out[i] = math.NaN()
			} else {
				out[i] = *p
			}
		}
		return out
	}
	return epi.NewObservations(v, toSlice(c.Observations.Infection), toSlice(c.Observations.Removal))
}

// BuildExtents converts the extents section.
func (c *InferenceConfig) BuildExtents() epi.EventExtents {
	return epi.EventExtents{
		Exposure:  c.Extents.Exposure,
		Infection: c.Extents.Infection,
		Removal:   c.Extents.Removal,
		Sparks:    c.Extents.Sparks,
	}
}
