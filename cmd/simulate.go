package cmd

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/epinet-sim/epinet-sim/epi"
)

var (
	outputPath       string // Destination for the simulation result YAML
	emitObservations bool   // Also generate delayed/censored observations
)

// simulateCmd runs a forward epidemic simulation from a scenario file.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a forward epidemic simulation",
	Run: func(cmd *cobra.Command, args []string) {
		scenario, err := LoadScenario(scenarioPath)
		if err != nil {
			logrus.Fatalf("Loading scenario: %v", err)
		}
		if scenario.Simulation == nil {
			logrus.Fatalf("Scenario has no simulation section")
		}

		pop, err := scenario.BuildPopulation()
		if err != nil {
			logrus.Fatalf("Building population: %v", err)
		}
		bundle, params, err := scenario.BuildRiskBundle()
		if err != nil {
			logrus.Fatalf("Building risk bundle: %v", err)
		}
		start, err := scenario.BuildStart(pop.Size())
		if err != nil {
			logrus.Fatalf("Building initial compartments: %v", err)
		}

		masterSeed := scenario.Seed
		if seed != 0 {
			masterSeed = seed
		}
		prng := epi.NewPartitionedRNG(epi.NewSimulationKey(masterSeed))

		logrus.Infof("Starting %s simulation over %d individuals, seed=%d",
			bundle.Variant, pop.Size(), masterSeed)
		began := time.Now()

		sim, err := epi.NewSimulator(pop, bundle, params, prng.ForSubsystem(epi.SubsystemSimulation))
		if err != nil {
			logrus.Fatalf("Building simulator: %v", err)
		}
		result, err := sim.Run(start, scenario.Simulation.StoppingPolicy())
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Infof("Simulation complete in %v: %d events, stopped because %s",
			time.Since(began).Round(time.Millisecond), result.Iterations, result.Reason)

		out := renderResult(result)
		if emitObservations {
			if scenario.Observe == nil {
				logrus.Fatalf("Scenario has no observation section")
			}
			delays, err := scenario.Observe.BuildDelaySampler()
			if err != nil {
				logrus.Fatalf("Building delay sampler: %v", err)
			}
			obs, err := epi.Observe(result.Events, delays, scenario.Observe.Horizon, prng.ForSubsystem(epi.SubsystemObservation))
			if err != nil {
				logrus.Fatalf("Generating observations: %v", err)
			}
			out.Observations = renderObservations(obs)
		}

		if err := writeYAML(outputPath, out); err != nil {
			logrus.Fatalf("Writing result: %v", err)
		}
	},
}

// resultOutput is the YAML shape of a completed simulation.
type resultOutput struct {
	Reason       string             `yaml:"stop_reason"`
	FinalTime    float64            `yaml:"final_time"`
	Events       int                `yaml:"events"`
	Individuals  []individualOutput `yaml:"individuals"`
	Network      []transmissionEdge `yaml:"network"`
	Observations *ObservationsData  `yaml:"observations,omitempty"`
}

type individualOutput struct {
	ID        int      `yaml:"id"`
	Exposure  *float64 `yaml:"exposure,omitempty"`
	Infection *float64 `yaml:"infection,omitempty"`
	Removal   *float64 `yaml:"removal,omitempty"`
}

type transmissionEdge struct {
	Target   int  `yaml:"target"`
	Source   *int `yaml:"source,omitempty"`
	External bool `yaml:"external,omitempty"`
}

func optTime(t float64) *float64 {
	if math.IsNaN(t) {
		return nil
	}
	return &t
}

func renderResult(result *epi.SimulationResult) *resultOutput {
	out := &resultOutput{
		Reason:    result.Reason.String(),
		FinalTime: result.FinalTime,
		Events:    result.Iterations,
	}
	h := result.Events
	for i := 0; i < h.Size(); i++ {
		ind := individualOutput{ID: i}
		if h.Variant().HasExposed() {
			ind.Exposure = optTime(h.Time(epi.Exposure, i))
		}
		ind.Infection = optTime(h.Time(epi.Infection, i))
		if h.Variant().HasRemoved() {
			ind.Removal = optTime(h.Time(epi.Removal, i))
		}
		out.Individuals = append(out.Individuals, ind)

		if result.Network.External(i) {
			out.Network = append(out.Network, transmissionEdge{Target: i, External: true})
		} else if j, ok := result.Network.Source(i); ok {
			src := j
			out.Network = append(out.Network, transmissionEdge{Target: i, Source: &src})
		}
	}
	return out
}

func renderObservations(obs *epi.Observations) *ObservationsData {
	data := &ObservationsData{}
	for i := 0; i < obs.Size(); i++ {
		data.Infection = append(data.Infection, optTime(obs.Infection(i)))
		if obs.Variant().HasRemoved() {
			data.Removal = append(data.Removal, optTime(obs.Removal(i)))
		}
	}
	return data
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func init() {
	simulateCmd.Flags().StringVar(&outputPath, "output", "-", "Result file path (- for stdout)")
	simulateCmd.Flags().BoolVar(&emitObservations, "emit-observations", false, "Also generate delayed/censored observations")
	rootCmd.AddCommand(simulateCmd)
}
