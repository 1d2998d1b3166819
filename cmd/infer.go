package cmd

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/epinet-sim/epinet-sim/epi/mcmc"
	"github.com/epinet-sim/epinet-sim/epi/trace"
)

var summaryPath string // Destination for the posterior summary YAML

// inferCmd runs data-augmentation MCMC over the scenario's observations.
var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Infer risk parameters and the transmission network from observations",
	Run: func(cmd *cobra.Command, args []string) {
		scenario, err := LoadScenario(scenarioPath)
		if err != nil {
			logrus.Fatalf("Loading scenario: %v", err)
		}
		inference := scenario.Inference
		if inference == nil {
			logrus.Fatalf("Scenario has no inference section")
		}

		pop, err := scenario.BuildPopulation()
		if err != nil {
			logrus.Fatalf("Building population: %v", err)
		}
		bundle, _, err := scenario.BuildRiskBundle()
		if err != nil {
			logrus.Fatalf("Building risk bundle: %v", err)
		}
		priors, err := inference.BuildPriors()
		if err != nil {
			logrus.Fatalf("Building priors: %v", err)
		}
		if err := scenario.ValidatePriors(priors); err != nil {
			logrus.Fatalf("Validating priors: %v", err)
		}
		obs, err := inference.BuildObservations(bundle.Variant)
		if err != nil {
			logrus.Fatalf("Building observations: %v", err)
		}

		masterSeed := scenario.Seed
		if seed != 0 {
			masterSeed = seed
		}
		sampler, err := mcmc.NewSampler(pop, bundle, priors, obs, inference.BuildExtents(), mcmc.Config{
			Chains:          inference.Chains,
			MaxInitAttempts: inference.MaxInitAttempts,
			Batches:         inference.Batches,
			StepSize:        inference.StepSize,
			AdaptSweeps:     inference.AdaptSweeps,
			Thin:            inference.Thin,
			Seed:            masterSeed,
			Horizon:         inference.Horizon,
		})
		if err != nil {
			logrus.Fatalf("Building sampler: %v", err)
		}

		began := time.Now()
		if err := sampler.Start(); err != nil {
			logrus.Fatalf("Initialization: %v", err)
		}
		if err := sampler.Iterate(inference.Sweeps); err != nil {
			logrus.Fatalf("Iteration: %v", err)
		}
		logrus.Infof("Inference complete in %v", time.Since(began).Round(time.Millisecond))

		credMass := inference.CredibleMass
		if credMass == 0 {
			credMass = 0.95
		}
		var summaries []*trace.Summary
		for _, chain := range sampler.Chains() {
			if chain.Status() == mcmc.Failed {
				logrus.Warnf("chain %d failed: %v", chain.ID(), chain.Err())
				continue
			}
			summary, err := trace.Summarize(chain.Trace(), credMass)
			if err != nil {
				logrus.Fatalf("Summarizing chain %d: %v", chain.ID(), err)
			}
			logrus.Infof("chain %d: mean log-likelihood %.4f", chain.ID(), summary.MeanLogLikelihood)
			summaries = append(summaries, summary)
		}

		if err := writeYAML(summaryPath, summaries); err != nil {
			logrus.Fatalf("Writing summary: %v", err)
		}
	},
}

func init() {
	inferCmd.Flags().StringVar(&summaryPath, "output", "-", "Posterior summary file path (- for stdout)")
	rootCmd.AddCommand(inferCmd)
}
