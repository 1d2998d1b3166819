package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel     string // Log verbosity level
	scenarioPath string // Path to the scenario YAML file
	seed         int64  // Master seed overriding the scenario's seed
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "epinet-sim",
	Short: "Individual-level epidemic simulation and transmission-network inference",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up persistent CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&scenarioPath, "scenario", "scenario.yaml", "Path to the scenario YAML file")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "Master seed (overrides the scenario seed when non-zero)")
}
