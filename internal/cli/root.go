// Package cli provides the qrsim command-line interface.
package cli

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/qrepeater/internal/modules/link"
	"github.com/aristath/qrepeater/internal/modules/montecarlo"
	"github.com/aristath/qrepeater/internal/modules/simulation"
	"github.com/aristath/qrepeater/pkg/logger"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	logLevel string
	workers  int
	jsonOut  bool

	log zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "qrsim",
	Short: "Quantum repeater chain simulator",
	Long: `qrsim estimates the end-to-end fidelity and the entanglement
distribution time of a linear quantum repeater chain.

Links are modelled as Werner pairs generated over lossy fibre; entanglement
swapping folds them into one end-to-end pair and a Monte Carlo run samples
the number of attempts each link needs.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Results go to stdout; logs stay on stderr
		log = logger.New(logger.Config{
			Level:  logLevel,
			Pretty: true,
			Output: cmd.ErrOrStderr(),
		})
		return nil
	},
}

// Execute runs the root command. Cancelling ctx stops a running simulation.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "sampling goroutines (0 = one per CPU)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(sweepCmd)
}

func newSimulator() *simulation.Simulator {
	return simulation.NewSimulator(link.DefaultModel(), montecarlo.NewEngine(workers), 0, log)
}
