package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/qrepeater/internal/modules/simulation"
	"github.com/aristath/qrepeater/pkg/formulas"
)

var (
	simTrials     int
	simLength     float64
	simRepeaters  int
	simAsymmetric bool
	simLengths    []float64
	simFidelity   float64
	simSeed       uint64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one repeater chain simulation",
	Long: `Run a Monte Carlo estimate for a single chain and print its fidelity
trajectory and timing statistics.

The chain is split symmetrically by default. --asymmetric draws a random
partition of the total length and --lengths gives the partition explicitly.
Without --fidelity each link's fidelity follows from its length.

Examples:
  qrsim simulate --length 200 --repeaters 3
  qrsim simulate --length 300 --repeaters 5 --asymmetric --seed 42
  qrsim simulate --lengths 20,50,30 --fidelity 0.9 --json`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVarP(&simTrials, "trials", "n", 10000, "number of Monte Carlo trials")
	simulateCmd.Flags().Float64VarP(&simLength, "length", "l", 100, "total chain length in km")
	simulateCmd.Flags().IntVarP(&simRepeaters, "repeaters", "r", 2, "number of intermediate repeaters")
	simulateCmd.Flags().BoolVar(&simAsymmetric, "asymmetric", false, "draw a random partition of the total length")
	simulateCmd.Flags().Float64SliceVar(&simLengths, "lengths", nil, "explicit link lengths in km")
	simulateCmd.Flags().Float64VarP(&simFidelity, "fidelity", "f", 0, "use this initial fidelity for every link")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", 0, "random seed (0 = pick one)")

	simulateCmd.MarkFlagsMutuallyExclusive("asymmetric", "lengths")
}

func simulateParams(cmd *cobra.Command) simulation.Params {
	p := simulation.Params{
		Trials:               simTrials,
		TotalLength:          simLength,
		Repeaters:            simRepeaters,
		Symmetric:            !simAsymmetric && len(simLengths) == 0,
		RandomizedAsymmetric: simAsymmetric,
		Seed:                 simSeed,
	}
	if len(simLengths) > 0 {
		p.LinkLengths = simLengths
		if !cmd.Flags().Changed("repeaters") {
			p.Repeaters = len(simLengths) - 1
		}
	}
	if cmd.Flags().Changed("fidelity") {
		p.UseFixedFidelity = true
		p.FixedFidelity = simFidelity
	}
	return p
}

func runSimulate(cmd *cobra.Command, args []string) error {
	res, err := newSimulator().Simulate(cmd.Context(), simulateParams(cmd), simulation.Options{})
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return writeJSON(out, res)
	}
	printResult(out, res)
	return nil
}

func printResult(w io.Writer, res *simulation.Result) {
	fmt.Fprintf(w, "Chain: %d links, %s partition, seed %d\n\n",
		len(res.LinkLengths), res.Params.Mode(), res.Seed)

	fmt.Fprintf(w, "Link lengths (km):      %s\n", joinFloats(res.LinkLengths, "%.2f"))
	fmt.Fprintf(w, "Initial fidelities:     %s\n", joinFloats(res.InitialFidelities, "%.4f"))
	fmt.Fprintf(w, "Fidelity trajectory:    %s\n", joinFloats(res.FidelityTrajectory, "%.4f"))
	fmt.Fprintf(w, "Final fidelity:         %.4f\n", res.FinalFidelity())
	if res.Degenerate {
		fmt.Fprintln(w, "Warning: a swap had zero success probability")
	}
	fmt.Fprintln(w)

	trials := res.Params.Trials
	for _, row := range []struct {
		label string
		stats simulation.Stats
	}{
		{"Overall success rate:", res.OverallSuccessRate},
		{"Bottleneck attempts:", res.BottleneckAttempts},
		{"Bottleneck time (s):", res.BottleneckTime},
	} {
		fmt.Fprintf(w, "%-23s %.6g ± %.2g (variance %.3g)\n", row.label,
			row.stats.Mean, formulas.StandardError(row.stats.Variance, trials), row.stats.Variance)
	}
	fmt.Fprintf(w, "\n%d trials in %s\n", trials, res.Elapsed)
}

func joinFloats(values []float64, format string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf(format, v)
	}
	return strings.Join(parts, " ")
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
