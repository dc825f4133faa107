package cli

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/aristath/qrepeater/internal/modules/simulation"
	"github.com/aristath/qrepeater/internal/modules/sweep"
)

var (
	sweepPlanFile string
	sweepTrials   int
	sweepMetric   string
	sweepSeed     uint64
	sweepBoth     bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep [kind]",
	Short: "Sweep one chain parameter",
	Long: `Run a simulation for every value of one parameter and print one row per
value and chain layout.

Kinds:
  link_length       total chain length in km
  initial_fidelity  fixed fidelity of every link
  repeater_count    number of intermediate repeaters

Without --plan the default range of the kind is used.

Examples:
  qrsim sweep link_length
  qrsim sweep repeater_count --metric success_rate --trials 50000
  qrsim sweep --plan plan.yaml --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVarP(&sweepPlanFile, "plan", "p", "", "YAML plan file")
	sweepCmd.Flags().IntVarP(&sweepTrials, "trials", "n", 0, "trials per point (overrides the plan)")
	sweepCmd.Flags().StringVarP(&sweepMetric, "metric", "m", "", "metric to report: time, success_rate or attempts")
	sweepCmd.Flags().Uint64Var(&sweepSeed, "seed", 0, "seed of the first point (0 = pick one)")
	sweepCmd.Flags().BoolVar(&sweepBoth, "asymmetric", false, "also simulate a random partition for every value")
}

func sweepPlan(cmd *cobra.Command, args []string) (sweep.Plan, error) {
	var plan sweep.Plan
	switch {
	case sweepPlanFile != "" && len(args) > 0:
		return plan, errors.New("give either a kind or --plan, not both")
	case sweepPlanFile != "":
		var err error
		if plan, err = sweep.LoadPlan(sweepPlanFile); err != nil {
			return plan, err
		}
	case len(args) == 1:
		plan = sweep.DefaultPlan(sweep.Kind(args[0]))
	default:
		return plan, errors.New("a sweep kind or --plan is required")
	}

	if sweepTrials > 0 {
		plan.Base.Trials = sweepTrials
	}
	if cmd.Flags().Changed("metric") {
		plan.Metric = simulation.Metric(sweepMetric)
	}
	if sweepSeed != 0 {
		plan.Seed = sweepSeed
	}
	if sweepBoth {
		plan.IncludeAsymmetric = true
	}
	return plan, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	plan, err := sweepPlan(cmd, args)
	if err != nil {
		return err
	}

	runner := sweep.NewRunner(newSimulator(), nil, nil, log)
	s, err := runner.Run(cmd.Context(), plan)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return writeJSON(out, s)
	}
	printSweep(out, s)
	return nil
}

func printSweep(w io.Writer, s *sweep.Sweep) {
	fmt.Fprintf(w, "Sweep %s over %s (%d points, metric %s, seed %d)\n\n",
		s.ID, s.Plan.Kind, len(s.Points), s.Plan.Metric, s.Plan.Seed)
	fmt.Fprintf(w, "%-10s  %-10s  %-14s  %-14s  %-12s  %s\n",
		"value", "variant", "final_fidelity", "success_rate", "attempts", "time_s")
	for _, p := range s.Points {
		final := "n/a"
		if !math.IsNaN(p.FinalFidelity) {
			final = fmt.Sprintf("%.4f", p.FinalFidelity)
		}
		fmt.Fprintf(w, "%-10g  %-10s  %-14s  %-14.6g  %-12.4g  %.6g\n",
			p.Value, p.Variant, final, p.SuccessRateMean, p.AttemptsMean, p.TimeMean)
	}
}
