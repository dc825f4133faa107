package simulation

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/qrepeater/internal/modules/montecarlo"
)

// Stats is the mean and population variance of a per-trial quantity.
type Stats = montecarlo.Stats

// Metric selects the summary statistic a sweep reports as its primary value.
type Metric string

const (
	MetricSuccessRate Metric = "success_rate"
	MetricTime        Metric = "time"
	MetricAttempts    Metric = "attempts"
)

// DefaultMetric is used when a caller does not choose one.
const DefaultMetric = MetricTime

// ParseMetric resolves a metric name. The empty string selects DefaultMetric.
func ParseMetric(name string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(name))); m {
	case "":
		return DefaultMetric, nil
	case MetricSuccessRate, MetricTime, MetricAttempts:
		return m, nil
	default:
		return "", newConfigError("metric", "unknown metric %q (want success_rate, time or attempts)", name)
	}
}

// Result is the full output of one run.
type Result struct {
	Params Params `json:"params" msgpack:"params"`
	// Seed is the seed actually used, also when Params.Seed was zero.
	Seed        uint64    `json:"seed" msgpack:"seed"`
	LinkLengths []float64 `json:"link_lengths_km" msgpack:"link_lengths_km"`

	InitialFidelities []float64 `json:"initial_fidelities" msgpack:"initial_fidelities"`
	// FidelityTrajectory[0] is the first link's fidelity; entry k is the
	// fidelity after folding in link k.
	FidelityTrajectory []float64 `json:"fidelity_trajectory" msgpack:"fidelity_trajectory"`
	// Degenerate is set when a swap had zero probability; the trajectory
	// holds NaN from that point on.
	Degenerate bool `json:"degenerate" msgpack:"degenerate"`

	LinkSuccessRates []float64 `json:"link_success_rates" msgpack:"link_success_rates"`
	SignalTimes      []float64 `json:"signal_times_s" msgpack:"signal_times_s"`

	OverallSuccessRateSamples []float64 `json:"overall_success_rate_samples,omitempty" msgpack:"overall_success_rate_samples,omitempty"`
	OverallSuccessRate        Stats     `json:"overall_success_rate" msgpack:"overall_success_rate"`
	BottleneckAttempts        Stats     `json:"bottleneck_attempts" msgpack:"bottleneck_attempts"`
	BottleneckTime            Stats     `json:"bottleneck_time_s" msgpack:"bottleneck_time_s"`

	// Attempts is only populated with Options.KeepAttempts and is never
	// serialized.
	Attempts *mat.Dense `json:"-" msgpack:"-"`

	Elapsed time.Duration `json:"elapsed_ns" msgpack:"elapsed_ns"`
}

// FinalFidelity returns the last entry of the trajectory.
func (r *Result) FinalFidelity() float64 {
	return r.FidelityTrajectory[len(r.FidelityTrajectory)-1]
}

// Metric returns the mean of the chosen statistic.
func (r *Result) Metric(m Metric) (float64, error) {
	switch m {
	case MetricSuccessRate:
		return r.OverallSuccessRate.Mean, nil
	case MetricTime:
		return r.BottleneckTime.Mean, nil
	case MetricAttempts:
		return r.BottleneckAttempts.Mean, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", m)
	}
}

// Summary returns a copy without the per-trial samples and attempt matrix.
func (r *Result) Summary() *Result {
	out := *r
	out.OverallSuccessRateSamples = nil
	out.Attempts = nil
	return &out
}
