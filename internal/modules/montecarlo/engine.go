// Package montecarlo samples how many heralding attempts every link of a
// repeater chain needs, and reduces the samples to end-to-end success and
// latency statistics.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/qrepeater/pkg/formulas"
)

// ShardSize is the number of trials drawn from one random stream.
const ShardSize = 4096

// ErrInvalidConfig is returned for a run configuration that cannot be sampled.
var ErrInvalidConfig = errors.New("montecarlo: invalid configuration")

// Config describes one sampling run.
type Config struct {
	Trials int
	// SuccessRates holds the per-attempt success probability of each link.
	SuccessRates []float64
	// SignalTimes holds the one-way signalling time of each link in seconds.
	SignalTimes []float64
	Seed        uint64
	// KeepAttempts retains the full Trials×links attempt matrix.
	KeepAttempts bool
}

// Stats is the mean and population variance of a per-trial quantity.
type Stats struct {
	Mean     float64 `json:"mean" msgpack:"mean"`
	Variance float64 `json:"variance" msgpack:"variance"`
}

// Result aggregates one run.
type Result struct {
	// OverallSuccessRate is links/sum(attempts) per trial.
	OverallSuccessRate []float64
	OverallSuccess     Stats
	BottleneckAttempts Stats
	BottleneckTime     Stats
	// Attempts is nil unless Config.KeepAttempts was set.
	Attempts *mat.Dense
}

// Engine runs trials in shards on a worker pool. A given seed always yields
// the same result, whatever the pool size.
type Engine struct {
	pool *WorkerPool
}

// NewEngine creates an engine backed by a pool of the given size.
func NewEngine(workers int) *Engine {
	return &Engine{pool: NewWorkerPool(workers)}
}

// Workers returns the number of sampling goroutines.
func (e *Engine) Workers() int {
	return e.pool.Workers()
}

// Samplable reports whether trials draws with success probability p keep the
// summed squared deviations of the attempt counts finite.
func Samplable(p float64, trials int) bool {
	return !math.IsInf(float64(trials)*formulas.GeometricVariance(p), 0)
}

// Validate checks that cfg describes a samplable run.
func (cfg Config) Validate() error {
	if cfg.Trials <= 0 {
		return fmt.Errorf("%w: trials must be positive, got %d", ErrInvalidConfig, cfg.Trials)
	}
	if len(cfg.SuccessRates) == 0 {
		return fmt.Errorf("%w: at least one link is required", ErrInvalidConfig)
	}
	if len(cfg.SignalTimes) != len(cfg.SuccessRates) {
		return fmt.Errorf("%w: %d signal times for %d links", ErrInvalidConfig, len(cfg.SignalTimes), len(cfg.SuccessRates))
	}
	for i, p := range cfg.SuccessRates {
		if !(p > 0 && p <= 1) {
			return fmt.Errorf("%w: success rate of link %d must be within (0,1], got %g", ErrInvalidConfig, i, p)
		}
		if !Samplable(p, cfg.Trials) {
			return fmt.Errorf("%w: success rate %g of link %d overflows the attempt statistics", ErrInvalidConfig, p, i)
		}
	}
	for i, t := range cfg.SignalTimes {
		if !(t >= 0) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: signal time of link %d must be finite and non-negative, got %g", ErrInvalidConfig, i, t)
		}
	}
	return nil
}

// Run samples cfg.Trials independent trials.
//
// For every trial each link draws a geometric attempt count. The trial's
// overall success rate is links/sum(attempts), its bottleneck is the largest
// attempt count, and its time is max over links of (2·attempts+1)·signalTime:
// every attempt waits for the herald to return and one more one-way message
// announces the result.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	links := len(cfg.SuccessRates)
	successRate := make([]float64, cfg.Trials)
	bottleneck := make([]float64, cfg.Trials)
	elapsed := make([]float64, cfg.Trials)

	var attempts *mat.Dense
	if cfg.KeepAttempts {
		attempts = mat.NewDense(cfg.Trials, links, nil)
	}

	shards := (cfg.Trials + ShardSize - 1) / ShardSize
	err := e.pool.Execute(ctx, shards, func(shard int) error {
		start := shard * ShardSize
		end := min(start+ShardSize, cfg.Trials)

		// Stream 0 is reserved for the chain generator.
		src := rand.NewPCG(cfg.Seed, uint64(shard)+1)
		dists := make([]Geometric, links)
		for i, p := range cfg.SuccessRates {
			dists[i] = NewGeometric(p, src)
		}

		row := make([]float64, links)
		for trial := start; trial < end; trial++ {
			worst := 0.0
			for i := range dists {
				row[i] = dists[i].Rand()
				if t := (2*row[i] + 1) * cfg.SignalTimes[i]; t > worst {
					worst = t
				}
			}

			successRate[trial] = float64(links) / floats.Sum(row)
			bottleneck[trial] = floats.Max(row)
			elapsed[trial] = worst
			if attempts != nil {
				attempts.SetRow(trial, row)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		OverallSuccessRate: successRate,
		Attempts:           attempts,
	}
	res.OverallSuccess.Mean, res.OverallSuccess.Variance = formulas.PopMeanVariance(successRate)
	res.BottleneckAttempts.Mean, res.BottleneckAttempts.Variance = formulas.PopMeanVariance(bottleneck)
	res.BottleneckTime.Mean, res.BottleneckTime.Variance = formulas.PopMeanVariance(elapsed)

	return res, nil
}
