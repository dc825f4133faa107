// Package simulation runs a complete repeater-chain estimate: it partitions
// the chain, folds the link states into the end-to-end fidelity trajectory and
// samples the heralding process for success and latency statistics.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qrepeater/internal/modules/chain"
	"github.com/aristath/qrepeater/internal/modules/link"
	"github.com/aristath/qrepeater/internal/modules/montecarlo"
	"github.com/aristath/qrepeater/internal/modules/swapping"
)

// maxRandomSeed keeps generated seeds exactly representable as JSON numbers.
const maxRandomSeed = 1 << 53

// Options tune a single run without changing its statistics.
type Options struct {
	// KeepAttempts retains the Trials×links attempt matrix in the result.
	KeepAttempts bool
	// KeepSamples retains the per-trial overall success rates.
	KeepSamples bool
}

// Simulator wires the link model, swap engine and Monte Carlo engine.
// It holds no per-run state and is safe for concurrent use.
type Simulator struct {
	model     link.Model
	engine    *montecarlo.Engine
	swapper   *swapping.Swapper
	maxTrials int

	// defaultSeed replaces a zero Params.Seed when set
	defaultSeed uint64
	log         zerolog.Logger
}

// NewSimulator creates a simulator. maxTrials <= 0 leaves the trial count
// unbounded.
func NewSimulator(model link.Model, engine *montecarlo.Engine, maxTrials int, log zerolog.Logger) *Simulator {
	return &Simulator{
		model:     model,
		engine:    engine,
		swapper:   swapping.NewSwapper(),
		maxTrials: maxTrials,
		log:       log.With().Str("component", "simulator").Logger(),
	}
}

// Simulate runs p with default options on a default simulator.
func Simulate(ctx context.Context, p Params) (*Result, error) {
	s := NewSimulator(link.DefaultModel(), montecarlo.NewEngine(0), 0, zerolog.Nop())
	return s.Simulate(ctx, p, Options{KeepSamples: true})
}

// SetDefaultSeed makes runs that leave the seed unset use seed instead of a
// fresh random one. Zero restores random seeding. Not safe to call while
// runs are in flight.
func (s *Simulator) SetDefaultSeed(seed uint64) {
	s.defaultSeed = seed
}

// Model returns the physical link model in use.
func (s *Simulator) Model() link.Model {
	return s.model
}

// Workers returns the number of sampling goroutines.
func (s *Simulator) Workers() int {
	return s.engine.Workers()
}

// Simulate runs one estimate. Invalid parameters are rejected with a
// *ConfigError before any sampling happens.
func (s *Simulator) Simulate(ctx context.Context, p Params, opts Options) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if s.maxTrials > 0 && p.Trials > s.maxTrials {
		return nil, newConfigError("trials", "must not exceed %d, got %d", s.maxTrials, p.Trials)
	}

	start := time.Now()
	seed := p.Seed
	if seed == 0 {
		seed = s.defaultSeed
	}
	for seed == 0 {
		seed = rand.Uint64N(maxRandomSeed)
	}

	partition, err := s.partition(p, seed)
	if err != nil {
		return nil, err
	}
	if p.Explicit() {
		// The partition defines the chain; a caller supplied total is ignored.
		p.TotalLength = partition.Total()
	}

	initial := make([]float64, partition.Links())
	for i, l := range partition.Lengths {
		if p.UseFixedFidelity {
			initial[i] = p.FixedFidelity
		} else {
			initial[i] = s.model.InitialFidelity(l)
		}
	}

	folded, err := s.swapper.FoldWerner(initial)
	if err != nil {
		return nil, fmt.Errorf("failed to fold link states: %w", err)
	}

	rates := make([]float64, partition.Links())
	times := make([]float64, partition.Links())
	for i, l := range partition.Lengths {
		rates[i] = s.model.HeraldedSuccessRate(l)
		times[i] = s.model.SignalTime(l)
		if !(rates[i] > 0) {
			return nil, newConfigError(lengthField(p), "link %d of %g km has a success probability that underflows to zero", i, l)
		}
		if !montecarlo.Samplable(rates[i], p.Trials) {
			return nil, newConfigError(lengthField(p),
				"link %d of %g km has success probability %g, too small for attempt statistics to stay finite", i, l, rates[i])
		}
	}

	sampled, err := s.engine.Run(ctx, montecarlo.Config{
		Trials:       p.Trials,
		SuccessRates: rates,
		SignalTimes:  times,
		Seed:         seed,
		KeepAttempts: opts.KeepAttempts,
	})
	if err != nil {
		if errors.Is(err, montecarlo.ErrInvalidConfig) {
			return nil, newConfigError("trials", "%v", err)
		}
		return nil, fmt.Errorf("failed to sample attempts: %w", err)
	}

	res := &Result{
		Params:             p,
		Seed:               seed,
		LinkLengths:        partition.Lengths,
		InitialFidelities:  initial,
		FidelityTrajectory: folded.Trajectory,
		Degenerate:         folded.Degenerate,
		LinkSuccessRates:   rates,
		SignalTimes:        times,
		OverallSuccessRate: sampled.OverallSuccess,
		BottleneckAttempts: sampled.BottleneckAttempts,
		BottleneckTime:     sampled.BottleneckTime,
		Attempts:           sampled.Attempts,
		Elapsed:            time.Since(start),
	}
	if opts.KeepSamples {
		res.OverallSuccessRateSamples = sampled.OverallSuccessRate
	}

	s.log.Debug().
		Uint64("seed", seed).
		Int("trials", p.Trials).
		Int("repeaters", p.Repeaters).
		Str("mode", string(partition.Mode)).
		Float64("final_fidelity", res.FinalFidelity()).
		Float64("mean_time_s", res.BottleneckTime.Mean).
		Dur("elapsed", res.Elapsed).
		Msg("Simulation finished")

	return res, nil
}

// partition builds the link lengths. The random partition draws from stream
// 0 of the run seed; trial sampling uses the streams after it.
func (s *Simulator) partition(p Params, seed uint64) (chain.Partition, error) {
	var (
		part chain.Partition
		err  error
	)
	switch p.Mode() {
	case chain.ModeSymmetric:
		part, err = chain.Symmetric(p.TotalLength, p.Repeaters)
	case chain.ModeRandom:
		part, err = chain.Random(p.TotalLength, p.Repeaters, rand.NewPCG(seed, 0))
	default:
		part, err = chain.Explicit(p.LinkLengths, p.Repeaters)
	}
	if err != nil {
		return chain.Partition{}, newConfigError(lengthField(p), "%v", err)
	}
	return part, nil
}

func lengthField(p Params) string {
	if p.Explicit() {
		return "link_lengths_km"
	}
	return "total_length_km"
}
