package sweep

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/qrepeater/internal/events"
	"github.com/aristath/qrepeater/internal/modules/simulation"
)

// Runner executes sweep plans and stores their points.
type Runner struct {
	simulator *simulation.Simulator
	repo      *Repository
	bus       *events.Bus
	wg        sync.WaitGroup
	log       zerolog.Logger
}

// NewRunner creates a runner. repo and bus may be nil for one-off runs that
// are neither stored nor broadcast.
func NewRunner(simulator *simulation.Simulator, repo *Repository, bus *events.Bus, log zerolog.Logger) *Runner {
	return &Runner{
		simulator: simulator,
		repo:      repo,
		bus:       bus,
		log:       log.With().Str("component", "sweep_runner").Logger(),
	}
}

// Run executes plan point by point. A failed point stops the sweep; the
// points computed so far are kept and the sweep is stored as failed.
func (r *Runner) Run(ctx context.Context, plan Plan) (*Sweep, error) {
	s, err := r.prepare(ctx, plan)
	if err != nil {
		return nil, err
	}
	return r.execute(ctx, s)
}

// Start validates and stores plan, then runs it in the background under ctx.
// The returned header carries the sweep id; progress is published on the
// event bus and the outcome is stored in the repository.
func (r *Runner) Start(ctx context.Context, plan Plan) (Sweep, error) {
	s, err := r.prepare(ctx, plan)
	if err != nil {
		return Sweep{}, err
	}
	header := *s
	header.Points = nil

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_, _ = r.execute(ctx, s)
	}()
	return header, nil
}

// Wait blocks until every sweep launched by Start has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) prepare(ctx context.Context, plan Plan) (*Sweep, error) {
	if err := plan.Normalize(); err != nil {
		return nil, err
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	for plan.Seed == 0 {
		plan.Seed = rand.Uint64N(1 << 53)
	}

	s := &Sweep{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Plan:      plan,
		Status:    StatusRunning,
		Points:    []Point{},
	}
	if r.repo != nil {
		if err := r.repo.Create(ctx, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (r *Runner) execute(ctx context.Context, s *Sweep) (*Sweep, error) {
	plan := s.Plan
	values := plan.Values()
	variants := plan.Variants()
	total := len(values) * len(variants)

	r.log.Info().
		Str("sweep_id", s.ID).
		Str("kind", string(plan.Kind)).
		Int("points", total).
		Msg("Sweep started")

	runErr := func() error {
		for i, value := range values {
			for j, variant := range variants {
				idx := i*len(variants) + j
				point, err := r.point(ctx, plan, idx, value, variant)
				if err != nil {
					return fmt.Errorf("point %d (%s=%g, %s): %w", idx, plan.Kind, value, variant, err)
				}
				s.Points = append(s.Points, point)

				r.bus.Emit("sweep", &events.SweepProgressData{
					SweepID: s.ID,
					Current: idx + 1,
					Total:   total,
					Value:   value,
					Variant: string(variant),
				})
			}
		}
		return nil
	}()

	now := time.Now().UTC()
	s.CompletedAt = &now
	s.Status = StatusCompleted
	if runErr != nil {
		s.Status = StatusFailed
		s.Error = runErr.Error()
	}

	if r.repo != nil {
		// Store the outcome even when ctx was cancelled mid-sweep.
		if err := r.repo.Finish(context.WithoutCancel(ctx), s); err != nil {
			return nil, err
		}
	}

	r.bus.Emit("sweep", &events.SweepCompletedData{
		SweepID: s.ID,
		Kind:    string(plan.Kind),
		Points:  len(s.Points),
		Status:  string(s.Status),
		Error:   s.Error,
	})

	if runErr != nil {
		r.log.Warn().Err(runErr).Str("sweep_id", s.ID).Msg("Sweep failed")
		return s, runErr
	}

	r.log.Info().
		Str("sweep_id", s.ID).
		Dur("elapsed", now.Sub(s.CreatedAt)).
		Msg("Sweep completed")
	return s, nil
}

func (r *Runner) point(ctx context.Context, plan Plan, idx int, value float64, variant Variant) (Point, error) {
	seed := plan.Seed + uint64(idx)
	res, err := r.simulator.Simulate(ctx, plan.Params(value, variant, seed), simulation.Options{})
	if err != nil {
		return Point{}, err
	}

	metric, err := res.Metric(plan.Metric)
	if err != nil {
		return Point{}, err
	}

	return Point{
		Index:           idx,
		Value:           value,
		Variant:         variant,
		Seed:            seed,
		FinalFidelity:   res.FinalFidelity(),
		SuccessRateMean: res.OverallSuccessRate.Mean,
		AttemptsMean:    res.BottleneckAttempts.Mean,
		TimeMean:        res.BottleneckTime.Mean,
		MetricValue:     metric,
	}, nil
}
