package sweep

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Exporter ships a finished sweep somewhere outside the database.
type Exporter interface {
	Export(ctx context.Context, sweepID string) error
}

// Job runs one plan on a schedule and optionally exports the result.
type Job struct {
	runner   *Runner
	plan     Plan
	exporter Exporter
	timeout  time.Duration
}

// NewJob creates a scheduled sweep job. exporter may be nil.
func NewJob(runner *Runner, plan Plan, exporter Exporter, timeout time.Duration) *Job {
	return &Job{runner: runner, plan: plan, exporter: exporter, timeout: timeout}
}

// Name returns the job name
func (j *Job) Name() string {
	return "sweep_" + string(j.plan.Kind)
}

// Run executes the plan
func (j *Job) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	s, err := j.runner.Run(ctx, j.plan)
	if err != nil {
		return err
	}

	if j.exporter != nil {
		if err := j.exporter.Export(ctx, s.ID); err != nil {
			return fmt.Errorf("failed to export sweep %s: %w", s.ID, err)
		}
	}
	return nil
}

// LoadPlan reads a YAML plan file. Missing fields take the defaults of the
// plan's kind.
func LoadPlan(path string) (Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to read sweep plan: %w", err)
	}
	return ParsePlan(raw)
}

// ParsePlan decodes a YAML (or JSON) plan on top of the kind's defaults.
func ParsePlan(raw []byte) (Plan, error) {
	var head struct {
		Kind Kind `yaml:"kind"`
	}
	if err := yaml.Unmarshal(raw, &head); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}

	plan := DefaultPlan(head.Kind)
	if err := yaml.Unmarshal(raw, &plan); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if err := plan.Normalize(); err != nil {
		return Plan{}, err
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}
