// Package sweep runs a simulation repeatedly over a range of one parameter
// (total length, initial fidelity or repeater count) and records one point
// per value and chain variant.
package sweep

import (
	"errors"
	"fmt"
	"math"

	"github.com/aristath/qrepeater/internal/modules/simulation"
)

// Kind is the swept parameter.
type Kind string

const (
	KindLinkLength      Kind = "link_length"
	KindInitialFidelity Kind = "initial_fidelity"
	KindRepeaterCount   Kind = "repeater_count"
)

// Variant is the chain layout of a point.
type Variant string

const (
	VariantSymmetric  Variant = "symmetric"
	VariantAsymmetric Variant = "asymmetric"
)

// MaxValues bounds the number of swept values in one plan.
const MaxValues = 1000

// DefaultTrials is used when neither the plan nor its base sets a trial count.
const DefaultTrials = 10000

// ErrInvalidPlan is wrapped by every plan validation error.
var ErrInvalidPlan = errors.New("invalid sweep plan")

// Plan describes one sweep. Base supplies every parameter that is not swept;
// its Symmetric and RandomizedAsymmetric flags are overridden per variant.
type Plan struct {
	Kind              Kind              `json:"kind" yaml:"kind"`
	From              float64           `json:"from" yaml:"from"`
	To                float64           `json:"to" yaml:"to"`
	Step              float64           `json:"step" yaml:"step"`
	Base              simulation.Params `json:"base" yaml:"base"`
	IncludeAsymmetric bool              `json:"include_asymmetric" yaml:"include_asymmetric"`
	Metric            simulation.Metric `json:"metric" yaml:"metric"`
	// Seed of the first point; point i uses Seed+i. Zero picks one.
	Seed uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// DefaultPlan returns the standard range for kind.
func DefaultPlan(kind Kind) Plan {
	base := simulation.Params{
		Trials:           DefaultTrials,
		TotalLength:      100,
		Repeaters:        2,
		UseFixedFidelity: true,
		FixedFidelity:    0.85,
	}

	switch kind {
	case KindLinkLength:
		return Plan{Kind: kind, From: 50, To: 400, Step: 50, Base: base, Metric: simulation.DefaultMetric}
	case KindInitialFidelity:
		return Plan{Kind: kind, From: 0.5, To: 1.0, Step: 0.02, Base: base, Metric: simulation.DefaultMetric}
	case KindRepeaterCount:
		return Plan{Kind: kind, From: 1, To: 10, Step: 1, Base: base, IncludeAsymmetric: true, Metric: simulation.DefaultMetric}
	default:
		return Plan{Kind: kind, Base: base}
	}
}

// Normalize fills unset fields with defaults.
func (p *Plan) Normalize() error {
	if p.Base.Trials == 0 {
		p.Base.Trials = DefaultTrials
	}
	metric, err := simulation.ParseMetric(string(p.Metric))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	p.Metric = metric
	return nil
}

// Validate checks the range and the swept parameter's domain.
func (p Plan) Validate() error {
	switch p.Kind {
	case KindLinkLength, KindInitialFidelity, KindRepeaterCount:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidPlan, p.Kind)
	}

	for _, f := range []struct {
		name  string
		value float64
	}{{"from", p.From}, {"to", p.To}, {"step", p.Step}} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidPlan, f.name)
		}
	}
	if !(p.Step > 0) {
		return fmt.Errorf("%w: step must be positive, got %g", ErrInvalidPlan, p.Step)
	}
	if p.To < p.From {
		return fmt.Errorf("%w: to (%g) is below from (%g)", ErrInvalidPlan, p.To, p.From)
	}
	if n := math.Floor((p.To-p.From)/p.Step+1e-9) + 1; n > MaxValues {
		return fmt.Errorf("%w: %g values exceed the limit of %d", ErrInvalidPlan, n, MaxValues)
	}

	switch p.Kind {
	case KindLinkLength:
		if !(p.From > 0) {
			return fmt.Errorf("%w: link length must be positive, got %g", ErrInvalidPlan, p.From)
		}
	case KindInitialFidelity:
		if p.From < 0 || p.To > 1 {
			return fmt.Errorf("%w: fidelity range must lie within [0,1]", ErrInvalidPlan)
		}
	case KindRepeaterCount:
		if p.From < 0 || p.From != math.Trunc(p.From) || p.Step != math.Trunc(p.Step) {
			return fmt.Errorf("%w: repeater counts need a non-negative integer start and step", ErrInvalidPlan)
		}
	}

	if _, err := simulation.ParseMetric(string(p.Metric)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	return nil
}

// count is the number of values in [From, To] on the Step grid.
func (p Plan) count() int {
	return int(math.Floor((p.To-p.From)/p.Step+1e-9)) + 1
}

// Values returns the swept values, From first, To included when it lies on
// the grid.
func (p Plan) Values() []float64 {
	n := p.count()
	values := make([]float64, n)
	for i := range values {
		// Round away the drift of repeated float steps (0.5+0.02*i).
		values[i] = math.Round((p.From+float64(i)*p.Step)*1e9) / 1e9
	}
	return values
}

// Variants returns the chain layouts simulated for every value.
func (p Plan) Variants() []Variant {
	if p.IncludeAsymmetric {
		return []Variant{VariantSymmetric, VariantAsymmetric}
	}
	return []Variant{VariantSymmetric}
}

// Params builds the simulation parameters of one point.
func (p Plan) Params(value float64, variant Variant, seed uint64) simulation.Params {
	params := p.Base
	params.LinkLengths = nil
	params.Seed = seed
	params.Symmetric = variant == VariantSymmetric
	params.RandomizedAsymmetric = variant == VariantAsymmetric

	switch p.Kind {
	case KindLinkLength:
		params.TotalLength = value
	case KindInitialFidelity:
		params.UseFixedFidelity = true
		params.FixedFidelity = value
	case KindRepeaterCount:
		params.Repeaters = int(math.Round(value))
	}
	return params
}
