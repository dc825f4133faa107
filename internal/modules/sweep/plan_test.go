package sweep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qrepeater/internal/modules/simulation"
)

func TestDefaultPlans(t *testing.T) {
	tests := []struct {
		kind  Kind
		count int
		first float64
		last  float64
		asymm bool
	}{
		{KindLinkLength, 8, 50, 400, false},
		{KindInitialFidelity, 26, 0.5, 1.0, false},
		{KindRepeaterCount, 10, 1, 10, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			plan := DefaultPlan(tt.kind)
			require.NoError(t, plan.Validate())

			values := plan.Values()
			assert.Len(t, values, tt.count)
			assert.Equal(t, tt.first, values[0])
			assert.Equal(t, tt.last, values[len(values)-1])
			assert.Equal(t, tt.asymm, plan.IncludeAsymmetric)
			assert.Equal(t, simulation.MetricTime, plan.Metric)
		})
	}
}

func TestPlan_ValuesAreRounded(t *testing.T) {
	plan := DefaultPlan(KindInitialFidelity)
	values := plan.Values()
	assert.Equal(t, 0.52, values[1])
	assert.Equal(t, 0.86, values[18])
}

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Plan)
	}{
		{"unknown kind", func(p *Plan) { p.Kind = "temperature" }},
		{"zero step", func(p *Plan) { p.Step = 0 }},
		{"reversed range", func(p *Plan) { p.From, p.To = 10, 5 }},
		{"too many values", func(p *Plan) { p.From, p.To, p.Step = 1, 1e6, 1 }},
		{"non-integer repeaters", func(p *Plan) { p.Step = 0.5 }},
		{"negative repeaters", func(p *Plan) { p.From = -1 }},
		{"unknown metric", func(p *Plan) { p.Metric = "latency" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := DefaultPlan(KindRepeaterCount)
			tt.mutate(&plan)
			assert.ErrorIs(t, plan.Validate(), ErrInvalidPlan)
		})
	}

	fidelity := DefaultPlan(KindInitialFidelity)
	fidelity.To = 1.2
	assert.ErrorIs(t, fidelity.Validate(), ErrInvalidPlan)

	length := DefaultPlan(KindLinkLength)
	length.From = 0
	assert.ErrorIs(t, length.Validate(), ErrInvalidPlan)
}

func TestPlan_Normalize(t *testing.T) {
	plan := Plan{Kind: KindLinkLength, From: 10, To: 20, Step: 10}
	require.NoError(t, plan.Normalize())
	assert.Equal(t, DefaultTrials, plan.Base.Trials)
	assert.Equal(t, simulation.DefaultMetric, plan.Metric)

	plan.Metric = "nope"
	assert.ErrorIs(t, plan.Normalize(), ErrInvalidPlan)
}

func TestPlan_Params(t *testing.T) {
	base := DefaultPlan(KindLinkLength)
	base.Base.LinkLengths = []float64{1, 2, 3}

	p := base.Params(250, VariantSymmetric, 9)
	assert.Equal(t, 250.0, p.TotalLength)
	assert.True(t, p.Symmetric)
	assert.False(t, p.RandomizedAsymmetric)
	assert.Nil(t, p.LinkLengths)
	assert.Equal(t, uint64(9), p.Seed)
	assert.Equal(t, 2, p.Repeaters)

	fid := DefaultPlan(KindInitialFidelity).Params(0.7, VariantAsymmetric, 1)
	assert.True(t, fid.UseFixedFidelity)
	assert.Equal(t, 0.7, fid.FixedFidelity)
	assert.False(t, fid.Symmetric)
	assert.True(t, fid.RandomizedAsymmetric)

	rep := DefaultPlan(KindRepeaterCount).Params(7, VariantSymmetric, 1)
	assert.Equal(t, 7, rep.Repeaters)
	assert.Equal(t, 100.0, rep.TotalLength)
}

func TestPlan_Variants(t *testing.T) {
	assert.Equal(t, []Variant{VariantSymmetric}, DefaultPlan(KindLinkLength).Variants())
	assert.Equal(t, []Variant{VariantSymmetric, VariantAsymmetric}, DefaultPlan(KindRepeaterCount).Variants())
}

func TestParsePlan(t *testing.T) {
	raw := []byte(`
kind: repeater_count
to: 4
metric: attempts
seed: 12
base:
  trials: 2000
  total_length_km: 150
  repeaters: 0
  use_fixed_fidelity: true
  fixed_fidelity: 0.9
`)

	plan, err := ParsePlan(raw)
	require.NoError(t, err)

	assert.Equal(t, KindRepeaterCount, plan.Kind)
	assert.Equal(t, 1.0, plan.From) // default kept
	assert.Equal(t, 4.0, plan.To)
	assert.Equal(t, 1.0, plan.Step)
	assert.True(t, plan.IncludeAsymmetric)
	assert.Equal(t, simulation.MetricAttempts, plan.Metric)
	assert.Equal(t, uint64(12), plan.Seed)
	assert.Equal(t, 2000, plan.Base.Trials)
	assert.Equal(t, 150.0, plan.Base.TotalLength)
	assert.Equal(t, []float64{1, 2, 3, 4}, plan.Values())
}

func TestParsePlan_Invalid(t *testing.T) {
	_, err := ParsePlan([]byte("kind: [unclosed"))
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = ParsePlan([]byte("kind: humidity\nfrom: 1\nto: 2\nstep: 1\n"))
	assert.ErrorIs(t, err, ErrInvalidPlan)
}
