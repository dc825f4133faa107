package simulation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/aristath/qrepeater/internal/modules/link"
	"github.com/aristath/qrepeater/internal/modules/montecarlo"
)

func newTestSimulator(maxTrials int) *Simulator {
	return NewSimulator(link.DefaultModel(), montecarlo.NewEngine(2), maxTrials, zerolog.New(nil).Level(zerolog.Disabled))
}

func symmetricParams(trials int, length float64, repeaters int) Params {
	return Params{
		Trials:      trials,
		TotalLength: length,
		Symmetric:   true,
		Repeaters:   repeaters,
		Seed:        1,
	}
}

func TestSimulate_FixedFidelityTrajectory(t *testing.T) {
	p := symmetricParams(1000, 100, 4)
	p.UseFixedFidelity = true
	p.FixedFidelity = 0.85

	res, err := newTestSimulator(0).Simulate(context.Background(), p, Options{})
	require.NoError(t, err)

	want := []float64{0.85, 0.73, 0.634, 0.5572, 0.49576}
	require.Len(t, res.FidelityTrajectory, len(want))
	assert.Equal(t, res.InitialFidelities[0], res.FidelityTrajectory[0])
	for i := range want {
		assert.InDelta(t, want[i], res.FidelityTrajectory[i], 1e-9, "step %d", i)
	}
	assert.InDelta(t, 0.49576, res.FinalFidelity(), 1e-9)
	assert.False(t, res.Degenerate)
	assert.Equal(t, []float64{20, 20, 20, 20, 20}, res.LinkLengths)
}

func TestSimulate_LengthDerivedFidelityIndependentOfRepeaters(t *testing.T) {
	// Werner parameters multiply, and each link contributes e^(-αL/(N+1)),
	// so the end-to-end fidelity only depends on the total length.
	want := 0.25 + 0.75*math.Exp(-1)
	sim := newTestSimulator(0)

	for repeaters := 0; repeaters <= 6; repeaters++ {
		res, err := sim.Simulate(context.Background(), symmetricParams(100, 100, repeaters), Options{})
		require.NoError(t, err)

		assert.InDelta(t, want, res.FinalFidelity(), 1e-9, "repeaters %d", repeaters)
		assert.Equal(t, res.InitialFidelities[0], res.FidelityTrajectory[0])
		for i := 1; i < len(res.FidelityTrajectory); i++ {
			assert.LessOrEqual(t, res.FidelityTrajectory[i], res.FidelityTrajectory[i-1]+1e-12)
		}
	}
}

func TestSimulate_FixedFidelityDegradesWithRepeaters(t *testing.T) {
	sim := newTestSimulator(0)
	prev := math.Inf(1)

	for repeaters := 0; repeaters <= 8; repeaters++ {
		p := symmetricParams(100, 100, repeaters)
		p.UseFixedFidelity = true
		p.FixedFidelity = 0.9

		res, err := sim.Simulate(context.Background(), p, Options{})
		require.NoError(t, err)

		final := res.FinalFidelity()
		assert.Less(t, final, prev, "repeaters %d", repeaters)
		assert.GreaterOrEqual(t, final, 0.25)
		prev = final
	}
}

func TestSimulate_SingleLinkAttemptsMatchGeometricMean(t *testing.T) {
	res, err := newTestSimulator(0).Simulate(context.Background(), symmetricParams(100000, 44, 0), Options{})
	require.NoError(t, err)

	p := math.Exp(-2) / 2
	require.Len(t, res.LinkSuccessRates, 1)
	assert.InDelta(t, p, res.LinkSuccessRates[0], 1e-15)
	assert.InEpsilon(t, 1/p, res.BottleneckAttempts.Mean, 0.03)

	signal := 44 * 1000 / 2e8
	assert.InDelta(t, signal, res.SignalTimes[0], 1e-15)
	assert.InEpsilon(t, (2*res.BottleneckAttempts.Mean+1)*signal, res.BottleneckTime.Mean, 1e-9)
}

func TestSimulate_ExplicitPartition(t *testing.T) {
	lengths := []float64{10, 20, 30}
	res, err := newTestSimulator(0).Simulate(context.Background(), Params{
		Trials:      500,
		Repeaters:   2,
		LinkLengths: lengths,
		Seed:        3,
	}, Options{})
	require.NoError(t, err)

	m := link.DefaultModel()
	assert.Equal(t, lengths, res.LinkLengths)
	assert.Equal(t, 60.0, res.Params.TotalLength)
	for i, l := range lengths {
		assert.Equal(t, m.HeraldedSuccessRate(l), res.LinkSuccessRates[i])
		assert.Equal(t, m.InitialFidelity(l), res.InitialFidelities[i])
	}
}

func TestSimulate_RandomPartitionReproducible(t *testing.T) {
	p := Params{
		Trials:               2000,
		TotalLength:          300,
		Repeaters:            5,
		RandomizedAsymmetric: true,
		Seed:                 77,
	}
	sim := newTestSimulator(0)

	a, err := sim.Simulate(context.Background(), p, Options{})
	require.NoError(t, err)
	b, err := sim.Simulate(context.Background(), p, Options{})
	require.NoError(t, err)

	assert.InDelta(t, 300, floats.Sum(a.LinkLengths), 1e-9)
	assert.Len(t, a.LinkLengths, 6)
	assert.Equal(t, a.LinkLengths, b.LinkLengths)
	assert.Equal(t, a.FidelityTrajectory, b.FidelityTrajectory)
	assert.Equal(t, a.BottleneckTime, b.BottleneckTime)
	assert.Equal(t, a.OverallSuccessRate, b.OverallSuccessRate)
}

func TestSimulate_ZeroSeedPicksAndEchoesSeed(t *testing.T) {
	p := symmetricParams(100, 50, 1)
	p.Seed = 0

	res, err := newTestSimulator(0).Simulate(context.Background(), p, Options{})
	require.NoError(t, err)

	assert.NotZero(t, res.Seed)
	assert.Less(t, res.Seed, uint64(maxRandomSeed))
	assert.Zero(t, res.Params.Seed)

	p.Seed = res.Seed
	again, err := newTestSimulator(0).Simulate(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, res.BottleneckAttempts, again.BottleneckAttempts)
}

func TestSimulate_DefaultSeed(t *testing.T) {
	sim := newTestSimulator(0)
	sim.SetDefaultSeed(77)

	p := symmetricParams(100, 50, 1)
	res, err := sim.Simulate(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, uint64(77), res.Seed)

	p.Seed = 78
	res, err = sim.Simulate(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, uint64(78), res.Seed)
}

func TestSimulate_Options(t *testing.T) {
	sim := newTestSimulator(0)
	p := symmetricParams(300, 100, 2)

	bare, err := sim.Simulate(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Nil(t, bare.OverallSuccessRateSamples)
	assert.Nil(t, bare.Attempts)

	full, err := sim.Simulate(context.Background(), p, Options{KeepSamples: true, KeepAttempts: true})
	require.NoError(t, err)
	assert.Len(t, full.OverallSuccessRateSamples, 300)
	rows, cols := full.Attempts.Dims()
	assert.Equal(t, 300, rows)
	assert.Equal(t, 3, cols)

	summary := full.Summary()
	assert.Nil(t, summary.OverallSuccessRateSamples)
	assert.Nil(t, summary.Attempts)
	assert.NotNil(t, full.Attempts)
}

func TestSimulate_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		field  string
	}{
		{"zero trials", Params{Trials: 0, TotalLength: 100, Symmetric: true}, "trials"},
		{"negative repeaters", Params{Trials: 10, TotalLength: 100, Symmetric: true, Repeaters: -1}, "repeaters"},
		{"zero length", Params{Trials: 10, Symmetric: true}, "total_length_km"},
		{"infinite length", Params{Trials: 10, TotalLength: math.Inf(1), RandomizedAsymmetric: true}, "total_length_km"},
		{"partition too short", Params{Trials: 10, Repeaters: 2, LinkLengths: []float64{10, 10}}, "link_lengths_km"},
		{"partition missing", Params{Trials: 10, Repeaters: 0}, "link_lengths_km"},
		{"negative segment", Params{Trials: 10, Repeaters: 1, LinkLengths: []float64{10, -1}}, "link_lengths_km"},
		{"fidelity above one", Params{Trials: 10, TotalLength: 10, Symmetric: true, UseFixedFidelity: true, FixedFidelity: 1.2}, "fixed_fidelity"},
		{"negative fidelity", Params{Trials: 10, TotalLength: 10, Symmetric: true, UseFixedFidelity: true, FixedFidelity: -0.1}, "fixed_fidelity"},
		{"NaN fidelity", Params{Trials: 10, TotalLength: 10, Symmetric: true, UseFixedFidelity: true, FixedFidelity: math.NaN()}, "fixed_fidelity"},
		{"too many trials", Params{Trials: 1001, TotalLength: 10, Symmetric: true}, "trials"},
		{"success probability underflow", Params{Trials: 10, TotalLength: 40000, Symmetric: true}, "total_length_km"},
		{"attempt statistics overflow", Params{Trials: 1000, Repeaters: 0, LinkLengths: []float64{9000}, Seed: 7}, "link_lengths_km"},
		{"symmetric statistics overflow", Params{Trials: 1000, TotalLength: 15000, Symmetric: true}, "total_length_km"},
	}

	sim := newTestSimulator(1000)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := sim.Simulate(context.Background(), tt.params, Options{})
			assert.Nil(t, res)
			require.ErrorIs(t, err, ErrInvalidConfig)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSimulate_FixedFidelityIgnoredWhenDisabled(t *testing.T) {
	p := symmetricParams(100, 100, 1)
	p.FixedFidelity = 7 // unused without UseFixedFidelity

	_, err := newTestSimulator(0).Simulate(context.Background(), p, Options{})
	assert.NoError(t, err)
}

func TestSimulate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestSimulator(0).Simulate(ctx, symmetricParams(10000, 100, 2), Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestSimulate_PackageLevel(t *testing.T) {
	res, err := Simulate(context.Background(), symmetricParams(200, 100, 1))
	require.NoError(t, err)
	assert.Len(t, res.OverallSuccessRateSamples, 200)
}

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in      string
		want    Metric
		wantErr bool
	}{
		{"", MetricTime, false},
		{"time", MetricTime, false},
		{"Success_Rate", MetricSuccessRate, false},
		{" attempts ", MetricAttempts, false},
		{"latency", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMetric(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidConfig, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestResult_Metric(t *testing.T) {
	res := &Result{
		OverallSuccessRate: Stats{Mean: 0.1},
		BottleneckAttempts: Stats{Mean: 12},
		BottleneckTime:     Stats{Mean: 0.003},
	}

	tests := []struct {
		metric Metric
		want   float64
	}{
		{MetricSuccessRate, 0.1},
		{MetricAttempts, 12},
		{MetricTime, 0.003},
	}
	for _, tt := range tests {
		got, err := res.Metric(tt.metric)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := res.Metric("bogus")
	assert.Error(t, err)
}
