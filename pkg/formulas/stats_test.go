package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPopMeanVariance(t *testing.T) {
	tests := []struct {
		name         string
		data         []float64
		wantMean     float64
		wantVariance float64
	}{
		{"single value", []float64{3}, 3, 0},
		{"constant", []float64{2, 2, 2, 2}, 2, 0},
		{"population divisor", []float64{1, 2, 3, 4}, 2.5, 1.25},
		{"two values", []float64{0, 10}, 5, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean, variance := PopMeanVariance(tt.data)
			assert.InDelta(t, tt.wantMean, mean, 1e-12)
			assert.InDelta(t, tt.wantVariance, variance, 1e-12)
		})
	}
}

func TestPopMeanVariance_Empty(t *testing.T) {
	mean, variance := PopMeanVariance(nil)
	assert.True(t, math.IsNaN(mean))
	assert.True(t, math.IsNaN(variance))
}

func TestGeometricMoments(t *testing.T) {
	tests := []struct {
		p            float64
		wantMean     float64
		wantVariance float64
	}{
		{1, 1, 0},
		{0.5, 2, 2},
		{0.25, 4, 12},
		{0.1, 10, 90},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.wantMean, GeometricMean(tt.p), 1e-12, "p=%g", tt.p)
		assert.InDelta(t, tt.wantVariance, GeometricVariance(tt.p), 1e-9, "p=%g", tt.p)
	}
}

func TestStandardError(t *testing.T) {
	assert.InDelta(t, 0.1, StandardError(1, 100), 1e-12)
	assert.True(t, math.IsNaN(StandardError(1, 0)))
}
