package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// PopMeanVariance returns the mean and population variance (divisor n) of data.
// Empty input returns NaN for both.
func PopMeanVariance(data []float64) (mean, variance float64) {
	if len(data) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.PopMeanVariance(data, nil)
}

// GeometricMean is the expected number of attempts until the first success
// (success included) when each attempt succeeds with probability p.
// Formula: 1/p
func GeometricMean(p float64) float64 {
	return 1 / p
}

// GeometricVariance is the variance of the same attempt count.
// Formula: (1-p)/p²
func GeometricVariance(p float64) float64 {
	return (1 - p) / (p * p)
}

// StandardError returns the standard error of a sample mean given the
// population variance and the sample size.
func StandardError(variance float64, n int) float64 {
	if n <= 0 {
		return math.NaN()
	}
	return math.Sqrt(variance / float64(n))
}
