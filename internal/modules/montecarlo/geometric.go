package montecarlo

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/qrepeater/pkg/formulas"
)

// Geometric is the number of independent attempts, each succeeding with
// probability P, needed up to and including the first success. Its support
// starts at 1. Build it with NewGeometric.
type Geometric struct {
	P   float64
	exp distuv.Exponential
}

// NewGeometric creates a sampler for success probability p drawing from src.
// The exponential rate -ln(1-p) is computed once here; p == 1 yields an
// infinite rate and therefore always 1.
func NewGeometric(p float64, src rand.Source) Geometric {
	return Geometric{
		P:   p,
		exp: distuv.Exponential{Rate: -math.Log1p(-p), Src: src},
	}
}

// Rand draws one attempt count. It inverts the continuous exponential:
// ⌊E⌋+1 with E ~ Exp(-ln(1-p)) is geometric on {1, 2, ...}.
func (g Geometric) Rand() float64 {
	return math.Floor(g.exp.Rand()) + 1
}

// Mean returns 1/P.
func (g Geometric) Mean() float64 {
	return formulas.GeometricMean(g.P)
}

// Variance returns (1-P)/P².
func (g Geometric) Variance() float64 {
	return formulas.GeometricVariance(g.P)
}
