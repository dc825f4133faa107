package density

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const tol = 1e-12

func TestBellKet_Normalized(t *testing.T) {
	phi := BellKet()
	assert.InDelta(t, 1.0, mat.Norm(phi, 2), tol)
	assert.InDelta(t, 1/math.Sqrt2, phi.AtVec(0), tol)
	assert.InDelta(t, 0.0, phi.AtVec(1), tol)
	assert.InDelta(t, 0.0, phi.AtVec(2), tol)
	assert.InDelta(t, 1/math.Sqrt2, phi.AtVec(3), tol)
}

func TestBellProjector_IsProjector(t *testing.T) {
	p := BellProjector()

	var sq mat.Dense
	sq.Mul(p, p)
	assert.True(t, mat.EqualApprox(&sq, p, tol), "P² should equal P")
	assert.InDelta(t, 1.0, mat.Trace(p), tol)
}

func TestWerner(t *testing.T) {
	t.Run("f=1 is the Bell projector", func(t *testing.T) {
		assert.True(t, mat.EqualApprox(Werner(1), BellProjector(), tol))
	})

	t.Run("f=0.25 is maximally mixed", func(t *testing.T) {
		assert.True(t, mat.EqualApprox(Werner(0.25), MaximallyMixed(PairDim), tol))
	})

	for _, f := range []float64{0, 0.25, 0.5, 0.85, 0.99, 1} {
		rho := Werner(f)
		assert.InDelta(t, 1.0, mat.Trace(rho), tol, "trace for f=%g", f)
		assert.InDelta(t, f, Fidelity(rho), tol, "fidelity for f=%g", f)
		require.NoError(t, Validate(rho, 1e-9), "f=%g should be physical", f)
	}
}

func TestTensor_Shape(t *testing.T) {
	joint := Tensor(Werner(0.9), Werner(0.7))
	r, c := joint.Dims()
	assert.Equal(t, 16, r)
	assert.Equal(t, 16, c)
	assert.InDelta(t, 1.0, mat.Trace(joint), tol)
}

func TestProjectAndNormalize(t *testing.T) {
	t.Run("renormalizes to unit trace", func(t *testing.T) {
		out, prob := ProjectAndNormalize(Werner(0.8), BellProjector())
		assert.InDelta(t, 0.8, prob, tol)
		assert.InDelta(t, 1.0, mat.Trace(out), tol)
	})

	t.Run("zero probability returns zero matrix", func(t *testing.T) {
		// |01⟩⟨01| has no overlap with |Φ+⟩.
		rho := mat.NewDense(4, 4, nil)
		rho.Set(1, 1, 1)

		out, prob := ProjectAndNormalize(rho, BellProjector())
		assert.Equal(t, 0.0, prob)
		assert.True(t, mat.Equal(out, mat.NewDense(4, 4, nil)))
		for _, v := range out.RawMatrix().Data {
			assert.False(t, math.IsNaN(v))
		}
	})
}

func TestPartialTrace_RoundTrip(t *testing.T) {
	ab := Werner(0.9)
	bc := Werner(0.6)

	reduced, err := PartialTrace(Tensor(ab, bc), []int{2, 2, 2, 2}, []int{0, 1})
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(reduced, ab, tol))

	reduced, err = PartialTrace(Tensor(ab, bc), []int{2, 2, 2, 2}, []int{3, 2})
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(reduced, bc, tol), "keep order should not matter")
}

func TestPartialTrace_OuterQubitsOfProduct(t *testing.T) {
	// Tracing the inner qubits of two uncorrelated pairs leaves the product of
	// their single-qubit marginals, which is maximally mixed for Werner states.
	reduced, err := PartialTrace(Tensor(Werner(0.9), Werner(0.7)), []int{2, 2, 2, 2}, []int{0, 3})
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(reduced, MaximallyMixed(4), tol))
}

func TestPartialTrace_GeneralDims(t *testing.T) {
	// 3⊗2 product state: trace out the qubit and recover the qutrit block.
	a := mat.NewDense(3, 3, []float64{
		0.5, 0.1, 0,
		0.1, 0.3, 0,
		0, 0, 0.2,
	})
	b := mat.NewDense(2, 2, []float64{0.75, 0, 0, 0.25})

	reduced, err := PartialTrace(Tensor(a, b), []int{3, 2}, []int{0})
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(reduced, a, tol))

	reduced, err = PartialTrace(Tensor(a, b), []int{3, 2}, []int{1})
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(reduced, b, tol))
}

func TestPartialTrace_Errors(t *testing.T) {
	rho := Tensor(Werner(0.9), Werner(0.9))

	tests := []struct {
		name string
		rho  mat.Matrix
		dims []int
		keep []int
		want error
	}{
		{"non-square", mat.NewDense(4, 2, nil), []int{2, 2}, []int{0}, ErrNotSquare},
		{"empty dims", rho, nil, []int{0}, ErrDimensionMismatch},
		{"wrong product", rho, []int{2, 2, 2}, []int{0}, ErrDimensionMismatch},
		{"zero dim", rho, []int{2, 0, 2, 2}, []int{0}, ErrDimensionMismatch},
		{"out of range", rho, []int{2, 2, 2, 2}, []int{4}, ErrInvalidSubsystem},
		{"repeated", rho, []int{2, 2, 2, 2}, []int{1, 1}, ErrInvalidSubsystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PartialTrace(tt.rho, tt.dims, tt.keep)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPartialTrace_KeepNothingGivesTrace(t *testing.T) {
	reduced, err := PartialTrace(Werner(0.7), []int{2, 2}, nil)
	require.NoError(t, err)
	r, c := reduced.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 1, c)
	assert.InDelta(t, 1.0, reduced.At(0, 0), tol)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(MaximallyMixed(4), tol))

	asym := Werner(0.9)
	asym.Set(0, 1, 0.3)
	assert.ErrorIs(t, Validate(asym, 1e-9), ErrNotHermitian)

	scaled := Werner(0.9)
	scaled.Scale(2, scaled)
	assert.ErrorIs(t, Validate(scaled, 1e-9), ErrTraceNotOne)

	negative := mat.NewDense(2, 2, []float64{1.5, 0, 0, -0.5})
	assert.ErrorIs(t, Validate(negative, 1e-9), ErrNotPositive)

	assert.ErrorIs(t, Validate(mat.NewDense(2, 3, nil), tol), ErrNotSquare)
}
