// Package density provides the density-matrix algebra used to model bipartite
// Werner states and entanglement swapping.
//
// All functions are pure: they allocate their results and never mutate their
// arguments. States are real matrices; the Bell state and Werner family have no
// imaginary part, so gonum's real Dense type is sufficient.
package density

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// QubitDim is the Hilbert-space dimension of a single qubit.
	QubitDim = 2
	// PairDim is the Hilbert-space dimension of a two-qubit (bipartite) state.
	PairDim = QubitDim * QubitDim
)

// Ket returns the computational basis vector |bit⟩ for bit 0 or 1.
// Any other value panics, as it would for an out-of-range index.
func Ket(bit int) *mat.VecDense {
	v := mat.NewVecDense(QubitDim, nil)
	v.SetVec(bit, 1)
	return v
}

// BellKet returns the normalized maximally entangled state |Φ+⟩ = (|00⟩ + |11⟩)/√2.
func BellKet() *mat.VecDense {
	var zz, oo mat.Dense
	zz.Kronecker(Ket(0), Ket(0))
	oo.Kronecker(Ket(1), Ket(1))

	var sum mat.Dense
	sum.Add(&zz, &oo)
	sum.Scale(1/math.Sqrt2, &sum)

	return mat.NewVecDense(PairDim, mat.Col(nil, 0, &sum))
}

// BellProjector returns |Φ+⟩⟨Φ+|, the reference projector for fidelity and
// Bell-state measurement.
func BellProjector() *mat.Dense {
	phi := BellKet()
	var p mat.Dense
	p.Outer(1, phi, phi)
	return &p
}

// Identity returns the n×n identity matrix.
func Identity(n int) *mat.Dense {
	id := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		id.Set(i, i, 1)
	}
	return id
}

// MaximallyMixed returns I/n, the state with no correlations at all.
func MaximallyMixed(n int) *mat.Dense {
	m := Identity(n)
	m.Scale(1/float64(n), m)
	return m
}

// WernerParameter maps a fidelity f to the Werner mixing weight p = (4f-1)/3.
func WernerParameter(f float64) float64 {
	return (4*f - 1) / 3
}

// Werner returns the two-qubit Werner state with fidelity f:
//
//	ρ(f) = p·|Φ+⟩⟨Φ+| + (1-p)·I/4,  p = (4f-1)/3
//
// f is not clamped. Callers are expected to pass a physical fidelity in [0,1];
// the simulation layer validates this before building states.
func Werner(f float64) *mat.Dense {
	p := WernerParameter(f)

	var w mat.Dense
	w.Scale(p, BellProjector())

	var mixed mat.Dense
	mixed.Scale(1-p, MaximallyMixed(PairDim))

	w.Add(&w, &mixed)
	return &w
}

// Tensor returns the Kronecker product a ⊗ b. For two 4×4 bipartite states this
// is the 16×16 joint state of four qubits with no correlation between the pairs.
func Tensor(a, b mat.Matrix) *mat.Dense {
	var k mat.Dense
	k.Kronecker(a, b)
	return &k
}

// ProjectAndNormalize applies the projective measurement P·ρ·P and renormalizes
// by its trace, the Born-rule probability of the outcome.
//
// When the outcome probability is exactly zero the unnormalized (zero) matrix is
// returned together with a zero probability; it never divides by zero.
func ProjectAndNormalize(rho, p mat.Matrix) (*mat.Dense, float64) {
	var left, out mat.Dense
	left.Mul(p, rho)
	out.Mul(&left, p)

	prob := mat.Trace(&out)
	if prob != 0 {
		out.Scale(1/prob, &out)
	}
	return &out, prob
}

// PartialTrace traces out every subsystem not listed in keep.
//
// dims lists the dimension of each subsystem in tensor order; their product
// must equal the size of rho. The reduced matrix is indexed over the kept
// subsystems in their original relative order, whatever order keep lists them in.
//
// Errors:
//   - ErrNotSquare if rho is not square
//   - ErrDimensionMismatch if dims is empty, has a non-positive entry, or its
//     product differs from the size of rho
//   - ErrInvalidSubsystem if keep holds an out-of-range or repeated index
func PartialTrace(rho mat.Matrix, dims []int, keep []int) (*mat.Dense, error) {
	r, c := rho.Dims()
	if r != c {
		return nil, fmt.Errorf("PartialTrace: %dx%d: %w", r, c, ErrNotSquare)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("PartialTrace: no subsystems: %w", ErrDimensionMismatch)
	}

	total := 1
	for i, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("PartialTrace: subsystem %d has dimension %d: %w", i, d, ErrDimensionMismatch)
		}
		total *= d
	}
	if total != r {
		return nil, fmt.Errorf("PartialTrace: dims product %d for %dx%d matrix: %w", total, r, c, ErrDimensionMismatch)
	}

	kept := make([]bool, len(dims))
	for _, k := range keep {
		if k < 0 || k >= len(dims) || kept[k] {
			return nil, fmt.Errorf("PartialTrace: keep index %d: %w", k, ErrInvalidSubsystem)
		}
		kept[k] = true
	}

	var keptSubs, tracedSubs []int
	for i := range dims {
		if kept[i] {
			keptSubs = append(keptSubs, i)
		} else {
			tracedSubs = append(tracedSubs, i)
		}
	}

	// Row-major strides: the last subsystem varies fastest.
	strides := make([]int, len(dims))
	stride := 1
	for i := len(dims) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= dims[i]
	}

	// A full index is the sum of the kept and traced digit contributions, so
	// both can be enumerated once and combined by addition.
	keptOffsets := subsystemOffsets(dims, strides, keptSubs)
	tracedOffsets := subsystemOffsets(dims, strides, tracedSubs)

	n := len(keptOffsets)
	out := mat.NewDense(n, n, nil)
	for i, ri := range keptOffsets {
		for j, cj := range keptOffsets {
			sum := 0.0
			for _, t := range tracedOffsets {
				sum += rho.At(ri+t, cj+t)
			}
			out.Set(i, j, sum)
		}
	}
	return out, nil
}

// subsystemOffsets enumerates, in mixed-radix order over subs, the flat-index
// contribution of every joint basis state of those subsystems.
func subsystemOffsets(dims, strides, subs []int) []int {
	count := 1
	for _, s := range subs {
		count *= dims[s]
	}

	offsets := make([]int, count)
	digits := make([]int, len(subs))
	for n := 0; n < count; n++ {
		off := 0
		for i, s := range subs {
			off += digits[i] * strides[s]
		}
		offsets[n] = off

		for i := len(subs) - 1; i >= 0; i-- {
			digits[i]++
			if digits[i] < dims[subs[i]] {
				break
			}
			digits[i] = 0
		}
	}
	return offsets
}

// Fidelity returns ⟨Φ+|ρ|Φ+⟩ for a 4×4 two-qubit state.
func Fidelity(rho mat.Matrix) float64 {
	phi := BellKet()
	return mat.Inner(phi, rho, phi)
}

// Validate checks that rho is a physical density matrix within tol: square,
// symmetric, unit trace and positive semidefinite.
func Validate(rho mat.Matrix, tol float64) error {
	r, c := rho.Dims()
	if r != c {
		return fmt.Errorf("Validate: %dx%d: %w", r, c, ErrNotSquare)
	}

	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			aij, aji := rho.At(i, j), rho.At(j, i)
			if math.Abs(aij-aji) > tol {
				return fmt.Errorf("Validate: (%d,%d)=%g vs (%d,%d)=%g: %w", i, j, aij, j, i, aji, ErrNotHermitian)
			}
			sym.SetSym(i, j, (aij+aji)/2)
		}
	}

	if tr := mat.Trace(rho); math.Abs(tr-1) > tol {
		return fmt.Errorf("Validate: trace %g: %w", tr, ErrTraceNotOne)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, false); !ok {
		return fmt.Errorf("Validate: eigen decomposition failed: %w", ErrNotPositive)
	}
	for _, v := range eig.Values(nil) {
		if v < -tol {
			return fmt.Errorf("Validate: eigenvalue %g: %w", v, ErrNotPositive)
		}
	}
	return nil
}
