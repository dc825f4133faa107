// Package swapping folds a chain of bipartite link states into a single
// end-to-end state by repeated entanglement swapping.
package swapping

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/qrepeater/internal/modules/density"
)

// jointDims are the subsystem dimensions of two adjacent pairs A-B and C-D.
var jointDims = []int{density.QubitDim, density.QubitDim, density.QubitDim, density.QubitDim}

// outerQubits are A and D, the endpoints that remain entangled after the swap.
var outerQubits = []int{0, 3}

// ErrEmptyChain is returned when Fold is given no link states.
var ErrEmptyChain = errors.New("swapping: chain has no links")

// ErrNotPairState is returned when a link state is not a 4×4 two-qubit matrix.
var ErrNotPairState = errors.New("swapping: link state is not a 4x4 two-qubit matrix")

// Outcome is the result of one swap step.
type Outcome struct {
	// State is the renormalized A-D state after the Bell measurement on B-C.
	State *mat.Dense
	// Fidelity is ⟨Φ+|State|Φ+⟩, or NaN when the measurement outcome had zero probability.
	Fidelity float64
	// Probability is the Born-rule probability of projecting B-C onto |Φ+⟩.
	Probability float64
}

// Degenerate reports whether the measurement outcome was impossible.
func (o Outcome) Degenerate() bool {
	return o.Probability == 0
}

// Swapper performs Bell-state-measurement swaps. The measurement operator
// I ⊗ |Φ+⟩⟨Φ+| ⊗ I is built once and reused for every step.
type Swapper struct {
	projector *mat.Dense
}

// NewSwapper creates a swapper with the inner-qubit Bell projector precomputed.
func NewSwapper() *Swapper {
	id := density.Identity(density.QubitDim)
	return &Swapper{
		projector: density.Tensor(density.Tensor(id, density.BellProjector()), id),
	}
}

// Step swaps entanglement across the node shared by left (A-B) and right (C-D):
//  1. form the joint state left ⊗ right
//  2. project B-C onto |Φ+⟩ and renormalize
//  3. trace out B and C, keeping A-D
//  4. score A-D against |Φ+⟩
//
// A zero-probability projection is not an error: the zero matrix is carried
// forward and the fidelity is NaN so the degeneracy stays visible downstream.
func (s *Swapper) Step(left, right mat.Matrix) (Outcome, error) {
	if err := checkPair(left); err != nil {
		return Outcome{}, fmt.Errorf("left operand: %w", err)
	}
	if err := checkPair(right); err != nil {
		return Outcome{}, fmt.Errorf("right operand: %w", err)
	}

	projected, prob := density.ProjectAndNormalize(density.Tensor(left, right), s.projector)

	reduced, err := density.PartialTrace(projected, jointDims, outerQubits)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to trace out measured qubits: %w", err)
	}

	fidelity := density.Fidelity(reduced)
	if prob == 0 {
		fidelity = math.NaN()
	}

	return Outcome{State: reduced, Fidelity: fidelity, Probability: prob}, nil
}

// Chain is the result of folding a whole repeater chain.
type Chain struct {
	// Trajectory holds one fidelity per link: entry 0 is the first link on its
	// own, entry k the end-to-end fidelity after folding in k more links.
	Trajectory []float64
	// Final is the end-to-end state after the last swap.
	Final *mat.Dense
	// Degenerate is set when any step had a zero-probability outcome.
	Degenerate bool
}

// Fold swaps the chain left to right in a single pass. Each step's output
// becomes the left operand of the next. The input slice is not modified.
func (s *Swapper) Fold(states []mat.Matrix) (*Chain, error) {
	if len(states) == 0 {
		return nil, ErrEmptyChain
	}
	if err := checkPair(states[0]); err != nil {
		return nil, fmt.Errorf("link 0: %w", err)
	}

	chain := &Chain{
		Trajectory: make([]float64, 0, len(states)),
		Final:      mat.DenseCopyOf(states[0]),
	}
	chain.Trajectory = append(chain.Trajectory, density.Fidelity(states[0]))

	for i := 1; i < len(states); i++ {
		out, err := s.Step(chain.Final, states[i])
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", i, err)
		}
		chain.Final = out.State
		chain.Trajectory = append(chain.Trajectory, out.Fidelity)
		if out.Degenerate() {
			chain.Degenerate = true
		}
	}
	return chain, nil
}

// FoldWerner builds one Werner state per link fidelity and folds them. The
// first trajectory entry is the first fidelity exactly as given.
func (s *Swapper) FoldWerner(fidelities []float64) (*Chain, error) {
	states := make([]mat.Matrix, len(fidelities))
	for i, f := range fidelities {
		states[i] = density.Werner(f)
	}

	chain, err := s.Fold(states)
	if err != nil {
		return nil, err
	}
	chain.Trajectory[0] = fidelities[0]
	return chain, nil
}

func checkPair(m mat.Matrix) error {
	if m == nil {
		return ErrNotPairState
	}
	r, c := m.Dims()
	if r != density.PairDim || c != density.PairDim {
		return fmt.Errorf("%dx%d: %w", r, c, ErrNotPairState)
	}
	return nil
}
