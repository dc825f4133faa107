package density

import "errors"

var (
	// ErrNotSquare is returned when a density matrix is required but the input is not square.
	ErrNotSquare = errors.New("density: matrix is not square")

	// ErrDimensionMismatch indicates that the product of the subsystem dimensions
	// does not match the size of the matrix.
	ErrDimensionMismatch = errors.New("density: subsystem dimensions do not match matrix size")

	// ErrInvalidSubsystem indicates a kept subsystem index that is out of range or repeated.
	ErrInvalidSubsystem = errors.New("density: invalid subsystem index")

	// ErrNotHermitian is returned by Validate when the matrix is not symmetric within tolerance.
	ErrNotHermitian = errors.New("density: matrix is not hermitian")

	// ErrTraceNotOne is returned by Validate when the trace deviates from 1.
	ErrTraceNotOne = errors.New("density: trace is not one")

	// ErrNotPositive is returned by Validate when an eigenvalue is negative beyond tolerance.
	ErrNotPositive = errors.New("density: matrix is not positive semidefinite")
)
