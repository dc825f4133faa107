// Package chain partitions the total length of a repeater chain into the
// lengths of its individual links.
package chain

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrInvalidLength      = errors.New("chain: total length must be positive and finite")
	ErrInvalidRepeaters   = errors.New("chain: repeater count must be non-negative")
	ErrPartitionSize      = errors.New("chain: partition size does not match repeater count")
	ErrNonPositiveSegment = errors.New("chain: segment lengths must be positive and finite")
)

// Mode selects how a chain is partitioned.
type Mode string

const (
	ModeSymmetric Mode = "symmetric"
	ModeRandom    Mode = "random"
	ModeExplicit  Mode = "explicit"
)

// Partition is an ordered set of link lengths in km, one per link.
type Partition struct {
	Mode    Mode      `json:"mode"`
	Lengths []float64 `json:"lengths_km"`
}

// Links returns the number of links in the partition.
func (p Partition) Links() int { return len(p.Lengths) }

// Total returns the summed length of all links.
func (p Partition) Total() float64 { return floats.Sum(p.Lengths) }

// Symmetric splits total into repeaters+1 equal links.
func Symmetric(total float64, repeaters int) (Partition, error) {
	if err := checkShape(total, repeaters); err != nil {
		return Partition{}, err
	}

	n := repeaters + 1
	lengths := make([]float64, n)
	for i := range lengths {
		lengths[i] = total / float64(n)
	}
	return Partition{Mode: ModeSymmetric, Lengths: lengths}, nil
}

// Random draws repeaters+1 uniform weights from src and rescales them so the
// links sum to total. Weights are taken from (0,1] so no link has zero length.
// The partition is only reproducible if src is.
func Random(total float64, repeaters int, src rand.Source) (Partition, error) {
	if err := checkShape(total, repeaters); err != nil {
		return Partition{}, err
	}

	u := distuv.Uniform{Min: 0, Max: 1, Src: src}
	weights := make([]float64, repeaters+1)
	for i := range weights {
		weights[i] = 1 - u.Rand()
	}
	floats.Scale(total/floats.Sum(weights), weights)

	return Partition{Mode: ModeRandom, Lengths: weights}, nil
}

// Explicit validates a caller supplied partition against the repeater count.
// The slice is copied; the caller's data is left untouched.
func Explicit(lengths []float64, repeaters int) (Partition, error) {
	if repeaters < 0 {
		return Partition{}, fmt.Errorf("%w, got %d", ErrInvalidRepeaters, repeaters)
	}
	if len(lengths) != repeaters+1 {
		return Partition{}, fmt.Errorf("%w: want %d links, got %d", ErrPartitionSize, repeaters+1, len(lengths))
	}
	for i, l := range lengths {
		if !(l > 0) || math.IsInf(l, 0) {
			return Partition{}, fmt.Errorf("%w: link %d is %g", ErrNonPositiveSegment, i, l)
		}
	}

	return Partition{Mode: ModeExplicit, Lengths: append([]float64(nil), lengths...)}, nil
}

func checkShape(total float64, repeaters int) error {
	if !(total > 0) || math.IsInf(total, 0) {
		return fmt.Errorf("%w, got %g", ErrInvalidLength, total)
	}
	if repeaters < 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidRepeaters, repeaters)
	}
	return nil
}
