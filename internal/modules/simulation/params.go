package simulation

import (
	"math"

	"github.com/aristath/qrepeater/internal/modules/chain"
)

// Params is the input of one simulation run. Lengths are in km.
type Params struct {
	Trials      int     `json:"trials" yaml:"trials" msgpack:"trials"`
	TotalLength float64 `json:"total_length_km" yaml:"total_length_km" msgpack:"total_length_km"`
	Symmetric   bool    `json:"symmetric" yaml:"symmetric" msgpack:"symmetric"`
	Repeaters   int     `json:"repeaters" yaml:"repeaters" msgpack:"repeaters"`
	// RandomizedAsymmetric draws a random partition of TotalLength when
	// Symmetric is false.
	RandomizedAsymmetric bool `json:"randomized_asymmetric" yaml:"randomized_asymmetric" msgpack:"randomized_asymmetric"`
	// LinkLengths is the explicit partition used when neither Symmetric nor
	// RandomizedAsymmetric is set. It must have Repeaters+1 entries, and
	// their sum replaces TotalLength in the result.
	LinkLengths      []float64 `json:"link_lengths_km,omitempty" yaml:"link_lengths_km,omitempty" msgpack:"link_lengths_km,omitempty"`
	UseFixedFidelity bool      `json:"use_fixed_fidelity" yaml:"use_fixed_fidelity" msgpack:"use_fixed_fidelity"`
	FixedFidelity    float64   `json:"fixed_fidelity" yaml:"fixed_fidelity" msgpack:"fixed_fidelity"`
	// Seed fixes every random stream of the run. Zero picks a fresh seed,
	// which is echoed in the result.
	Seed uint64 `json:"seed,omitempty" yaml:"seed,omitempty" msgpack:"seed,omitempty"`
}

// Explicit reports whether the caller supplied the partition.
func (p Params) Explicit() bool {
	return !p.Symmetric && !p.RandomizedAsymmetric
}

// Validate rejects parameters that cannot describe a physical chain. It
// returns a *ConfigError naming the first offending field.
func (p Params) Validate() error {
	if p.Trials <= 0 {
		return newConfigError("trials", "must be positive, got %d", p.Trials)
	}
	if p.Repeaters < 0 {
		return newConfigError("repeaters", "must be non-negative, got %d", p.Repeaters)
	}

	if p.Explicit() {
		if len(p.LinkLengths) != p.Repeaters+1 {
			return newConfigError("link_lengths_km", "want %d links for %d repeaters, got %d",
				p.Repeaters+1, p.Repeaters, len(p.LinkLengths))
		}
		for i, l := range p.LinkLengths {
			if !(l > 0) || math.IsInf(l, 0) {
				return newConfigError("link_lengths_km", "link %d must be positive and finite, got %g", i, l)
			}
		}
	} else if !(p.TotalLength > 0) || math.IsInf(p.TotalLength, 0) {
		return newConfigError("total_length_km", "must be positive and finite, got %g", p.TotalLength)
	}

	if p.UseFixedFidelity && !(p.FixedFidelity >= 0 && p.FixedFidelity <= 1) {
		return newConfigError("fixed_fidelity", "must be within [0,1], got %g", p.FixedFidelity)
	}
	return nil
}

// Mode names the partition strategy in use.
func (p Params) Mode() chain.Mode {
	switch {
	case p.Symmetric:
		return chain.ModeSymmetric
	case p.RandomizedAsymmetric:
		return chain.ModeRandom
	default:
		return chain.ModeExplicit
	}
}
