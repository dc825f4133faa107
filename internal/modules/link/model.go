// Package link maps the physical length of a repeater link to its initial
// entanglement fidelity, heralding success probability and signalling time.
package link

import (
	"fmt"
	"math"
)

// Default physical constants.
const (
	DefaultSourceFidelity    = 1.0  // F0, fidelity of a freshly generated pair
	DefaultDecayRate         = 0.01 // alpha, per km
	DefaultNoiseFidelity     = 0.25 // Fnoise, the maximally mixed floor
	DefaultAttenuationLength = 22.0 // L_att in km
	DefaultSignalSpeed       = 2e8  // m/s, light in fibre
)

// Model holds the physical parameters of a link. The zero value is not useful;
// start from DefaultModel.
type Model struct {
	SourceFidelity    float64 `json:"source_fidelity" yaml:"source_fidelity"`
	DecayRate         float64 `json:"decay_rate" yaml:"decay_rate"`
	NoiseFidelity     float64 `json:"noise_fidelity" yaml:"noise_fidelity"`
	AttenuationLength float64 `json:"attenuation_length_km" yaml:"attenuation_length_km"`
	SignalSpeed       float64 `json:"signal_speed_mps" yaml:"signal_speed_mps"`
}

// DefaultModel returns the model with the standard fibre constants.
func DefaultModel() Model {
	return Model{
		SourceFidelity:    DefaultSourceFidelity,
		DecayRate:         DefaultDecayRate,
		NoiseFidelity:     DefaultNoiseFidelity,
		AttenuationLength: DefaultAttenuationLength,
		SignalSpeed:       DefaultSignalSpeed,
	}
}

// Validate checks that the model parameters are physical.
func (m Model) Validate() error {
	if m.SourceFidelity < 0 || m.SourceFidelity > 1 {
		return fmt.Errorf("source fidelity must be within [0,1], got %g", m.SourceFidelity)
	}
	if m.NoiseFidelity < 0 || m.NoiseFidelity > 1 {
		return fmt.Errorf("noise fidelity must be within [0,1], got %g", m.NoiseFidelity)
	}
	if m.DecayRate < 0 || math.IsInf(m.DecayRate, 0) || math.IsNaN(m.DecayRate) {
		return fmt.Errorf("decay rate must be finite and non-negative, got %g", m.DecayRate)
	}
	if !(m.AttenuationLength > 0) || math.IsInf(m.AttenuationLength, 0) {
		return fmt.Errorf("attenuation length must be positive, got %g", m.AttenuationLength)
	}
	if !(m.SignalSpeed > 0) || math.IsInf(m.SignalSpeed, 0) {
		return fmt.Errorf("signal speed must be positive, got %g", m.SignalSpeed)
	}
	return nil
}

// InitialFidelity returns the Werner fidelity of a pair distributed over
// lengthKm: F0·e^(-αL) + (1-e^(-αL))·Fnoise. It decays monotonically from F0
// towards the noise floor as the link grows.
func (m Model) InitialFidelity(lengthKm float64) float64 {
	decay := math.Exp(-m.DecayRate * lengthKm)
	return m.SourceFidelity*decay + (1-decay)*m.NoiseFidelity
}

// SuccessRate returns the two-photon heralding probability over lengthKm:
// the squared transmissivity e^(-L/L_att), halved.
func (m Model) SuccessRate(lengthKm float64) float64 {
	transmissivity := math.Exp(-lengthKm / m.AttenuationLength)
	return transmissivity * transmissivity / 2
}

// HeraldedSuccessRate returns the per-attempt success probability of a link
// whose heralding station sits at its midpoint, so each photon only travels
// half of segmentKm.
func (m Model) HeraldedSuccessRate(segmentKm float64) float64 {
	return m.SuccessRate(segmentKm / 2)
}

// SignalTime returns the one-way light travel time in seconds over lengthKm.
// One attempt costs twice this (the herald has to come back); the final
// classical message costs it once more.
func (m Model) SignalTime(lengthKm float64) float64 {
	return lengthKm * 1000 / m.SignalSpeed
}
