package initwfn

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// validateGain checks the gain of a variance scaling initializer
func validateGain(gain float64) error {
	if gain <= 0 {
		return fmt.Errorf("gain must be positive \n\thave(%v)", gain)
	}
	return nil
}

// GlorotUConfig implements a configuration of the Glorot Uniform
// initialization algorithm.
type GlorotUConfig struct {
	Gain float64
}

// NewGlorotU returns a new Glorot Uniform weight initializer
func NewGlorotU(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotUConfig{Gain: gain})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (g GlorotUConfig) Type() Type { return GlorotU }

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (g GlorotUConfig) Create() G.InitWFn { return G.GlorotU(g.Gain) }

func (g GlorotUConfig) validate() error { return validateGain(g.Gain) }

// GlorotNConfig implements a configuration of the Glorot Normal
// initialization algorithm.
type GlorotNConfig struct {
	Gain float64
}

// NewGlorotN returns a new Glorot Normal weight initializer.
func NewGlorotN(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotNConfig{Gain: gain})
}

func (g GlorotNConfig) Type() Type { return GlorotN }

func (g GlorotNConfig) Create() G.InitWFn { return G.GlorotN(g.Gain) }

func (g GlorotNConfig) validate() error { return validateGain(g.Gain) }

// HeUConfig implements a configuration of the He uniform
// initialization algorithm, suited to ReLU layers.
type HeUConfig struct {
	Gain float64
}

// NewHeU returns a new He Uniform weight initializer
func NewHeU(gain float64) (*InitWFn, error) {
	return newInitWFn(HeUConfig{Gain: gain})
}

func (h HeUConfig) Type() Type { return HeU }

func (h HeUConfig) Create() G.InitWFn { return G.HeU(h.Gain) }

func (h HeUConfig) validate() error { return validateGain(h.Gain) }

// HeNConfig implements a configuration of the He normal
// initialization algorithm.
type HeNConfig struct {
	Gain float64
}

// NewHeN returns a new He Normal weight initializer
func NewHeN(gain float64) (*InitWFn, error) {
	return newInitWFn(HeNConfig{Gain: gain})
}

func (h HeNConfig) Type() Type { return HeN }

func (h HeNConfig) Create() G.InitWFn { return G.HeN(h.Gain) }

func (h HeNConfig) validate() error { return validateGain(h.Gain) }
