package initwfn

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// GaussianConfig implements a configuration of a weight initializer
// that draws weights from a normal distribution
type GaussianConfig struct {
	Mean   float64
	StdDev float64
}

// NewGaussian returns a new Gaussian weight initializer
func NewGaussian(mean, stddev float64) (*InitWFn, error) {
	return newInitWFn(GaussianConfig{Mean: mean, StdDev: stddev})
}

// Type returns the type of the weight initializer created using this
// config
func (g GaussianConfig) Type() Type { return Gaussian }

// Create creates the Gorgonia weight initializer from this
// initializer config
func (g GaussianConfig) Create() G.InitWFn {
	return G.Gaussian(g.Mean, g.StdDev)
}

func (g GaussianConfig) validate() error {
	if g.StdDev < 0 {
		return fmt.Errorf("standard deviation must be non-negative "+
			"\n\thave(%v)", g.StdDev)
	}
	return nil
}

// UniformConfig implements a configuration of a weight initializer
// that draws weights uniformly from [Low, High). The final layer of an
// actor is often initialized this way with a small interval so that
// initial actions are near zero.
type UniformConfig struct {
	Low  float64
	High float64
}

// NewUniform returns a new Uniform weight initializer
func NewUniform(low, high float64) (*InitWFn, error) {
	return newInitWFn(UniformConfig{Low: low, High: high})
}

func (u UniformConfig) Type() Type { return Uniform }

func (u UniformConfig) Create() G.InitWFn {
	return G.Uniform(u.Low, u.High)
}

func (u UniformConfig) validate() error {
	if u.Low >= u.High {
		return fmt.Errorf("low must be less than high \n\thave(%v, %v)",
			u.Low, u.High)
	}
	return nil
}
